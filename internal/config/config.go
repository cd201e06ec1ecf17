// Package config loads and validates the router configuration.
//
// DESIGN: Configuration comes from a YAML file with ${VAR:-default}
// environment expansion, so the same file serves local development and
// deployment. A missing provider credential is never a load error; the
// provider simply stays unconfigured and the router treats it as
// unavailable.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/resumekit/airouter/internal/llm"
)

// Config is the root configuration for the AI router.
type Config struct {
	Server    ServerConfig              `yaml:"server"`    // HTTP server settings
	Providers map[string]ProviderConfig `yaml:"providers"` // Provider configurations, keyed by kind
	Router    RouterConfig              `yaml:"router"`    // Selection and fallback policy
	Store     StoreConfig               `yaml:"store"`     // Request audit store
	Logging   LoggingConfig             `yaml:"logging"`   // Log level and format
	Tasks     []llm.TaskConfig          `yaml:"tasks"`     // Per-task overrides
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ProviderConfig describes one provider backend.
type ProviderConfig struct {
	APIKey           string        `yaml:"api_key"`
	Endpoint         string        `yaml:"endpoint"`
	Model            string        `yaml:"model"`
	MaxTokensCeiling int           `yaml:"max_tokens_ceiling"`
	Timeout          time.Duration `yaml:"timeout"`
	RetryBudget      int           `yaml:"retry_budget"`
	TokenMultiplier  float64       `yaml:"token_multiplier"`
}

// RouterConfig contains provider selection policy.
type RouterConfig struct {
	Default         string   `yaml:"default"`          // Preferred provider when no policy applies
	FallbackOrder   []string `yaml:"fallback_order"`   // Traversal order on failure
	FallbackEnabled *bool    `yaml:"fallback_enabled"` // Defaults to true when omitted
}

// Enabled reports whether failover is on. Omitted means on.
func (r RouterConfig) Enabled() bool {
	return r.FallbackEnabled == nil || *r.FallbackEnabled
}

// StoreConfig contains request audit store settings.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file path; empty disables persistence
}

// LoggingConfig contains log settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // "json" or "console"
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes with
// ${VAR:-default} environment expansion and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8090
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Streams hold the response open well past a typical write timeout.
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks structural validity. Providers with missing credentials
// are allowed; they surface later as unavailable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}

	for name, p := range c.Providers {
		if p.TokenMultiplier < 0 {
			return fmt.Errorf("providers.%s.token_multiplier must not be negative", name)
		}
		if p.RetryBudget < 0 {
			return fmt.Errorf("providers.%s.retry_budget must not be negative", name)
		}
	}

	if c.Router.Default != "" {
		if _, ok := c.Providers[c.Router.Default]; !ok {
			return fmt.Errorf("router.default references unknown provider %q", c.Router.Default)
		}
	}
	for _, name := range c.Router.FallbackOrder {
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("router.fallback_order references unknown provider %q", name)
		}
	}

	for i, t := range c.Tasks {
		if !t.Task.Valid() {
			return fmt.Errorf("tasks[%d]: unknown task kind %q", i, t.Task)
		}
	}

	return nil
}

// AdapterConfigs converts the provider section into adapter configs.
func (c *Config) AdapterConfigs() map[string]llm.AdapterConfig {
	out := make(map[string]llm.AdapterConfig, len(c.Providers))
	for name, p := range c.Providers {
		out[name] = llm.AdapterConfig{
			Name:             name,
			APIKey:           p.APIKey,
			Endpoint:         p.Endpoint,
			Model:            p.Model,
			MaxTokensCeiling: p.MaxTokensCeiling,
			Timeout:          p.Timeout,
			RetryBudget:      p.RetryBudget,
			TokenMultiplier:  p.TokenMultiplier,
		}
	}
	return out
}

// TaskConfigFor returns the configured override for a task, or nil.
func (c *Config) TaskConfigFor(task llm.TaskKind) *llm.TaskConfig {
	for i := range c.Tasks {
		if c.Tasks[i].Task == task {
			return &c.Tasks[i]
		}
	}
	return nil
}
