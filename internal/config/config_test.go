package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumekit/airouter/internal/llm"
)

const sampleYAML = `
server:
  port: 9000
  read_timeout: 10s
  write_timeout: 2m

providers:
  openai:
    api_key: secret-key
    model: gpt-4o-mini
    retry_budget: 3
  deepseek:
    api_key: other-key
    model: deepseek-chat
    timeout: 45s
    token_multiplier: 1.5
  ollama:
    endpoint: http://localhost:11434
    model: qwen2.5:1.5b-instruct

router:
  default: deepseek
  fallback_order: [deepseek, openai, ollama]

store:
  path: /tmp/airouter.db

logging:
  level: debug
  format: console

tasks:
  - task: parsing
    structured_output: true
    max_tokens: 2000
  - task: generation
    temperature: 0.9
`

func TestLoadFromBytes(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)

	require.Len(t, cfg.Providers, 3)
	assert.Equal(t, "secret-key", cfg.Providers["openai"].APIKey)
	assert.Equal(t, 3, cfg.Providers["openai"].RetryBudget)
	assert.Equal(t, 45*time.Second, cfg.Providers["deepseek"].Timeout)
	assert.Equal(t, 1.5, cfg.Providers["deepseek"].TokenMultiplier)
	assert.Equal(t, "http://localhost:11434", cfg.Providers["ollama"].Endpoint)

	assert.Equal(t, "deepseek", cfg.Router.Default)
	assert.Equal(t, []string{"deepseek", "openai", "ollama"}, cfg.Router.FallbackOrder)
	assert.True(t, cfg.Router.Enabled())

	assert.Equal(t, "/tmp/airouter.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`providers: {}`))
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Router.Enabled())
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("TEST_API_KEY", "from-env")

	yaml := `
providers:
  openai:
    api_key: ${TEST_API_KEY:-fallback}
    model: ${TEST_MISSING_MODEL:-gpt-4o-mini}
`
	cfg, err := LoadFromBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Providers["openai"].APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Providers["openai"].Model)
}

func TestEnvExpansionMissingWithoutDefaultIsEmpty(t *testing.T) {
	yaml := `
providers:
  openai:
    api_key: ${DEFINITELY_NOT_SET_VAR}
    model: gpt-4o-mini
`
	cfg, err := LoadFromBytes([]byte(yaml))
	// Missing credentials never fail the load.
	require.NoError(t, err)
	assert.Empty(t, cfg.Providers["openai"].APIKey)
}

func TestValidateRejectsBadReferences(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown default provider",
			yaml:    "router:\n  default: mystery",
			wantErr: "router.default",
		},
		{
			name:    "unknown fallback provider",
			yaml:    "router:\n  fallback_order: [mystery]",
			wantErr: "fallback_order",
		},
		{
			name:    "bad port",
			yaml:    "server:\n  port: 70000",
			wantErr: "server.port",
		},
		{
			name:    "negative retry budget",
			yaml:    "providers:\n  openai:\n    retry_budget: -1",
			wantErr: "retry_budget",
		},
		{
			name:    "unknown task kind",
			yaml:    "tasks:\n  - task: poetry",
			wantErr: "task kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFallbackEnabledExplicitFalse(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("router:\n  fallback_enabled: false"))
	require.NoError(t, err)
	assert.False(t, cfg.Router.Enabled())
}

func TestAdapterConfigs(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)

	acs := cfg.AdapterConfigs()
	require.Contains(t, acs, "deepseek")
	assert.Equal(t, "deepseek", acs["deepseek"].Name)
	assert.Equal(t, "other-key", acs["deepseek"].APIKey)
	assert.Equal(t, 1.5, acs["deepseek"].TokenMultiplier)
}

func TestTaskConfigFor(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)

	parsing := cfg.TaskConfigFor(llm.TaskParsing)
	require.NotNil(t, parsing)
	assert.True(t, parsing.StructuredOutput)
	assert.Equal(t, 2000, parsing.MaxTokens)

	generation := cfg.TaskConfigFor(llm.TaskGeneration)
	require.NotNil(t, generation)
	require.NotNil(t, generation.Temperature)
	assert.InDelta(t, 0.9, *generation.Temperature, 1e-9)

	assert.Nil(t, cfg.TaskConfigFor(llm.TaskTranslation))
}
