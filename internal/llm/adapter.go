package llm

import (
	"context"
	"fmt"
	"time"
)

// Adapter is the closed capability set every provider backend implements.
// Adapters are stateless beyond their config and safe for concurrent use;
// no adapter may touch another adapter's state.
type Adapter interface {
	// Name returns the provider identity (e.g. "openai", "deepseek", "ollama").
	Name() string

	// Available reports whether the adapter's required credential/endpoint
	// is configured. Pure, no I/O: this is a config check, not a ping.
	Available() bool

	// ValidateConfig returns nil iff the adapter has everything it needs to
	// be constructed at all. The registry drops adapters that fail this.
	ValidateConfig() error

	// Call performs one blocking round trip.
	Call(ctx context.Context, req *Request) (*Response, error)

	// CallStream performs one streaming round trip. The connection attempt
	// and status check happen before the channel is returned, so connect
	// failures surface as an ordinary error (and stay retryable). The
	// returned channel is closed after the terminal chunk; the producer
	// releases the underlying transport when the consumer's context is
	// cancelled.
	CallStream(ctx context.Context, req *Request) (<-chan Chunk, error)

	// Models returns the backend's model catalog.
	Models(ctx context.Context) ([]string, error)

	// RetryBudget is the total number of attempts this adapter gets per
	// routed request (minimum 1).
	RetryBudget() int
}

// AdapterConfig is supplied once at adapter construction and read-only
// afterward.
type AdapterConfig struct {
	Name string

	// APIKey is the backend credential. Empty means the adapter is
	// unavailable (local-inference adapters don't use one).
	APIKey string

	// Endpoint overrides the adapter's default base URL.
	Endpoint string

	Model string

	// MaxTokensCeiling overrides the adapter's built-in ceiling when > 0.
	MaxTokensCeiling int

	Timeout     time.Duration
	RetryBudget int

	// TokenMultiplier overrides the adapter's built-in multiplier when > 0.
	TokenMultiplier float64
}

// MinTokenFloor is the lowest completion budget an adapter will ever send:
// requested budgets are never silently reduced below it.
const MinTokenFloor = 256

// DefaultTimeout applies when AdapterConfig.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Capabilities describes an adapter's tuning table: how it scales the
// caller's token budget and what temperature it defaults to per task kind.
type Capabilities struct {
	// TokenMultiplier scales the caller's requested budget. Adapters with
	// larger context windows use > 1.
	TokenMultiplier float64

	// MaxTokensCeiling is the provider's true completion ceiling.
	MaxTokensCeiling int

	// DefaultMaxTokens applies when the caller requested no budget.
	DefaultMaxTokens int

	// Temperature maps task kind to default sampling temperature, used
	// when the caller does not set one. Parsing is lowest, generation
	// highest.
	Temperature map[TaskKind]float64
}

// DefaultTemperatures is the shared per-task temperature table.
// Adapters may copy and adjust it.
func DefaultTemperatures() map[TaskKind]float64 {
	return map[TaskKind]float64{
		TaskParsing:     0.1,
		TaskAnalysis:    0.3,
		TaskTranslation: 0.3,
		TaskEnhancement: 0.5,
		TaskGeneration:  0.7,
	}
}

// EffectiveMaxTokens resolves the completion budget actually sent on the
// wire: requested (or the default) scaled by the multiplier, clamped to
// [MinTokenFloor, ceiling]. Config overrides win over built-in capability
// values when set.
func (c Capabilities) EffectiveMaxTokens(cfg AdapterConfig, requested int) int {
	ceiling := c.MaxTokensCeiling
	if cfg.MaxTokensCeiling > 0 {
		ceiling = cfg.MaxTokensCeiling
	}
	multiplier := c.TokenMultiplier
	if cfg.TokenMultiplier > 0 {
		multiplier = cfg.TokenMultiplier
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	if requested <= 0 {
		requested = c.DefaultMaxTokens
	}

	scaled := int(float64(requested) * multiplier)
	if scaled < MinTokenFloor {
		scaled = MinTokenFloor
	}
	if ceiling > 0 && scaled > ceiling {
		scaled = ceiling
	}
	return scaled
}

// TemperatureFor resolves the sampling temperature for req. The caller's
// explicit value wins; otherwise the task table applies. ok is false when
// neither source provides one, meaning the field should be omitted from the
// wire entirely (some backends reject it).
func (c Capabilities) TemperatureFor(req *Request) (float64, bool) {
	if req.Temperature != nil {
		return *req.Temperature, true
	}
	if t, ok := c.Temperature[req.Task]; ok {
		return t, true
	}
	return 0, false
}

// ValidateChatConfig is the shared registration-time check for API-backed
// adapters: credential and model must both be present.
func ValidateChatConfig(cfg AdapterConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("%s: api key required", cfg.Name)
	}
	if cfg.Model == "" {
		return fmt.Errorf("%s: model required", cfg.Name)
	}
	return nil
}
