// Package adapters provides the concrete provider backends.
//
// DESIGN: The router supports three backend families that differ only in
// wire formatting and streaming-chunk parsing:
//
//   - openai:   OpenAI Chat Completions API, SSE streaming
//   - deepseek: OpenAI-compatible wire, DeepSeek defaults (api.deepseek.com)
//   - ollama:   local inference, /api/chat, NDJSON streaming
//
// Each adapter owns its HTTP client and timeout; adapters share no state.
// To add a provider: implement llm.Adapter and register it in Registry.
package adapters

import (
	"io"
	"net/http"

	"github.com/resumekit/airouter/internal/llm"
)

const (
	// maxResponseSize prevents OOM on unexpectedly large API responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error bodies carried in error values to avoid
	// log bloat.
	maxErrorBodyLen = 500
)

// base carries the configuration and HTTP client shared by every adapter.
type base struct {
	cfg    llm.AdapterConfig
	caps   llm.Capabilities
	client *http.Client
}

func newBase(cfg llm.AdapterConfig, caps llm.Capabilities) base {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = llm.DefaultTimeout
	}
	return base{
		cfg:    cfg,
		caps:   caps,
		client: &http.Client{Timeout: timeout},
	}
}

func (b *base) Name() string { return b.cfg.Name }

// streamClient returns a client without an overall deadline: the configured
// timeout would cut long-lived streams short. Stream lifetime is governed by
// the request context instead.
func (b *base) streamClient() *http.Client {
	return &http.Client{}
}

func (b *base) RetryBudget() int {
	if b.cfg.RetryBudget < 1 {
		return 1
	}
	return b.cfg.RetryBudget
}

// readLimited drains at most maxResponseSize bytes from r.
func readLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxResponseSize))
}

// truncateErrBody shortens an error body for inclusion in error values.
func truncateErrBody(body []byte) string {
	s := string(body)
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen] + "... (truncated)"
	}
	return s
}
