package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Token estimation backs the usage figures on local-fallback responses and
// the per-request audit records. Counts are estimates (cl100k_base), not the
// backend's own accounting.

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoder() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		// Ignore init failure; EstimateTokens falls back to a byte heuristic.
		enc, _ = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	})
	return enc
}

// EstimateTextTokens estimates the token count of a single text.
func EstimateTextTokens(text string) int {
	if text == "" {
		return 0
	}
	if e := encoder(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	// Offline fallback: ~4 bytes per token for English text.
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// EstimateTokens estimates the prompt token count of a conversation,
// including a small per-message framing overhead.
func EstimateTokens(msgs []Message) int {
	const perMessageOverhead = 4
	total := 0
	for _, m := range msgs {
		total += EstimateTextTokens(m.Content) + perMessageOverhead
	}
	return total
}
