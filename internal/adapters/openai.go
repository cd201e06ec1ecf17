package adapters

import (
	"context"
	"strings"

	"github.com/resumekit/airouter/internal/llm"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAI is the Chat Completions adapter for api.openai.com and
// OpenAI-compatible proxies.
type OpenAI struct {
	base
}

var _ llm.Adapter = (*OpenAI)(nil)

// NewOpenAI constructs the adapter. The larger context window earns a token
// multiplier above 1: a caller's budget is scaled up, capped at the ceiling.
func NewOpenAI(cfg llm.AdapterConfig) *OpenAI {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAI{base: newBase(cfg, llm.Capabilities{
		TokenMultiplier:  1.25,
		MaxTokensCeiling: 16384,
		DefaultMaxTokens: 1024,
		Temperature:      llm.DefaultTemperatures(),
	})}
}

func (a *OpenAI) Available() bool { return a.cfg.APIKey != "" }

func (a *OpenAI) ValidateConfig() error { return llm.ValidateChatConfig(a.cfg) }

func (a *OpenAI) baseURL() string {
	if a.cfg.Endpoint != "" {
		return strings.TrimSuffix(a.cfg.Endpoint, "/")
	}
	return openAIDefaultBaseURL
}

func (a *OpenAI) Call(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return a.chatCall(ctx, a.baseURL()+"/chat/completions", req)
}

func (a *OpenAI) CallStream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	return a.chatStream(ctx, a.baseURL()+"/chat/completions", req)
}

func (a *OpenAI) Models(ctx context.Context) ([]string, error) {
	return a.chatModels(ctx, a.baseURL()+"/models")
}
