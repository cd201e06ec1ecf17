package adapters

import (
	"context"
	"strings"

	"github.com/resumekit/airouter/internal/llm"
)

const (
	deepSeekDefaultBaseURL = "https://api.deepseek.com"
	deepSeekDefaultModel   = "deepseek-chat"
)

// DeepSeek speaks the OpenAI-compatible Chat Completions wire format against
// api.deepseek.com. Only the defaults and the capability table differ from
// the OpenAI adapter; DeepSeek also reports usage on the final stream event
// without being asked.
type DeepSeek struct {
	base
}

var _ llm.Adapter = (*DeepSeek)(nil)

func NewDeepSeek(cfg llm.AdapterConfig) *DeepSeek {
	if cfg.Name == "" {
		cfg.Name = "deepseek"
	}
	if cfg.Model == "" {
		cfg.Model = deepSeekDefaultModel
	}
	return &DeepSeek{base: newBase(cfg, llm.Capabilities{
		TokenMultiplier:  1.0,
		MaxTokensCeiling: 8192,
		DefaultMaxTokens: 1024,
		Temperature:      llm.DefaultTemperatures(),
	})}
}

func (a *DeepSeek) Available() bool { return a.cfg.APIKey != "" }

func (a *DeepSeek) ValidateConfig() error { return llm.ValidateChatConfig(a.cfg) }

func (a *DeepSeek) baseURL() string {
	if a.cfg.Endpoint != "" {
		return strings.TrimSuffix(a.cfg.Endpoint, "/")
	}
	return deepSeekDefaultBaseURL
}

func (a *DeepSeek) Call(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return a.chatCall(ctx, a.baseURL()+"/chat/completions", req)
}

func (a *DeepSeek) CallStream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	return a.chatStream(ctx, a.baseURL()+"/chat/completions", req)
}

func (a *DeepSeek) Models(ctx context.Context) ([]string, error) {
	return a.chatModels(ctx, a.baseURL()+"/models")
}
