package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/resumekit/airouter/internal/llm"
)

const ollamaDefaultModel = "qwen2.5:1.5b-instruct"

// Ollama is the local-inference adapter (/api/chat, NDJSON streaming).
// It needs no credential; its required key is the endpoint, so an
// unconfigured endpoint means unavailable rather than a startup error.
type Ollama struct {
	base
}

var _ llm.Adapter = (*Ollama)(nil)

func NewOllama(cfg llm.AdapterConfig) *Ollama {
	if cfg.Name == "" {
		cfg.Name = "ollama"
	}
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultModel
	}
	// Small local models: no upward scaling, modest ceiling.
	return &Ollama{base: newBase(cfg, llm.Capabilities{
		TokenMultiplier:  1.0,
		MaxTokensCeiling: 2048,
		DefaultMaxTokens: 512,
		Temperature:      llm.DefaultTemperatures(),
	})}
}

func (a *Ollama) Available() bool { return a.cfg.Endpoint != "" }

func (a *Ollama) ValidateConfig() error {
	if a.cfg.Endpoint == "" {
		return fmt.Errorf("%s: endpoint required", a.cfg.Name)
	}
	if a.cfg.Model == "" {
		return fmt.Errorf("%s: model required", a.cfg.Name)
	}
	return nil
}

func (a *Ollama) baseURL() string {
	return strings.TrimSuffix(a.cfg.Endpoint, "/")
}

type ollamaBody struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

func (a *Ollama) buildBody(req *llm.Request, stream bool) ([]byte, error) {
	msgs := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	body, err := json.Marshal(ollamaBody{Model: a.cfg.Model, Messages: msgs, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", a.cfg.Name, err)
	}

	// Ollama tuning lives under options; num_predict is its max_tokens.
	if body, err = sjson.SetBytes(body, "options.num_predict", a.caps.EffectiveMaxTokens(a.cfg, req.MaxTokens)); err != nil {
		return nil, err
	}
	if temp, ok := a.caps.TemperatureFor(req); ok {
		if body, err = sjson.SetBytes(body, "options.temperature", temp); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (a *Ollama) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL()+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", a.cfg.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func (a *Ollama) Call(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	body, err := a.buildBody(req, false)
	if err != nil {
		return nil, err
	}
	httpReq, err := a.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &llm.TransportError{Provider: a.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := readLimited(resp.Body)
	if err != nil {
		return nil, &llm.TransportError{Provider: a.cfg.Name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.BackendError{Provider: a.cfg.Name, StatusCode: resp.StatusCode, Body: truncateErrBody(respBody)}
	}

	content := gjson.GetBytes(respBody, "message.content").String()
	if strings.TrimSpace(content) == "" {
		return nil, &llm.EmptyResponseError{Provider: a.cfg.Name}
	}

	out := &llm.Response{
		Content:  content,
		Model:    gjson.GetBytes(respBody, "model").String(),
		Provider: a.cfg.Name,
	}
	prompt := int(gjson.GetBytes(respBody, "prompt_eval_count").Int())
	completion := int(gjson.GetBytes(respBody, "eval_count").Int())
	if prompt > 0 || completion > 0 {
		out.Usage = &llm.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		}
	}
	return out, nil
}

func (a *Ollama) CallStream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	body, err := a.buildBody(req, true)
	if err != nil {
		return nil, err
	}
	httpReq, err := a.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := a.streamClient().Do(httpReq)
	if err != nil {
		return nil, &llm.TransportError{Provider: a.cfg.Name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := readLimited(resp.Body)
		resp.Body.Close()
		return nil, &llm.BackendError{Provider: a.cfg.Name, StatusCode: resp.StatusCode, Body: truncateErrBody(respBody)}
	}

	ch := make(chan llm.Chunk)
	go readNDJSON(ctx, resp.Body, ch, a.cfg.Name)
	return ch, nil
}

func (a *Ollama) Models(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL()+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", a.cfg.Name, err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &llm.TransportError{Provider: a.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := readLimited(resp.Body)
	if err != nil {
		return nil, &llm.TransportError{Provider: a.cfg.Name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.BackendError{Provider: a.cfg.Name, StatusCode: resp.StatusCode, Body: truncateErrBody(respBody)}
	}

	var models []string
	for _, name := range gjson.GetBytes(respBody, "models.#.name").Array() {
		models = append(models, name.String())
	}
	return models, nil
}
