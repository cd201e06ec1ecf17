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

// Shared OpenAI-compatible Chat Completions wire handling. The openai and
// deepseek adapters differ only in defaults (base URL, model, capability
// table); both delegate here.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

// buildChatBody marshals the canonical request into Chat Completions JSON.
// Temperature and the stream flag are patched in with sjson: temperature
// because omitempty cannot distinguish "unset" from an explicit 0.0 (and
// some models reject the field entirely), stream because it only applies to
// streaming calls.
func (b *base) buildChatBody(req *llm.Request, stream bool) ([]byte, error) {
	msgs := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}

	body, err := json.Marshal(chatBody{
		Model:     b.cfg.Model,
		Messages:  msgs,
		MaxTokens: b.caps.EffectiveMaxTokens(b.cfg, req.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", b.cfg.Name, err)
	}

	if temp, ok := b.caps.TemperatureFor(req); ok {
		if body, err = sjson.SetBytes(body, "temperature", temp); err != nil {
			return nil, err
		}
	}
	if stream {
		if body, err = sjson.SetBytes(body, "stream", true); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (b *base) newChatRequest(ctx context.Context, endpoint string, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", b.cfg.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	return httpReq, nil
}

// chatCall performs one blocking Chat Completions round trip.
func (b *base) chatCall(ctx context.Context, endpoint string, req *llm.Request) (*llm.Response, error) {
	body, err := b.buildChatBody(req, false)
	if err != nil {
		return nil, err
	}
	httpReq, err := b.newChatRequest(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, &llm.TransportError{Provider: b.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := readLimited(resp.Body)
	if err != nil {
		return nil, &llm.TransportError{Provider: b.cfg.Name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.BackendError{Provider: b.cfg.Name, StatusCode: resp.StatusCode, Body: truncateErrBody(respBody)}
	}

	content := gjson.GetBytes(respBody, "choices.0.message.content").String()
	if strings.TrimSpace(content) == "" {
		return nil, &llm.EmptyResponseError{Provider: b.cfg.Name}
	}

	out := &llm.Response{
		Content:  content,
		Model:    gjson.GetBytes(respBody, "model").String(),
		Provider: b.cfg.Name,
	}
	if u := gjson.GetBytes(respBody, "usage"); u.Exists() {
		out.Usage = &llm.Usage{
			PromptTokens:     int(u.Get("prompt_tokens").Int()),
			CompletionTokens: int(u.Get("completion_tokens").Int()),
			TotalTokens:      int(u.Get("total_tokens").Int()),
		}
	}
	return out, nil
}

// chatStream opens a streaming Chat Completions call. The round trip and
// status check happen here, synchronously, so connect-phase failures return
// as ordinary errors; only after a 200 does the reader goroutine take over.
func (b *base) chatStream(ctx context.Context, endpoint string, req *llm.Request) (<-chan llm.Chunk, error) {
	body, err := b.buildChatBody(req, true)
	if err != nil {
		return nil, err
	}
	httpReq, err := b.newChatRequest(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := b.streamClient().Do(httpReq)
	if err != nil {
		return nil, &llm.TransportError{Provider: b.cfg.Name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := readLimited(resp.Body)
		resp.Body.Close()
		return nil, &llm.BackendError{Provider: b.cfg.Name, StatusCode: resp.StatusCode, Body: truncateErrBody(respBody)}
	}

	ch := make(chan llm.Chunk)
	go readSSE(ctx, resp.Body, ch, b.cfg.Name)
	return ch, nil
}

// chatModels fetches the backend's model catalog (GET {base}/models).
func (b *base) chatModels(ctx context.Context, endpoint string) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", b.cfg.Name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, &llm.TransportError{Provider: b.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := readLimited(resp.Body)
	if err != nil {
		return nil, &llm.TransportError{Provider: b.cfg.Name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.BackendError{Provider: b.cfg.Name, StatusCode: resp.StatusCode, Body: truncateErrBody(respBody)}
	}

	var models []string
	for _, id := range gjson.GetBytes(respBody, "data.#.id").Array() {
		models = append(models, id.String())
	}
	return models, nil
}
