package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/resumekit/airouter/internal/llm"
)

func newTestOllama(endpoint string) *Ollama {
	return NewOllama(llm.AdapterConfig{Endpoint: endpoint})
}

func TestOllamaAvailabilityRequiresEndpoint(t *testing.T) {
	assert.False(t, NewOllama(llm.AdapterConfig{}).Available())
	assert.True(t, newTestOllama("http://localhost:11434").Available())

	require.Error(t, NewOllama(llm.AdapterConfig{}).ValidateConfig())
	assert.NoError(t, newTestOllama("http://localhost:11434").ValidateConfig())
}

func TestOllamaCall(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{
			"model": "qwen2.5:1.5b-instruct",
			"message": {"role": "assistant", "content": "Local hello"},
			"done": true,
			"prompt_eval_count": 8,
			"eval_count": 15
		}`)
	}))
	defer srv.Close()

	a := newTestOllama(srv.URL)
	resp, err := a.Call(context.Background(), &llm.Request{
		Messages:  llm.UserMessage("hi"),
		Task:      llm.TaskParsing,
		MaxTokens: 400,
	})
	require.NoError(t, err)

	assert.Equal(t, "Local hello", resp.Content)
	assert.Equal(t, "ollama", resp.Provider)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 8, resp.Usage.PromptTokens)
	assert.Equal(t, 15, resp.Usage.CompletionTokens)
	assert.Equal(t, 23, resp.Usage.TotalTokens)

	assert.Equal(t, "qwen2.5:1.5b-instruct", gjson.GetBytes(gotBody, "model").String())
	assert.False(t, gjson.GetBytes(gotBody, "stream").Bool())
	assert.Equal(t, int64(400), gjson.GetBytes(gotBody, "options.num_predict").Int())
	assert.InDelta(t, 0.1, gjson.GetBytes(gotBody, "options.temperature").Float(), 1e-9)
}

func TestOllamaCallEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message": {"role": "assistant", "content": ""}, "done": true}`)
	}))
	defer srv.Close()

	a := newTestOllama(srv.URL)
	_, err := a.Call(context.Background(), &llm.Request{Messages: llm.UserMessage("hi")})

	var emptyErr *llm.EmptyResponseError
	require.ErrorAs(t, err, &emptyErr)
}

func TestOllamaStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, gjson.GetBytes(body, "stream").Bool())

		fmt.Fprintln(w, `{"message": {"content": "Lo"}, "done": false}`)
		fmt.Fprintln(w, `{"message": {"content": "cal"}, "done": false}`)
		fmt.Fprintln(w, `{"message": {"content": ""}, "done": true, "prompt_eval_count": 4, "eval_count": 2}`)
	}))
	defer srv.Close()

	a := newTestOllama(srv.URL)
	ch, err := a.CallStream(context.Background(), &llm.Request{Messages: llm.UserMessage("hi")})
	require.NoError(t, err)

	var text string
	finals := 0
	var usage *llm.Usage
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		text += chunk.Delta
		if chunk.Final {
			finals++
			usage = chunk.Usage
		}
	}

	assert.Equal(t, "Local", text)
	assert.Equal(t, 1, finals)
	require.NotNil(t, usage)
	assert.Equal(t, 6, usage.TotalTokens)
}

func TestOllamaModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models": [{"name": "qwen2.5:1.5b-instruct"}, {"name": "llama3.2:1b"}]}`)
	}))
	defer srv.Close()

	a := newTestOllama(srv.URL)
	models, err := a.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5:1.5b-instruct", "llama3.2:1b"}, models)
}

func TestOllamaTokenCeiling(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"message": {"content": "ok"}, "done": true}`)
	}))
	defer srv.Close()

	a := newTestOllama(srv.URL)
	_, err := a.Call(context.Background(), &llm.Request{
		Messages:  llm.UserMessage("hi"),
		MaxTokens: 100000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2048), gjson.GetBytes(gotBody, "options.num_predict").Int())
}
