package adapters

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/resumekit/airouter/internal/llm"
)

// Stream readers. Both run as the producer goroutine behind an adapter's
// CallStream channel and own the response body: it is closed on terminal
// condition, on read error, and on consumer abandonment (the request context
// also cancels the underlying transport read, so a blocked Scan unblocks).
//
// Contract: exactly one chunk with Final == true ends a successful stream;
// nothing is sent after it. Reading stops as soon as a terminal condition is
// observed, even if the backend would send more.

// scanBufSize accommodates single SSE events carrying large deltas.
const scanBufSize = 1024 * 1024

func send(ctx context.Context, ch chan<- llm.Chunk, c llm.Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// readSSE consumes an OpenAI-style event stream: "data: {json}" lines,
// terminated by "data: [DONE]" or a stop/length finish reason. DeepSeek
// attaches usage to the final data event; OpenAI omits it unless asked.
func readSSE(ctx context.Context, body io.ReadCloser, ch chan<- llm.Chunk, provider string) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), scanBufSize)

	var usage *llm.Usage
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			send(ctx, ch, llm.Chunk{Final: true, Usage: usage})
			return
		}

		if u := gjson.Get(data, "usage"); u.Exists() && u.Get("total_tokens").Int() > 0 {
			usage = &llm.Usage{
				PromptTokens:     int(u.Get("prompt_tokens").Int()),
				CompletionTokens: int(u.Get("completion_tokens").Int()),
				TotalTokens:      int(u.Get("total_tokens").Int()),
			}
		}

		if delta := gjson.Get(data, "choices.0.delta.content").String(); delta != "" {
			if !send(ctx, ch, llm.Chunk{Delta: delta}) {
				return
			}
		}

		switch gjson.Get(data, "choices.0.finish_reason").String() {
		case "stop", "length":
			send(ctx, ch, llm.Chunk{Final: true, Usage: usage})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, ch, llm.Chunk{Err: &llm.TransportError{Provider: provider, Err: err}})
		return
	}
	// EOF without an explicit terminator still ends the stream cleanly.
	send(ctx, ch, llm.Chunk{Final: true, Usage: usage})
}

// readNDJSON consumes an Ollama-style stream: one JSON object per line,
// terminated by done == true, which also carries the token counts.
func readNDJSON(ctx context.Context, body io.ReadCloser, ch chan<- llm.Chunk, provider string) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), scanBufSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if delta := gjson.Get(line, "message.content").String(); delta != "" {
			if !send(ctx, ch, llm.Chunk{Delta: delta}) {
				return
			}
		}

		if gjson.Get(line, "done").Bool() {
			prompt := int(gjson.Get(line, "prompt_eval_count").Int())
			completion := int(gjson.Get(line, "eval_count").Int())
			var usage *llm.Usage
			if prompt > 0 || completion > 0 {
				usage = &llm.Usage{
					PromptTokens:     prompt,
					CompletionTokens: completion,
					TotalTokens:      prompt + completion,
				}
			}
			send(ctx, ch, llm.Chunk{Final: true, Usage: usage})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, ch, llm.Chunk{Err: &llm.TransportError{Provider: provider, Err: err}})
		return
	}
	send(ctx, ch, llm.Chunk{Final: true})
}
