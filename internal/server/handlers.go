package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/resumekit/airouter/internal/llm"
	"github.com/resumekit/airouter/internal/monitoring"
	"github.com/resumekit/airouter/internal/router"
	"github.com/resumekit/airouter/internal/store"
)

// routeRequest is the wire form accepted by the routing endpoints. Either
// messages or prompt must be present; prompt is shorthand for a single
// user message.
type routeRequest struct {
	Messages         []llm.Message `json:"messages,omitempty"`
	Prompt           string        `json:"prompt,omitempty"`
	Task             llm.TaskKind  `json:"task,omitempty"`
	Provider         string        `json:"provider,omitempty"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      *float64      `json:"temperature,omitempty"`
	StructuredOutput bool          `json:"structured_output,omitempty"`
}

func (rr *routeRequest) validate() error {
	if len(rr.Messages) == 0 && rr.Prompt == "" {
		return fmt.Errorf("either messages or prompt is required")
	}
	if rr.Task != "" && !rr.Task.Valid() {
		return fmt.Errorf("unknown task kind %q", rr.Task)
	}
	return nil
}

func (rr *routeRequest) messages() []llm.Message {
	if len(rr.Messages) > 0 {
		return rr.Messages
	}
	return llm.UserMessage(rr.Prompt)
}

func (rr *routeRequest) taskConfig() *llm.TaskConfig {
	return &llm.TaskConfig{
		Task:             rr.Task,
		Provider:         rr.Provider,
		Temperature:      rr.Temperature,
		MaxTokens:        rr.MaxTokens,
		StructuredOutput: rr.StructuredOutput,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusBadGateway

	var parseErr *llm.StructuredParseError
	switch {
	case errors.Is(err, llm.ErrNoProvidersAvailable):
		status = http.StatusServiceUnavailable
	case errors.As(err, &parseErr):
		status = http.StatusBadGateway
		resp.Raw = parseErr.Raw
	}
	writeJSON(w, status, resp)
}

// errorClass names the error family for audit records.
func errorClass(err error) string {
	var (
		transport *llm.TransportError
		backend   *llm.BackendError
		empty     *llm.EmptyResponseError
		parse     *llm.StructuredParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &backend):
		return "backend"
	case errors.As(err, &empty):
		return "empty_response"
	case errors.As(err, &parse):
		return "structured_parse"
	case errors.Is(err, llm.ErrNoProvidersAvailable):
		return "no_providers"
	default:
		return "other"
	}
}

func (s *Server) record(r *http.Request, rr *routeRequest, resp *llm.Response, err error, stream bool, start time.Time) {
	rec := store.RequestRecord{
		ID:         monitoring.RequestIDFromContext(r.Context()),
		Time:       start,
		Task:       rr.Task,
		DurationMS: time.Since(start).Milliseconds(),
		Stream:     stream,
		ErrorClass: errorClass(err),
	}
	if resp != nil {
		rec.Provider = resp.Provider
		rec.Model = resp.Model
		rec.Degraded = resp.Degraded
		if resp.Usage != nil {
			rec.PromptTokens = resp.Usage.PromptTokens
			rec.CompletionTokens = resp.Usage.CompletionTokens
			rec.TotalTokens = resp.Usage.TotalTokens
		}
	}
	// Auditing is best effort; a full disk must not fail the request.
	if recErr := s.store.Record(r.Context(), rec); recErr != nil {
		s.log.Warn().Err(recErr).Msg("failed to record request")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": s.router.Providers(),
		"requests":  s.router.Requests(),
		"degraded":  s.router.DegradedRequests(),
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var rr routeRequest
	if err := json.NewDecoder(r.Body).Decode(&rr); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := rr.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	resp, err := s.router.Route(r.Context(), rr.messages(), rr.taskConfig())
	s.record(r, &rr, resp, err, false, start)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRouteStream streams chunks as server-sent events. Each chunk is a
// "data:" line of JSON; the final event carries final=true and usage.
func (s *Server) handleRouteStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var rr routeRequest
	if err := json.NewDecoder(r.Body).Decode(&rr); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := rr.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	ch, provider, err := s.router.RouteStream(r.Context(), rr.messages(), rr.taskConfig())
	if err != nil {
		s.record(r, &rr, nil, err, true, start)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Provider", provider)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var usage *llm.Usage
	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
			payload, _ := json.Marshal(map[string]string{"error": chunk.Err.Error()})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
			flusher.Flush()
			continue
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		payload, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	s.record(r, &rr, &llm.Response{
		Provider: provider,
		Usage:    usage,
		Degraded: provider == router.FallbackProvider,
	}, streamErr, true, start)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.models.Catalog(r.Context()))
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.Recent(r.Context(), 100)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if recs == nil {
		recs = []store.RequestRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
