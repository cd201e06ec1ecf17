// Package router selects an AI provider for each request, retries transient
// failures with exponential backoff, and walks a fallback chain that always
// terminates in a local template generator.
package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/resumekit/airouter/internal/llm"
)

// Options configures a Router.
type Options struct {
	// DefaultProvider is tried when neither the request nor the task policy
	// names a provider. May be empty.
	DefaultProvider string

	// FallbackOrder lists providers eligible for failover traversal, in
	// order. When empty, every registered provider is eligible in
	// registration order.
	FallbackOrder []string

	// FallbackEnabled controls whether failures cascade to other providers
	// and finally to the local generator. When false a primary failure is
	// returned to the caller as-is.
	FallbackEnabled bool

	Logger zerolog.Logger

	// Sleep overrides the backoff clock. Tests inject a recorder here.
	Sleep sleeper
}

// Router owns the provider set and the failure accounting used to report
// provider health.
type Router struct {
	mu       sync.Mutex
	adapters map[string]llm.Adapter
	order    []string
	failures map[string]int

	defaultProvider string
	fallbackOrder   []string
	fallbackEnabled bool
	fallback        *Fallback

	requests atomic.Uint64
	degraded atomic.Uint64

	log   zerolog.Logger
	sleep sleeper
}

// New builds a Router over the given adapters, preserving their order.
func New(adapters []llm.Adapter, opts Options) *Router {
	r := &Router{
		adapters:        make(map[string]llm.Adapter, len(adapters)),
		failures:        make(map[string]int),
		defaultProvider: opts.DefaultProvider,
		fallbackOrder:   opts.FallbackOrder,
		fallbackEnabled: opts.FallbackEnabled,
		fallback:        &Fallback{},
		log:             opts.Logger,
		sleep:           opts.Sleep,
	}
	if r.sleep == nil {
		r.sleep = defaultSleep
	}
	for _, a := range adapters {
		if _, ok := r.adapters[a.Name()]; ok {
			continue
		}
		r.adapters[a.Name()] = a
		r.order = append(r.order, a.Name())
	}
	if len(r.fallbackOrder) == 0 {
		r.fallbackOrder = r.order
	}
	return r
}

// Providers returns registered provider names in registration order.
func (r *Router) Providers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// FailureCount reports the consecutive failure count for a provider.
func (r *Router) FailureCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[name]
}

// Requests reports how many routing calls have been made.
func (r *Router) Requests() uint64 { return r.requests.Load() }

// DegradedRequests reports how many calls ended on the local generator.
func (r *Router) DegradedRequests() uint64 { return r.degraded.Load() }

func (r *Router) recordFailure(name string) {
	r.mu.Lock()
	r.failures[name]++
	r.mu.Unlock()
}

func (r *Router) resetFailures(name string) {
	r.mu.Lock()
	delete(r.failures, name)
	r.mu.Unlock()
}

// pick resolves the primary provider: explicit override first, then the
// task policy, then the configured default, then registration order.
// Unavailable providers are skipped at every step.
func (r *Router) pick(cfg *llm.TaskConfig) (llm.Adapter, error) {
	if cfg != nil && cfg.Provider != "" {
		a, ok := r.adapters[cfg.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
		}
		if a.Available() {
			return a, nil
		}
		// Unconfigured override falls through to the policy chain.
	}

	var candidates []string
	if cfg != nil {
		candidates = append(candidates, PreferenceFor(cfg.Task)...)
	}
	if r.defaultProvider != "" {
		candidates = append(candidates, r.defaultProvider)
	}
	candidates = append(candidates, r.order...)

	seen := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		if seen[name] {
			continue
		}
		seen[name] = true
		if a, ok := r.adapters[name]; ok && a.Available() {
			return a, nil
		}
	}
	return nil, llm.ErrNoProvidersAvailable
}

// fallbackCandidates returns the providers to try after primary failed,
// in fallback order, excluding already tried names and unavailable entries.
func (r *Router) fallbackCandidates(tried map[string]bool) []llm.Adapter {
	var out []llm.Adapter
	for _, name := range r.fallbackOrder {
		if tried[name] {
			continue
		}
		if a, ok := r.adapters[name]; ok && a.Available() {
			out = append(out, a)
		}
	}
	return out
}

// buildRequest merges the task configuration into a provider-ready request.
func buildRequest(msgs []llm.Message, cfg *llm.TaskConfig, stream bool) *llm.Request {
	req := &llm.Request{Messages: msgs, Stream: stream}
	if cfg != nil {
		req.Task = cfg.Task
		req.MaxTokens = cfg.MaxTokens
		req.Temperature = cfg.Temperature
		req.StructuredOutput = cfg.StructuredOutput
	}
	return req
}

// Route sends the messages to the selected provider, cascading through the
// fallback chain on failure. The returned response always names the
// provider that actually produced it.
func (r *Router) Route(ctx context.Context, msgs []llm.Message, cfg *llm.TaskConfig) (*llm.Response, error) {
	r.requests.Add(1)
	req := buildRequest(msgs, cfg, false)

	primary, err := r.pick(cfg)
	if err != nil {
		if r.fallbackEnabled {
			return r.degradedResponse(ctx, req)
		}
		return nil, err
	}

	tried := map[string]bool{primary.Name(): true}
	resp, err := r.callOne(ctx, primary, req)
	if err == nil {
		return r.finish(resp, req)
	}
	r.log.Warn().Err(err).Str("provider", primary.Name()).Msg("provider failed")

	if !r.fallbackEnabled {
		return nil, err
	}

	for _, a := range r.fallbackCandidates(tried) {
		tried[a.Name()] = true
		resp, err = r.callOne(ctx, a, req)
		if err == nil {
			return r.finish(resp, req)
		}
		r.log.Warn().Err(err).Str("provider", a.Name()).Msg("fallback provider failed")
		if ctx.Err() != nil {
			return nil, err
		}
	}

	return r.degradedResponse(ctx, req)
}

// RouteText is the convenience form for a single user prompt.
func (r *Router) RouteText(ctx context.Context, prompt string, cfg *llm.TaskConfig) (*llm.Response, error) {
	return r.Route(ctx, llm.UserMessage(prompt), cfg)
}

func (r *Router) callOne(ctx context.Context, a llm.Adapter, req *llm.Request) (*llm.Response, error) {
	start := time.Now()
	resp, err := callWithRetry(ctx, a, req, r.sleep, func() { r.recordFailure(a.Name()) })
	if err != nil {
		return nil, err
	}
	r.resetFailures(a.Name())
	r.log.Debug().
		Str("provider", a.Name()).
		Dur("duration", time.Since(start)).
		Msg("provider call succeeded")
	return resp, nil
}

// finish applies structured-output extraction to a successful response.
// An unrecoverable parse is a failure of the response, not the provider,
// so it does not touch failure counts or trigger fallback.
func (r *Router) finish(resp *llm.Response, req *llm.Request) (*llm.Response, error) {
	if !req.StructuredOutput {
		return resp, nil
	}
	cleaned, strategy, err := ExtractJSON(resp.Content)
	if err != nil {
		return nil, err
	}
	if strategy != "direct" {
		r.log.Debug().Str("strategy", strategy).Str("provider", resp.Provider).Msg("recovered structured output")
	}
	resp.Content = cleaned
	return resp, nil
}

func (r *Router) degradedResponse(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	r.degraded.Add(1)
	r.log.Warn().Msg("all providers exhausted, serving local fallback")
	return r.fallback.Call(ctx, req)
}

// RouteStream establishes a streaming response, cascading through the
// fallback chain while the stream is still unestablished. Once a channel
// is returned the stream is committed to that provider.
func (r *Router) RouteStream(ctx context.Context, msgs []llm.Message, cfg *llm.TaskConfig) (<-chan llm.Chunk, string, error) {
	r.requests.Add(1)
	req := buildRequest(msgs, cfg, true)

	primary, err := r.pick(cfg)
	if err != nil {
		if r.fallbackEnabled {
			return r.degradedStream(ctx, req)
		}
		return nil, "", err
	}

	tried := map[string]bool{primary.Name(): true}
	ch, err := r.streamOne(ctx, primary, req)
	if err == nil {
		return ch, primary.Name(), nil
	}
	r.log.Warn().Err(err).Str("provider", primary.Name()).Msg("stream establishment failed")

	if !r.fallbackEnabled {
		return nil, "", err
	}

	for _, a := range r.fallbackCandidates(tried) {
		tried[a.Name()] = true
		ch, err = r.streamOne(ctx, a, req)
		if err == nil {
			return ch, a.Name(), nil
		}
		r.log.Warn().Err(err).Str("provider", a.Name()).Msg("fallback stream establishment failed")
		if ctx.Err() != nil {
			return nil, "", err
		}
	}

	return r.degradedStream(ctx, req)
}

// RouteStreamText is the convenience form for a single user prompt.
func (r *Router) RouteStreamText(ctx context.Context, prompt string, cfg *llm.TaskConfig) (<-chan llm.Chunk, string, error) {
	return r.RouteStream(ctx, llm.UserMessage(prompt), cfg)
}

func (r *Router) streamOne(ctx context.Context, a llm.Adapter, req *llm.Request) (<-chan llm.Chunk, error) {
	ch, err := streamWithRetry(ctx, a, req, r.sleep, func() { r.recordFailure(a.Name()) })
	if err != nil {
		return nil, err
	}
	r.resetFailures(a.Name())
	return ch, nil
}

func (r *Router) degradedStream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, string, error) {
	r.degraded.Add(1)
	r.log.Warn().Msg("all providers exhausted, streaming local fallback")
	ch, err := r.fallback.CallStream(ctx, req)
	return ch, FallbackProvider, err
}
