// Registry manages adapter construction and lookup.
//
// DESIGN: Adapters are built from configuration at startup in a fixed kind
// order, so "registration order" is deterministic. An entry whose config
// fails validation is skipped with a warning; a missing credential must
// never be a startup crash, only an unavailable provider.
package adapters

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/resumekit/airouter/internal/llm"
)

// Kinds lists the supported provider kinds in registration order.
var Kinds = []string{"openai", "deepseek", "ollama"}

// Registry holds the constructed adapters, preserving registration order.
type Registry struct {
	adapters map[string]llm.Adapter
	order    []string
}

// NewRegistry constructs every configured adapter whose config validates.
func NewRegistry(cfgs map[string]llm.AdapterConfig) *Registry {
	r := &Registry{adapters: make(map[string]llm.Adapter)}

	for _, kind := range Kinds {
		cfg, ok := cfgs[kind]
		if !ok {
			continue
		}
		cfg.Name = kind

		var a llm.Adapter
		switch kind {
		case "openai":
			a = NewOpenAI(cfg)
		case "deepseek":
			a = NewDeepSeek(cfg)
		case "ollama":
			a = NewOllama(cfg)
		}

		if err := a.ValidateConfig(); err != nil {
			log.Warn().Err(err).Str("provider", kind).Msg("skipping provider with incomplete config")
			continue
		}
		r.Register(a)
	}

	return r
}

// Register adds an adapter. Re-registering a name replaces the adapter but
// keeps its position in the order.
func (r *Registry) Register(a llm.Adapter) {
	if _, exists := r.adapters[a.Name()]; !exists {
		r.order = append(r.order, a.Name())
	}
	r.adapters[a.Name()] = a
}

// Get returns an adapter by name, or nil.
func (r *Registry) Get(name string) llm.Adapter {
	return r.adapters[name]
}

// Names returns provider identities in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Adapters returns the adapters in registration order.
func (r *Registry) Adapters() []llm.Adapter {
	out := make([]llm.Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// Catalog queries each available adapter for its model list. Providers
// whose catalog endpoint fails map to an empty list rather than failing
// the whole call.
func (r *Registry) Catalog(ctx context.Context) map[string][]string {
	out := make(map[string][]string, len(r.order))
	for _, name := range r.order {
		a := r.adapters[name]
		if !a.Available() {
			continue
		}
		models, err := a.Models(ctx)
		if err != nil {
			log.Debug().Err(err).Str("provider", name).Msg("model catalog unavailable")
			models = []string{}
		}
		out[name] = models
	}
	return out
}
