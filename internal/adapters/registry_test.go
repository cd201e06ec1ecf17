package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumekit/airouter/internal/llm"
)

func TestNewRegistryBuildsConfiguredAdapters(t *testing.T) {
	r := NewRegistry(map[string]llm.AdapterConfig{
		"openai":   {APIKey: "k1", Model: "gpt-4o-mini"},
		"deepseek": {APIKey: "k2"},
		"ollama":   {Endpoint: "http://localhost:11434"},
	})

	assert.Equal(t, []string{"openai", "deepseek", "ollama"}, r.Names())
	require.NotNil(t, r.Get("deepseek"))
	assert.Equal(t, "deepseek", r.Get("deepseek").Name())
	assert.Nil(t, r.Get("mystery"))
}

func TestNewRegistrySkipsInvalidConfigs(t *testing.T) {
	// openai without a key fails validation; ollama without an endpoint too.
	r := NewRegistry(map[string]llm.AdapterConfig{
		"openai": {},
		"ollama": {},
	})

	assert.Empty(t, r.Names())
	assert.Empty(t, r.Adapters())
}

func TestNewRegistryIgnoresUnknownKinds(t *testing.T) {
	r := NewRegistry(map[string]llm.AdapterConfig{
		"openai":  {APIKey: "k"},
		"mystery": {APIKey: "k"},
	})

	assert.Equal(t, []string{"openai"}, r.Names())
}

func TestRegistryAdaptersPreserveOrder(t *testing.T) {
	r := NewRegistry(map[string]llm.AdapterConfig{
		"ollama":   {Endpoint: "http://localhost:11434"},
		"deepseek": {APIKey: "k"},
	})

	names := make([]string, 0)
	for _, a := range r.Adapters() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"deepseek", "ollama"}, names)
}
