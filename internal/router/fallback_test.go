package router

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumekit/airouter/internal/llm"
)

func TestFallbackKeywordSelection(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		contain string
	}{
		{"professional summary", "Write a professional summary for my resume", "Results-driven"},
		{"bare summary keyword", "improve this summary please", "Results-driven"},
		{"cover letter", "Draft a cover letter for this job", "Hiring Manager"},
		{"email", "write an email to the recruiter", "Hiring Manager"},
		{"translation", "Translate my resume to Spanish", "translation"},
		{"no keyword match", "optimize my linkedin profile", "temporarily unavailable"},
	}

	f := &Fallback{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.Call(context.Background(), &llm.Request{Messages: llm.UserMessage(tt.prompt)})
			require.NoError(t, err)
			assert.Contains(t, resp.Content, tt.contain)
			assert.Equal(t, FallbackProvider, resp.Provider)
			assert.True(t, resp.Degraded)
		})
	}
}

func TestFallbackKeywordMatchIsCaseInsensitive(t *testing.T) {
	f := &Fallback{}
	resp, err := f.Call(context.Background(), &llm.Request{Messages: llm.UserMessage("WRITE A COVER LETTER")})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "Hiring Manager")
}

func TestFallbackStructuredOutputReturnsResumeSkeleton(t *testing.T) {
	f := &Fallback{}
	resp, err := f.Call(context.Background(), &llm.Request{
		Messages:         llm.UserMessage("write a cover letter"),
		StructuredOutput: true,
	})
	require.NoError(t, err)

	// Keyword rules never apply to structured requests.
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Content), &parsed))
	assert.Contains(t, parsed, "name")
	assert.Contains(t, parsed, "experience")
	assert.Contains(t, parsed, "skills")
}

func TestFallbackParsingTaskReturnsResumeSkeleton(t *testing.T) {
	f := &Fallback{}
	resp, err := f.Call(context.Background(), &llm.Request{
		Messages: llm.UserMessage("here is my resume text"),
		Task:     llm.TaskParsing,
	})
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Content), &parsed))
}

func TestFallbackIsDeterministic(t *testing.T) {
	f := &Fallback{}
	req := &llm.Request{Messages: llm.UserMessage("write a professional summary")}

	first, err := f.Call(context.Background(), req)
	require.NoError(t, err)
	second, err := f.Call(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.Usage, second.Usage)
}

func TestFallbackUsageEstimates(t *testing.T) {
	f := &Fallback{}
	resp, err := f.Call(context.Background(), &llm.Request{Messages: llm.UserMessage("hello")})
	require.NoError(t, err)

	require.NotNil(t, resp.Usage)
	assert.Greater(t, resp.Usage.PromptTokens, 0)
	assert.Greater(t, resp.Usage.CompletionTokens, 0)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}

func TestFallbackUsesLastUserMessage(t *testing.T) {
	f := &Fallback{}
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "you are a resume assistant"},
		{Role: llm.RoleUser, Content: "translate this to French"},
		{Role: llm.RoleAssistant, Content: "done"},
		{Role: llm.RoleUser, Content: "now write a cover letter"},
	}
	resp, err := f.Call(context.Background(), &llm.Request{Messages: msgs})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "Hiring Manager")
}

func TestFallbackStreamEmitsSingleFinalChunk(t *testing.T) {
	f := &Fallback{}
	ch, err := f.CallStream(context.Background(), &llm.Request{Messages: llm.UserMessage("hello")})
	require.NoError(t, err)

	var chunks []llm.Chunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Final)
	assert.True(t, strings.Contains(chunks[0].Delta, "temporarily unavailable"))
	require.NotNil(t, chunks[0].Usage)
}
