package router

import (
	"context"
	"strings"

	"github.com/resumekit/airouter/internal/llm"
)

// FallbackProvider is the provider identity stamped on degraded responses.
const FallbackProvider = "local-fallback"

// fallbackRule maps keywords found in the user's request to a canned
// template. Rules are evaluated in order; the first match wins, so the
// output is a pure function of the input text.
type fallbackRule struct {
	keywords []string
	body     string
}

var fallbackRules = []fallbackRule{
	{
		keywords: []string{"professional summary", "summary"},
		body: "Results-driven professional with a track record of delivering " +
			"measurable outcomes. Skilled at collaborating across teams, " +
			"adapting quickly to new tools, and communicating clearly with " +
			"stakeholders. Seeking to apply proven strengths to new challenges.\n\n" +
			"Tailor this summary by naming your years of experience, your core " +
			"specialty, and one quantified achievement.",
	},
	{
		keywords: []string{"cover letter", "email"},
		body: "Dear Hiring Manager,\n\n" +
			"I am writing to express my interest in this role. My background " +
			"aligns with the position's requirements, and I am confident I can " +
			"contribute from day one. I would welcome the opportunity to discuss " +
			"how my experience fits your team's needs.\n\n" +
			"Sincerely,\n[Your Name]\n\n" +
			"Personalize this letter with the company name, the specific role, " +
			"and one concrete accomplishment relevant to the job posting.",
	},
	{
		keywords: []string{"translate", "translation"},
		body: "Automatic translation is unavailable right now. Your original " +
			"text has been preserved unchanged. Please retry once an AI " +
			"provider is reachable, or use a dedicated translation service.",
	},
}

// resumeSkeleton is the structured stand-in returned for parsing requests
// when no live provider can produce real extraction.
const resumeSkeleton = `{
  "name": "",
  "email": "",
  "phone": "",
  "location": "",
  "summary": "",
  "experience": [],
  "education": [],
  "skills": [],
  "languages": [],
  "certifications": []
}`

const genericGuidance = "AI providers are temporarily unavailable, so this " +
	"is general guidance rather than a generated result. Focus on strong " +
	"action verbs, quantify achievements where possible, and keep each " +
	"section concise. Please retry shortly for AI-assisted output."

// Fallback produces a deterministic degraded response without any network
// access. It implements llm.Adapter so the router can treat it as a
// terminal candidate.
type Fallback struct{}

var _ llm.Adapter = (*Fallback)(nil)

func (f *Fallback) Name() string          { return FallbackProvider }
func (f *Fallback) Available() bool       { return true }
func (f *Fallback) ValidateConfig() error { return nil }
func (f *Fallback) RetryBudget() int      { return 1 }

func (f *Fallback) Models(ctx context.Context) ([]string, error) {
	return []string{"static-template"}, nil
}

func (f *Fallback) Call(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	content := fallbackContent(req)
	return &llm.Response{
		Content: content,
		Usage: &llm.Usage{
			PromptTokens:     llm.EstimateTokens(req.Messages),
			CompletionTokens: llm.EstimateTextTokens(content),
			TotalTokens:      llm.EstimateTokens(req.Messages) + llm.EstimateTextTokens(content),
		},
		Model:    "static-template",
		Provider: FallbackProvider,
		Degraded: true,
	}, nil
}

// CallStream emits the whole template as a single final chunk.
func (f *Fallback) CallStream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	resp, _ := f.Call(ctx, req)
	ch := make(chan llm.Chunk, 1)
	ch <- llm.Chunk{Delta: resp.Content, Final: true, Usage: resp.Usage}
	close(ch)
	return ch, nil
}

func fallbackContent(req *llm.Request) string {
	if req.StructuredOutput || req.Task == llm.TaskParsing {
		return resumeSkeleton
	}

	text := strings.ToLower(lastUserContent(req.Messages))
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.body
			}
		}
	}
	return genericGuidance
}

func lastUserContent(msgs []llm.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	if len(msgs) > 0 {
		return msgs[len(msgs)-1].Content
	}
	return ""
}
