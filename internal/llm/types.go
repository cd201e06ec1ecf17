// Package llm defines the canonical request/response contract shared by the
// router and every provider adapter.
//
// DESIGN: The product layer (resume editor, cover letter screens) only ever
// sees these types. Adapters translate them to and from each backend's wire
// format; the router never inspects provider-specific JSON.
package llm

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation. Order is significant:
// the slice forms the chat history sent to the backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage wraps bare text as a single user-role message.
// The inbound contract treats a plain string as sugar for this.
func UserMessage(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}

// Usage reports token consumption as the backend measured it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TaskKind is a coarse category of request, used to bias provider selection
// and default sampling temperature.
type TaskKind string

const (
	TaskParsing     TaskKind = "parsing"
	TaskAnalysis    TaskKind = "analysis"
	TaskGeneration  TaskKind = "generation"
	TaskEnhancement TaskKind = "enhancement"
	TaskTranslation TaskKind = "translation"
)

// TaskKinds lists every known task kind, in a stable order.
func TaskKinds() []TaskKind {
	return []TaskKind{TaskParsing, TaskAnalysis, TaskGeneration, TaskEnhancement, TaskTranslation}
}

// Valid reports whether t is one of the known task kinds.
func (t TaskKind) Valid() bool {
	switch t {
	case TaskParsing, TaskAnalysis, TaskGeneration, TaskEnhancement, TaskTranslation:
		return true
	}
	return false
}

// Request is the canonical, provider-agnostic request. Built once by the
// router from the caller's messages and task config; treated as immutable
// afterward (adapters must not mutate it).
type Request struct {
	Messages []Message

	// MaxTokens is the caller's requested completion budget. Zero means
	// "use the adapter's default". Adapters scale and clamp this via their
	// capability table; the caller's request is never silently reduced
	// below the floor nor pushed past the adapter's ceiling.
	MaxTokens int

	// Temperature, when non-nil, overrides the adapter's per-task default.
	Temperature *float64

	// Stream requests incremental delivery.
	Stream bool

	// StructuredOutput marks the response as expected to parse as JSON.
	// The router runs the structured-output extractor on the content.
	StructuredOutput bool

	// Task biases provider selection and default temperature.
	// Empty is allowed and means "generic".
	Task TaskKind
}

// TaskConfig is the transient, per-call tuning the product layer supplies
// alongside the messages.
type TaskConfig struct {
	Task TaskKind `json:"task,omitempty" yaml:"task"`

	// Provider, when set, is an explicit provider preference. It wins over
	// the task policy table when that adapter is available.
	Provider string `json:"provider,omitempty" yaml:"provider"`

	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens        int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
	StructuredOutput bool     `json:"structured_output,omitempty" yaml:"structured_output"`
}

// Response is the canonical result of a routed request.
type Response struct {
	Content string `json:"content"`

	// Usage is present when the backend reported it (always estimated for
	// the local fallback).
	Usage *Usage `json:"usage,omitempty"`

	// Model is the backend model that produced the content, when known.
	Model string `json:"model,omitempty"`

	// Provider identifies the adapter that actually produced Content,
	// including the reserved "local-fallback" identity.
	Provider string `json:"provider"`

	// Degraded marks responses produced by the local fallback after every
	// configured adapter failed.
	Degraded bool `json:"degraded,omitempty"`
}

// Chunk is one element of a streaming response. The sequence is finite,
// ordered, and non-restartable: it ends with exactly one chunk where
// Final is true, or with a chunk carrying Err.
type Chunk struct {
	Delta string `json:"delta,omitempty"`
	Final bool   `json:"final,omitempty"`

	// Usage is only ever set on the final chunk.
	Usage *Usage `json:"usage,omitempty"`

	Err error `json:"-"`
}
