// Package llm holds the OpenAI-compatible wire types spoken by a vLLM server
// and the request-scoped values spyre builds on top of them.
package llm

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body of POST /v1/completions.
type CompletionRequest struct {
	// Model name served by the remote endpoint. Filled from the client
	// configuration when empty.
	Model string `json:"model"`

	// Prompt is either a single string or a []string batch. vLLM returns one
	// choice per prompt, in prompt order.
	Prompt any `json:"prompt"`

	// Generation parameters
	MaxTokens         *int     `json:"max_tokens,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	Stop              []string `json:"stop,omitempty"`

	// Whether to stream the response
	Stream bool `json:"stream,omitempty"`
}

// ChatRequest is the body of POST /v1/chat/completions.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	MaxTokens         *int     `json:"max_tokens,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	Stop              []string `json:"stop,omitempty"`

	Stream bool `json:"stream,omitempty"`
}

// Ptr returns a pointer to v. Used to set optional generation parameters
// where the zero value (temperature 0) is meaningful.
func Ptr[T any](v T) *T {
	return &v
}
