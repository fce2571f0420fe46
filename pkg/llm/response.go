package llm

// CompletionResponse is the body returned by both /v1/completions and
// /v1/chat/completions. Completions populate Choice.Text, chat populates
// Choice.Message and streamed chat chunks populate Choice.Delta.
type CompletionResponse struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one generated alternative.
type Choice struct {
	Index        int      `json:"index"`
	Text         string   `json:"text,omitempty"`
	Message      *Message `json:"message,omitempty"`
	Delta        *Message `json:"delta,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

// Usage contains token counts reported by the server.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Texts returns the completion text of every choice in arrival order.
func (r *CompletionResponse) Texts() []string {
	texts := make([]string, 0, len(r.Choices))
	for _, c := range r.Choices {
		texts = append(texts, c.Text)
	}
	return texts
}

// ErrorResponse is the JSON error payload returned by the forwarding server.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the liveness payload.
type StatusResponse struct {
	Status string `json:"status"`
}
