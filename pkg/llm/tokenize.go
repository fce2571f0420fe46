package llm

// TokenID is a single token identifier produced by the remote tokenizer.
type TokenID = int

// TokenizeRequest is the body of POST /tokenize.
type TokenizeRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

// TokenizeResponse is the body returned by /tokenize.
type TokenizeResponse struct {
	Count       int       `json:"count,omitempty"`
	MaxModelLen int       `json:"max_model_len,omitempty"`
	Tokens      []TokenID `json:"tokens"`
}

// DetokenizeRequest is the body of POST /detokenize.
type DetokenizeRequest struct {
	Model  string    `json:"model,omitempty"`
	Tokens []TokenID `json:"tokens"`
}

// DetokenizeResponse is the body returned by /detokenize. Prompt is nil
// when the server omitted the field.
type DetokenizeResponse struct {
	Prompt *string `json:"prompt"`
}

// TokenBudget bounds the size of a prompt in tokens.
type TokenBudget struct {
	// TotalLimit is the maximum input length accepted by the model.
	TotalLimit int

	// ReservedForTemplate is the approximate size of the prompt template.
	ReservedForTemplate int

	// ReservedForQuestion is the measured token length of the question.
	ReservedForQuestion int
}

// Remaining returns the number of tokens left for context, never negative.
func (b TokenBudget) Remaining() int {
	return max(b.TotalLimit-b.ReservedForTemplate-b.ReservedForQuestion, 0)
}
