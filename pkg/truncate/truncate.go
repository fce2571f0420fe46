// Package truncate fits retrieved context into a model's input budget by
// cutting it at a token boundary.
package truncate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/logger"
)

// Tokenizer converts between text and token ids. *vllm.Client satisfies it
// remotely and Tiktoken locally.
type Tokenizer interface {
	Tokenize(ctx context.Context, text string) ([]llm.TokenID, error)
	Detokenize(ctx context.Context, tokens []llm.TokenID) (string, error)
}

// Truncator cuts context to what is left of a budget after the question.
type Truncator struct {
	tok    Tokenizer
	logger *slog.Logger
}

// New creates a Truncator.
func New(tok Tokenizer, log *slog.Logger) *Truncator {
	if log == nil {
		log = logger.Nop()
	}
	return &Truncator{tok: tok, logger: log.With("component", "truncate")}
}

// Truncate keeps the longest token prefix of text that fits in the budget
// left after the template and the question.
//
// budget.ReservedForQuestion is replaced by the measured token length of
// question. The text is always round-tripped through the tokenizer, so a
// text that already fits comes back as the tokenizer renders it. Tokenizer
// errors are returned, never swallowed.
func (t *Truncator) Truncate(ctx context.Context, text, question string, budget llm.TokenBudget) (string, error) {
	questionTokens, err := t.tok.Tokenize(ctx, question)
	if err != nil {
		return "", fmt.Errorf("measuring question: %w", err)
	}
	budget.ReservedForQuestion = len(questionTokens)
	remaining := budget.Remaining()

	contextTokens, err := t.tok.Tokenize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("tokenizing context: %w", err)
	}

	keep := min(remaining, len(contextTokens))
	truncated, err := t.tok.Detokenize(ctx, contextTokens[:keep])
	if err != nil {
		return "", fmt.Errorf("detokenizing context: %w", err)
	}

	t.logger.Debug("truncated context",
		"question_tokens", len(questionTokens),
		"context_tokens", len(contextTokens),
		"remaining", remaining,
		"kept", keep,
	)

	return truncated, nil
}

// Truncate is a convenience wrapper around New(tok, nil).Truncate.
func Truncate(ctx context.Context, tok Tokenizer, text, question string, budget llm.TokenBudget) (string, error) {
	return New(tok, nil).Truncate(ctx, text, question, budget)
}
