package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/prompts"
	"github.com/papercomputeco/spyre/pkg/vllm"
)

// Answer is the outcome of a Query.
type Answer struct {
	// Text is the first choice's message content.
	Text string

	// Response is the full server response.
	Response *llm.CompletionResponse

	// Elapsed covers the chat request only, not truncation.
	Elapsed time.Duration
}

// Query answers question from the given documents with one chat completion.
func (s *Service) Query(ctx context.Context, question string, docs []llm.Document) (*Answer, error) {
	prompt, err := s.queryPrompt(ctx, s.prompts.Templates().Query, question, docs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.client.ChatCompletions(ctx, s.queryRequest(prompt))
	if err != nil {
		return nil, fmt.Errorf("querying model: %w", err)
	}
	elapsed := time.Since(start)

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil, fmt.Errorf("%w: no message in response", vllm.ErrShape)
	}

	s.logger.Debug("query answered",
		"documents", len(docs),
		"elapsed", elapsed,
	)

	return &Answer{
		Text:     resp.Choices[0].Message.Content,
		Response: resp,
		Elapsed:  elapsed,
	}, nil
}

// QueryStream is Query with a streamed answer. The caller must drain or
// close the returned stream.
func (s *Service) QueryStream(ctx context.Context, question string, docs []llm.Document) (*vllm.Stream, error) {
	prompt, err := s.queryPrompt(ctx, s.prompts.Templates().QueryStream, question, docs)
	if err != nil {
		return nil, err
	}

	stream, err := s.client.ChatStream(ctx, s.queryRequest(prompt))
	if err != nil {
		return nil, fmt.Errorf("querying model: %w", err)
	}

	return stream, nil
}

func (s *Service) queryPrompt(ctx context.Context, tmpl, question string, docs []llm.Document) (string, error) {
	text := llm.JoinDocuments(docs, llm.DocumentSeparator)

	if s.query.Truncate {
		budget := llm.TokenBudget{
			TotalLimit:          s.query.MaxInputTokens,
			ReservedForTemplate: s.query.TemplateTokens,
		}

		truncated, err := s.truncator.Truncate(ctx, text, question, budget)
		if err != nil {
			return "", fmt.Errorf("truncating context: %w", err)
		}

		s.logger.Debug("context truncated",
			"original_bytes", len(text),
			"truncated_bytes", len(truncated),
		)
		text = truncated
	}

	return prompts.Render(tmpl, map[string]string{
		"context":  text,
		"question": question,
	}), nil
}

func (s *Service) queryRequest(prompt string) *llm.ChatRequest {
	return &llm.ChatRequest{
		Messages:          []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:         llm.Ptr(s.query.MaxNewTokens),
		RepetitionPenalty: llm.Ptr(RepetitionPenalty),
		Temperature:       llm.Ptr(0.0),
		Stop:              s.query.StopWords,
	}
}
