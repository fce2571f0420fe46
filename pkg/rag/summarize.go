package rag

import (
	"context"

	"github.com/papercomputeco/spyre/pkg/dispatch"
	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/prompts"
)

// NoSummary stands in for a table whose summary could not be generated.
const NoSummary = "No summary."

// SummarizeTables summarizes each table with one completion call, running up
// to the configured number of calls at once. The result is aligned with
// tables; failed tables get NoSummary.
func (s *Service) SummarizeTables(ctx context.Context, tables []llm.Table) []string {
	tmpl := s.prompts.Templates().TableSummary
	all := make([]string, len(tables))
	for i, t := range tables {
		all[i] = prompts.Render(tmpl, map[string]string{"content": t.HTML})
	}

	d := &dispatch.Concurrent[string, string]{
		Name:       "summarize",
		MaxWorkers: s.summaryWorkers,
		Fallback:   NoSummary,
		Logger:     s.logger,
		Metrics:    s.metrics,
	}

	return d.Run(ctx, all, func(ctx context.Context, prompt string) (string, error) {
		res := s.client.Complete(ctx, &llm.CompletionRequest{
			Prompt:            prompt,
			Temperature:       llm.Ptr(0.0),
			RepetitionPenalty: llm.Ptr(RepetitionPenalty),
			MaxTokens:         llm.Ptr(generationMaxTokens),
		})
		return res.Text, res.Err
	})
}
