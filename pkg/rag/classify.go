package rag

import (
	"context"
	"strings"

	"github.com/papercomputeco/spyre/pkg/dispatch"
	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/prompts"
)

// Classify asks the model whether each text is worth keeping. Decisions are
// aligned with texts. A failed batch counts as "keep" for all of its texts.
func (s *Service) Classify(ctx context.Context, texts []string) []bool {
	tmpl := s.prompts.Templates().Classify
	all := make([]string, len(texts))
	for i, t := range texts {
		all[i] = prompts.Render(tmpl, map[string]string{"text": strings.TrimSpace(t)})
	}

	d := &dispatch.Sequential[string, bool]{
		Name:      "classify",
		BatchSize: s.classifyBatchSize,
		Policy:    dispatch.FailOpen,
		Fallback:  true,
		Logger:    s.logger,
		Metrics:   s.metrics,
	}

	outcomes := d.Run(ctx, all, func(ctx context.Context, batch []string) ([]bool, error) {
		resp, err := s.client.Completions(ctx, &llm.CompletionRequest{
			Prompt:      batch,
			Temperature: llm.Ptr(0.0),
			MaxTokens:   llm.Ptr(classifyMaxTokens),
		})
		if err != nil {
			return nil, err
		}

		decisions := make([]bool, 0, len(resp.Choices))
		for _, text := range resp.Texts() {
			decisions = append(decisions, Decision(text))
		}
		return decisions, nil
	})

	return dispatch.Values(outcomes)
}

// Decision interprets a classification reply.
func Decision(reply string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(reply)), "yes")
}

// Filter keeps the blocks the model classifies as worth keeping.
func (s *Service) Filter(ctx context.Context, blocks []llm.TextBlock) []llm.TextBlock {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}

	decisions := s.Classify(ctx, texts)
	s.logger.Debug("classified blocks", "prompts", len(texts), "decisions", len(decisions))

	kept := make([]llm.TextBlock, 0, len(blocks))
	for i, keep := range decisions {
		if keep && i < len(blocks) {
			kept = append(kept, blocks[i])
		}
	}

	s.logger.Debug("filtered blocks", "kept", len(kept), "dropped", len(blocks)-len(kept))
	return kept
}
