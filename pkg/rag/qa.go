package rag

import (
	"context"
	"strings"

	"github.com/papercomputeco/spyre/pkg/dispatch"
	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/prompts"
)

const (
	questionMarker = "Q:"
	answerMarker   = "A:"
)

// ExtractQAPair splits generated text into a question and an answer. It
// reports false when the prompt did not ask for a "Q:" formatted pair. Only
// Question and Answer are set on the returned pair.
func ExtractQAPair(prompt, generated string) (llm.QAPair, bool) {
	if !strings.Contains(prompt, questionMarker) {
		return llm.QAPair{}, false
	}

	question, answer, _ := strings.Cut(strings.TrimSpace(generated), answerMarker)

	question = strings.TrimSpace(question)
	question = strings.TrimLeft(question, questionMarker)
	question = strings.TrimSpace(question)

	return llm.QAPair{
		Question: question,
		Answer:   strings.TrimSpace(answer),
	}, true
}

type qaItem struct {
	prompt string
	record llm.Document
}

type qaResult struct {
	pair llm.QAPair
	ok   bool
}

// GenerateQAPairs asks the model for one question/answer pair per record.
// Records in a failed batch produce no pairs.
func (s *Service) GenerateQAPairs(ctx context.Context, records []llm.Document) []llm.QAPair {
	tmpl := s.prompts.Templates().QAPairs
	items := make([]qaItem, len(records))
	for i, r := range records {
		items[i] = qaItem{
			prompt: prompts.Render(tmpl, map[string]string{"text": r.Content}),
			record: r,
		}
	}

	d := &dispatch.Sequential[qaItem, qaResult]{
		Name:      "qa",
		BatchSize: s.qaBatchSize,
		Policy:    dispatch.FailClosed,
		Logger:    s.logger,
		Metrics:   s.metrics,
	}

	outcomes := d.Run(ctx, items, func(ctx context.Context, batch []qaItem) ([]qaResult, error) {
		batchPrompts := make([]string, len(batch))
		for i, it := range batch {
			batchPrompts[i] = it.prompt
		}

		resp, err := s.client.Completions(ctx, &llm.CompletionRequest{
			Prompt:      batchPrompts,
			Temperature: llm.Ptr(0.0),
			MaxTokens:   llm.Ptr(generationMaxTokens),
		})
		if err != nil {
			return nil, err
		}

		texts := resp.Texts()
		results := make([]qaResult, 0, min(len(texts), len(batch)))
		for j := 0; j < len(texts) && j < len(batch); j++ {
			pair, ok := ExtractQAPair(batch[j].prompt, texts[j])
			if ok {
				pair.Context = batch[j].record.Content
				pair.ChunkID = batch[j].record.ChunkID
			}
			results = append(results, qaResult{pair: pair, ok: ok})
		}
		return results, nil
	})

	pairs := make([]llm.QAPair, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Value.ok {
			pairs = append(pairs, o.Value.pair)
		}
	}

	s.logger.Debug("generated qa pairs", "records", len(records), "pairs", len(pairs))
	return pairs
}
