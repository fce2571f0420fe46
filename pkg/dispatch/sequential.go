package dispatch

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/papercomputeco/spyre/pkg/logger"
	"github.com/papercomputeco/spyre/pkg/metrics"
)

// BatchFunc makes one remote call for a whole chunk. Result j belongs to
// batch[j].
type BatchFunc[T, R any] func(ctx context.Context, batch []T) ([]R, error)

// Sequential sends chunks of BatchSize items one at a time, in input order.
// The next chunk starts only once the previous one has succeeded or been
// substituted per Policy.
type Sequential[T, R any] struct {
	// Name labels logs and metrics.
	Name string

	BatchSize int
	Policy    Policy

	// Fallback is the FailOpen substitute.
	Fallback R

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Run calls fn once per chunk and returns the collected outcomes.
//
// Under FailOpen the result has exactly len(items) outcomes. Under
// FailClosed, items of failed chunks are absent. A successful call that
// returns fewer results than its chunk is padded with Fallback under
// FailOpen and kept short under FailClosed. Extra results are discarded.
func (s *Sequential[T, R]) Run(ctx context.Context, items []T, fn BatchFunc[T, R]) []Outcome[R] {
	log := s.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("dispatcher", s.Name, "run_id", uuid.NewString())

	chunks := Chunk(items, s.BatchSize)
	outcomes := make([]Outcome[R], 0, len(items))

	log.Debug("dispatching batches",
		"items", len(items),
		"batches", len(chunks),
		"policy", s.Policy,
	)

	offset := 0
	for i, batch := range chunks {
		done := s.Metrics.DispatchStarted(s.Name)
		results, err := fn(ctx, batch)
		done()
		s.Metrics.DispatchUnit(s.Name, err)

		if err != nil {
			log.Warn("batch failed",
				"batch", i,
				"size", len(batch),
				"policy", s.Policy,
				"error", err,
			)
			if s.Policy == FailOpen {
				outcomes = s.pad(outcomes, offset, 0, len(batch))
			}
			offset += len(batch)
			continue
		}

		n := min(len(results), len(batch))
		for j := range n {
			outcomes = append(outcomes, Outcome[R]{Index: offset + j, Value: results[j]})
		}

		switch {
		case len(results) < len(batch):
			log.Warn("batch returned fewer results than items",
				"batch", i,
				"size", len(batch),
				"results", len(results),
				"policy", s.Policy,
			)
			if s.Policy == FailOpen {
				outcomes = s.pad(outcomes, offset, n, len(batch))
			}
		case len(results) > len(batch):
			log.Warn("batch returned extra results, discarding",
				"batch", i,
				"size", len(batch),
				"results", len(results),
			)
		}

		offset += len(batch)
	}

	return outcomes
}

// pad appends Fallback outcomes for batch positions [from, to).
func (s *Sequential[T, R]) pad(outcomes []Outcome[R], offset, from, to int) []Outcome[R] {
	for j := from; j < to; j++ {
		outcomes = append(outcomes, Outcome[R]{Index: offset + j, Value: s.Fallback})
	}
	return outcomes
}
