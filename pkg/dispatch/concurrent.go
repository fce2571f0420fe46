package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/papercomputeco/spyre/pkg/logger"
	"github.com/papercomputeco/spyre/pkg/metrics"
	"github.com/papercomputeco/spyre/pkg/worker"
)

// ItemFunc makes one remote call for a single item.
type ItemFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Concurrent runs one call per item on a bounded worker pool.
type Concurrent[T, R any] struct {
	// Name labels logs and metrics.
	Name string

	// MaxWorkers bounds parallelism. The pool is sized to
	// Workers(MaxWorkers, len(items)).
	MaxWorkers int

	// Fallback is written for items whose call failed or panicked.
	Fallback R

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Run returns one result per item, result[i] belonging to items[i]
// regardless of completion order.
func (c *Concurrent[T, R]) Run(ctx context.Context, items []T, fn ItemFunc[T, R]) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("dispatcher", c.Name, "run_id", uuid.NewString())

	workers := Workers(c.MaxWorkers, len(items))
	pool, err := worker.NewPool(&worker.Config{
		NumWorkers: uint(workers),
		QueueSize:  uint(len(items)),
		Logger:     log,
	})
	if err != nil {
		log.Error("could not start worker pool", "error", err)
		for i := range results {
			results[i] = c.Fallback
		}
		return results
	}

	log.Debug("dispatching items", "items", len(items), "workers", workers)

	for i, item := range items {
		job := worker.Job{
			Label: fmt.Sprintf("%s[%d]", c.Name, i),
			Run: func() {
				results[i] = c.runOne(ctx, log, i, item, fn)
			},
		}
		if err := pool.Submit(ctx, job); err != nil {
			log.Warn("item not submitted", "index", i, "error", err)
			results[i] = c.Fallback
		}
	}

	// Close drains every queued job before returning.
	pool.Close()

	return results
}

// runOne calls fn and converts failures and panics into Fallback.
func (c *Concurrent[T, R]) runOne(ctx context.Context, log *slog.Logger, index int, item T, fn ItemFunc[T, R]) (result R) {
	done := c.Metrics.DispatchStarted(c.Name)
	defer done()

	defer func() {
		if r := recover(); r != nil {
			log.Error("item panicked", "index", index, "panic", r)
			c.Metrics.DispatchUnit(c.Name, fmt.Errorf("panic: %v", r))
			result = c.Fallback
		}
	}()

	value, err := fn(ctx, item)
	c.Metrics.DispatchUnit(c.Name, err)
	if err != nil {
		log.Warn("item failed", "index", index, "error", err)
		return c.Fallback
	}

	return value
}
