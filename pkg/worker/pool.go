// Package worker provides a bounded worker pool: a fixed number of
// goroutines pulling jobs off a buffered queue.
//
// The pool is the only source of parallelism in spyre. Dispatchers submit
// one job per unit of work and wait on their own completion signal.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/spyre/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool closed")

// Job is a unit of work for the worker pool to execute.
type Job struct {
	// Label identifies the job in logs.
	Label string

	// Run does the work. A panic in Run is recovered and logged.
	Run func()
}

// Config is the configuration options for the worker pool.
type Config struct {
	// NumWorkers is the number of background workers in the pool (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool executes jobs on a fixed set of goroutines.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed and the queue's lifetime: senders hold the read lock
	// so Close cannot close the channel under them.
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: log,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Size returns the number of workers.
func (p *Pool) Size() uint {
	return p.config.NumWorkers
}

// Submit queues a job, blocking while the queue is full. It returns the
// context error if ctx has ended, before or while waiting, or ErrPoolClosed
// after Close. A job is never queued under an ended ctx.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "label", job.Label)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals workers to stop and waits for queued and in-flight jobs to
// drain. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(id, job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) processJob(id uint, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				"worker_id", id,
				"label", job.Label,
				"panic", r,
			)
		}
	}()

	job.Run()
}
