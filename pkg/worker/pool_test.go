package worker

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spyre/pkg/logger"
)

// newTestPool creates a worker pool with n workers and a queue of q.
// Callers should "wp.Close()" to drain enqueued jobs before asserting state.
func newTestPool(n, q uint) *Pool {
	wp, err := NewPool(&Config{
		NumWorkers: n,
		QueueSize:  q,
		Logger:     logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp
}

var _ = Describe("Worker Pool", func() {
	Describe("NewPool", func() {
		It("applies defaults", func() {
			wp := newTestPool(0, 0)
			defer wp.Close()

			Expect(wp.Size()).To(Equal(defaultNumWorkers))
			Expect(cap(wp.queue)).To(BeEquivalentTo(defaultJobQueueSize))
		})
	})

	Describe("Submit", func() {
		It("runs every submitted job before Close returns", func() {
			wp := newTestPool(4, 1)

			var ran atomic.Int32
			for range 50 {
				err := wp.Submit(context.Background(), Job{Label: "count", Run: func() { ran.Add(1) }})
				Expect(err).NotTo(HaveOccurred())
			}
			wp.Close()

			Expect(ran.Load()).To(BeEquivalentTo(50))
		})

		It("never runs more jobs at once than there are workers", func() {
			wp := newTestPool(3, 16)

			var inflight, peak atomic.Int32
			for range 20 {
				err := wp.Submit(context.Background(), Job{Run: func() {
					n := inflight.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					inflight.Add(-1)
				}})
				Expect(err).NotTo(HaveOccurred())
			}
			wp.Close()

			Expect(peak.Load()).To(BeNumerically("<=", 3))
			Expect(peak.Load()).To(BeNumerically(">=", 1))
		})

		It("returns the context error when the queue stays full", func() {
			wp := newTestPool(1, 1)

			release := make(chan struct{})
			started := make(chan struct{})
			Expect(wp.Submit(context.Background(), Job{Run: func() {
				close(started)
				<-release
			}})).To(Succeed())
			<-started
			Expect(wp.Submit(context.Background(), Job{Run: func() {}})).To(Succeed())

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := wp.Submit(ctx, Job{Run: func() {}})
			Expect(err).To(MatchError(context.DeadlineExceeded))

			close(release)
			wp.Close()
		})

		It("never queues a job under an ended context", func() {
			wp := newTestPool(4, 16)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			var ran atomic.Int32
			for range 64 {
				err := wp.Submit(ctx, Job{Run: func() { ran.Add(1) }})
				Expect(err).To(MatchError(context.Canceled))
			}
			wp.Close()

			Expect(ran.Load()).To(BeZero())
		})

		It("rejects jobs after Close", func() {
			wp := newTestPool(1, 1)
			wp.Close()

			err := wp.Submit(context.Background(), Job{Run: func() {}})
			Expect(err).To(MatchError(ErrPoolClosed))
		})
	})

	Describe("panicking jobs", func() {
		It("keeps the worker alive", func() {
			wp := newTestPool(1, 4)

			var ran atomic.Bool
			Expect(wp.Submit(context.Background(), Job{Label: "boom", Run: func() { panic("boom") }})).To(Succeed())
			Expect(wp.Submit(context.Background(), Job{Label: "after", Run: func() { ran.Store(true) }})).To(Succeed())
			wp.Close()

			Expect(ran.Load()).To(BeTrue())
		})
	})

	Describe("Close", func() {
		It("is safe to call twice", func() {
			wp := newTestPool(2, 2)
			wp.Close()
			Expect(wp.Close).NotTo(Panic())
		})
	})
})
