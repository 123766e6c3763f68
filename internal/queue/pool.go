package queue

import (
	"context"
	"sync"
	"time"

	"github.com/autoguard/cloak/internal/pkg/logger"
)

// Pool runs a bounded number of concurrent consumers against one Queue.
// Modeled on the teacher's QueueRecoveryWorker Start(ctx)-blocks-until-
// cancelled shape, generalized to N goroutines and a hard shutdown cap.
type Pool struct {
	queue         *Queue
	handler       Handler
	concurrency   int
	shutdownGrace time.Duration
}

// NewPool builds a worker pool. concurrency<=0 defaults to 2, per
// spec.md §4.E's configurable-per-worker default.
func NewPool(q *Queue, handler Handler, concurrency int, shutdownGrace time.Duration) *Pool {
	if concurrency <= 0 {
		concurrency = 2
	}
	if shutdownGrace <= 0 {
		shutdownGrace = 30 * time.Second
	}
	return &Pool{queue: q, handler: handler, concurrency: concurrency, shutdownGrace: shutdownGrace}
}

// Start recovers stuck jobs from a prior crash, then runs concurrency
// consumer loops until ctx is cancelled. It blocks until every worker has
// either drained naturally or been force-stopped by the shutdown grace
// period, mirroring the teacher's Start(ctx)-blocks-until-Done pattern.
//
// ctx cancellation stops new pops immediately (BRPOPLPUSH is cancelled, so
// no new job is claimed), but an in-flight handler keeps running against a
// separate execCtx that outlives ctx — it's only cut off once shutdownGrace
// elapses, so a job already running gets to finish instead of aborting the
// instant shutdown begins.
func (p *Pool) Start(ctx context.Context) {
	if n, err := p.queue.RecoverStuck(ctx); err != nil {
		logger.Warn("queue: stuck-job recovery failed", "queue", p.queue.name, "error", err.Error())
	} else if n > 0 {
		logger.Info("queue: recovered stuck jobs", "queue", p.queue.name, "count", n)
	}

	execCtx, execCancel := context.WithCancel(context.Background())
	defer execCancel()

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runLoop(ctx, execCtx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(p.shutdownGrace):
		logger.Warn("queue: shutdown grace period elapsed with workers still in-flight", "queue", p.queue.name)
		execCancel()
	}
}

// runLoop polls using ctx (cancelled on shutdown, so BRPOPLPUSH stops
// claiming new jobs right away) but executes the handler against execCtx,
// which is only cancelled after the shutdown grace period elapses.
func (p *Pool) runLoop(ctx, execCtx context.Context) {
	handle := func(_ context.Context, job Job) error {
		return p.handler(execCtx, job)
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := p.queue.ConsumeOne(ctx, handle); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: consume failed", "queue", p.queue.name, "error", err.Error())
			time.Sleep(time.Second)
		}
	}
}
