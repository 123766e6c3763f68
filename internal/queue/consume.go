package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autoguard/cloak/internal/pkg/logger"
)

// Handler processes one job's payload. A returned error causes a backoff
// retry (or, past maxAttempts, a move to the dead list).
type Handler func(ctx context.Context, job Job) error

// popTimeout is how long a single BRPOPLPUSH blocks waiting for work.
const popTimeout = 5 * time.Second

// ConsumeOne performs one pop-execute-ack cycle. It returns (false, nil)
// when the pop timed out with nothing to do — callers loop on this.
func (q *Queue) ConsumeOne(ctx context.Context, handle Handler) (bool, error) {
	raw, err := q.rdb.BRPopLPush(ctx, q.name, q.processingKey(), popTimeout).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("brpoplpush: %w", err)
	}

	job, err := decodeJob(raw)
	if err != nil {
		logger.Warn("queue: dropping undecodable job", "queue", q.name, "error", err.Error())
		q.rdb.LRem(ctx, q.processingKey(), 1, raw)
		return true, nil
	}

	if handleErr := handle(ctx, job); handleErr != nil {
		q.fail(ctx, raw, job, handleErr)
		return true, nil
	}

	if err := q.rdb.LRem(ctx, q.processingKey(), 1, raw).Err(); err != nil {
		logger.Warn("queue: ack lrem failed", "queue", q.name, "error", err.Error())
	}
	return true, nil
}

func (q *Queue) fail(ctx context.Context, oldRaw string, job Job, cause error) {
	job.Attempt++
	job.Error = cause.Error()

	var permanent *PermanentError
	retryable := job.Attempt < q.maxAttempts && !errors.As(cause, &permanent)

	if retryable {
		due := time.Now().Add(backoffFor(job.Attempt))
		newRaw, err := job.encode()
		if err != nil {
			logger.Warn("queue: encode retry job failed", "queue", q.name, "error", err.Error())
			return
		}
		if err := q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(due.UnixMilli()), Member: newRaw}).Err(); err != nil {
			logger.Warn("queue: schedule retry failed", "queue", q.name, "error", err.Error())
		}
		if err := q.rdb.LRem(ctx, q.processingKey(), 1, oldRaw).Err(); err != nil {
			logger.Warn("queue: lrem after retry schedule failed", "queue", q.name, "error", err.Error())
		}
		return
	}

	now := time.Now()
	job.FailedAt = &now
	newRaw, err := job.encode()
	if err != nil {
		logger.Warn("queue: encode dead job failed", "queue", q.name, "error", err.Error())
		return
	}
	if err := q.rdb.LPush(ctx, q.deadKey(), newRaw).Err(); err != nil {
		logger.Warn("queue: lpush dead failed", "queue", q.name, "error", err.Error())
	}
	if err := q.rdb.LRem(ctx, q.processingKey(), 1, oldRaw).Err(); err != nil {
		logger.Warn("queue: lrem after dead-letter failed", "queue", q.name, "error", err.Error())
	}
}
