package queue

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxAttempts = 5
	baseBackoff        = 60 * time.Second
	maxBackoff         = time.Hour
)

// promoteDueScript atomically moves the single oldest due job from the
// delayed sorted set into the main list, so promotion never races a
// concurrent consumer into observing a job in neither place.
var promoteDueScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
if #due == 0 then
	return nil
end
redis.call("ZREM", KEYS[1], due[1])
redis.call("LPUSH", KEYS[2], due[1])
return due[1]
`)

// Queue is one named reliable queue: a main list, a processing list (for
// in-flight jobs), a delayed sorted set (for scheduled retries), and a dead
// list (for jobs that exhausted maxAttempts).
type Queue struct {
	rdb         *redis.Client
	name        string
	maxAttempts int
}

func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name, maxAttempts: defaultMaxAttempts}
}

// WithMaxAttempts overrides the default attempt cap (5).
func (q *Queue) WithMaxAttempts(n int) *Queue {
	q.maxAttempts = n
	return q
}

func (q *Queue) processingKey() string { return q.name + ":processing" }
func (q *Queue) delayedKey() string    { return q.name + ":delayed" }
func (q *Queue) deadKey() string       { return q.name + ":dead" }

// Enqueue pushes a job onto the main list for immediate consumption.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	raw, err := job.encode()
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.rdb.LPush(ctx, q.name, raw).Err()
}

// EnqueueDelayed schedules a job to become eligible at dueAt.
func (q *Queue) EnqueueDelayed(ctx context.Context, job Job, dueAt time.Time) error {
	raw, err := job.encode()
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: raw,
	}).Err()
}

// PromoteDue moves every delayed job whose score is <= now into the main
// list, one at a time via an atomic script, returning the count moved. The
// scheduler calls this on a 1s tick per spec.md §4.E.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	moved := 0
	for {
		res, err := promoteDueScript.Run(ctx, q.rdb, []string{q.delayedKey(), q.name}, now.UnixMilli()).Result()
		if err == redis.Nil {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("promote due: %w", err)
		}
		if res == nil {
			return moved, nil
		}
		moved++
	}
}

// RecoverStuck drains queue:processing back onto the tail of the main list
// via repeated RPOPLPUSH, run once on worker startup so jobs orphaned by a
// crash between pop and ack are retried (at-least-once semantics; handlers
// must be idempotent).
func (q *Queue) RecoverStuck(ctx context.Context) (int, error) {
	n := 0
	for {
		res, err := q.rdb.RPopLPush(ctx, q.processingKey(), q.name).Result()
		if err == redis.Nil {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover stuck: %w", err)
		}
		_ = res
		n++
	}
}

// backoffFor computes min(60s * 2^attempt, 1h) with up to 20% full jitter.
func backoffFor(attempt int) time.Duration {
	d := baseBackoff
	for i := 0; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d + jitter
}
