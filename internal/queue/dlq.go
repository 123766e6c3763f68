package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// requeueDeadScript atomically removes one entry from the dead list (by
// raw value) and lpushes a new copy with attempt reset, so an operator
// requeue never duplicates or loses the job under concurrent admin calls.
var requeueDeadScript = redis.NewScript(`
local removed = redis.call("LREM", KEYS[1], 1, ARGV[1])
if removed == 1 then
	redis.call("LPUSH", KEYS[2], ARGV[2])
end
return removed
`)

// ListDead returns up to limit dead-lettered jobs, most recent first.
func (q *Queue) ListDead(ctx context.Context, limit int64) ([]Job, error) {
	raws, err := q.rdb.LRange(ctx, q.deadKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead: %w", err)
	}
	jobs := make([]Job, 0, len(raws))
	for _, raw := range raws {
		job, err := decodeJob(raw)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// RequeueDead re-enqueues a single dead job (matched by its exact raw JSON
// form, as returned by ListDead's underlying LRANGE) with Attempt reset to
// zero and Error/FailedAt cleared.
func (q *Queue) RequeueDead(ctx context.Context, job Job) (bool, error) {
	oldRaw, err := job.encode()
	if err != nil {
		return false, fmt.Errorf("encode old job: %w", err)
	}

	job.Attempt = 0
	job.Error = ""
	job.FailedAt = nil
	newRaw, err := job.encode()
	if err != nil {
		return false, fmt.Errorf("encode requeued job: %w", err)
	}

	res, err := requeueDeadScript.Run(ctx, q.rdb, []string{q.deadKey(), q.name}, oldRaw, newRaw).Int()
	if err != nil {
		return false, fmt.Errorf("requeue dead: %w", err)
	}
	return res == 1, nil
}
