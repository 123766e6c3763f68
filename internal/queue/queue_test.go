package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestEnqueueConsumeAck(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	q := New(rdb, "queue:test")
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Job{ID: "1", Kind: "scrape", Payload: json.RawMessage(`{}`)}))

	var got Job
	ok, err := q.ConsumeOne(ctx, func(ctx context.Context, job Job) error {
		got = job
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", got.ID)

	processingLen, err := rdb.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), processingLen)
}

func TestConsumeFailureSchedulesRetry(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	q := New(rdb, "queue:test")
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{ID: "1", Kind: "scrape", Payload: json.RawMessage(`{}`)}))

	_, err := q.ConsumeOne(ctx, func(ctx context.Context, job Job) error {
		return errors.New("boom")
	})
	require.NoError(t, err)

	n, err := rdb.ZCard(ctx, q.delayedKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	processingLen, err := rdb.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), processingLen)
}

func TestConsumeFailureExhaustsToDeadLetter(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	q := New(rdb, "queue:test").WithMaxAttempts(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{ID: "1", Kind: "scrape", Payload: json.RawMessage(`{}`)}))

	_, err := q.ConsumeOne(ctx, func(ctx context.Context, job Job) error {
		return errors.New("permanent failure")
	})
	require.NoError(t, err)

	n, err := rdb.LLen(ctx, q.deadKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestConsumeFailurePermanentErrorSkipsRetry(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	q := New(rdb, "queue:test") // default maxAttempts well above 1
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{ID: "1", Kind: "scrape", Payload: json.RawMessage(`{}`)}))

	_, err := q.ConsumeOne(ctx, func(ctx context.Context, job Job) error {
		return Permanent(errors.New("invalid variant/action combination"))
	})
	require.NoError(t, err)

	deadLen, err := rdb.LLen(ctx, q.deadKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deadLen)

	delayedLen, err := rdb.ZCard(ctx, q.delayedKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), delayedLen)
}

func TestPromoteDueMovesScoredJobs(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	q := New(rdb, "queue:test")
	ctx := context.Background()
	require.NoError(t, q.EnqueueDelayed(ctx, Job{ID: "1"}, time.Now().Add(-time.Second)))
	require.NoError(t, q.EnqueueDelayed(ctx, Job{ID: "2"}, time.Now().Add(time.Hour)))

	moved, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	listLen, err := rdb.LLen(ctx, q.name).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), listLen)

	delayedLen, err := rdb.ZCard(ctx, q.delayedKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayedLen)
}

func TestRecoverStuckDrainsProcessing(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	q := New(rdb, "queue:test")
	ctx := context.Background()
	raw, err := Job{ID: "stuck"}.encode()
	require.NoError(t, err)
	require.NoError(t, rdb.LPush(ctx, q.processingKey(), raw).Err())

	n, err := q.RecoverStuck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	listLen, err := rdb.LLen(ctx, q.name).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), listLen)
}

func TestRequeueDeadResetsAttempt(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	q := New(rdb, "queue:test")
	ctx := context.Background()
	failed := Job{ID: "1", Attempt: 5, Error: "boom"}
	raw, err := failed.encode()
	require.NoError(t, err)
	require.NoError(t, rdb.LPush(ctx, q.deadKey(), raw).Err())

	ok, err := q.RequeueDead(ctx, failed)
	require.NoError(t, err)
	assert.True(t, ok)

	deadLen, err := rdb.LLen(ctx, q.deadKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), deadLen)

	listLen, err := rdb.LLen(ctx, q.name).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), listLen)
}
