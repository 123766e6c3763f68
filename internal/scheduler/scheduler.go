package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/config"
	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/jobs"
	"github.com/autoguard/cloak/internal/materializer"
	"github.com/autoguard/cloak/internal/pkg/distlock"
	"github.com/autoguard/cloak/internal/pkg/logger"
	"github.com/autoguard/cloak/internal/queue"
	"github.com/autoguard/cloak/internal/store/postgres"
)

// Scheduler drives every periodic maintenance task via robfig/cron,
// generalizing the geo-database refresh shape (cron.New + AddFunc + Start/
// Stop) to the Job Pipeline's several independent cadences. Job execution
// itself lives in internal/jobs and runs on the worker pool; Scheduler only
// enqueues and rematerializes.
type Scheduler struct {
	cron *cron.Cron

	store            *postgres.Store
	materializer     *materializer.Materializer
	rdb              *redis.Client
	logRetentionDays int

	pageQueue   *queue.Queue
	domainQueue *queue.Queue
	syncQueue   *queue.Queue
}

// New builds a Scheduler and registers every task against cfg's intervals.
// Call Start to begin running it; Stop blocks until in-flight ticks finish.
func New(cfg config.SchedulerConfig, store *postgres.Store, mat *materializer.Materializer, rdb *redis.Client) *Scheduler {
	s := &Scheduler{
		cron:             cron.New(),
		store:            store,
		materializer:     mat,
		rdb:              rdb,
		logRetentionDays: cfg.LogRetentionDays,
		pageQueue:        queue.New(rdb, cacheredis.QueuePageGeneration),
		domainQueue:      queue.New(rdb, cacheredis.QueueDomainVerify),
		syncQueue:        queue.New(rdb, cacheredis.QueueBlacklistSync),
	}

	s.register("materialize", everySpec(cfg.BlacklistSyncInterval()), s.runMaterialize)
	s.register("expiry-cleanup", everySpec(cfg.ExpiryCleanupInterval()), s.runExpiryCleanup)
	s.register("stats-agg", everySpec(cfg.StatsAggInterval()), s.runStatsAggregation)
	s.register("enqueue-source-sync", everySpec(cfg.BlacklistSyncInterval()), s.runEnqueueSourceSyncs)
	s.register("enqueue-domain-verify", everySpec(cfg.DomainVerifyInterval()), s.runEnqueueDomainVerifications)
	s.register("promote-delayed", everySpec(cfg.QueuePromoteInterval()), s.runPromoteDelayed)

	return s
}

func everySpec(d time.Duration) string {
	if d <= 0 {
		d = time.Minute
	}
	return "@every " + d.String()
}

func (s *Scheduler) register(name, spec string, run func(ctx context.Context)) {
	if _, err := s.cron.AddFunc(spec, func() { run(context.Background()) }); err != nil {
		logger.Error("scheduler: invalid cron spec, task disabled", "task", name, "spec", spec, "error", err.Error())
	}
}

// Start runs every registered task on its cron schedule until Stop is
// called. Non-blocking, mirroring cron.Cron's own Start semantics.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and blocks until any in-flight tick completes.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// withLock runs fn only if this process acquires the named distributed
// lock, so a multi-replica worker fleet never runs the same tick twice.
// ttl must comfortably exceed how long fn is expected to take.
func (s *Scheduler) withLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) {
	lock := distlock.NewLock(s.rdb, nil, "scheduler:"+name, ttl)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.Warn("scheduler: lock acquire failed", "task", name, "error", err.Error())
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("scheduler: lock release failed", "task", name, "error", err.Error())
		}
	}()

	if err := fn(ctx); err != nil {
		logger.Warn("scheduler: task failed", "task", name, "error", err.Error())
	}
}

func (s *Scheduler) runMaterialize(ctx context.Context) {
	s.withLock(ctx, "materialize", 2*time.Minute, func(ctx context.Context) error {
		counts, err := s.materializer.MaterializeAll(ctx)
		if err != nil {
			return fmt.Errorf("materialize all: %w", err)
		}
		logger.Info("scheduler: materialized blacklist", "families", len(counts))
		return nil
	})
}

func (s *Scheduler) runExpiryCleanup(ctx context.Context) {
	s.withLock(ctx, "expiry-cleanup", 5*time.Minute, func(ctx context.Context) error {
		touched, err := s.materializer.CleanupExpired(ctx)
		if err != nil {
			return fmt.Errorf("cleanup expired rules: %w", err)
		}
		deleted, err := s.store.DeleteCloakLogsOlderThan(ctx, s.logRetentionDays)
		if err != nil {
			return fmt.Errorf("delete old cloak logs: %w", err)
		}
		logger.Info("scheduler: expiry cleanup complete", "rulesTouched", len(touched), "logsDeleted", deleted)
		return nil
	})
}

// cloakLogDrainBatch bounds how many queue:cloakLogs entries runStatsAggregation
// moves into the authoritative store per RPopCount call.
const cloakLogDrainBatch = 500

func (s *Scheduler) runStatsAggregation(ctx context.Context) {
	s.withLock(ctx, "stats-agg", 5*time.Minute, func(ctx context.Context) error {
		drained, err := s.drainCloakLogs(ctx)
		if err != nil {
			return fmt.Errorf("drain cloak logs: %w", err)
		}
		if drained > 0 {
			logger.Info("scheduler: drained cloak logs", "count", drained)
		}

		today := time.Now().UTC()
		yesterday := today.AddDate(0, 0, -1)
		for _, d := range []time.Time{yesterday, today} {
			if _, err := s.store.UpsertDailyStatsForDate(ctx, d); err != nil {
				return fmt.Errorf("aggregate stats for %s: %w", d.Format("2006-01-02"), err)
			}
		}
		return nil
	})
}

// drainCloakLogs repeatedly pops batches off the decision engine's
// queue:cloakLogs write buffer and persists them to the authoritative
// store, until the buffer empties or a batch comes back short.
func (s *Scheduler) drainCloakLogs(ctx context.Context) (int, error) {
	total := 0
	for {
		raw, err := s.rdb.RPopCount(ctx, cacheredis.QueueCloakLogs, cloakLogDrainBatch).Result()
		if err == redis.Nil || len(raw) == 0 {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("pop cloak logs: %w", err)
		}

		logs := make([]domain.CloakLog, 0, len(raw))
		for _, r := range raw {
			var l domain.CloakLog
			if err := json.Unmarshal([]byte(r), &l); err != nil {
				logger.Warn("scheduler: dropping undecodable cloak log", "error", err.Error())
				continue
			}
			logs = append(logs, l)
		}
		if err := s.store.InsertCloakLogs(ctx, logs); err != nil {
			return total, fmt.Errorf("insert cloak logs: %w", err)
		}
		total += len(raw)

		if len(raw) < cloakLogDrainBatch {
			return total, nil
		}
	}
}

func (s *Scheduler) runEnqueueSourceSyncs(ctx context.Context) {
	s.withLock(ctx, "enqueue-source-sync", time.Minute, func(ctx context.Context) error {
		sources, err := s.store.ListDueSources(ctx)
		if err != nil {
			return fmt.Errorf("list due sources: %w", err)
		}
		for _, src := range sources {
			payload, err := json.Marshal(jobs.SourceSyncPayload{SourceID: src.ID, SourceName: src.Name, SourceType: string(src.SourceType)})
			if err != nil {
				logger.Warn("scheduler: encode source sync payload failed", "sourceId", src.ID, "error", err.Error())
				continue
			}
			job := queue.Job{ID: uuid.NewString(), Kind: "sourceSync", Payload: payload, EnqueuedAt: time.Now()}
			if err := s.syncQueue.Enqueue(ctx, job); err != nil {
				logger.Warn("scheduler: enqueue source sync failed", "sourceId", src.ID, "error", err.Error())
			}
		}
		if len(sources) > 0 {
			logger.Info("scheduler: enqueued due source syncs", "count", len(sources))
		}
		return nil
	})
}

func (s *Scheduler) runEnqueueDomainVerifications(ctx context.Context) {
	s.withLock(ctx, "enqueue-domain-verify", time.Minute, func(ctx context.Context) error {
		offers, err := s.store.ListPendingDomainVerifications(ctx)
		if err != nil {
			return fmt.Errorf("list pending domain verifications: %w", err)
		}
		for _, o := range offers {
			payload, err := json.Marshal(jobs.DomainVerifyPayload{OfferID: o.ID})
			if err != nil {
				logger.Warn("scheduler: encode domain verify payload failed", "offerId", o.ID, "error", err.Error())
				continue
			}
			job := queue.Job{ID: uuid.NewString(), Kind: "domainVerify", Payload: payload, EnqueuedAt: time.Now()}
			if err := s.domainQueue.Enqueue(ctx, job); err != nil {
				logger.Warn("scheduler: enqueue domain verify failed", "offerId", o.ID, "error", err.Error())
			}
		}
		if len(offers) > 0 {
			logger.Info("scheduler: enqueued pending domain verifications", "count", len(offers))
		}
		return nil
	})
}

// runPromoteDelayed moves every due delayed retry back onto its queue's
// main list, for each queue the worker pool consumes from. Not lock-gated:
// PromoteDue's underlying script is itself atomic, so concurrent promotion
// from multiple replicas is harmless, just redundant.
func (s *Scheduler) runPromoteDelayed(ctx context.Context) {
	now := time.Now()
	for _, q := range []*queue.Queue{s.pageQueue, s.domainQueue, s.syncQueue} {
		if _, err := q.PromoteDue(ctx, now); err != nil {
			logger.Warn("scheduler: promote delayed failed", "error", err.Error())
		}
	}
}
