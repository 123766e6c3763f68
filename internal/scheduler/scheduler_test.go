package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/materializer"
	"github.com/autoguard/cloak/internal/queue"
	"github.com/autoguard/cloak/internal/store/postgres"

	"github.com/autoguard/cloak/internal/config"
)

type emptySource struct{}

func (emptySource) ListEffectiveRules(ctx context.Context, family domain.RuleFamily) (any, error) {
	return []domain.IPRule{}, nil
}

func (emptySource) DeactivateExpiredRules(ctx context.Context) (map[domain.RuleFamily]int64, error) {
	return nil, nil
}

func setupScheduler(t *testing.T) (*Scheduler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	store := &postgres.Store{DB: db}
	mat := materializer.New(emptySource{}, rdb)
	cfg := config.SchedulerConfig{LogRetentionDays: 30}

	s := New(cfg, store, mat, rdb)
	return s, mock, func() { db.Close(); rdb.Close(); mr.Close() }
}

// drainOne pops exactly one job off q using ConsumeOne, failing the test
// if nothing is available within the timeout.
func drainOne(t *testing.T, q *queue.Queue) queue.Job {
	t.Helper()
	var got queue.Job
	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()
	ok, err := q.ConsumeOne(ctx, func(_ context.Context, j queue.Job) error {
		got = j
		return nil
	})
	require.NoError(t, err)
	require.True(t, ok, "expected a job on the queue")
	return got
}

var sourceColumns = []string{
	"id", "name", "source_type", "url", "update_frequency", "last_sync_at", "next_sync_at",
	"sync_status", "sync_error", "is_active",
}

var offerColumns = []string{
	"id", "user_id", "brand_name", "brand_url", "affiliate_link", "subdomain",
	"custom_domain", "custom_domain_status", "custom_domain_token", "custom_domain_verified_at",
	"cloak_enabled", "target_countries", "scrape_status", "scrape_error", "scraped_at",
	"page_title", "page_description", "status", "is_deleted", "created_at", "updated_at",
}

func TestRunEnqueueSourceSyncsEnqueuesDueSources(t *testing.T) {
	s, mock, cleanup := setupScheduler(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM blacklist_sources WHERE is_active = true`).
		WillReturnRows(sqlmock.NewRows(sourceColumns).AddRow(
			5, "spamhaus-drop", domain.SourceExternal, "https://example.com/feed", domain.FreqDaily, nil, nil, nil, nil, true,
		))

	s.runEnqueueSourceSyncs(context.Background())

	job := drainOne(t, s.syncQueue)
	assert.Equal(t, "sourceSync", job.Kind)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunEnqueueDomainVerificationsEnqueuesPending(t *testing.T) {
	s, mock, cleanup := setupScheduler(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM offers WHERE custom_domain_status = \$1 AND is_deleted = false`).
		WithArgs(domain.DomainPending).
		WillReturnRows(sqlmock.NewRows(offerColumns).AddRow(
			9, 1, "Acme", "https://acme.example", "https://aff.example/1", "acme9",
			"shop.example.com", domain.DomainPending, "tok", nil,
			true, "{US}", domain.ScrapeCompleted, nil, nil,
			"", "", domain.OfferActive, false, now, now,
		))

	s.runEnqueueDomainVerifications(context.Background())

	job := drainOne(t, s.domainQueue)
	assert.Equal(t, "domainVerify", job.Kind)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunPromoteDelayedPromotesDueJobsAcrossAllQueues(t *testing.T) {
	s, _, cleanup := setupScheduler(t)
	defer cleanup()

	past := time.Now().Add(-time.Minute)
	job := queue.Job{ID: "j1", Kind: "sourceSync", Payload: []byte("{}"), EnqueuedAt: past}
	require.NoError(t, s.syncQueue.EnqueueDelayed(context.Background(), job, past))

	s.runPromoteDelayed(context.Background())

	got := drainOne(t, s.syncQueue)
	assert.Equal(t, "j1", got.ID)
}

func TestDrainCloakLogsPersistsAndEmptiesBuffer(t *testing.T) {
	s, mock, cleanup := setupScheduler(t)
	defer cleanup()

	log := domain.CloakLog{
		UserID:     1,
		OfferID:    9,
		IPAddress:  "203.0.113.5",
		UserAgent:  "Mozilla/5.0",
		RequestURL: "https://acme9.cloak.example/",
		Decision:   domain.DecisionMoney,
		CreatedAt:  time.Now(),
	}
	raw, err := json.Marshal(log)
	require.NoError(t, err)
	require.NoError(t, s.rdb.LPush(context.Background(), "queue:cloakLogs", raw).Err())

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO cloak_logs`)
	mock.ExpectExec(`INSERT INTO cloak_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	drained, err := s.drainCloakLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, drained)

	remaining, err := s.rdb.LLen(context.Background(), "queue:cloakLogs").Result()
	require.NoError(t, err)
	assert.Zero(t, remaining)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunExpiryCleanupDeletesOldLogsAndExpiredRules(t *testing.T) {
	s, mock, cleanup := setupScheduler(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM cloak_logs WHERE created_at`).
		WithArgs(30).
		WillReturnResult(sqlmock.NewResult(0, 12))

	s.runExpiryCleanup(context.Background())

	require.NoError(t, mock.ExpectationsWereMet())
}
