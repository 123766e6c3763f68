package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/dnscheck"
	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/store/postgres"
)

var offerColumns = []string{
	"id", "user_id", "brand_name", "brand_url", "affiliate_link", "subdomain",
	"custom_domain", "custom_domain_status", "custom_domain_token", "custom_domain_verified_at",
	"cloak_enabled", "target_countries", "scrape_status", "scrape_error", "scraped_at",
	"page_title", "page_description", "status", "is_deleted", "created_at", "updated_at",
}

func offerRow(customDomain, token any, status domain.DomainVerifyStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(offerColumns).AddRow(
		1, 7, "Acme", "https://acme.example", "https://aff.example/123", "acme123",
		customDomain, status, token, nil,
		true, "{US}", domain.ScrapeCompleted, nil, nil,
		"", "", domain.OfferActive, false, now, now,
	)
}

type fakeVerifier struct {
	result dnscheck.Result
}

func (f fakeVerifier) Verify(ctx context.Context, customDomain, token string) dnscheck.Result {
	return f.result
}

func setupJobsTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() { client.Close(); mr.Close() }
}

func TestDomainVerifyJobSuccessInvalidatesRoutingKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, cleanup := setupJobsTestRedis(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM offers WHERE id = \$1`).WithArgs(int64(1)).
		WillReturnRows(offerRow("shop.example.com", "tok123", domain.DomainPending))
	mock.ExpectExec(`UPDATE offers SET custom_domain_status = \$1, custom_domain_verified_at`).
		WithArgs(domain.DomainVerified, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, rdb.Set(ctx, cacheredis.OfferBySubdomainKey("acme123"), "stale", 0).Err())
	require.NoError(t, rdb.Set(ctx, cacheredis.OfferByDomainKey("shop.example.com"), "stale", 0).Err())
	require.NoError(t, rdb.Set(ctx, cacheredis.OfferByIDKey(1), "stale", 0).Err())

	job := &DomainVerifyJob{
		Store:    &postgres.Store{DB: db},
		Verifier: fakeVerifier{result: dnscheck.Result{Verified: true, TXTPassed: true, PingPassed: true}},
		Redis:    rdb,
	}

	require.NoError(t, job.Run(ctx, 1))

	for _, key := range []string{
		cacheredis.OfferBySubdomainKey("acme123"),
		cacheredis.OfferByDomainKey("shop.example.com"),
		cacheredis.OfferByIDKey(1),
	} {
		exists, err := rdb.Exists(ctx, key).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), exists, "key %s should have been invalidated", key)
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDomainVerifyJobFailureMarksFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, cleanup := setupJobsTestRedis(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM offers WHERE id = \$1`).WithArgs(int64(1)).
		WillReturnRows(offerRow("shop.example.com", "tok123", domain.DomainPending))
	mock.ExpectExec(`UPDATE offers SET custom_domain_status = \$1, updated_at`).
		WithArgs(domain.DomainFailed, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	job := &DomainVerifyJob{
		Store:    &postgres.Store{DB: db},
		Verifier: fakeVerifier{result: dnscheck.Result{FailedCheck: "txt", Detail: "no matching TXT record"}},
		Redis:    rdb,
	}

	require.NoError(t, job.Run(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDomainVerifyJobMissingCustomDomainIsPermanent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb, cleanup := setupJobsTestRedis(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM offers WHERE id = \$1`).WithArgs(int64(1)).
		WillReturnRows(offerRow(nil, nil, domain.DomainNone))

	job := &DomainVerifyJob{
		Store:    &postgres.Store{DB: db},
		Verifier: fakeVerifier{},
		Redis:    rdb,
	}

	err = job.Run(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no custom domain")
	require.NoError(t, mock.ExpectationsWereMet())
}
