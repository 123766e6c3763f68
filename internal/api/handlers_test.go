package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoguard/cloak/internal/decision"
	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/materializer"
	"github.com/autoguard/cloak/internal/queue"
	"github.com/autoguard/cloak/internal/store/postgres"
)

type emptySource struct{}

func (emptySource) ListEffectiveRules(ctx context.Context, family domain.RuleFamily) (any, error) {
	return []domain.IPRule{}, nil
}

func (emptySource) DeactivateExpiredRules(ctx context.Context) (map[domain.RuleFamily]int64, error) {
	return nil, nil
}

func setupTestServer(t *testing.T) (*httptest.Server, sqlmock.Sqlmock, *goredis.Client, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	store := &postgres.Store{DB: db}
	mat := materializer.New(emptySource{}, rdb)

	mock.ExpectQuery(`SELECT key, value FROM settings`).WillReturnRows(sqlmock.NewRows(settingsColumns))
	settings, err := decision.NewSettings(context.Background(), store, time.Minute)
	require.NoError(t, err)
	engine := decision.NewEngine(rdb, settings, nil)

	pageQueue := queue.New(rdb, "queue:pageGeneration")
	domainQueue := queue.New(rdb, "queue:domainVerify")
	syncQueue := queue.New(rdb, "queue:blacklistSync")

	h := NewHandlers(store, rdb, engine, mat, pageQueue, domainQueue, syncQueue)
	hc := NewHealthChecker(store, rdb, mat.LastRun)
	srv := httptest.NewServer(SetupRoutes(h, hc))

	cleanup := func() {
		srv.Close()
		db.Close()
		rdb.Close()
		mr.Close()
	}
	return srv, mock, rdb, cleanup
}

var settingsColumns = []string{"key", "value"}

var offerColumns = []string{
	"id", "user_id", "brand_name", "brand_url", "affiliate_link", "subdomain",
	"custom_domain", "custom_domain_status", "custom_domain_token", "custom_domain_verified_at",
	"cloak_enabled", "target_countries", "scrape_status", "scrape_error", "scraped_at",
	"page_title", "page_description", "status", "is_deleted", "created_at", "updated_at",
}

func TestHandleDecideResolvesOfferByCustomDomain(t *testing.T) {
	srv, mock, _, cleanup := setupTestServer(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`FROM offers WHERE custom_domain = \$1`).
		WithArgs("shop.example.com").
		WillReturnRows(sqlmock.NewRows(offerColumns).AddRow(
			9, 1, "Acme", "https://acme.example", "https://aff.example/1", "acme9",
			"shop.example.com", domain.DomainVerified, "tok", now,
			true, "{US}", domain.ScrapeCompleted, nil, nil,
			"Acme", "desc", domain.OfferActive, false, now, now,
		))

	body, _ := json.Marshal(DecideRequest{
		Host: "shop.example.com", IP: "203.0.113.9", UserAgent: "curl/8.0", URL: "https://shop.example.com/",
	})
	resp, err := http.Post(srv.URL+"/v1/decide", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out DecideResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, int64(9), out.OfferID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleDecideUnknownHostReturns404(t *testing.T) {
	srv, mock, _, cleanup := setupTestServer(t)
	defer cleanup()

	mock.ExpectQuery(`FROM offers WHERE custom_domain = \$1`).
		WithArgs("nope.example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM offers WHERE subdomain = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	body, _ := json.Marshal(DecideRequest{Host: "nope.example.com", IP: "203.0.113.9"})
	resp, err := http.Post(srv.URL+"/v1/decide", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleHealthEndpoint(t *testing.T) {
	srv, _, _, cleanup := setupTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "up", out.Checks["redis"].Status)
}

func TestHandleListDeadAndRequeue(t *testing.T) {
	srv, _, rdb, cleanup := setupTestServer(t)
	defer cleanup()

	q := queue.New(rdb, "queue:blacklistSync")
	job := queue.Job{ID: "j1", Kind: "sourceSync", Payload: []byte("{}"), EnqueuedAt: time.Now()}
	require.NoError(t, rdb.LPush(context.Background(), "queue:blacklistSync:dead", mustEncode(job)).Err())

	resp, err := http.Get(srv.URL + "/v1/admin/queues/blacklistSync/dead")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Jobs []queue.Job `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed.Jobs, 1)
	assert.Equal(t, "j1", listed.Jobs[0].ID)

	payload, err := json.Marshal(listed.Jobs[0])
	require.NoError(t, err)
	reqResp, err := http.Post(srv.URL+"/v1/admin/queues/blacklistSync/requeue", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer reqResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, reqResp.StatusCode)

	remaining, err := rdb.LLen(context.Background(), "queue:blacklistSync:dead").Result()
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func mustEncode(j queue.Job) string {
	b, _ := json.Marshal(j)
	return string(b)
}
