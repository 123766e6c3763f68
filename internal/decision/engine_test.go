package decision

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/domain"
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

type stubSettingsSource struct {
	rows []domain.Setting
}

func (s stubSettingsSource) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	return s.rows, nil
}

func newTestSettings(t *testing.T) *Settings {
	t.Helper()
	src := stubSettingsSource{rows: domain.DefaultSettings()}
	s, err := NewSettings(context.Background(), src, time.Minute)
	require.NoError(t, err)
	return s
}

type stubIntel struct {
	result IPIntelResult
	err    error
	delay  time.Duration
}

func (s stubIntel) Lookup(ctx context.Context, ip string) (IPIntelResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return IPIntelResult{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func cleanRequest() Request {
	return Request{
		IP:        "73.45.12.9",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124.0",
		Referer:   "https://www.google.com/",
		URL:       "https://example.com/go?gclid=abc123",
	}
}

func cleanOffer() OfferContext {
	return OfferContext{OfferID: 1, UserID: 1, CloakEnabled: true, TargetCountries: []string{"US"}}
}

func TestDecideCleanAdClickIsMoney(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	intel := stubIntel{result: IPIntelResult{Country: "US"}}
	engine := NewEngine(rdb, newTestSettings(t), intel)

	rec := engine.Decide(context.Background(), cleanRequest(), cleanOffer())

	assert.Equal(t, domain.DecisionMoney, rec.Decision)
	assert.Equal(t, float64(0), rec.FraudScore)
	assert.Nil(t, rec.BlockedAtLayer)
	assert.True(t, rec.TrackingParams.HasTracking)
}

func TestDecideGlobalIPBlacklistHit(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, rdb.SAdd(ctx, cacheredis.BlacklistIPKey(cacheredis.GlobalScope), "73.45.12.9").Err())

	intel := stubIntel{result: IPIntelResult{Country: "US"}}
	engine := NewEngine(rdb, newTestSettings(t), intel)

	rec := engine.Decide(ctx, cleanRequest(), cleanOffer())

	require.NotNil(t, rec.BlockedAtLayer)
	assert.Equal(t, domain.DecisionSafe, rec.Decision)
	assert.Equal(t, domain.LayerL1, *rec.BlockedAtLayer)
	l1, ok := rec.Details["l1"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ipBlocked", l1["blockedType"])
	assert.Equal(t, "73.45.12.9", l1["blockedValue"])
}

func TestDecideGeoNotTargeted(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	intel := stubIntel{result: IPIntelResult{Country: "DE"}}
	engine := NewEngine(rdb, newTestSettings(t), intel)

	req := cleanRequest()
	req.IP = "2.56.0.1"
	rec := engine.Decide(context.Background(), req, cleanOffer())

	require.NotNil(t, rec.BlockedAtLayer)
	assert.Equal(t, domain.DecisionSafe, rec.Decision)
	assert.Equal(t, domain.LayerL3, *rec.BlockedAtLayer)
	assert.Equal(t, "geo_not_targeted", rec.Reason)
}

func TestDecideIPIntelTimeoutFailsSafe(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	intel := stubIntel{result: IPIntelResult{Country: "US"}, delay: 500 * time.Millisecond}

	rows := domain.DefaultSettings()
	for i := range rows {
		if rows[i].Key == domain.SettingDecisionTimeoutMs {
			rows[i].Value = "10"
		}
	}
	settings, err := NewSettings(context.Background(), stubSettingsSource{rows: rows}, time.Minute)
	require.NoError(t, err)

	engine := NewEngine(rdb, settings, intel)

	rec := engine.Decide(context.Background(), cleanRequest(), OfferContext{OfferID: 1, UserID: 1, CloakEnabled: true})

	require.NotNil(t, rec.BlockedAtLayer)
	assert.Equal(t, domain.LayerTimeout, *rec.BlockedAtLayer)
	assert.Equal(t, domain.DecisionSafe, rec.Decision)
	assert.Equal(t, "deadline_exceeded", rec.Reason)
}

func TestDecideCloakDisabledFastPath(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	engine := NewEngine(rdb, newTestSettings(t), stubIntel{})
	offer := cleanOffer()
	offer.CloakEnabled = false

	rec := engine.Decide(context.Background(), cleanRequest(), offer)

	assert.Equal(t, domain.DecisionMoney, rec.Decision)
	assert.Equal(t, float64(0), rec.FraudScore)
	assert.Equal(t, true, rec.Details["cloakDisabled"])
}
