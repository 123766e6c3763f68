package decision

import (
	"context"
	"strconv"
	"time"

	"github.com/maypok86/otter"

	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/pkg/logger"
)

// SettingsSource is the read side of the Authoritative Store's settings
// table — satisfied by *postgres.Store.
type SettingsSource interface {
	ListSettings(ctx context.Context) ([]domain.Setting, error)
}

// Settings is the decision engine's per-process settings cache: an otter
// TTL-bounded cache refreshed from the Authoritative Store on an interval,
// per spec.md §4.D ("read from a per-process cache refreshed every N
// seconds"). Writes to the settings table are not read back synchronously;
// a refresh cycle eventually picks them up.
type Settings struct {
	cache  otter.Cache[string, string]
	source SettingsSource
	ttl    time.Duration
}

// NewSettings builds the cache and performs one synchronous initial load
// so decide() is never called against an empty cache.
func NewSettings(ctx context.Context, source SettingsSource, ttl time.Duration) (*Settings, error) {
	cache, err := otter.MustBuilder[string, string](256).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	s := &Settings{cache: cache, source: source, ttl: ttl}
	s.refresh(ctx)
	return s, nil
}

// StartRefreshLoop periodically reloads every setting row until ctx is
// cancelled. Run as a background goroutine from the composition root.
func (s *Settings) StartRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Settings) refresh(ctx context.Context) {
	rows, err := s.source.ListSettings(ctx)
	if err != nil {
		logger.Warn("decision: settings refresh failed", "error", err.Error())
		return
	}
	for _, row := range rows {
		s.cache.Set(row.Key, row.Value)
	}
}

func (s *Settings) raw(key string, fallback string) string {
	if v, ok := s.cache.Get(key); ok {
		return v
	}
	return fallback
}

func (s *Settings) GetBool(key string, fallback bool) bool {
	v, ok := s.cache.Get(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (s *Settings) GetFloat(key string, fallback float64) float64 {
	v, ok := s.cache.Get(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s *Settings) GetInt(key string, fallback int) int {
	v, ok := s.cache.Get(key)
	if !ok {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

// DecisionTimeout returns decision_timeout_ms as a time.Duration, clamped
// to the spec's documented 10-1000ms range.
func (s *Settings) DecisionTimeout() time.Duration {
	ms := s.GetInt(domain.SettingDecisionTimeoutMs, 100)
	if ms < 10 {
		ms = 10
	}
	if ms > 1000 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *Settings) SafeModeThreshold() float64 {
	return s.GetFloat(domain.SettingSafeModeThreshold, 50)
}

func (s *Settings) EnableIPCheck() bool      { return s.GetBool(domain.SettingEnableIPCheck, true) }
func (s *Settings) EnableUACheck() bool      { return s.GetBool(domain.SettingEnableUACheck, true) }
func (s *Settings) EnableGeoCheck() bool     { return s.GetBool(domain.SettingEnableGeoCheck, true) }
func (s *Settings) EnableRefererCheck() bool { return s.GetBool(domain.SettingEnableRefererCheck, true) }

func (s *Settings) L1GeoHighRiskWeight() float64 { return s.GetFloat(domain.SettingL1GeoHighRiskWeight, 30) }
func (s *Settings) L2DatacenterWeight() float64  { return s.GetFloat(domain.SettingL2DatacenterWeight, 25) }
func (s *Settings) L2VPNWeight() float64         { return s.GetFloat(domain.SettingL2VPNWeight, 25) }
func (s *Settings) L2ProxyWeight() float64       { return s.GetFloat(domain.SettingL2ProxyWeight, 25) }
func (s *Settings) L2TorWeight() float64         { return s.GetFloat(domain.SettingL2TorWeight, 25) }
func (s *Settings) L4UAHeuristicWeight() float64 { return s.GetFloat(domain.SettingL4UAHeuristicWeight, 20) }
