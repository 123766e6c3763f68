package decision

import (
	"context"
	"strings"
	"time"

	"github.com/autoguard/cloak/internal/domain"
)

// Request is the decision engine's input view of an inbound click.
type Request struct {
	IP        string
	UserAgent string
	Referer   string
	URL       string
	Headers   map[string]string
}

// OfferContext is the offer-scoped state decide() needs, read once by the
// caller (from the Fast Lookup Store's offer cache) before invoking decide.
type OfferContext struct {
	OfferID         int64
	UserID          int64
	CloakEnabled    bool
	TargetCountries []string
}

// DecisionRecord is decide()'s output, per spec.md §4.D.
type DecisionRecord struct {
	Decision         domain.Decision
	FraudScore       float64
	BlockedAtLayer   *domain.Layer
	Reason           string
	Details          map[string]any
	TrackingParams   TrackingParams
	ProcessingTimeMs int64
}

var moderationToolHosts = map[string]struct{}{
	"adclarity.com":    {},
	"whatrunswhere.com": {},
	"anstrex.com":      {},
}

var crawlerTokens = []string{
	"bot", "crawl", "spider", "slurp", "archiver", "scraper",
	"facebookexternalhit", "headlesschrome", "phantomjs", "puppeteer",
}

func layerPtr(l domain.Layer) *domain.Layer { return &l }

// evalL1 checks the materialized blacklist snapshot. Returns (blocked,
// scoreDelta, details).
func evalL1(req Request, snap BlacklistSnapshot) (blocked bool, blockedType, blockedValue string, scoreDelta float64) {
	if ip, ok := ParseIPv4(req.IP); ok {
		if _, hit := snap.IPs[req.IP]; hit {
			return true, "ipBlocked", req.IP, 0
		}
		if MatchAny(snap.CIDRs, ip) {
			return true, "ipBlocked", req.IP, 0
		}
	}

	for _, rec := range snap.UAs {
		if MatchUA(req.UserAgent, rec) {
			return true, "uaBlocked", rec.Pattern, 0
		}
	}

	return false, "", "", 0
}

func evalL1ISP(asn int64, snap BlacklistSnapshot) bool {
	_, hit := snap.ASNs[asn]
	return hit
}

// evalL1Geo returns (hardBlock, scoreDelta). highRiskWeight is the
// operator-tunable score added for a GeoHighRisk match, read from
// Settings.L1GeoHighRiskWeight rather than hardcoded.
func evalL1Geo(country, region string, snap BlacklistSnapshot, highRiskWeight float64) (bool, float64) {
	keys := []string{country}
	if region != "" {
		keys = append(keys, country+":"+region)
	}
	for _, k := range keys {
		switch snap.Geo[k] {
		case domain.GeoBlock:
			return true, 0
		case domain.GeoHighRisk:
			return false, highRiskWeight
		}
	}
	return false, 0
}

// evalL2 scores IP-intel flags. Returns (scoreDelta, errored).
func evalL2(intel IPIntelResult, weights settingsL2Weights) float64 {
	score := 0.0
	if intel.IsDatacenter {
		score += weights.datacenter
	}
	if intel.IsVPN {
		score += weights.vpn
	}
	if intel.IsProxy {
		score += weights.proxy
	}
	if intel.IsTor {
		score += weights.tor
	}
	if score > 100 {
		score = 100
	}
	return score
}

type settingsL2Weights struct {
	datacenter, vpn, proxy, tor float64
}

// evalL3 reports whether country is outside the offer's target set. An
// empty TargetCountries means "allow all".
func evalL3(country string, targetCountries []string) bool {
	if len(targetCountries) == 0 {
		return false
	}
	for _, c := range targetCountries {
		if strings.EqualFold(c, country) {
			return false
		}
	}
	return true
}

// evalL4 reports whether the UA looks like a crawler, headless browser, or
// is missing/empty.
func evalL4(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return true
	}
	lower := strings.ToLower(ua)
	for _, tok := range crawlerTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// evalL5 applies referer policy. hasTracking short-circuits to pass.
// Returns (scoreDelta, isModerationTool).
func evalL5(referer string, hasTracking bool) (float64, bool) {
	if hasTracking {
		return 0, false
	}
	if referer == "" {
		return 0, false
	}
	u := referer
	if idx := strings.Index(u, "://"); idx >= 0 {
		u = u[idx+3:]
	}
	if idx := strings.IndexAny(u, "/?#"); idx >= 0 {
		u = u[:idx]
	}
	host := strings.ToLower(u)
	if _, known := moderationToolHosts[host]; known {
		return 40, true
	}
	return 0, false
}

// deadlineRemaining returns the remaining duration until deadline, clamped
// to zero.
func deadlineRemaining(deadline time.Time) time.Duration {
	d := time.Until(deadline)
	if d < 0 {
		return 0
	}
	return d
}

func contextWithSubDeadline(parent context.Context, remaining time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, remaining)
}
