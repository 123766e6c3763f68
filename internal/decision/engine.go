package decision

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/pkg/logger"
)

// Engine is the stateless, per-request Decision Engine (component D). It
// holds no per-request mutable state; Decide is safe for concurrent use.
type Engine struct {
	rdb       *redis.Client
	blacklist *BlacklistReader
	settings  *Settings
	intel     IPIntel
}

func NewEngine(rdb *redis.Client, settings *Settings, intel IPIntel) *Engine {
	return &Engine{
		rdb:       rdb,
		blacklist: NewBlacklistReader(rdb),
		settings:  settings,
		intel:     intel,
	}
}

// Decide runs the layered fraud check and appends the resulting CloakLog to
// queue:cloakLogs. It never returns an error to the caller: every failure
// category collapses into a fail-safe DecisionRecord.
func (e *Engine) Decide(ctx context.Context, req Request, offer OfferContext) DecisionRecord {
	start := time.Now()
	deadline := start.Add(e.settings.DecisionTimeout())

	tracking := ParseTrackingParams(req.URL)

	rec := DecisionRecord{
		Decision:       domain.DecisionMoney,
		TrackingParams: tracking,
		Details:        map[string]any{},
	}

	if !offer.CloakEnabled {
		rec.Details["cloakDisabled"] = true
		rec.ProcessingTimeMs = time.Since(start).Milliseconds()
		e.appendLog(ctx, req, offer, rec)
		return rec
	}

	if time.Now().After(deadline) {
		return e.timeoutRecord(ctx, req, offer, tracking, start)
	}

	snap := e.blacklist.Load(ctx, offer.UserID)
	if time.Now().After(deadline) {
		return e.timeoutRecord(ctx, req, offer, tracking, start)
	}

	// L2 data gathering happens early because L1's geo check and L3's
	// country-targeting check both need the resolved country; only the
	// score-threshold evaluation below is attributed to L2.
	var intel IPIntelResult
	var intelErr error
	if e.settings.EnableIPCheck() && e.intel != nil {
		sub, cancel := contextWithSubDeadline(ctx, deadlineRemaining(deadline))
		intel, intelErr = e.intel.Lookup(sub, req.IP)
		cancel()
		if intelErr != nil {
			rec.Details["l2"] = map[string]any{"error": intelErr.Error()}
		}
	}

	if time.Now().After(deadline) {
		return e.timeoutRecord(ctx, req, offer, tracking, start)
	}

	// --- L1: blacklist ---
	if blocked, blockedType, blockedValue, _ := evalL1(req, snap); blocked {
		rec.Details["l1"] = map[string]any{"blockedType": blockedType, "blockedValue": blockedValue}
		return e.finishBlocked(ctx, req, offer, rec, domain.LayerL1, start, intel)
	}

	if intel.ASN != 0 && evalL1ISP(intel.ASN, snap) {
		rec.Details["l1"] = map[string]any{"blockedType": "ispBlocked", "blockedValue": intel.ASN}
		return e.finishBlocked(ctx, req, offer, rec, domain.LayerL1, start, intel)
	}

	if hardBlock, geoScore := evalL1Geo(intel.Country, "", snap, e.settings.L1GeoHighRiskWeight()); hardBlock {
		rec.Details["l1"] = map[string]any{"blockedType": "geoBlocked", "blockedValue": intel.Country}
		return e.finishBlocked(ctx, req, offer, rec, domain.LayerL1, start, intel)
	} else if geoScore > 0 {
		rec.FraudScore += geoScore
	}

	if time.Now().After(deadline) {
		return e.timeoutRecord(ctx, req, offer, tracking, start)
	}

	// --- L2: IP intelligence scoring ---
	if e.settings.EnableIPCheck() && intelErr == nil && e.intel != nil {
		weights := settingsL2Weights{
			datacenter: e.settings.L2DatacenterWeight(),
			vpn:        e.settings.L2VPNWeight(),
			proxy:      e.settings.L2ProxyWeight(),
			tor:        e.settings.L2TorWeight(),
		}
		delta := evalL2(intel, weights)
		rec.FraudScore += delta
		if rec.FraudScore >= e.settings.SafeModeThreshold() {
			return e.finishBlocked(ctx, req, offer, rec, domain.LayerL2, start, intel)
		}
	}

	if time.Now().After(deadline) {
		return e.timeoutRecord(ctx, req, offer, tracking, start)
	}

	// --- L3: geo targeting ---
	if e.settings.EnableGeoCheck() && evalL3(intel.Country, offer.TargetCountries) {
		rec.Reason = "geo_not_targeted"
		return e.finishBlocked(ctx, req, offer, rec, domain.LayerL3, start, intel)
	}

	if time.Now().After(deadline) {
		return e.timeoutRecord(ctx, req, offer, tracking, start)
	}

	// --- L4: UA heuristics ---
	if e.settings.EnableUACheck() && evalL4(req.UserAgent) {
		rec.FraudScore += e.settings.L4UAHeuristicWeight()
		if rec.FraudScore >= e.settings.SafeModeThreshold() {
			return e.finishBlocked(ctx, req, offer, rec, domain.LayerL4, start, intel)
		}
	}

	if time.Now().After(deadline) {
		return e.timeoutRecord(ctx, req, offer, tracking, start)
	}

	// --- L5: referer policy ---
	if e.settings.EnableRefererCheck() {
		delta, isModTool := evalL5(req.Referer, tracking.HasTracking)
		rec.FraudScore += delta
		if isModTool && rec.FraudScore >= e.settings.SafeModeThreshold() {
			return e.finishBlocked(ctx, req, offer, rec, domain.LayerL5, start, intel)
		}
	}

	// --- final decision ---
	if rec.FraudScore >= e.settings.SafeModeThreshold() {
		return e.finishBlocked(ctx, req, offer, rec, domain.LayerL5, start, intel)
	}

	rec.Decision = domain.DecisionMoney
	rec.ProcessingTimeMs = time.Since(start).Milliseconds()
	e.appendLog(ctx, req, offer, rec, withIntel(intel))
	return rec
}

func (e *Engine) finishBlocked(ctx context.Context, req Request, offer OfferContext, rec DecisionRecord, layer domain.Layer, start time.Time, intel IPIntelResult) DecisionRecord {
	rec.Decision = domain.DecisionSafe
	rec.BlockedAtLayer = layerPtr(layer)
	rec.ProcessingTimeMs = time.Since(start).Milliseconds()
	e.appendLog(ctx, req, offer, rec, withIntel(intel))
	return rec
}

func (e *Engine) timeoutRecord(ctx context.Context, req Request, offer OfferContext, tracking TrackingParams, start time.Time) DecisionRecord {
	rec := DecisionRecord{
		Decision:       domain.DecisionSafe,
		BlockedAtLayer: layerPtr(domain.LayerTimeout),
		Reason:         "deadline_exceeded",
		Details:        map[string]any{},
		TrackingParams: tracking,
	}
	rec.ProcessingTimeMs = time.Since(start).Milliseconds()
	e.appendLog(ctx, req, offer, rec)
	return rec
}

type logOption func(*domain.CloakLog)

func withIntel(intel IPIntelResult) logOption {
	return func(l *domain.CloakLog) {
		if intel.Country != "" {
			l.IPCountry = &intel.Country
		}
		if intel.City != "" {
			l.IPCity = &intel.City
		}
		if intel.ISP != "" {
			l.IPISP = &intel.ISP
		}
		if intel.ASN != 0 {
			l.IPASN = &intel.ASN
		}
		l.IsDatacenter = intel.IsDatacenter
		l.IsVPN = intel.IsVPN
		l.IsProxy = intel.IsProxy
	}
}

// appendLog builds a CloakLog and pushes it onto queue:cloakLogs. The hot
// path never writes to the Authoritative Store directly; E's log flusher
// batch-drains this list.
func (e *Engine) appendLog(ctx context.Context, req Request, offer OfferContext, rec DecisionRecord, opts ...logOption) {
	log := domain.CloakLog{
		UserID:            offer.UserID,
		OfferID:           offer.OfferID,
		IPAddress:         req.IP,
		UserAgent:         req.UserAgent,
		RequestURL:        req.URL,
		Decision:          rec.Decision,
		FraudScore:        rec.FraudScore,
		BlockedAtLayer:    rec.BlockedAtLayer,
		DetectionDetails:  rec.Details,
		ProcessingTimeMs:  rec.ProcessingTimeMs,
		HasTrackingParams: rec.TrackingParams.HasTracking,
		CreatedAt:         time.Now(),
	}
	if req.Referer != "" {
		referer := req.Referer
		log.Referer = &referer
	}
	if rec.Reason != "" {
		reason := rec.Reason
		log.DecisionReason = &reason
	}
	if rec.TrackingParams.GCLID != "" {
		gclid := rec.TrackingParams.GCLID
		log.GCLID = &gclid
	}
	for _, opt := range opts {
		opt(&log)
	}

	payload, err := json.Marshal(log)
	if err != nil {
		logger.Warn("decision: marshal cloak log failed", "error", err.Error())
		return
	}
	if err := e.rdb.LPush(ctx, cacheredis.QueueCloakLogs, payload).Err(); err != nil {
		logger.Warn("decision: enqueue cloak log failed", "error", err.Error())
	}
}
