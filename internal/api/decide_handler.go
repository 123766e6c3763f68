package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/decision"
	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/pkg/httputil"
	"github.com/autoguard/cloak/internal/pkg/logger"
	"github.com/autoguard/cloak/internal/store/postgres"
)

// offerCacheTTL bounds how long a routing-entry cache hit is trusted before
// falling back to A again. Mutations (domain verify, offer edits) also
// actively invalidate these keys, so this TTL is a safety net, not the
// primary invalidation path.
const offerCacheTTL = 5 * time.Minute

// DecideRequest is POST /v1/decide's body: everything the edge process
// observed about one inbound click.
type DecideRequest struct {
	Host      string            `json:"host"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"userAgent"`
	Referer   string            `json:"referer"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// DecideResponse mirrors decision.DecisionRecord, plus the resolved offer
// ID so the edge process knows which pre-generated page tree to serve from.
type DecideResponse struct {
	OfferID          int64          `json:"offerId"`
	Decision         domain.Decision `json:"decision"`
	FraudScore       float64         `json:"fraudScore"`
	BlockedAtLayer   *domain.Layer   `json:"blockedAtLayer,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

// routingEntry is the cached, JSON-encoded shape of an offer:by* key —
// intentionally a narrow projection of domain.Offer, since the hot path
// only ever needs these four fields.
type routingEntry struct {
	OfferID         int64    `json:"offerId"`
	UserID          int64    `json:"userId"`
	CloakEnabled    bool     `json:"cloakEnabled"`
	TargetCountries []string `json:"targetCountries"`
}

// HandleDecide resolves the requesting host to an offer (cache-aside
// against B, falling back to A), then runs the Decision Engine against it.
//
//	POST /v1/decide
func (h *Handlers) HandleDecide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Host == "" || req.IP == "" {
		httputil.BadRequest(w, "host and ip are required")
		return
	}

	offer, err := h.resolveOffer(r.Context(), req.Host)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "no offer routes to this host")
		return
	}
	if err != nil {
		logger.Warn("api: offer resolution failed", "host", req.Host, "error", err.Error())
		httputil.InternalError(w, err)
		return
	}

	rec := h.engine.Decide(r.Context(), decision.Request{
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Referer:   req.Referer,
		URL:       req.URL,
		Headers:   req.Headers,
	}, decision.OfferContext{
		OfferID:         offer.OfferID,
		UserID:          offer.UserID,
		CloakEnabled:    offer.CloakEnabled,
		TargetCountries: offer.TargetCountries,
	})

	httputil.OK(w, DecideResponse{
		OfferID:          offer.OfferID,
		Decision:         rec.Decision,
		FraudScore:       rec.FraudScore,
		BlockedAtLayer:   rec.BlockedAtLayer,
		Reason:           rec.Reason,
		ProcessingTimeMs: rec.ProcessingTimeMs,
	})
}

// resolveOffer looks up the routing entry for host, trying the custom-domain
// key, falling back to the subdomain key (host's first label), reading
// through to A on a cache miss and repopulating B.
func (h *Handlers) resolveOffer(ctx context.Context, host string) (routingEntry, error) {
	key := cacheredis.OfferByDomainKey(host)
	if entry, ok := h.readRoutingCache(ctx, key); ok {
		return entry, nil
	}

	offer, err := h.store.GetOfferByCustomDomain(ctx, host)
	if errors.Is(err, postgres.ErrNotFound) {
		subdomain := firstLabel(host)
		return h.resolveBySubdomain(ctx, subdomain)
	}
	if err != nil {
		return routingEntry{}, err
	}
	return h.cacheAndReturn(ctx, key, offer), nil
}

func (h *Handlers) resolveBySubdomain(ctx context.Context, subdomain string) (routingEntry, error) {
	key := cacheredis.OfferBySubdomainKey(subdomain)
	if entry, ok := h.readRoutingCache(ctx, key); ok {
		return entry, nil
	}
	offer, err := h.store.GetOfferBySubdomain(ctx, subdomain)
	if err != nil {
		return routingEntry{}, err
	}
	return h.cacheAndReturn(ctx, key, offer), nil
}

func (h *Handlers) readRoutingCache(ctx context.Context, key string) (routingEntry, bool) {
	raw, err := h.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("api: routing cache read failed", "key", key, "error", err.Error())
		}
		return routingEntry{}, false
	}
	var entry routingEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logger.Warn("api: routing cache decode failed", "key", key, "error", err.Error())
		return routingEntry{}, false
	}
	return entry, true
}

func (h *Handlers) cacheAndReturn(ctx context.Context, key string, offer *domain.Offer) routingEntry {
	entry := routingEntry{
		OfferID:         offer.ID,
		UserID:          offer.UserID,
		CloakEnabled:    offer.CloakEnabled,
		TargetCountries: offer.TargetCountries,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		logger.Warn("api: routing cache encode failed", "key", key, "error", err.Error())
		return entry
	}
	if err := h.rdb.Set(ctx, key, payload, offerCacheTTL).Err(); err != nil {
		logger.Warn("api: routing cache write failed", "key", key, "error", err.Error())
	}
	return entry
}

func firstLabel(host string) string {
	for i, c := range host {
		if c == '.' {
			return host[:i]
		}
	}
	return host
}
