package decision

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/pkg/logger"
)

// uaRuleRecord is the tagged-variant form a UA rule takes inside B's
// `uas:<scope>` list, preserving PatternType so the hot path never
// re-parses or re-infers match semantics per request.
type uaRuleRecord struct {
	Pattern string             `json:"pattern"`
	Type    domain.PatternType `json:"type"`
}

// BlacklistSnapshot is everything L1 needs for one scope pair (global +
// user:<id>), fetched once per request from the Fast Lookup Store.
type BlacklistSnapshot struct {
	IPs        map[string]struct{}
	CIDRs      []CIDRRange
	UAs        []uaRuleRecord
	ASNs       map[int64]struct{}
	Geo        map[string]domain.GeoBlockType
}

// BlacklistReader loads a BlacklistSnapshot by merging the global scope and
// a user scope, mirroring spec.md §4.B's key schema.
type BlacklistReader struct {
	rdb *redis.Client
}

func NewBlacklistReader(rdb *redis.Client) *BlacklistReader {
	return &BlacklistReader{rdb: rdb}
}

// Load fetches both scopes' keys. It never returns a partial read as an
// error — any single key miss degrades to an empty set for that key,
// because an unmaterialized key must never itself block a request; the
// caller's deadline governs whether Load ran at all.
func (r *BlacklistReader) Load(ctx context.Context, userID int64) BlacklistSnapshot {
	scopes := []string{cacheredis.GlobalScope, cacheredis.UserScope(userID)}

	snap := BlacklistSnapshot{
		IPs:  map[string]struct{}{},
		ASNs: map[int64]struct{}{},
		Geo:  map[string]domain.GeoBlockType{},
	}

	for _, scope := range scopes {
		r.loadIPs(ctx, scope, &snap)
		r.loadCIDRs(ctx, scope, &snap)
		r.loadUAs(ctx, scope, &snap)
		r.loadISPs(ctx, scope, &snap)
		r.loadGeo(ctx, scope, &snap)
	}
	return snap
}

func (r *BlacklistReader) loadIPs(ctx context.Context, scope string, snap *BlacklistSnapshot) {
	ips, err := r.rdb.SMembers(ctx, cacheredis.BlacklistIPKey(scope)).Result()
	if err != nil && err != redis.Nil {
		logger.Warn("decision: load ip blacklist failed", "scope", scope, "error", err.Error())
		return
	}
	for _, ip := range ips {
		snap.IPs[ip] = struct{}{}
	}
}

func (r *BlacklistReader) loadCIDRs(ctx context.Context, scope string, snap *BlacklistSnapshot) {
	raw, err := r.rdb.Get(ctx, cacheredis.BlacklistIPRangesKey(scope)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("decision: load cidr blacklist failed", "scope", scope, "error", err.Error())
		}
		return
	}
	var cidrs []string
	if err := json.Unmarshal([]byte(raw), &cidrs); err != nil {
		logger.Warn("decision: malformed cidr blacklist json", "scope", scope, "error", err.Error())
		return
	}
	for _, c := range cidrs {
		parsed, err := ParseCIDR(c)
		if err != nil {
			continue
		}
		snap.CIDRs = append(snap.CIDRs, parsed)
	}
}

func (r *BlacklistReader) loadUAs(ctx context.Context, scope string, snap *BlacklistSnapshot) {
	items, err := r.rdb.LRange(ctx, cacheredis.BlacklistUAKey(scope), 0, -1).Result()
	if err != nil && err != redis.Nil {
		logger.Warn("decision: load ua blacklist failed", "scope", scope, "error", err.Error())
		return
	}
	for _, item := range items {
		var rec uaRuleRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		snap.UAs = append(snap.UAs, rec)
	}
}

func (r *BlacklistReader) loadISPs(ctx context.Context, scope string, snap *BlacklistSnapshot) {
	asns, err := r.rdb.SMembers(ctx, cacheredis.BlacklistISPKey(scope)).Result()
	if err != nil && err != redis.Nil {
		logger.Warn("decision: load isp blacklist failed", "scope", scope, "error", err.Error())
		return
	}
	for _, a := range asns {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			continue
		}
		snap.ASNs[n] = struct{}{}
	}
}

func (r *BlacklistReader) loadGeo(ctx context.Context, scope string, snap *BlacklistSnapshot) {
	entries, err := r.rdb.HGetAll(ctx, cacheredis.BlacklistGeoKey(scope)).Result()
	if err != nil && err != redis.Nil {
		logger.Warn("decision: load geo blacklist failed", "scope", scope, "error", err.Error())
		return
	}
	for k, v := range entries {
		snap.Geo[k] = domain.GeoBlockType(v)
	}
}

// MatchUA applies patternType-specific matching semantics. A malformed
// regex is treated as non-matching rather than raising, per spec.md's
// boundary-behavior requirement.
func MatchUA(ua string, rec uaRuleRecord) bool {
	switch rec.Type {
	case domain.PatternExact:
		return ua == rec.Pattern
	case domain.PatternContains:
		return strings.Contains(strings.ToLower(ua), strings.ToLower(rec.Pattern))
	case domain.PatternRegex:
		re, err := regexp.Compile("(?i)" + rec.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(ua)
	default:
		return false
	}
}
