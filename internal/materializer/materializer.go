package materializer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/xxh3"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/pkg/logger"
)

// Source is the Authoritative Store's read side the materializer depends
// on — satisfied by *postgres.Store.
type Source interface {
	ListEffectiveRules(ctx context.Context, family domain.RuleFamily) (any, error)
	DeactivateExpiredRules(ctx context.Context) (map[domain.RuleFamily]int64, error)
}

// replaceSetScript atomically empties key and repopulates it from ARGV, so
// readers never observe a key that exists but is half-written. Modeled on
// the worker package's pre-compiled redis.Script rate-limit pattern.
var replaceSetScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
if #ARGV > 0 then
	redis.call("SADD", KEYS[1], unpack(ARGV))
end
return #ARGV
`)

var replaceHashScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
if #ARGV > 0 then
	redis.call("HSET", KEYS[1], unpack(ARGV))
end
return #ARGV / 2
`)

var replaceListScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
if #ARGV > 0 then
	redis.call("RPUSH", KEYS[1], unpack(ARGV))
end
return #ARGV
`)

type scopeHashKey struct {
	family, scope string
}

// Materializer rebuilds B's blacklist keys from A on a schedule or
// on-demand, one family at a time, per scope.
type Materializer struct {
	source Source
	rdb    *redis.Client
	hashes map[scopeHashKey]uint64

	mu      sync.RWMutex
	lastRun time.Time
}

func New(source Source, rdb *redis.Client) *Materializer {
	return &Materializer{source: source, rdb: rdb, hashes: map[scopeHashKey]uint64{}}
}

// FamilyCounts reports how many rules were written per scope for one
// family's rebuild.
type FamilyCounts map[string]int

// MaterializeAll rebuilds every family for every scope, returning the
// per-family scope counts.
func (m *Materializer) MaterializeAll(ctx context.Context) (map[domain.RuleFamily]FamilyCounts, error) {
	out := map[domain.RuleFamily]FamilyCounts{}
	for _, family := range []domain.RuleFamily{
		domain.FamilyIP, domain.FamilyCIDR, domain.FamilyUA, domain.FamilyISP, domain.FamilyGeo,
	} {
		counts, err := m.MaterializeFamily(ctx, family)
		if err != nil {
			return out, fmt.Errorf("materialize %s: %w", family, err)
		}
		out[family] = counts
	}
	m.mu.Lock()
	m.lastRun = time.Now()
	m.mu.Unlock()
	return out, nil
}

// LastRun reports when MaterializeAll last completed successfully, the zero
// time if it has never run. Used by the health endpoint to flag a stale B.
func (m *Materializer) LastRun() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRun
}

// MaterializeFamily rebuilds one family across all scopes found in the
// fetched rule set.
func (m *Materializer) MaterializeFamily(ctx context.Context, family domain.RuleFamily) (FamilyCounts, error) {
	rules, err := m.source.ListEffectiveRules(ctx, family)
	if err != nil {
		return nil, fmt.Errorf("list effective rules: %w", err)
	}

	switch family {
	case domain.FamilyIP:
		return m.materializeIP(ctx, rules.([]domain.IPRule))
	case domain.FamilyCIDR:
		return m.materializeCIDR(ctx, rules.([]domain.CIDRRule))
	case domain.FamilyUA:
		return m.materializeUA(ctx, rules.([]domain.UARule))
	case domain.FamilyISP:
		return m.materializeISP(ctx, rules.([]domain.ISPRule))
	case domain.FamilyGeo:
		return m.materializeGeo(ctx, rules.([]domain.GeoRule))
	default:
		return nil, fmt.Errorf("unknown rule family %q", family)
	}
}

// CleanupExpired deactivates expired rules in A, then re-materializes only
// the families that had rows touched.
func (m *Materializer) CleanupExpired(ctx context.Context) (map[domain.RuleFamily]int64, error) {
	touched, err := m.source.DeactivateExpiredRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("deactivate expired rules: %w", err)
	}
	for family, n := range touched {
		if n == 0 {
			continue
		}
		if _, err := m.MaterializeFamily(ctx, family); err != nil {
			logger.Warn("materializer: re-materialize after cleanup failed", "family", string(family), "error", err.Error())
		}
	}
	return touched, nil
}

func (m *Materializer) materializeIP(ctx context.Context, rules []domain.IPRule) (FamilyCounts, error) {
	byScope := map[string][]string{}
	for _, r := range rules {
		scope := r.Scope()
		byScope[scope] = append(byScope[scope], r.IPAddress)
	}
	counts := FamilyCounts{}
	for scope, ips := range byScope {
		n, err := m.replaceSetIdempotent(ctx, cacheredis.BlacklistIPKey(scope), "ip", scope, ips)
		if err != nil {
			return nil, err
		}
		counts[scope] = n
	}
	return counts, nil
}

func (m *Materializer) materializeCIDR(ctx context.Context, rules []domain.CIDRRule) (FamilyCounts, error) {
	byScope := map[string][]string{}
	for _, r := range rules {
		scope := r.Scope()
		byScope[scope] = append(byScope[scope], r.CIDR)
	}
	counts := FamilyCounts{}
	for scope, cidrs := range byScope {
		sort.Strings(cidrs)
		payload, err := json.Marshal(cidrs)
		if err != nil {
			return nil, fmt.Errorf("marshal cidr scope %s: %w", scope, err)
		}
		if m.scopeUnchanged("cidr", scope, payload) {
			counts[scope] = len(cidrs)
			continue
		}
		if err := m.rdb.Set(ctx, cacheredis.BlacklistIPRangesKey(scope), payload, 0).Err(); err != nil {
			return nil, fmt.Errorf("write cidr scope %s: %w", scope, err)
		}
		m.storeScopeHash("cidr", scope, payload)
		counts[scope] = len(cidrs)
	}
	return counts, nil
}

func (m *Materializer) materializeUA(ctx context.Context, rules []domain.UARule) (FamilyCounts, error) {
	type record struct {
		Pattern string             `json:"pattern"`
		Type    domain.PatternType `json:"type"`
	}
	byScope := map[string][]record{}
	for _, r := range rules {
		scope := r.Scope()
		byScope[scope] = append(byScope[scope], record{Pattern: r.Pattern, Type: r.PatternType})
	}
	counts := FamilyCounts{}
	for scope, recs := range byScope {
		items := make([]string, 0, len(recs))
		for _, rec := range recs {
			payload, err := json.Marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("marshal ua rule: %w", err)
			}
			items = append(items, string(payload))
		}
		n, err := m.replaceListIdempotent(ctx, cacheredis.BlacklistUAKey(scope), "ua", scope, items)
		if err != nil {
			return nil, err
		}
		counts[scope] = n
	}
	return counts, nil
}

func (m *Materializer) materializeISP(ctx context.Context, rules []domain.ISPRule) (FamilyCounts, error) {
	asnsByScope := map[string][]string{}
	namesByScope := map[string]map[string]string{}
	for _, r := range rules {
		scope := r.Scope()
		if r.ASN != nil {
			asnsByScope[scope] = append(asnsByScope[scope], strconv.FormatInt(*r.ASN, 10))
		}
		if r.ISPName != nil {
			if namesByScope[scope] == nil {
				namesByScope[scope] = map[string]string{}
			}
			namesByScope[scope][*r.ISPName] = "1"
		}
	}
	counts := FamilyCounts{}
	scopes := map[string]struct{}{}
	for s := range asnsByScope {
		scopes[s] = struct{}{}
	}
	for s := range namesByScope {
		scopes[s] = struct{}{}
	}
	for scope := range scopes {
		n, err := m.replaceSetIdempotent(ctx, cacheredis.BlacklistISPKey(scope), "isp", scope, asnsByScope[scope])
		if err != nil {
			return nil, err
		}
		if _, err := m.replaceHashIdempotent(ctx, cacheredis.BlacklistISPNamesKey(scope), "ispnames", scope, namesByScope[scope]); err != nil {
			return nil, err
		}
		counts[scope] = n
	}
	return counts, nil
}

func (m *Materializer) materializeGeo(ctx context.Context, rules []domain.GeoRule) (FamilyCounts, error) {
	byScope := map[string]map[string]string{}
	for _, r := range rules {
		scope := r.Scope()
		if byScope[scope] == nil {
			byScope[scope] = map[string]string{}
		}
		key := r.CountryCode
		if r.RegionCode != nil {
			key = r.CountryCode + ":" + *r.RegionCode
		}
		byScope[scope][key] = string(r.BlockType)
	}
	counts := FamilyCounts{}
	for scope, fields := range byScope {
		n, err := m.replaceHashIdempotent(ctx, cacheredis.BlacklistGeoKey(scope), "geo", scope, fields)
		if err != nil {
			return nil, err
		}
		counts[scope] = n
	}
	return counts, nil
}

func (m *Materializer) replaceSetIdempotent(ctx context.Context, key, family, scope string, members []string) (int, error) {
	sort.Strings(members)
	payload := []byte(fmt.Sprintf("%v", members))
	if m.scopeUnchanged(family, scope, payload) {
		return len(members), nil
	}
	argv := make([]any, len(members))
	for i, v := range members {
		argv[i] = v
	}
	if err := replaceSetScript.Run(ctx, m.rdb, []string{key}, argv...).Err(); err != nil {
		return 0, fmt.Errorf("replace set %s: %w", key, err)
	}
	m.storeScopeHash(family, scope, payload)
	return len(members), nil
}

func (m *Materializer) replaceListIdempotent(ctx context.Context, key, family, scope string, items []string) (int, error) {
	payload := []byte(fmt.Sprintf("%v", items))
	if m.scopeUnchanged(family, scope, payload) {
		return len(items), nil
	}
	argv := make([]any, len(items))
	for i, v := range items {
		argv[i] = v
	}
	if err := replaceListScript.Run(ctx, m.rdb, []string{key}, argv...).Err(); err != nil {
		return 0, fmt.Errorf("replace list %s: %w", key, err)
	}
	m.storeScopeHash(family, scope, payload)
	return len(items), nil
}

func (m *Materializer) replaceHashIdempotent(ctx context.Context, key, family, scope string, fields map[string]string) (int, error) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	argv := make([]any, 0, len(fields)*2)
	kv := make([]string, 0, len(fields)*2)
	for _, k := range names {
		argv = append(argv, k, fields[k])
		kv = append(kv, k, fields[k])
	}
	payload := []byte(fmt.Sprintf("%v", kv))
	if m.scopeUnchanged(family, scope, payload) {
		return len(fields), nil
	}
	if err := replaceHashScript.Run(ctx, m.rdb, []string{key}, argv...).Err(); err != nil {
		return 0, fmt.Errorf("replace hash %s: %w", key, err)
	}
	m.storeScopeHash(family, scope, payload)
	return len(fields), nil
}

// scopeUnchanged and storeScopeHash implement the xxh3 content-hash
// idempotence check: materializeAll() run twice with no A-mutations must
// leave B byte-identical and skip the replace-write (§8 round-trip
// property). The hash lives in-process only — a restart simply re-writes
// once, which is harmless since the replace scripts are themselves atomic.
func (m *Materializer) scopeUnchanged(family, scope string, payload []byte) bool {
	h := xxh3.Hash(payload)
	prev, ok := m.hashes[scopeHashKey{family, scope}]
	return ok && prev == h
}

func (m *Materializer) storeScopeHash(family, scope string, payload []byte) {
	m.hashes[scopeHashKey{family, scope}] = xxh3.Hash(payload)
}
