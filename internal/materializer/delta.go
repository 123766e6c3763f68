package materializer

import (
	"context"
	"strconv"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/pkg/logger"
)

// ApplyIPAdd mutates both A (via addRule) and B's scope key in the same
// request-handler call, per spec.md's on-demand-delta contract. A failure
// writing to B is logged, not returned: the next scheduled materialize
// reconciles it.
func (m *Materializer) ApplyIPAdd(ctx context.Context, scope, ip string) {
	if err := m.rdb.SAdd(ctx, cacheredis.BlacklistIPKey(scope), ip).Err(); err != nil {
		logger.Warn("materializer: on-demand ip add to fast store failed", "scope", scope, "error", err.Error())
	}
}

// ApplyIPRemove is the delta-remove counterpart of ApplyIPAdd.
func (m *Materializer) ApplyIPRemove(ctx context.Context, scope, ip string) {
	if err := m.rdb.SRem(ctx, cacheredis.BlacklistIPKey(scope), ip).Err(); err != nil {
		logger.Warn("materializer: on-demand ip remove from fast store failed", "scope", scope, "error", err.Error())
	}
}

// ApplyISPAdd adds a single ASN to a scope's ISP set without a full
// family rebuild.
func (m *Materializer) ApplyISPAdd(ctx context.Context, scope string, asn int64) {
	if err := m.rdb.SAdd(ctx, cacheredis.BlacklistISPKey(scope), strconv.FormatInt(asn, 10)).Err(); err != nil {
		logger.Warn("materializer: on-demand isp add to fast store failed", "scope", scope, "error", err.Error())
	}
}

// ApplyISPRemove is the delta-remove counterpart of ApplyISPAdd.
func (m *Materializer) ApplyISPRemove(ctx context.Context, scope string, asn int64) {
	if err := m.rdb.SRem(ctx, cacheredis.BlacklistISPKey(scope), strconv.FormatInt(asn, 10)).Err(); err != nil {
		logger.Warn("materializer: on-demand isp remove from fast store failed", "scope", scope, "error", err.Error())
	}
}

// ApplyGeoSet mutates a single country/region field in a scope's geo hash.
func (m *Materializer) ApplyGeoSet(ctx context.Context, scope, key string, blockType domain.GeoBlockType) {
	if err := m.rdb.HSet(ctx, cacheredis.BlacklistGeoKey(scope), key, string(blockType)).Err(); err != nil {
		logger.Warn("materializer: on-demand geo set to fast store failed", "scope", scope, "error", err.Error())
	}
}

// ApplyGeoRemove deletes a single field from a scope's geo hash.
func (m *Materializer) ApplyGeoRemove(ctx context.Context, scope, key string) {
	if err := m.rdb.HDel(ctx, cacheredis.BlacklistGeoKey(scope), key).Err(); err != nil {
		logger.Warn("materializer: on-demand geo remove from fast store failed", "scope", scope, "error", err.Error())
	}
}
