package materializer

import (
	"context"
	"testing"

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

type stubSource struct {
	ip   []domain.IPRule
	cidr []domain.CIDRRule
	ua   []domain.UARule
	isp  []domain.ISPRule
	geo  []domain.GeoRule
}

func (s stubSource) ListEffectiveRules(ctx context.Context, family domain.RuleFamily) (any, error) {
	switch family {
	case domain.FamilyIP:
		return s.ip, nil
	case domain.FamilyCIDR:
		return s.cidr, nil
	case domain.FamilyUA:
		return s.ua, nil
	case domain.FamilyISP:
		return s.isp, nil
	case domain.FamilyGeo:
		return s.geo, nil
	}
	return nil, nil
}

func (s stubSource) DeactivateExpiredRules(ctx context.Context) (map[domain.RuleFamily]int64, error) {
	return nil, nil
}

func TestMaterializeIPWritesGlobalScope(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	src := stubSource{ip: []domain.IPRule{
		{RuleMeta: domain.RuleMeta{IsActive: true}, IPAddress: "1.2.3.4"},
		{RuleMeta: domain.RuleMeta{IsActive: true}, IPAddress: "5.6.7.8"},
	}}
	m := New(src, rdb)

	counts, err := m.MaterializeFamily(context.Background(), domain.FamilyIP)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[cacheredis.GlobalScope])

	members, err := rdb.SMembers(context.Background(), cacheredis.BlacklistIPKey(cacheredis.GlobalScope)).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1.2.3.4", "5.6.7.8"}, members)
}

func TestMaterializeIPSkipsRewriteWhenUnchanged(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	src := stubSource{ip: []domain.IPRule{
		{RuleMeta: domain.RuleMeta{IsActive: true}, IPAddress: "1.2.3.4"},
	}}
	m := New(src, rdb)
	ctx := context.Background()

	_, err := m.MaterializeFamily(ctx, domain.FamilyIP)
	require.NoError(t, err)

	// A second run with identical rule set must not error and must leave
	// the set with the same single member (idempotent).
	_, err = m.MaterializeFamily(ctx, domain.FamilyIP)
	require.NoError(t, err)

	members, err := rdb.SMembers(ctx, cacheredis.BlacklistIPKey(cacheredis.GlobalScope)).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.4"}, members)
}

func TestMaterializeCIDRStoresJSONScalar(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	src := stubSource{cidr: []domain.CIDRRule{
		{RuleMeta: domain.RuleMeta{IsActive: true}, CIDR: "198.51.100.0/24"},
	}}
	m := New(src, rdb)

	_, err := m.MaterializeFamily(context.Background(), domain.FamilyCIDR)
	require.NoError(t, err)

	raw, err := rdb.Get(context.Background(), cacheredis.BlacklistIPRangesKey(cacheredis.GlobalScope)).Result()
	require.NoError(t, err)
	assert.Contains(t, raw, "198.51.100.0/24")
}

func TestMaterializeGeoHash(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	src := stubSource{geo: []domain.GeoRule{
		{RuleMeta: domain.RuleMeta{IsActive: true}, CountryCode: "KP", BlockType: domain.GeoBlock},
	}}
	m := New(src, rdb)

	_, err := m.MaterializeFamily(context.Background(), domain.FamilyGeo)
	require.NoError(t, err)

	val, err := rdb.HGet(context.Background(), cacheredis.BlacklistGeoKey(cacheredis.GlobalScope), "KP").Result()
	require.NoError(t, err)
	assert.Equal(t, "block", val)
}

func TestParseSourceFeedClassifiesEntries(t *testing.T) {
	feed := `# comment
// also a comment
; and this
1.2.3.4
198.51.100.0/24,known scanner range
not-an-ip
`
	parsed := ParseSourceFeed(feed)
	assert.Equal(t, []string{"1.2.3.4"}, parsed.IPs)
	assert.Equal(t, []string{"198.51.100.0/24"}, parsed.CIDRs)
	assert.Equal(t, 1, parsed.Dropped)
}
