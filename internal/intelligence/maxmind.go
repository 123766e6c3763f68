// Package intelligence implements the decision engine's IPIntel
// collaborator against local MaxMind databases.
package intelligence

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/maxminddb-golang"

	"github.com/autoguard/cloak/internal/decision"
)

type cityRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Traits struct {
		IsAnonymousProxy  bool `maxminddb:"is_anonymous_proxy"`
		IsAnonymousVPN    bool `maxminddb:"is_anonymous_vpn"`
		IsHostingProvider bool `maxminddb:"is_hosting_provider"`
		IsTorExitNode     bool `maxminddb:"is_tor_exit_node"`
	} `maxminddb:"traits"`
}

type asnRecord struct {
	AutonomousSystemNumber       int64  `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

// MaxMindIntel is the default decision.IPIntel adapter: a City database for
// country/city/anonymizer traits, and an optional ASN database for
// ISP/datacenter attribution. Missing databases degrade to empty results
// rather than erroring, per the decision engine's fail-safe contract.
type MaxMindIntel struct {
	mu   sync.RWMutex
	city *maxminddb.Reader
	asn  *maxminddb.Reader
}

// Open loads the City and (optionally empty-path) ASN databases.
func Open(cityPath, asnPath string) (*MaxMindIntel, error) {
	m := &MaxMindIntel{}
	if cityPath != "" {
		r, err := maxminddb.Open(cityPath)
		if err != nil {
			return nil, fmt.Errorf("open city db: %w", err)
		}
		m.city = r
	}
	if asnPath != "" {
		r, err := maxminddb.Open(asnPath)
		if err != nil {
			return nil, fmt.Errorf("open asn db: %w", err)
		}
		m.asn = r
	}
	return m, nil
}

func (m *MaxMindIntel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	if m.city != nil {
		if err := m.city.Close(); err != nil {
			firstErr = err
		}
	}
	if m.asn != nil {
		if err := m.asn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Lookup satisfies decision.IPIntel. It never returns an error for a
// missing database — only for a malformed input IP — since the engine's
// L2 already treats a lookup error as "continue without score contribution".
func (m *MaxMindIntel) Lookup(ctx context.Context, ip string) (decision.IPIntelResult, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return decision.IPIntelResult{}, fmt.Errorf("intelligence: invalid ip %q", ip)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result decision.IPIntelResult

	if m.city != nil {
		var rec cityRecord
		if err := m.city.Lookup(parsed, &rec); err == nil {
			result.Country = strings.ToUpper(rec.Country.ISOCode)
			if name, ok := rec.City.Names["en"]; ok {
				result.City = name
			}
			result.IsProxy = rec.Traits.IsAnonymousProxy
			result.IsVPN = rec.Traits.IsAnonymousVPN
			result.IsTor = rec.Traits.IsTorExitNode
			result.IsDatacenter = rec.Traits.IsHostingProvider
		}
	}

	if m.asn != nil {
		var rec asnRecord
		if err := m.asn.Lookup(parsed, &rec); err == nil {
			result.ASN = rec.AutonomousSystemNumber
			result.ISP = rec.AutonomousSystemOrganization
		}
	}

	return result, nil
}
