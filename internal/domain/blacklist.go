package domain

import (
	"strconv"
	"time"
)

// RuleFamily names one of the five blacklist rule families materialized
// into the Fast Lookup Store.
type RuleFamily string

const (
	FamilyIP      RuleFamily = "ip"
	FamilyCIDR    RuleFamily = "cidr"
	FamilyUA      RuleFamily = "ua"
	FamilyISP     RuleFamily = "isp"
	FamilyGeo     RuleFamily = "geo"
)

// PatternType selects how a UA rule's Pattern is matched against the
// request's User-Agent header.
type PatternType string

const (
	PatternExact    PatternType = "exact"
	PatternContains PatternType = "contains"
	PatternRegex    PatternType = "regex"
)

// GeoBlockType distinguishes a hard country/region block from a
// score-additive high-risk flag.
type GeoBlockType string

const (
	GeoBlock     GeoBlockType = "block"
	GeoHighRisk  GeoBlockType = "high_risk"
)

// RuleMeta is embedded in every blacklist rule family: scope, activity,
// provenance, and expiry.
type RuleMeta struct {
	ID        int64
	UserID    *int64 // nil = global scope
	IsActive  bool
	Source    string
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Effective reports whether a rule is currently enforceable: active and
// not expired.
func (m RuleMeta) Effective(now time.Time) bool {
	return m.IsActive && (m.ExpiresAt == nil || m.ExpiresAt.After(now))
}

// Scope returns the materialized-key scope string for this rule:
// "global" or "user:<id>".
func (m RuleMeta) Scope() string {
	if m.UserID == nil {
		return "global"
	}
	return "user:" + strconv.FormatInt(*m.UserID, 10)
}

// IPRule blacklists a single IPv4 address.
type IPRule struct {
	RuleMeta
	IPAddress string
}

// CIDRRule blacklists an IPv4 network range.
type CIDRRule struct {
	RuleMeta
	CIDR string // e.g. "198.51.100.0/24"
}

// UARule blacklists requests whose User-Agent header matches Pattern
// according to PatternType.
type UARule struct {
	RuleMeta
	Pattern     string
	PatternType PatternType
}

// ISPRule blacklists a network by ASN and/or ISP name. At least one of
// ASN/ISPName is required.
type ISPRule struct {
	RuleMeta
	ASN     *int64
	ISPName *string
}

// GeoRule blocks or flags a country (and optionally a region within it).
type GeoRule struct {
	RuleMeta
	CountryCode string
	RegionCode  *string
	BlockType   GeoBlockType
}
