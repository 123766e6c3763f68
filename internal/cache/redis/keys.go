package redis

import "fmt"

// GlobalScope is the literal scope string for rules that apply to every offer.
const GlobalScope = "global"

// UserScope returns the literal scope string for a single user's rules.
func UserScope(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Key schema, per spec.md §4.B — kept as named functions rather than ad-hoc
// fmt.Sprintf calls scattered across callers, so the contract lives in one
// place.
func BlacklistIPKey(scope string) string      { return "blacklist:ip:" + scope }
func BlacklistIPRangesKey(scope string) string { return "blacklist:ipranges:" + scope }
func BlacklistUAKey(scope string) string      { return "blacklist:uas:" + scope }
func BlacklistISPKey(scope string) string     { return "blacklist:isps:" + scope }
func BlacklistISPNamesKey(scope string) string { return "blacklist:isps:" + scope + ":names" }
func BlacklistGeoKey(scope string) string     { return "blacklist:geos:" + scope }

func OfferBySubdomainKey(subdomain string) string { return "offer:bySubdomain:" + subdomain }
func OfferByDomainKey(domainName string) string   { return "offer:byDomain:" + domainName }
func OfferByIDKey(id int64) string                { return fmt.Sprintf("offer:byId:%d", id) }

const (
	QueuePageGeneration           = "queue:pageGeneration"
	QueuePageGenerationProcessing = "queue:pageGeneration:processing"
	QueuePageGenerationDelayed    = "queue:pageGeneration:delayed"
	QueuePageGenerationDead       = "queue:pageGeneration:dead"
	QueueCloakLogs                = "queue:cloakLogs"
	QueueBlacklistSync            = "queue:blacklistSync"
	QueueDomainVerify             = "queue:domainVerify"
)

func PromptCacheKey(name string) string { return "prompt:" + name }
