package decision

import "context"

// IPIntelResult is the abstract IP-intelligence lookup result L2 consumes.
// spec.md treats the actual provider as an external collaborator; the
// concrete adapter lives in internal/intelligence.
type IPIntelResult struct {
	Country      string
	City         string
	ISP          string
	ASN          int64
	IsDatacenter bool
	IsVPN        bool
	IsProxy      bool
	IsTor        bool
}

// IPIntel is the decision engine's abstract IP-intelligence collaborator.
type IPIntel interface {
	Lookup(ctx context.Context, ip string) (IPIntelResult, error)
}
