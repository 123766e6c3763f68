package domain

import "time"

// DomainVerifyStatus tracks an Offer's custom-domain verification state
// machine: none -> pending -> verified|failed.
type DomainVerifyStatus string

const (
	DomainNone     DomainVerifyStatus = "none"
	DomainPending  DomainVerifyStatus = "pending"
	DomainVerified DomainVerifyStatus = "verified"
	DomainFailed   DomainVerifyStatus = "failed"
)

// ScrapeStatus tracks the money-page scrape job's progress for an Offer.
type ScrapeStatus string

const (
	ScrapePending   ScrapeStatus = "pending"
	ScrapeScraping  ScrapeStatus = "scraping"
	ScrapeCompleted ScrapeStatus = "completed"
	ScrapeFailed    ScrapeStatus = "failed"
)

// OfferStatus is the publication lifecycle of an Offer.
type OfferStatus string

const (
	OfferDraft  OfferStatus = "draft"
	OfferActive OfferStatus = "active"
	OfferPaused OfferStatus = "paused"
)

// Offer is a single tracked campaign: a money page behind a subdomain or
// verified custom domain, cloaked against a set of target countries.
type Offer struct {
	ID                     int64
	UserID                 int64
	BrandName              string
	BrandURL               string
	AffiliateLink          string
	Subdomain              string
	CustomDomain           *string
	CustomDomainStatus     DomainVerifyStatus
	CustomDomainToken      *string
	CustomDomainVerifiedAt *time.Time
	CloakEnabled           bool
	TargetCountries        []string // ISO-3166-1 alpha-2
	ScrapeStatus           ScrapeStatus
	ScrapeError            *string
	ScrapedAt              *time.Time
	PageTitle              *string
	PageDescription        *string
	Status                 OfferStatus
	IsDeleted              bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// RoutingEntry is the denormalized projection of an Offer cached in the
// Fast Lookup Store under offer:bySubdomain/byDomain/byId, used on the
// decision engine's hot path instead of hitting the Authoritative Store.
type RoutingEntry struct {
	OfferID         int64    `json:"offerId"`
	UserID          int64    `json:"userId"`
	Subdomain       string   `json:"subdomain"`
	CustomDomain    string   `json:"customDomain,omitempty"`
	CloakEnabled    bool     `json:"cloakEnabled"`
	TargetCountries []string `json:"targetCountries"`
	AffiliateLink   string   `json:"affiliateLink"`
}
