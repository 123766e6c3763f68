package domain

import "time"

// PageType distinguishes the conversion page from the cloak fallback.
type PageType string

const (
	PageMoney PageType = "money"
	PageSafe  PageType = "safe"
)

// ContentSource records how a Page's HTML was produced.
type ContentSource string

const (
	ContentScraped   ContentSource = "scraped"
	ContentGenerated ContentSource = "generated"
	ContentManual    ContentSource = "manual"
)

// SafePageType selects the built-in template family for AI-generated safe
// pages. Required when PageType=safe and ContentSource=generated.
type SafePageType string

const (
	SafeReview     SafePageType = "review"
	SafeTips       SafePageType = "tips"
	SafeComparison SafePageType = "comparison"
	SafeGuide      SafePageType = "guide"
)

// PageStatus is the generation lifecycle of a Page.
type PageStatus string

const (
	PageDraft      PageStatus = "draft"
	PageGenerating PageStatus = "generating"
	PageGenerated  PageStatus = "generated"
	PagePublished  PageStatus = "published"
	PageFailed     PageStatus = "failed"
)

// Page is one of at most two per Offer: the money page (pageType=money,
// always scraped) and the safe page (pageType=safe, always AI-generated).
type Page struct {
	ID                int64
	OfferID           int64
	PageType          PageType
	ContentSource     ContentSource
	SafePageType      *SafePageType
	Competitors       []string
	GenerationParams  map[string]string
	HTMLContent       *string
	Status            PageStatus
	GenerationError   *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PublishedAt       *time.Time
}
