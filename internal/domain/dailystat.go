package domain

import "time"

// DailyStat is a daily rollup of CloakLog rows, keyed by (userId, offerId,
// statDate). Recomputed (upserted) by the scheduler's stats-aggregation job.
type DailyStat struct {
	UserID          int64
	OfferID         int64
	StatDate        time.Time // date-truncated
	TotalVisits     int64
	MoneyPageVisits int64
	SafePageVisits  int64
	UniqueIPs       int64
	AvgFraudScore   float64
	BlockedL1       int64
	BlockedL2       int64
	BlockedL3       int64
	BlockedL4       int64
	BlockedL5       int64
	BlockedTimeout  int64
	UpdatedAt       time.Time
}
