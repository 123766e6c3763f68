package domain

import "time"

// Decision is the decision engine's classification of a request.
type Decision string

const (
	DecisionMoney Decision = "money"
	DecisionSafe  Decision = "safe"
)

// Layer identifies which decision-engine layer short-circuited a request,
// or TIMEOUT if the global deadline was hit first.
type Layer string

const (
	LayerL1      Layer = "L1"
	LayerL2      Layer = "L2"
	LayerL3      Layer = "L3"
	LayerL4      Layer = "L4"
	LayerL5      Layer = "L5"
	LayerTimeout Layer = "TIMEOUT"
)

// CloakLog is an append-only record of one decision-engine evaluation. It
// is pruned by the scheduler's log-retention job.
type CloakLog struct {
	ID                int64
	UserID            int64
	OfferID           int64
	IPAddress         string
	UserAgent         string
	Referer           *string
	RequestURL        string
	Decision          Decision
	DecisionReason    *string
	FraudScore        float64
	BlockedAtLayer    *Layer
	DetectionDetails  map[string]any
	IPCountry         *string
	IPCity            *string
	IPISP             *string
	IPASN             *int64
	IsDatacenter      bool
	IsVPN             bool
	IsProxy           bool
	ProcessingTimeMs  int64
	HasTrackingParams bool
	GCLID             *string
	CreatedAt         time.Time
}
