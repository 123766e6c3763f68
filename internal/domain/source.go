package domain

import "time"

// SourceType classifies where a BlacklistSource's rules originate.
type SourceType string

const (
	SourceBuiltin   SourceType = "builtin"
	SourceExternal  SourceType = "external"
	SourceCommunity SourceType = "community"
)

// UpdateFrequency is how often a source is re-synced.
type UpdateFrequency string

const (
	FreqDaily   UpdateFrequency = "daily"
	FreqWeekly  UpdateFrequency = "weekly"
	FreqMonthly UpdateFrequency = "monthly"
)

// SyncStatus is the outcome of a source's most recent ingestion attempt.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
	SyncSyncing SyncStatus = "syncing"
)

// BlacklistSource describes an external feed of blacklist entries. Rules
// imported from a source carry Source = "source:<id>" on their RuleMeta,
// which lets a resync atomically replace the source's prior rules.
type BlacklistSource struct {
	ID              int64
	Name            string
	SourceType      SourceType
	URL             *string
	UpdateFrequency UpdateFrequency
	LastSyncAt      *time.Time
	NextSyncAt      *time.Time
	SyncStatus      *SyncStatus
	SyncError       *string
	IsActive        bool
}
