package domain

import "time"

// Prompt is keyed by Name (e.g. "safe-page-review") and has many versions,
// exactly one of which is active at rest.
type Prompt struct {
	ID   int64
	Name string
}

// PromptVersion is one revision of a Prompt's template body. Activating a
// version must atomically deactivate all siblings under the same prompt
// (see internal/store/postgres.Store.ActivateVersionExclusive).
type PromptVersion struct {
	ID        int64
	PromptID  int64
	Content   string
	IsActive  bool
	CreatedAt time.Time
}
