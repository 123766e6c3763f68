package queue

import (
	"encoding/json"
	"time"
)

// Job is the envelope every queue entry carries. Payload holds the
// handler-specific body (scrape/generate/sourcesync/domainverify) as raw
// JSON so the queue package itself never needs to know job shapes.
type Job struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
	FailedAt  *time.Time      `json:"failedAt,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (j Job) encode() (string, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJob(raw string) (Job, error) {
	var j Job
	err := json.Unmarshal([]byte(raw), &j)
	return j, err
}
