package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/materializer"
	"github.com/autoguard/cloak/internal/pkg/httpretry"
	"github.com/autoguard/cloak/internal/queue"
	"github.com/autoguard/cloak/internal/store/postgres"
)

const sourceSyncJobTimeout = 30 * time.Second
const maxSourceFeedBytes = 16 << 20 // 16 MiB

// SourceSyncJob implements external blacklist-source ingestion: fetch the
// source's feed URL, parse it, atomically replace the source's prior
// rules in the Authoritative Store, then rematerialize.
type SourceSyncJob struct {
	Store        *postgres.Store
	Materializer *materializer.Materializer
	HTTPClient   httpretry.HTTPDoer
}

func (j *SourceSyncJob) Run(ctx context.Context, p SourceSyncPayload) error {
	ctx, cancel := context.WithTimeout(ctx, sourceSyncJobTimeout)
	defer cancel()

	source, err := j.Store.GetSource(ctx, p.SourceID)
	if err != nil {
		return fmt.Errorf("source sync: load source: %w", err)
	}
	if source.URL == nil || *source.URL == "" {
		return queue.Permanent(fmt.Errorf("source sync: source %d has no feed url", p.SourceID))
	}

	body, err := j.fetchFeed(ctx, *source.URL)
	if err != nil {
		reason := err.Error()
		_ = j.Store.MarkSourceSyncResult(ctx, p.SourceID, domain.SyncFailed, &reason)
		return fmt.Errorf("source sync: %w", err)
	}

	parsed := materializer.ParseSourceFeed(string(body))
	if _, _, err := j.Store.ReplaceSourceRules(ctx, p.SourceID, parsed.IPs, parsed.CIDRs); err != nil {
		reason := err.Error()
		_ = j.Store.MarkSourceSyncResult(ctx, p.SourceID, domain.SyncFailed, &reason)
		return fmt.Errorf("source sync: replace rules: %w", err)
	}

	if _, err := j.Materializer.MaterializeAll(ctx); err != nil {
		reason := err.Error()
		_ = j.Store.MarkSourceSyncResult(ctx, p.SourceID, domain.SyncFailed, &reason)
		return fmt.Errorf("source sync: materialize: %w", err)
	}

	return j.Store.MarkSourceSyncResult(ctx, p.SourceID, domain.SyncSuccess, nil)
}

// Handle adapts Run to a queue.Handler for queue:blacklistSync jobs.
func (j *SourceSyncJob) Handle(ctx context.Context, job queue.Job) error {
	var p SourceSyncPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return queue.Permanent(fmt.Errorf("source sync: decode payload: %w", err))
	}
	return j.Run(ctx, p)
}

func (j *SourceSyncJob) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := j.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSourceFeedBytes))
}
