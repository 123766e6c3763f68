package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/autoguard/cloak/internal/domain"
)

const sourceSelect = `
	SELECT id, name, source_type, url, update_frequency, last_sync_at, next_sync_at,
		sync_status, sync_error, is_active
	FROM blacklist_sources`

// ListDueSources returns active sources whose nextSyncAt has passed, for
// the scheduler's "enqueue a sync job" step.
func (s *Store) ListDueSources(ctx context.Context) ([]*domain.BlacklistSource, error) {
	rows, err := s.DB.QueryContext(ctx, sourceSelect+` WHERE is_active = true AND (next_sync_at IS NULL OR next_sync_at <= now())`)
	if err != nil {
		return nil, fmt.Errorf("list due sources: %w", err)
	}
	defer rows.Close()

	var out []*domain.BlacklistSource
	for rows.Next() {
		src, err := scanSourceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *Store) GetSource(ctx context.Context, id int64) (*domain.BlacklistSource, error) {
	row := s.DB.QueryRowContext(ctx, sourceSelect+` WHERE id = $1`, id)
	src, err := scanSourceRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return src, err
}

// MarkSourceSyncResult records the outcome of a source-sync job and
// advances nextSyncAt by the source's update frequency.
func (s *Store) MarkSourceSyncResult(ctx context.Context, id int64, status domain.SyncStatus, syncErr *string) error {
	interval := "1 day"
	var freq domain.UpdateFrequency
	if err := s.DB.QueryRowContext(ctx, `SELECT update_frequency FROM blacklist_sources WHERE id = $1`, id).Scan(&freq); err != nil {
		return fmt.Errorf("mark source sync result: lookup frequency: %w", err)
	}
	switch freq {
	case domain.FreqWeekly:
		interval = "7 days"
	case domain.FreqMonthly:
		interval = "30 days"
	}

	_, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		UPDATE blacklist_sources SET sync_status = $1, sync_error = $2, last_sync_at = now(),
			next_sync_at = now() + interval '%s'
		WHERE id = $3`, interval), status, syncErr, id)
	if err != nil {
		return fmt.Errorf("mark source sync result: %w", err)
	}
	return nil
}

func scanSourceRows(row scanner) (*domain.BlacklistSource, error) {
	var src domain.BlacklistSource
	err := row.Scan(&src.ID, &src.Name, &src.SourceType, &src.URL, &src.UpdateFrequency,
		&src.LastSyncAt, &src.NextSyncAt, &src.SyncStatus, &src.SyncError, &src.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}
	return &src, nil
}
