package postgres

import (
	"context"
	"fmt"

	"github.com/autoguard/cloak/internal/domain"
)

// ListSettings loads every row from the settings table — the decision
// engine's per-process cache (internal/decision.Settings) refreshes itself
// from this on an interval.
func (s *Store) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []domain.Setting
	for rows.Next() {
		var st domain.Setting
		if err := rows.Scan(&st.Key, &st.Value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// EnsureDefaultSettings seeds any missing setting rows with
// domain.DefaultSettings() values, run once at migration/bootstrap time.
func (s *Store) EnsureDefaultSettings(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings bootstrap tx: %w", err)
	}
	defer tx.Rollback()

	for _, st := range domain.DefaultSettings() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES ($1,$2) ON CONFLICT (key) DO NOTHING`, st.Key, st.Value); err != nil {
			return fmt.Errorf("seed setting %s: %w", st.Key, err)
		}
	}

	return tx.Commit()
}

// SetSetting updates (or inserts) a single setting row, used by the
// operator-facing settings endpoint.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
