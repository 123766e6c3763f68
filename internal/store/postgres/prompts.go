package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/autoguard/cloak/internal/domain"
)

// GetActivePromptContent fetches the content of the single active version
// for a named prompt (e.g. "safe-page-review"). Returns ErrNotFound if the
// prompt has no rows at all or no active version — callers fall back to
// the built-in embedded template in that case.
func (s *Store) GetActivePromptContent(ctx context.Context, name string) (string, error) {
	var content string
	err := s.DB.QueryRowContext(ctx, `
		SELECT pv.content
		FROM prompt_versions pv
		JOIN prompts p ON p.id = pv.prompt_id
		WHERE p.name = $1 AND pv.is_active = true`, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get active prompt content: %w", err)
	}
	return content, nil
}

// ActivateVersionExclusive atomically deactivates every sibling version
// under promptID and activates versionID in one transaction, satisfying
// the "exactly one active version at rest" invariant under concurrent
// activations (the transaction's row locks serialize racing callers).
func (s *Store) ActivateVersionExclusive(ctx context.Context, promptID, versionID int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate version tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE prompt_versions SET is_active = false WHERE prompt_id = $1`, promptID); err != nil {
		return fmt.Errorf("deactivate sibling prompt versions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE prompt_versions SET is_active = true WHERE id = $1 AND prompt_id = $2`, versionID, promptID)
	if err != nil {
		return fmt.Errorf("activate prompt version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate version tx: %w", err)
	}
	return nil
}

// GetPromptByName is used to resolve a prompt name to its ID before
// activating one of its versions.
func (s *Store) GetPromptByName(ctx context.Context, name string) (*domain.Prompt, error) {
	var p domain.Prompt
	err := s.DB.QueryRowContext(ctx, `SELECT id, name FROM prompts WHERE name = $1`, name).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt by name: %w", err)
	}
	return &p, nil
}
