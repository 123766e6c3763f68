package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/autoguard/cloak/internal/domain"
)

// GetUserByID loads a user by primary key.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, status, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail looks up a user case-insensitively, per the email-unique
// invariant.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, status, created_at, updated_at
		FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// DeleteUser removes a user row. ON DELETE CASCADE on offers.user_id
// enforces "deleting a user cascades to their offers" at the schema level.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
