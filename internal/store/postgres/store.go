// Package postgres is the Authoritative Store (component A): the durable,
// transactional record of users, offers, pages, prompts, blacklist rules,
// sources, cloak logs, and daily stats. It exposes parameterized
// query/execute primitives plus the higher-level helpers other components
// depend on (listEffectiveRules, upsertRuleIdempotent, softDeactivateById,
// activateVersionExclusive).
package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/autoguard/cloak/internal/config"
)

// Store wraps a connection pool to the Authoritative Store.
type Store struct {
	DB *sql.DB
}

// Open connects to Postgres and tunes the pool per cfg, mirroring the
// worker's 50M/day pool-sizing conventions (bounded max-open, idle reaper).
func Open(cfg config.PostgresConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{DB: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping is used by the /health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
