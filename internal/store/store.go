// Package store is the Store component: a pgx-backed relational backend
// holding the raw event tables, the session table, and the five rollup
// tables. Store owns all row lifetimes; every other component holds only
// transient views of this data.
package store

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func Open(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return &Store{db: pool}, nil
}

func (s *Store) Close() { s.db.Close() }

// Migrate applies the schema file at path. It is idempotent: every
// statement is `CREATE TABLE IF NOT EXISTS` / `CREATE INDEX IF NOT EXISTS`.
func (s *Store) Migrate(ctx context.Context, path string) error {
	ddl, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	if _, err := s.db.Exec(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
