package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool used by the PostgreSQL store
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresStore struct {
	db DBTX
}

// NewPostgresStore creates the backing table if needed
func NewPostgresStore(ctx context.Context, db DBTX) (Store, error) {
	query := `
	CREATE TABLE IF NOT EXISTS kv_store (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.Exec(ctx, query); err != nil {
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}

	return &postgresStore{db: db}, nil
}

func (s *postgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return value, true, nil
}

func (s *postgresStore) Set(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv_store (key, value, updated_at) 
	VALUES ($1, $2, now()) 
	ON CONFLICT (key) 
	DO UPDATE SET value = $2, updated_at = now()`
	_, err := s.db.Exec(ctx, query, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	return nil
}
