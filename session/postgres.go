package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresKeySpace stores session keys in the session_keys table
type PostgresKeySpace struct {
	db *sql.DB
}

// NewPostgresKeySpace creates a PostgreSQL-backed key space
func NewPostgresKeySpace(db *sql.DB) *PostgresKeySpace {
	return &PostgresKeySpace{db: db}
}

// Get returns the value stored under key
func (p *PostgresKeySpace) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `
		SELECT value FROM session_keys WHERE key = $1
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session key %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key
func (p *PostgresKeySpace) Set(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO session_keys (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set session key %s: %w", key, err)
	}
	return nil
}
