package rules

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresTableStore implements TableStore backed by PostgreSQL
type PostgresTableStore struct {
	db *sql.DB
}

// NewPostgresTableStore creates a new PostgreSQL-backed TableStore
func NewPostgresTableStore(db *sql.DB) *PostgresTableStore {
	return &PostgresTableStore{db: db}
}

// Save inserts table as the next active version for siteID
func (s *PostgresTableStore) Save(siteID string, table *Table) (int, error) {
	if siteID == "" {
		return 0, fmt.Errorf("site ID is required")
	}

	definition, err := json.Marshal(table)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal rule table: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sites (id, name, created_at, updated_at)
		VALUES ($1, $1, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
	`, siteID)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert site: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE rule_tables
		SET active = false
		WHERE site_id = $1
	`, siteID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate old tables: %w", err)
	}

	var version int
	err = tx.QueryRow(`
		INSERT INTO rule_tables (site_id, version, table_version, definition, active, created_at)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, true, NOW()
		FROM rule_tables
		WHERE site_id = $1
		RETURNING version
	`, siteID, table.Version, definition).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rule table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rule table: %w", err)
	}

	return version, nil
}

// Active returns the active table for siteID
func (s *PostgresTableStore) Active(siteID string) (*StoredTable, error) {
	row := s.db.QueryRow(`
		SELECT site_id, version, definition, active, created_at
		FROM rule_tables
		WHERE site_id = $1 AND active = true
	`, siteID)

	stored, err := scanStoredTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %s: %w", siteID, ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule table: %w", err)
	}
	return stored, nil
}

// ListActive returns the active table of every site
func (s *PostgresTableStore) ListActive() ([]*StoredTable, error) {
	rows, err := s.db.Query(`
		SELECT site_id, version, definition, active, created_at
		FROM rule_tables
		WHERE active = true
		ORDER BY site_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tables: %w", err)
	}
	defer rows.Close()

	var tables []*StoredTable
	for rows.Next() {
		stored, err := scanStoredTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule table: %w", err)
		}
		tables = append(tables, stored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule tables: %w", err)
	}

	return tables, nil
}

// Delete removes every table version stored for siteID
func (s *PostgresTableStore) Delete(siteID string) error {
	result, err := s.db.Exec(`
		DELETE FROM rule_tables
		WHERE site_id = $1
	`, siteID)
	if err != nil {
		return fmt.Errorf("failed to delete rule tables: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("site %s: %w", siteID, ErrTableNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStoredTable(row rowScanner) (*StoredTable, error) {
	var (
		stored     StoredTable
		definition []byte
	)
	if err := row.Scan(&stored.SiteID, &stored.Version, &definition, &stored.Active, &stored.CreatedAt); err != nil {
		return nil, err
	}

	var table Table
	if err := json.Unmarshal(definition, &table); err != nil {
		return nil, fmt.Errorf("invalid definition for site %s: %w", stored.SiteID, err)
	}
	stored.Table = &table
	return &stored, nil
}
