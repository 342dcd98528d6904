package storage

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// migration is one schema step. Versions are applied in ascending order and
// recorded in schema_migrations.
type migration struct {
	version     int
	description string
	sql         string
}

var migrations = []migration{
	{version: 1, description: "initial schema", sql: schemaSQL},
}

// Migrator applies pending schema migrations to a SQLite database.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a migrator for db.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Migrate applies every migration newer than the recorded version.
func (m *Migrator) Migrate() error {
	if _, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	current, err := m.Version()
	if err != nil {
		return err
	}
	for _, mg := range migrations {
		if mg.version <= current {
			continue
		}
		if err := m.apply(mg); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", mg.version, mg.description, err)
		}
	}
	return nil
}

func (m *Migrator) apply(mg migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range splitSQLStatements(mg.sql) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("statement %d: %w\nStatement: %s", i, err, stmt)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
		mg.version, mg.description,
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// Version returns the highest applied migration, or 0 for a fresh database.
func (m *Migrator) Version() (int, error) {
	var v sql.NullInt64
	if err := m.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(v.Int64), nil
}

// splitSQLStatements drops comment lines and splits on semicolons.
func splitSQLStatements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var out []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
