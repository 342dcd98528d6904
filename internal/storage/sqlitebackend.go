package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

type sqliteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite database at dsn, applies
// migrations, and returns a Backend that keeps tasks and backups in it.
func OpenSQLite(dsn string) (Backend, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection keeps in-memory databases coherent and matches the
	// store's single-writer model.
	db.SetMaxOpenConns(1)

	if err := NewMigrator(db).Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating sqlite database: %w", err)
	}
	return &sqliteBackend{db: db}, nil
}

// NewSQLiteBackend wraps an already migrated database.
func NewSQLiteBackend(db *sql.DB) Backend {
	return &sqliteBackend{db: db}
}

func (b *sqliteBackend) Load() ([]models.Task, error) {
	rows, err := b.db.Query(`SELECT data FROM tasks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTasks(rows)
}

func (b *sqliteBackend) Save(tasks []models.Task) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("saving tasks: beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return fmt.Errorf("saving tasks: clearing table: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO tasks (id, seq, name, status, data) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("saving tasks: preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, t := range tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("saving tasks: encoding %s: %w", t.ID, err)
		}
		if _, err := stmt.Exec(t.ID, i, t.Name, string(t.Status), string(data)); err != nil {
			return fmt.Errorf("saving tasks: inserting %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving tasks: committing: %w", err)
	}
	return nil
}

func (b *sqliteBackend) WriteBackup(bk models.Backup, tasks []models.Task) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("writing backup %s: beginning transaction: %w", bk.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO backups (id, created_at, reason, task_count) VALUES (?, ?, ?, ?)`,
		bk.ID, bk.CreatedAt.UTC().Format(time.RFC3339Nano), bk.Reason, bk.TaskCount,
	); err != nil {
		return fmt.Errorf("writing backup %s: %w", bk.ID, err)
	}
	for i, t := range tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("writing backup %s: encoding %s: %w", bk.ID, t.ID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO backup_tasks (backup_id, seq, data) VALUES (?, ?, ?)`,
			bk.ID, i, string(data),
		); err != nil {
			return fmt.Errorf("writing backup %s: inserting %s: %w", bk.ID, t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("writing backup %s: committing: %w", bk.ID, err)
	}
	return nil
}

func (b *sqliteBackend) ListBackups() ([]models.Backup, error) {
	rows, err := b.db.Query(`SELECT id, created_at, reason, task_count FROM backups ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Backup
	for rows.Next() {
		var (
			bk      models.Backup
			created string
		)
		if err := rows.Scan(&bk.ID, &created, &bk.Reason, &bk.TaskCount); err != nil {
			return nil, fmt.Errorf("listing backups: %w", err)
		}
		if bk.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("listing backups: parsing created_at of %s: %w", bk.ID, err)
		}
		out = append(out, bk)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) ReadBackup(id string) ([]models.Task, error) {
	var exists int
	err := b.db.QueryRow(`SELECT 1 FROM backups WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup %s: %w", id, err)
	}

	rows, err := b.db.Query(`SELECT data FROM backup_tasks WHERE backup_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("reading backup %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()
	return scanTasks(rows)
}

func (b *sqliteBackend) DeleteBackup(id string) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("deleting backup %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM backup_tasks WHERE backup_id = ?`, id); err != nil {
		return fmt.Errorf("deleting backup %s: %w", id, err)
	}
	res, err := tx.Exec(`DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting backup %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFoundError(id)
	}
	return tx.Commit()
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	var out []models.Task
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		var t models.Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("decoding task row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
