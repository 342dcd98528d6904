package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

func setupSQLiteStore(t *testing.T) (TaskStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.db")
	backend, err := OpenSQLite(path)
	require.NoError(t, err)

	s := NewTaskStore(backend)
	require.NoError(t, s.Load())
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestMigrator_FreshDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db)
	require.NoError(t, m.Migrate())

	v, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Re-running is a no-op.
	require.NoError(t, m.Migrate())
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 1, count)

	for _, table := range []string{"tasks", "backups", "backup_tasks"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestSplitSQLStatements(t *testing.T) {
	stmts := splitSQLStatements("-- comment\nCREATE TABLE a (x INT);\n\nCREATE TABLE b (y INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"}, stmts)
}

func TestSQLiteBackend_PersistsInInsertionOrder(t *testing.T) {
	s, path := setupSQLiteStore(t)

	a := sampleTask("A")
	b := sampleTask("B", a.ID)
	c := sampleTask("C")
	line := 12
	c.RelatedFiles = []models.RelatedFile{{Path: "pkg/x.go", RelationType: models.RelationToModify, LineStart: &line}}
	for _, task := range []models.Task{a, b, c} {
		_, err := s.Put(task)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	backend, err := OpenSQLite(path)
	require.NoError(t, err)
	reopened := NewTaskStore(backend)
	require.NoError(t, reopened.Load())
	defer reopened.Close()

	all := reopened.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"A", "B", "C"}, names(all))
	assert.Equal(t, []string{a.ID}, all[1].Dependencies)
	require.Len(t, all[2].RelatedFiles, 1)
	require.NotNil(t, all[2].RelatedFiles[0].LineStart)
	assert.Equal(t, 12, *all[2].RelatedFiles[0].LineStart)
}

func TestSQLiteBackend_DeleteAndHasDependents(t *testing.T) {
	s, _ := setupSQLiteStore(t)

	a := sampleTask("A")
	b := sampleTask("B", a.ID)
	_, err := s.Put(a)
	require.NoError(t, err)
	_, err = s.Put(b)
	require.NoError(t, err)

	err = s.Delete(a.ID)
	assert.ErrorIs(t, err, models.ErrHasDependents)

	require.NoError(t, s.Delete(b.ID))
	require.NoError(t, s.Delete(a.ID))
	assert.Equal(t, 0, s.Len())
}

func TestSQLiteBackend_Backups(t *testing.T) {
	s, _ := setupSQLiteStore(t)

	a := sampleTask("A")
	_, err := s.Put(a)
	require.NoError(t, err)

	bk, err := s.Replace([]models.Task{sampleTask("B")}, "clearAllTasks")
	require.NoError(t, err)
	require.NotNil(t, bk)
	assert.Equal(t, 1, bk.TaskCount)
	assert.WithinDuration(t, time.Now(), bk.CreatedAt, time.Minute)

	backups, err := s.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, bk.ID, backups[0].ID)
	assert.Equal(t, "clearAllTasks", backups[0].Reason)

	saved, err := s.ReadBackup(bk.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, a.ID, saved[0].ID)

	_, err = s.ReadBackup("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLiteBackend_DeleteBackup(t *testing.T) {
	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "b.db"))
	require.NoError(t, err)
	defer backend.Close()

	bk := models.Backup{ID: newBackupID(time.Now()), CreatedAt: time.Now(), Reason: "manual", TaskCount: 1}
	require.NoError(t, backend.WriteBackup(bk, []models.Task{sampleTask("A")}))
	require.NoError(t, backend.DeleteBackup(bk.ID))
	assert.ErrorIs(t, backend.DeleteBackup(bk.ID), models.ErrNotFound)

	list, err := backend.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, list)
}
