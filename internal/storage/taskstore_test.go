package storage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// --- Helpers ---

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newMemStore(t *testing.T, opts ...StoreOption) (TaskStore, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	s := NewTaskStore(NewYAMLBackend(fsys, "/data/tasks.yaml", "/data/backups"), opts...)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, fsys
}

func sampleTask(name string, deps ...string) models.Task {
	return models.Task{
		ID:                  NewTaskID(),
		Name:                name,
		Description:         "description for " + name,
		ImplementationGuide: "guide for " + name,
		Status:              models.StatusPending,
		Priority:            models.P2,
		Dependencies:        deps,
	}
}

// failingBackend wraps a Backend and fails Save on demand.
type failingBackend struct {
	Backend
	failSave bool
}

func (f *failingBackend) Save(tasks []models.Task) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.Backend.Save(tasks)
}

// --- Put / Get ---

func TestPut_InsertsAndRefreshesUpdatedAt(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, _ := newMemStore(t, WithClock(clock.now))

	task := sampleTask("alpha")
	first, err := s.Put(task)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if first.CreatedAt.IsZero() || !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Errorf("new task timestamps: created=%v updated=%v", first.CreatedAt, first.UpdatedAt)
	}

	first.Description = "changed description"
	second, err := s.Put(first)
	if err != nil {
		t.Fatalf("Put update: %v", err)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updated_at not refreshed: %v then %v", first.UpdatedAt, second.UpdatedAt)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on update")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1 after upsert", s.Len())
	}

	got, err := s.Get(task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "changed description" {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestPut_RejectsEmptyID(t *testing.T) {
	s, _ := newMemStore(t)
	if _, err := s.Put(models.Task{Name: "x"}); err == nil {
		t.Fatal("expected error for empty ID")
	}
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newMemStore(t)
	_, err := s.Get("missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s, _ := newMemStore(t)
	task := sampleTask("alpha", "dep-1")
	if _, err := s.Put(task); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(task.ID)
	got.Dependencies[0] = "mutated"

	again, _ := s.Get(task.ID)
	if again.Dependencies[0] != "dep-1" {
		t.Error("mutating a returned task leaked into the store")
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	s, _ := newMemStore(t)
	a := sampleTask("Build parser")
	b := sampleTask("Write docs")
	b.Status = models.StatusCompleted
	b.Category = "docs"
	c := sampleTask("Parser tests")
	c.Priority = models.P0
	for _, task := range []models.Task{a, b, c} {
		if _, err := s.Put(task); err != nil {
			t.Fatal(err)
		}
	}

	all := s.List(models.TaskFilter{})
	if len(all) != 3 || all[0].Name != "Build parser" || all[2].Name != "Parser tests" {
		t.Fatalf("List should keep insertion order, got %v", names(all))
	}

	pending := s.List(models.TaskFilter{Status: []models.TaskStatus{models.StatusPending}})
	if len(pending) != 2 {
		t.Errorf("pending = %v", names(pending))
	}

	parser := s.List(models.TaskFilter{NameContains: "PARSER"})
	if len(parser) != 2 {
		t.Errorf("name filter = %v", names(parser))
	}

	both := s.List(models.TaskFilter{NameContains: "parser", Priority: []models.Priority{models.P0}})
	if len(both) != 1 || both[0].Name != "Parser tests" {
		t.Errorf("AND filter = %v", names(both))
	}

	docs := s.List(models.TaskFilter{Category: "Docs"})
	if len(docs) != 1 {
		t.Errorf("category filter = %v", names(docs))
	}

	limited := s.List(models.TaskFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit = %d", len(limited))
	}
}

func names(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name
	}
	return out
}

// --- Delete ---

func TestDelete_HasDependentsThenSucceeds(t *testing.T) {
	s, _ := newMemStore(t)
	a := sampleTask("A")
	b := sampleTask("B", a.ID)
	for _, task := range []models.Task{a, b} {
		if _, err := s.Put(task); err != nil {
			t.Fatal(err)
		}
	}

	err := s.Delete(a.ID)
	if !errors.Is(err, models.ErrHasDependents) {
		t.Fatalf("expected ErrHasDependents, got %v", err)
	}
	if !strings.Contains(err.Error(), "B") {
		t.Errorf("error should name the dependent: %v", err)
	}

	b.Dependencies = nil
	if _, err := s.Put(b); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete after removing dependency: %v", err)
	}
	if _, err := s.Get(a.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("deleted task still present: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	s, _ := newMemStore(t)
	if err := s.Delete("nope"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Persistence ---

func TestLoad_ReloadsFromDisk(t *testing.T) {
	s, fsys := newMemStore(t)
	a := sampleTask("A")
	b := sampleTask("B", a.ID)
	for _, task := range []models.Task{a, b} {
		if _, err := s.Put(task); err != nil {
			t.Fatal(err)
		}
	}

	reopened := NewTaskStore(NewYAMLBackend(fsys, "/data/tasks.yaml", "/data/backups"))
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	all := reopened.All()
	if len(all) != 2 || all[0].ID != a.ID || all[1].ID != b.ID {
		t.Fatalf("reloaded = %v", names(all))
	}
	if !all[1].DependsOn(a.ID) {
		t.Error("dependency lost across reload")
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s, _ := newMemStore(t)
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/data/tasks.yaml", []byte("tasks: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewTaskStore(NewYAMLBackend(fsys, "/data/tasks.yaml", "/data/backups"))
	if err := s.Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFailedSave_LeavesMemoryUnchanged(t *testing.T) {
	backend := &failingBackend{Backend: NewYAMLBackend(afero.NewMemMapFs(), "/t.yaml", "/b")}
	s := NewTaskStore(backend)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	a := sampleTask("A")
	if _, err := s.Put(a); err != nil {
		t.Fatal(err)
	}

	backend.failSave = true
	if _, err := s.Put(sampleTask("B")); err == nil {
		t.Fatal("expected save failure")
	}
	if _, err := s.Replace(nil, ""); err == nil {
		t.Fatal("expected save failure on Replace")
	}
	if err := s.Delete(a.ID); err == nil {
		t.Fatal("expected save failure on Delete")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d after failed writes, want 1", s.Len())
	}
}

// --- Backups ---

func TestReplace_WritesBackupFirst(t *testing.T) {
	s, _ := newMemStore(t)
	a := sampleTask("A")
	if _, err := s.Put(a); err != nil {
		t.Fatal(err)
	}

	b := sampleTask("B")
	bk, err := s.Replace([]models.Task{b}, "overwrite")
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if bk == nil || bk.TaskCount != 1 || bk.Reason != "overwrite" {
		t.Fatalf("backup = %+v", bk)
	}

	all := s.All()
	if len(all) != 1 || all[0].ID != b.ID {
		t.Errorf("live set = %v", names(all))
	}

	saved, err := s.ReadBackup(bk.ID)
	if err != nil {
		t.Fatalf("ReadBackup: %v", err)
	}
	if len(saved) != 1 || saved[0].ID != a.ID {
		t.Errorf("backup content = %v", names(saved))
	}
}

func TestReplace_RejectsDuplicateIDs(t *testing.T) {
	s, _ := newMemStore(t)
	a := sampleTask("A")
	if _, err := s.Replace([]models.Task{a, a}, ""); err == nil {
		t.Fatal("expected duplicate ID error")
	}
}

func TestClear_WithAndWithoutBackup(t *testing.T) {
	s, _ := newMemStore(t)
	if _, err := s.Put(sampleTask("A")); err != nil {
		t.Fatal(err)
	}

	bk, err := s.Clear(true)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if bk == nil || bk.TaskCount != 1 {
		t.Fatalf("backup = %+v", bk)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after clear", s.Len())
	}

	bk, err = s.Clear(false)
	if err != nil || bk != nil {
		t.Errorf("Clear(false) = %+v, %v", bk, err)
	}
}

func TestBackups_NewestFirstAndPruned(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, _ := newMemStore(t, WithClock(clock.now), WithBackupRetention(2))

	var ids []string
	for i := 0; i < 3; i++ {
		bk, err := s.Snapshot("manual")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, bk.ID)
	}

	backups, err := s.Backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Fatalf("got %d backups, want 2 after pruning", len(backups))
	}
	if backups[0].ID != ids[2] || backups[1].ID != ids[1] {
		t.Errorf("backups = %v, want newest first %v", backups, ids[1:])
	}
	if _, err := s.ReadBackup(ids[0]); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("oldest backup should be pruned, got %v", err)
	}
}

func TestNewTaskID_Format(t *testing.T) {
	id := NewTaskID()
	if !IsTaskID(id) {
		t.Errorf("NewTaskID %q does not parse", id)
	}
	if IsTaskID("Build parser") {
		t.Error("a task name should not look like an id")
	}
	if NewTaskID() == id {
		t.Error("ids should be unique")
	}
}
