package core

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/valter-silva-au/taskgraph/internal/storage"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

func TestFileLock_Exclusive(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "writer.lock"))

	unlock, err := lock.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := NewFileLock(lock.(*fileLock).path).Lock()
		if err == nil {
			_ = second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first is held")
	default:
	}
	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	<-acquired
}

func TestFileLock_BadPath(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "missing", "writer.lock"))
	if _, err := lock.Lock(); err == nil {
		t.Error("expected error for a lock file in a missing directory")
	}
}

// Two engines over the same files stand in for two processes.
func TestWriterLock_SeesOtherWriters(t *testing.T) {
	dir := t.TempDir()
	fsys := afero.NewOsFs()
	lock := NewFileLock(filepath.Join(dir, "writer.lock"))

	open := func() Engine {
		store := storage.NewTaskStore(storage.NewYAMLBackend(fsys, filepath.Join(dir, "tasks.yaml"), filepath.Join(dir, "backups")))
		if err := store.Load(); err != nil {
			t.Fatalf("Load: %v", err)
		}
		return NewEngine(store, EngineConfig{WriterLock: lock})
	}
	first, second := open(), open()

	if _, err := first.Split(models.SplitRequest{Mode: models.ModeAppend, Tasks: []models.TaskTemplate{tmpl("A")}}); err != nil {
		t.Fatalf("first split: %v", err)
	}
	if _, err := second.Split(models.SplitRequest{Mode: models.ModeAppend, Tasks: []models.TaskTemplate{tmpl("B", "A")}}); err != nil {
		t.Fatalf("second writer should resolve A after reloading: %v", err)
	}
	if _, err := second.Split(models.SplitRequest{Mode: models.ModeAppend, Tasks: []models.TaskTemplate{tmpl("A")}}); !errors.Is(err, models.ErrNameCollision) {
		t.Errorf("expected name collision with the other writer's task, got %v", err)
	}
	if n := len(second.ListTasks(models.TaskFilter{})); n != 2 {
		t.Errorf("second engine sees %d tasks, want 2", n)
	}
}

type countingLock struct {
	mu       sync.Mutex
	held     bool
	acquired int
	fail     error
}

func (l *countingLock) Lock() (func() error, error) {
	if l.fail != nil {
		return nil, l.fail
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, errors.New("lock already held")
	}
	l.held = true
	l.acquired++
	return func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		return nil
	}, nil
}

func TestWriterLock_HeldAroundMutations(t *testing.T) {
	lock := &countingLock{}
	f := newFixture(t, func(cfg *EngineConfig) { cfg.WriterLock = lock })

	f.split(t, models.ModeAppend, tmpl("A"))
	if _, err := f.eng.Start("A"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.Complete("A"); err != nil {
		t.Fatal(err)
	}
	_ = f.eng.ReadyTasks()
	if lock.acquired != 3 {
		t.Errorf("lock acquired %d times, want 3 (reads do not lock)", lock.acquired)
	}
	if lock.held {
		t.Error("lock should be released after each mutation")
	}

	lock.fail = errors.New("no lock for you")
	if _, err := f.eng.Start("A"); err == nil || !errors.Is(err, lock.fail) {
		t.Errorf("expected lock failure to surface, got %v", err)
	}
}
