package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// TaskStore is the durable keyed collection of tasks. It keeps an in-memory
// copy in insertion order; every mutation persists through the Backend
// before it becomes visible, so a failed write changes nothing.
type TaskStore interface {
	Load() error
	Get(id string) (models.Task, error)
	List(filter models.TaskFilter) []models.Task
	// All returns every task in insertion order as deep copies.
	All() []models.Task
	Len() int
	// Put upserts task and refreshes its updated_at.
	Put(task models.Task) (models.Task, error)
	// Delete fails with ErrHasDependents while any task depends on id.
	Delete(id string) error
	Snapshot(reason string) (models.Backup, error)
	// Clear empties the store, writing a backup first when withBackup is set.
	Clear(withBackup bool) (*models.Backup, error)
	// Replace swaps in a whole task set as one commit. A non-empty
	// backupReason snapshots the current set first.
	Replace(tasks []models.Task, backupReason string) (*models.Backup, error)
	Backups() ([]models.Backup, error)
	ReadBackup(id string) ([]models.Task, error)
	Close() error
}

// StoreOption configures a TaskStore.
type StoreOption func(*taskStore)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *taskStore) { s.now = now }
}

// WithBackupRetention keeps only the newest keep backups after each
// snapshot. Zero keeps everything.
func WithBackupRetention(keep int) StoreOption {
	return func(s *taskStore) { s.keep = keep }
}

type taskStore struct {
	mu      sync.RWMutex
	backend Backend
	tasks   []models.Task
	index   map[string]int
	now     func() time.Time
	keep    int
}

// NewTaskStore creates a TaskStore over backend. Call Load before use.
func NewTaskStore(backend Backend, opts ...StoreOption) TaskStore {
	s := &taskStore{
		backend: backend,
		index:   make(map[string]int),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *taskStore) Load() error {
	tasks, err := s.backend.Load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swap(tasks)
	return nil
}

// swap installs tasks as the live set. Callers hold the write lock.
func (s *taskStore) swap(tasks []models.Task) {
	s.tasks = tasks
	s.index = make(map[string]int, len(tasks))
	for i, t := range tasks {
		s.index[t.ID] = i
	}
}

func (s *taskStore) Get(id string) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Task{}, models.NotFoundError(id)
	}
	return s.tasks[i].Clone(), nil
}

func (s *taskStore) All() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.tasks)
}

func (s *taskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *taskStore) List(filter models.TaskFilter) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Task
	for _, t := range s.tasks {
		if !filter.Matches(t) {
			continue
		}
		out = append(out, t.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

func (s *taskStore) Put(task models.Task) (models.Task, error) {
	if task.ID == "" {
		return models.Task{}, fmt.Errorf("putting task: ID must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	task = task.Clone()
	task.UpdatedAt = now
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	next := make([]models.Task, len(s.tasks), len(s.tasks)+1)
	copy(next, s.tasks)
	if i, ok := s.index[task.ID]; ok {
		next[i] = task
	} else {
		next = append(next, task)
	}

	if err := s.backend.Save(next); err != nil {
		return models.Task{}, err
	}
	s.swap(next)
	return task.Clone(), nil
}

func (s *taskStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return models.NotFoundError(id)
	}
	var dependents []string
	for _, t := range s.tasks {
		if t.ID != id && t.DependsOn(id) {
			dependents = append(dependents, t.Name)
		}
	}
	if len(dependents) > 0 {
		return &models.TaskError{
			Kind: models.ErrHasDependents,
			Task: s.tasks[i].Name,
			Msg:  "required by " + strings.Join(dependents, ", "),
		}
	}

	next := make([]models.Task, 0, len(s.tasks)-1)
	next = append(next, s.tasks[:i]...)
	next = append(next, s.tasks[i+1:]...)
	if err := s.backend.Save(next); err != nil {
		return err
	}
	s.swap(next)
	return nil
}

func (s *taskStore) Snapshot(reason string) (models.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(reason)
}

// snapshotLocked writes the live set to a new backup and prunes old ones.
func (s *taskStore) snapshotLocked(reason string) (models.Backup, error) {
	now := s.now().UTC()
	bk := models.Backup{
		ID:        newBackupID(now),
		CreatedAt: now,
		Reason:    reason,
		TaskCount: len(s.tasks),
	}
	if err := s.backend.WriteBackup(bk, s.tasks); err != nil {
		return models.Backup{}, err
	}
	if err := s.pruneLocked(); err != nil {
		return models.Backup{}, err
	}
	return bk, nil
}

func (s *taskStore) pruneLocked() error {
	if s.keep <= 0 {
		return nil
	}
	backups, err := s.backend.ListBackups()
	if err != nil {
		return fmt.Errorf("pruning backups: %w", err)
	}
	for _, bk := range backups[min(s.keep, len(backups)):] {
		if err := s.backend.DeleteBackup(bk.ID); err != nil {
			return fmt.Errorf("pruning backups: %w", err)
		}
	}
	return nil
}

func (s *taskStore) Clear(withBackup bool) (*models.Backup, error) {
	reason := ""
	if withBackup {
		reason = "clear"
	}
	return s.Replace(nil, reason)
}

func (s *taskStore) Replace(tasks []models.Task, backupReason string) (*models.Backup, error) {
	next := cloneAll(tasks)
	seen := make(map[string]struct{}, len(next))
	for _, t := range next {
		if t.ID == "" {
			return nil, fmt.Errorf("replacing tasks: task %q has no ID", t.Name)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("replacing tasks: duplicate ID %s", t.ID)
		}
		seen[t.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var bk *models.Backup
	if backupReason != "" {
		b, err := s.snapshotLocked(backupReason)
		if err != nil {
			return nil, err
		}
		bk = &b
	}
	if err := s.backend.Save(next); err != nil {
		return bk, err
	}
	s.swap(next)
	return bk, nil
}

func (s *taskStore) Backups() ([]models.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend.ListBackups()
}

func (s *taskStore) ReadBackup(id string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend.ReadBackup(id)
}

func (s *taskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}

func cloneAll(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
