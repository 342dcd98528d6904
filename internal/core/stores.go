package core

import (
	"github.com/valter-silva-au/taskgraph/internal/events"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// TaskRepository is the subset of storage.TaskStore the engine needs.
// Defining it here lets tests substitute a store without a backend.
type TaskRepository interface {
	All() []models.Task
	Get(id string) (models.Task, error)
	List(filter models.TaskFilter) []models.Task
	Delete(id string) error
	Clear(withBackup bool) (*models.Backup, error)
	Replace(tasks []models.Task, backupReason string) (*models.Backup, error)
	Backups() ([]models.Backup, error)
	ReadBackup(id string) ([]models.Task, error)
}

// ChangeBus is the subset of events.Bus the engine publishes to.
type ChangeBus interface {
	Publish(e events.Event)
	SubscribeAll(handler events.Handler) string
	Unsubscribe(id string) bool
}

// WriterLock serializes writers across processes sharing one task store.
type WriterLock interface {
	Lock() (unlock func() error, err error)
}

// reloader is implemented by stores that can re-read their backend, so a
// writer holding the WriterLock sees commits made by other processes.
type reloader interface {
	Load() error
}
