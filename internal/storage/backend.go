package storage

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Backend persists the full task set and its backups. Implementations are
// not required to be safe for concurrent use; TaskStore serializes access.
type Backend interface {
	// Load returns tasks in insertion order. A missing store is empty.
	Load() ([]models.Task, error)
	// Save replaces the persisted task set atomically.
	Save(tasks []models.Task) error
	WriteBackup(b models.Backup, tasks []models.Task) error
	// ListBackups returns backups newest first.
	ListBackups() ([]models.Backup, error)
	ReadBackup(id string) ([]models.Task, error)
	DeleteBackup(id string) error
	Close() error
}

// NewTaskID returns a fresh random task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// IsTaskID reports whether s has the task identifier format.
func IsTaskID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newBackupID returns a ULID for t. Ids generated within the same
// millisecond still sort in creation order.
func newBackupID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
