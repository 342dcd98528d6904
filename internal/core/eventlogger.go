package core

// EventLogger is the subset of the observability audit log the engine writes
// committed mutations to. Defining it here avoids importing observability.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Audit event types.
const (
	EventSplitCommitted    = "split.committed"
	EventTaskStatusChanged = "task.status_changed"
	EventTaskUpdated       = "task.updated"
	EventTaskDeleted       = "task.deleted"
	EventStoreCleared      = "store.cleared"
	EventBackupCreated     = "backup.created"
	EventBackupRestored    = "backup.restored"
)
