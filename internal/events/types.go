// Package events carries change notifications out of the engine so that
// readers such as the board or an MCP session can react to commits without
// polling the store.
package events

import (
	"time"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Event is implemented by everything published on a Bus.
type Event interface {
	// EventType uses the "category.action" convention, e.g. "task.created".
	EventType() string
	Timestamp() time.Time
}

// Event types published by the engine.
const (
	TypeTaskCreated       = "task.created"
	TypeTaskStatusChanged = "task.status_changed"
	TypeTaskRemoved       = "task.removed"
)

// TaskChanged is the opaque notification emitted once per affected task
// after a mutating operation commits. Status is empty for removed tasks.
type TaskChanged struct {
	eventType string
	at        time.Time

	TaskID string
	Status models.TaskStatus
}

func (e TaskChanged) EventType() string    { return e.eventType }
func (e TaskChanged) Timestamp() time.Time { return e.at }

// NewTaskCreated reports a task that did not exist before the commit.
func NewTaskCreated(id string, status models.TaskStatus) TaskChanged {
	return TaskChanged{eventType: TypeTaskCreated, at: time.Now().UTC(), TaskID: id, Status: status}
}

// NewTaskStatusChanged reports a task whose status differs after the commit.
func NewTaskStatusChanged(id string, status models.TaskStatus) TaskChanged {
	return TaskChanged{eventType: TypeTaskStatusChanged, at: time.Now().UTC(), TaskID: id, Status: status}
}

// NewTaskRemoved reports a task deleted or dropped by the commit.
func NewTaskRemoved(id string) TaskChanged {
	return TaskChanged{eventType: TypeTaskRemoved, at: time.Now().UTC(), TaskID: id}
}
