package models

import "time"

// Backup describes an immutable snapshot of the full task set, taken before a
// destructive operation. ID is a ULID, so lexical order is creation order.
type Backup struct {
	ID        string    `yaml:"id" json:"id"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	Reason    string    `yaml:"reason" json:"reason"`
	TaskCount int       `yaml:"task_count" json:"task_count"`
}
