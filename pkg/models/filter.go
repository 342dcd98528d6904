package models

import "strings"

// TaskFilter specifies criteria for listing tasks.
// All specified fields use AND logic: a task must match every criterion.
type TaskFilter struct {
	Status       []TaskStatus
	Priority     []Priority
	Category     string
	NameContains string
	// Limit caps the result size; 0 means unlimited.
	Limit int
}

// Matches reports whether t satisfies every criterion in f.
func (f TaskFilter) Matches(t Task) bool {
	if len(f.Status) > 0 && !containsStatus(f.Status, t.Status) {
		return false
	}
	if len(f.Priority) > 0 && !containsPriority(f.Priority, t.Priority) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(t.Category, f.Category) {
		return false
	}
	if f.NameContains != "" &&
		!strings.Contains(strings.ToLower(t.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}

func containsStatus(haystack []TaskStatus, needle TaskStatus) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsPriority(haystack []Priority, needle Priority) bool {
	for _, p := range haystack {
		if p == needle {
			return true
		}
	}
	return false
}
