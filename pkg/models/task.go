package models

import "time"

// TaskStatus represents the current execution state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusBlocked    TaskStatus = "BLOCKED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted, StatusBlocked}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// BlockedReason records why a task sits in BLOCKED.
type BlockedReason string

const (
	// BlockedByDependencies is set when at least one dependency is not
	// COMPLETED. Such tasks are released automatically.
	BlockedByDependencies BlockedReason = "dependencies"
	// BlockedExternally is set by an explicit blocker signal while in progress.
	BlockedExternally BlockedReason = "external"
)

// Priority represents the urgency level of a task.
type Priority string

const (
	P0 Priority = "P0"
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
)

// DefaultPriority is applied when a proposed task omits priority.
const DefaultPriority = P2

// IsValid reports whether p is one of P0..P3.
func (p Priority) IsValid() bool {
	switch p {
	case P0, P1, P2, P3:
		return true
	}
	return false
}

// Complexity is a coarse size estimate for a task.
type Complexity string

const (
	ComplexitySimple   Complexity = "SIMPLE"
	ComplexityModerate Complexity = "MODERATE"
	ComplexityComplex  Complexity = "COMPLEX"
	ComplexityEpic     Complexity = "EPIC"
)

// IsValid reports whether c is a known complexity level.
func (c Complexity) IsValid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityEpic:
		return true
	}
	return false
}

// HourRange returns the exclusive lower and inclusive upper hour bounds for
// the complexity level. A zero max means unbounded.
//
//	SIMPLE   (0, 4]
//	MODERATE (4, 8]
//	COMPLEX  (8, 16]
//	EPIC     (16, ∞)
func (c Complexity) HourRange() (minExclusive, maxInclusive int) {
	switch c {
	case ComplexitySimple:
		return 0, 4
	case ComplexityModerate:
		return 4, 8
	case ComplexityComplex:
		return 8, 16
	case ComplexityEpic:
		return 16, 0
	}
	return 0, 0
}

// Allows reports whether hours falls inside the complexity's range.
func (c Complexity) Allows(hours int) bool {
	lo, hi := c.HourRange()
	if hours <= lo {
		return false
	}
	return hi == 0 || hours <= hi
}

// RelationType describes how a related file participates in a task.
type RelationType string

const (
	RelationToModify   RelationType = "TO_MODIFY"
	RelationReference  RelationType = "REFERENCE"
	RelationCreate     RelationType = "CREATE"
	RelationDependency RelationType = "DEPENDENCY"
	RelationOther      RelationType = "OTHER"
)

// IsValid reports whether r is a known relation type.
func (r RelationType) IsValid() bool {
	switch r {
	case RelationToModify, RelationReference, RelationCreate, RelationDependency, RelationOther:
		return true
	}
	return false
}

// RelatedFile is a file associated with a task, optionally narrowed to a
// line range.
type RelatedFile struct {
	Path         string       `yaml:"path" json:"path"`
	RelationType RelationType `yaml:"relation_type" json:"relation_type"`
	Description  string       `yaml:"description" json:"description"`
	LineStart    *int         `yaml:"line_start,omitempty" json:"line_start,omitempty"`
	LineEnd      *int         `yaml:"line_end,omitempty" json:"line_end,omitempty"`
}

// Task is the unit of work tracked by the dependency graph.
type Task struct {
	ID                   string        `yaml:"id" json:"id"`
	Name                 string        `yaml:"name" json:"name"`
	Description          string        `yaml:"description" json:"description"`
	ImplementationGuide  string        `yaml:"implementation_guide" json:"implementation_guide"`
	VerificationCriteria string        `yaml:"verification_criteria,omitempty" json:"verification_criteria,omitempty"`
	Status               TaskStatus    `yaml:"status" json:"status"`
	BlockedReason        BlockedReason `yaml:"blocked_reason,omitempty" json:"blocked_reason,omitempty"`
	Priority             Priority      `yaml:"priority" json:"priority"`
	Complexity           Complexity    `yaml:"complexity,omitempty" json:"complexity,omitempty"`
	EstimatedHours       int           `yaml:"estimated_hours,omitempty" json:"estimated_hours,omitempty"`
	Dependencies         []string      `yaml:"dependencies" json:"dependencies"`
	RelatedFiles         []RelatedFile `yaml:"related_files,omitempty" json:"related_files,omitempty"`
	Category             string        `yaml:"category,omitempty" json:"category,omitempty"`
	Notes                string        `yaml:"notes,omitempty" json:"notes,omitempty"`
	AnalysisResult       string        `yaml:"analysis_result,omitempty" json:"analysis_result,omitempty"`
	CreatedAt            time.Time     `yaml:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `yaml:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy of t so that callers can mutate it freely.
func (t Task) Clone() Task {
	out := t
	if t.Dependencies != nil {
		out.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.RelatedFiles != nil {
		out.RelatedFiles = make([]RelatedFile, len(t.RelatedFiles))
		for i, rf := range t.RelatedFiles {
			out.RelatedFiles[i] = rf.clone()
		}
	}
	return out
}

// DependsOn reports whether id is among t's dependencies.
func (t Task) DependsOn(id string) bool {
	for _, d := range t.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}

func (rf RelatedFile) clone() RelatedFile {
	out := rf
	if rf.LineStart != nil {
		v := *rf.LineStart
		out.LineStart = &v
	}
	if rf.LineEnd != nil {
		v := *rf.LineEnd
		out.LineEnd = &v
	}
	return out
}
