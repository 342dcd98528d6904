package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by the engine wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrNameCollision        = errors.New("name collision")
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	ErrCycleDetected        = errors.New("cycle detected")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrHasDependents        = errors.New("task has dependents")
	ErrNotFound             = errors.New("not found")
)

// FieldIssue is a single violated field constraint.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every constraint a task violated.
type ValidationError struct {
	Task   string       `json:"task,omitempty"`
	Issues []FieldIssue `json:"issues"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Field + ": " + is.Message
	}
	if e.Task != "" {
		return fmt.Sprintf("%s: task %q:\n  - %s", ErrValidation, e.Task, strings.Join(parts, "\n  - "))
	}
	return fmt.Sprintf("%s:\n  - %s", ErrValidation, strings.Join(parts, "\n  - "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TaskError carries a kind together with the offending task and reference.
type TaskError struct {
	Kind error
	Task string
	Ref  string
	Msg  string
}

func (e *TaskError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Task != "" {
		fmt.Fprintf(&b, ": task %q", e.Task)
	}
	if e.Ref != "" {
		fmt.Fprintf(&b, ": reference %q", e.Ref)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *TaskError) Unwrap() error { return e.Kind }

// NotFoundError reports a missed id or name lookup.
func NotFoundError(ref string) error {
	return &TaskError{Kind: ErrNotFound, Ref: ref}
}

// CycleError names the tasks forming a dependency cycle, in edge order with
// the first member repeated at the end.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	if len(e.Members) == 0 {
		return ErrCycleDetected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Members, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// TransitionError reports a status change outside the state machine.
type TransitionError struct {
	Task   string
	From   TaskStatus
	To     TaskStatus
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: task %q: %s -> %s", ErrInvalidTransition, e.Task, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
