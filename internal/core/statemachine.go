package core

import "github.com/valter-silva-au/taskgraph/pkg/models"

// IsAllowedTransition reports whether from -> to is an edge of the task
// status state machine. COMPLETED is terminal.
//
//	PENDING     -> IN_PROGRESS  start
//	IN_PROGRESS -> COMPLETED    verification passed
//	IN_PROGRESS -> BLOCKED      blocker signal
//	IN_PROGRESS -> PENDING      reset / retry
//	BLOCKED     -> PENDING      dependencies done, or explicit unblock
//
// Moving PENDING to BLOCKED after a dependency edit is reconciliation done by
// the engine (Readiness.Reconcile), not a transition callers can request.
func IsAllowedTransition(from, to models.TaskStatus) bool {
	switch from {
	case models.StatusPending:
		return to == models.StatusInProgress
	case models.StatusInProgress:
		return to == models.StatusCompleted || to == models.StatusBlocked || to == models.StatusPending
	case models.StatusBlocked:
		return to == models.StatusPending
	default:
		return false
	}
}

// initialStatus is the status of a task when it is created: PENDING when
// every dependency is already COMPLETED, otherwise BLOCKED.
func initialStatus(depsDone bool) (models.TaskStatus, models.BlockedReason) {
	if depsDone {
		return models.StatusPending, ""
	}
	return models.StatusBlocked, models.BlockedByDependencies
}

// checkTransition validates a requested status change of t. depsDone reports
// whether all of t's dependencies are COMPLETED.
func checkTransition(t models.Task, to models.TaskStatus, depsDone bool) error {
	if !to.IsValid() {
		return &models.ValidationError{
			Task:   t.Name,
			Issues: []models.FieldIssue{{Field: "status", Message: "unknown status " + string(to)}},
		}
	}
	if !IsAllowedTransition(t.Status, to) {
		return &models.TransitionError{Task: t.Name, From: t.Status, To: to}
	}
	switch {
	case t.Status == models.StatusPending && to == models.StatusInProgress && !depsDone:
		return &models.TransitionError{Task: t.Name, From: t.Status, To: to,
			Reason: "dependencies are not all COMPLETED"}
	case t.Status == models.StatusBlocked && to == models.StatusPending && !depsDone:
		return &models.TransitionError{Task: t.Name, From: t.Status, To: to,
			Reason: "dependencies are not all COMPLETED"}
	}
	return nil
}

// applyStatus sets the status and keeps the blocked reason consistent with
// it. An explicit BLOCKED is an external blocker.
func applyStatus(t *models.Task, to models.TaskStatus) {
	t.Status = to
	if to == models.StatusBlocked {
		t.BlockedReason = models.BlockedExternally
	} else {
		t.BlockedReason = ""
	}
}
