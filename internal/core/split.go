package core

import (
	"errors"
	"fmt"

	"github.com/valter-silva-au/taskgraph/internal/events"
	"github.com/valter-silva-au/taskgraph/internal/graph"
	"github.com/valter-silva-au/taskgraph/internal/storage"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Split applies a batch of proposed tasks. Cycle and dangling checks run
// against the whole post-batch task set, so a selective batch is also
// checked against tasks it does not touch. Nothing is committed unless every
// check passes.
func (e *engine) Split(req models.SplitRequest) (*models.SplitResult, error) {
	unlock, err := e.lockWriter()
	if err != nil {
		return nil, err
	}
	res, changes, err := e.splitLocked(req)
	unlock()
	if err != nil {
		e.logger.Debug("split rejected", "mode", req.Mode, "tasks", len(req.Tasks), "error", err)
		return nil, err
	}
	e.logger.Info("split committed",
		"mode", req.Mode,
		"created", len(res.CreatedIDs),
		"updated", len(res.UpdatedIDs),
		"removed", len(res.RemovedIDs),
		"warnings", len(res.Warnings))
	e.publish(changes)
	return res, nil
}

func (e *engine) policyFor(req models.SplitRequest) models.ResolutionPolicy {
	if req.Policy.IsValid() {
		return req.Policy
	}
	if req.Import {
		return e.policies.ImportPolicy
	}
	return e.policies.CreatePolicy
}

func backupReasonFor(mode models.UpdateMode) string {
	switch mode {
	case models.ModeOverwrite, models.ModeClearAll:
		return string(mode)
	}
	return ""
}

func (e *engine) splitLocked(req models.SplitRequest) (*models.SplitResult, []events.Event, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	// Schema validation, every task at once.
	batch := make([]models.TaskTemplate, len(req.Tasks))
	var invalid []error
	for i, raw := range req.Tasks {
		batch[i] = normalizeTemplate(raw)
		if ve := ValidateTemplate(batch[i]); ve != nil {
			invalid = append(invalid, ve)
		}
	}
	if len(invalid) == 1 {
		return nil, nil, invalid[0]
	}
	if len(invalid) > 1 {
		return nil, nil, errors.Join(invalid...)
	}

	// Name uniqueness within the batch.
	inBatch := make(map[string]struct{}, len(batch))
	for _, t := range batch {
		if _, dup := inBatch[t.Name]; dup {
			return nil, nil, &models.TaskError{
				Kind: models.ErrNameCollision,
				Task: t.Name,
				Msg:  "name appears more than once in the batch",
			}
		}
		inBatch[t.Name] = struct{}{}
	}

	before := e.store.All()
	retained, removed := retainedFor(req.Mode, before)

	retainedByName := make(map[string]int, len(retained))
	for i, t := range retained {
		retainedByName[t.Name] = i
	}
	matched := make(map[int]int) // batch index -> retained index
	for i, t := range batch {
		idx, exists := retainedByName[t.Name]
		if !exists {
			continue
		}
		if req.Mode != models.ModeSelective {
			return nil, nil, &models.TaskError{
				Kind: models.ErrNameCollision,
				Task: t.Name,
				Msg:  "a task with this name already exists",
			}
		}
		matched[i] = idx
	}

	ids := make([]string, len(batch))
	for i := range batch {
		if idx, ok := matched[i]; ok {
			ids[i] = retained[idx].ID
		} else {
			ids[i] = storage.NewTaskID()
		}
	}

	// Resolve against surviving tasks plus the batch itself.
	ix := NewNameIndex(retained)
	for i, t := range batch {
		ix.Add(ids[i], t.Name)
	}
	policy := e.policyFor(req)
	var warnings []models.Warning
	resolved := make([][]string, len(batch))
	for i, t := range batch {
		res, err := resolveAll(ids[i], t.Name, t.Dependencies, ix, policy)
		if err != nil {
			return nil, nil, err
		}
		resolved[i] = res.ids
		warnings = append(warnings, res.warnings...)
	}

	now := e.timestamp()
	next := append(make([]models.Task, 0, len(retained)+len(batch)), retained...)
	original := make(map[string]models.Task, len(matched))
	var created, updated []string
	for i, tmpl := range batch {
		var t *models.Task
		if idx, ok := matched[i]; ok {
			t = &next[idx]
			original[t.ID] = t.Clone()
			updated = append(updated, t.ID)
		} else {
			next = append(next, models.Task{ID: ids[i], CreatedAt: now, UpdatedAt: now})
			t = &next[len(next)-1]
			created = append(created, t.ID)
		}
		applyTemplate(t, tmpl)
		t.Dependencies = resolved[i]
		if req.GlobalContext != "" {
			t.AnalysisResult = req.GlobalContext
		}
	}

	g, err := verifyGraph(next)
	if err != nil {
		return nil, nil, err
	}
	soft, err := checkGranularity(e.rules, req.Strict, batch, ids, g)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, soft...)

	r := NewReadiness(next, now)
	for _, id := range created {
		t := r.task(id)
		t.Status, t.BlockedReason = initialStatus(r.DepsCompleted(id))
	}
	if _, err := r.Reconcile(updated); err != nil {
		return nil, nil, err
	}
	next = r.Tasks()
	for i := range next {
		if orig, ok := original[next[i].ID]; ok && !sameContent(orig, next[i]) {
			next[i].UpdatedAt = now
		}
	}

	bk, changes, err := e.commitLocked(before, next, backupReasonFor(req.Mode))
	if err != nil {
		return nil, nil, err
	}

	res := &models.SplitResult{
		CreatedIDs: nonNilIDs(created),
		UpdatedIDs: updated,
		RemovedIDs: removed,
		Warnings:   warnings,
		Operation: models.SplitOperation{
			Mode:        req.Mode,
			TasksBefore: len(before),
			TasksAfter:  len(next),
			Added:       len(created),
			Updated:     len(updated),
			Removed:     len(removed),
		},
	}
	if bk != nil {
		res.BackupID = bk.ID
	}

	e.audit(EventSplitCommitted, map[string]any{
		"mode":      string(req.Mode),
		"created":   len(created),
		"updated":   len(updated),
		"removed":   len(removed),
		"warnings":  len(warnings),
		"backup_id": res.BackupID,
		"task_ids":  append(append([]string(nil), created...), updated...),
	})
	if req.Mode == models.ModeClearAll {
		e.audit(EventStoreCleared, map[string]any{
			"reason":    string(req.Mode),
			"removed":   len(removed),
			"backup_id": res.BackupID,
		})
	}
	return res, changes, nil
}

func validateRequest(req models.SplitRequest) error {
	var issues []models.FieldIssue
	if !req.Mode.IsValid() {
		issues = append(issues, models.FieldIssue{
			Field:   "update_mode",
			Message: fmt.Sprintf("%q is invalid, must be one of: append, overwrite, selective, clearAllTasks", req.Mode),
		})
	}
	if req.Policy != "" && !req.Policy.IsValid() {
		issues = append(issues, models.FieldIssue{
			Field:   "policy",
			Message: fmt.Sprintf("%q is invalid, must be strict or skip", req.Policy),
		})
	}
	if len(req.Tasks) == 0 && req.Mode != models.ModeClearAll {
		issues = append(issues, models.FieldIssue{Field: "tasks", Message: "at least one task is required"})
	}
	if len(issues) > 0 {
		return &models.ValidationError{Issues: issues}
	}
	return nil
}

// retainedFor returns the committed tasks that survive a batch in mode, in
// store order, and the ids it drops.
func retainedFor(mode models.UpdateMode, before []models.Task) (retained []models.Task, removed []string) {
	switch mode {
	case models.ModeAppend, models.ModeSelective:
		return before, nil
	case models.ModeOverwrite:
		for _, t := range before {
			if t.Status == models.StatusCompleted {
				retained = append(retained, t)
			} else {
				removed = append(removed, t.ID)
			}
		}
		return retained, removed
	default:
		for _, t := range before {
			removed = append(removed, t.ID)
		}
		return nil, removed
	}
}

// sameContent compares every field except updated_at.
func sameContent(a, b models.Task) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Description != b.Description ||
		a.ImplementationGuide != b.ImplementationGuide ||
		a.VerificationCriteria != b.VerificationCriteria ||
		a.Status != b.Status || a.BlockedReason != b.BlockedReason ||
		a.Priority != b.Priority || a.Complexity != b.Complexity ||
		a.EstimatedHours != b.EstimatedHours || a.Category != b.Category ||
		a.Notes != b.Notes || a.AnalysisResult != b.AnalysisResult ||
		!a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	if len(a.Dependencies) != len(b.Dependencies) || len(a.RelatedFiles) != len(b.RelatedFiles) {
		return false
	}
	for i := range a.Dependencies {
		if a.Dependencies[i] != b.Dependencies[i] {
			return false
		}
	}
	for i := range a.RelatedFiles {
		if !sameFile(a.RelatedFiles[i], b.RelatedFiles[i]) {
			return false
		}
	}
	return true
}

func sameFile(a, b models.RelatedFile) bool {
	return a.Path == b.Path && a.RelationType == b.RelationType && a.Description == b.Description &&
		sameLine(a.LineStart, b.LineStart) && sameLine(a.LineEnd, b.LineEnd)
}

func sameLine(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// ExecutionPlan orders a proposed batch without committing it. Dependencies
// are matched against sibling names only; references outside the batch are
// treated as already satisfied.
func (e *engine) ExecutionPlan(templates []models.TaskTemplate) ([]string, error) {
	tasks := make([]models.Task, len(templates))
	seen := make(map[string]struct{}, len(templates))
	for i, raw := range templates {
		t := normalizeTemplate(raw)
		if t.Name == "" {
			return nil, &models.ValidationError{
				Issues: []models.FieldIssue{{Field: fmt.Sprintf("tasks[%d].name", i), Message: "must not be empty"}},
			}
		}
		if _, dup := seen[t.Name]; dup {
			return nil, &models.TaskError{Kind: models.ErrNameCollision, Task: t.Name,
				Msg: "name appears more than once in the batch"}
		}
		seen[t.Name] = struct{}{}
		tasks[i] = models.Task{ID: t.Name, Name: t.Name, Dependencies: t.Dependencies}
	}
	return graph.Build(tasks).TopologicalOrder()
}
