package core

import (
	"fmt"

	"github.com/valter-silva-au/taskgraph/internal/events"
	"github.com/valter-silva-au/taskgraph/internal/graph"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// TaskUpdate carries a partial content update. Nil fields are left as they
// are. Dependencies, when set, replaces the whole list and is resolved like a
// split under the strict policy.
type TaskUpdate struct {
	Name                 *string
	Description          *string
	ImplementationGuide  *string
	VerificationCriteria *string
	Priority             *models.Priority
	Complexity           *models.Complexity
	EstimatedHours       *int
	Dependencies         *[]string
	RelatedFiles         *[]models.RelatedFile
	Category             *string
	Notes                *string
}

// Fields returns the names of the fields the update sets.
func (u TaskUpdate) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(u.Name != nil, "name")
	add(u.Description != nil, "description")
	add(u.ImplementationGuide != nil, "implementation_guide")
	add(u.VerificationCriteria != nil, "verification_criteria")
	add(u.Priority != nil, "priority")
	add(u.Complexity != nil, "complexity")
	add(u.EstimatedHours != nil, "estimated_hours")
	add(u.Dependencies != nil, "dependencies")
	add(u.RelatedFiles != nil, "related_files")
	add(u.Category != nil, "category")
	add(u.Notes != nil, "notes")
	return out
}

func (u TaskUpdate) apply(t models.TaskTemplate) models.TaskTemplate {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.ImplementationGuide != nil {
		t.ImplementationGuide = *u.ImplementationGuide
	}
	if u.VerificationCriteria != nil {
		t.VerificationCriteria = *u.VerificationCriteria
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.Complexity != nil {
		t.Complexity = *u.Complexity
	}
	if u.EstimatedHours != nil {
		t.EstimatedHours = *u.EstimatedHours
	}
	if u.Dependencies != nil {
		t.Dependencies = append([]string(nil), (*u.Dependencies)...)
	}
	if u.RelatedFiles != nil {
		t.RelatedFiles = *u.RelatedFiles
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	return t
}

// StatusChange describes a committed status transition and the dependents
// it released.
type StatusChange struct {
	Task     models.Task       `json:"task"`
	From     models.TaskStatus `json:"from"`
	To       models.TaskStatus `json:"to"`
	Released []string          `json:"released,omitempty"`
}

// RestoreResult describes a committed backup restore.
type RestoreResult struct {
	Backup   models.Backup `json:"backup"`
	Restored int           `json:"restored"`
	// SafetyBackup is the snapshot of the set that the restore replaced.
	SafetyBackup *models.Backup `json:"safety_backup,omitempty"`
}

func indexOf(tasks []models.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// --- Content updates ---

func (e *engine) UpdateTask(ref string, upd TaskUpdate) (models.Task, error) {
	unlock, err := e.lockWriter()
	if err != nil {
		return models.Task{}, err
	}
	t, changes, err := e.updateLocked(ref, upd)
	unlock()
	if err != nil {
		return models.Task{}, err
	}
	e.publish(changes)
	return t, nil
}

func (e *engine) updateLocked(ref string, upd TaskUpdate) (models.Task, []events.Event, error) {
	cur, err := e.findLocked(ref)
	if err != nil {
		return models.Task{}, nil, err
	}
	base := templateOf(cur)
	if upd.Dependencies == nil {
		// Stored dependencies are ids already; validate the rest only.
		base.Dependencies = nil
	}
	tmpl := normalizeTemplate(upd.apply(base))
	if ve := ValidateTemplate(tmpl); ve != nil {
		return models.Task{}, nil, ve
	}

	before := e.store.All()
	if tmpl.Name != cur.Name {
		for _, t := range before {
			if t.ID != cur.ID && t.Name == tmpl.Name {
				return models.Task{}, nil, &models.TaskError{
					Kind: models.ErrNameCollision,
					Task: tmpl.Name,
					Msg:  "a task with this name already exists",
				}
			}
		}
	}

	deps := cur.Dependencies
	if upd.Dependencies != nil {
		res, err := resolveAll(cur.ID, tmpl.Name, tmpl.Dependencies, NewNameIndex(before), models.ResolveStrict)
		if err != nil {
			return models.Task{}, nil, err
		}
		deps = res.ids
	}

	now := e.timestamp()
	next := cloneTasks(before)
	i := indexOf(next, cur.ID)
	applyTemplate(&next[i], tmpl)
	next[i].Dependencies = deps

	if _, err := verifyGraph(next); err != nil {
		return models.Task{}, nil, err
	}
	r := NewReadiness(next, now)
	if _, err := r.Reconcile([]string{cur.ID}); err != nil {
		return models.Task{}, nil, err
	}
	next = r.Tasks()
	if sameContent(cur, next[i]) {
		return cur, nil, nil
	}
	next[i].UpdatedAt = now

	_, changes, err := e.commitLocked(before, next, "")
	if err != nil {
		return models.Task{}, nil, err
	}
	e.audit(EventTaskUpdated, map[string]any{
		"task_id": cur.ID,
		"name":    next[i].Name,
		"fields":  upd.Fields(),
	})
	if next[i].Status != cur.Status {
		e.auditStatus(next[i], cur.Status, "dependencies changed")
	}
	return next[i], changes, nil
}

func cloneTasks(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

func (e *engine) auditStatus(t models.Task, from models.TaskStatus, reason string) {
	data := map[string]any{
		"task_id": t.ID,
		"name":    t.Name,
		"from":    string(from),
		"to":      string(t.Status),
	}
	if reason != "" {
		data["reason"] = reason
	}
	e.audit(EventTaskStatusChanged, data)
}

// --- Status transitions ---

func (e *engine) SetStatus(ref string, to models.TaskStatus) (*StatusChange, error) {
	return e.transition(ref, "", to)
}

// Start moves a PENDING task with completed dependencies to IN_PROGRESS.
func (e *engine) Start(ref string) (*StatusChange, error) {
	return e.transition(ref, models.StatusPending, models.StatusInProgress)
}

// Complete marks an IN_PROGRESS task COMPLETED and releases its dependents.
func (e *engine) Complete(ref string) (*StatusChange, error) {
	return e.transition(ref, models.StatusInProgress, models.StatusCompleted)
}

// Block records an external blocker on an IN_PROGRESS task.
func (e *engine) Block(ref string) (*StatusChange, error) {
	return e.transition(ref, models.StatusInProgress, models.StatusBlocked)
}

// Reset returns an IN_PROGRESS task to PENDING.
func (e *engine) Reset(ref string) (*StatusChange, error) {
	return e.transition(ref, models.StatusInProgress, models.StatusPending)
}

// Unblock returns a BLOCKED task to PENDING once its dependencies are done.
func (e *engine) Unblock(ref string) (*StatusChange, error) {
	return e.transition(ref, models.StatusBlocked, models.StatusPending)
}

// transition applies to, requiring the task to currently be in from unless
// from is empty.
func (e *engine) transition(ref string, from, to models.TaskStatus) (*StatusChange, error) {
	unlock, err := e.lockWriter()
	if err != nil {
		return nil, err
	}
	sc, changes, err := e.transitionLocked(ref, from, to)
	unlock()
	if err != nil {
		return nil, err
	}
	e.logger.Info("task status changed",
		"task_id", sc.Task.ID, "from", sc.From, "to", sc.To, "released", len(sc.Released))
	e.publish(changes)
	return sc, nil
}

func (e *engine) transitionLocked(ref string, from, to models.TaskStatus) (*StatusChange, []events.Event, error) {
	cur, err := e.findLocked(ref)
	if err != nil {
		return nil, nil, err
	}
	if from != "" && cur.Status != from {
		return nil, nil, &models.TransitionError{Task: cur.Name, From: cur.Status, To: to,
			Reason: fmt.Sprintf("task must be %s", from)}
	}

	before := e.store.All()
	now := e.timestamp()
	r := NewReadiness(before, now)
	if err := checkTransition(cur, to, r.DepsCompleted(cur.ID)); err != nil {
		return nil, nil, err
	}
	t := r.task(cur.ID)
	applyStatus(t, to)
	t.UpdatedAt = now

	var released []string
	if to == models.StatusCompleted {
		released = r.OnStatusChange(cur.ID)
	}
	next := r.Tasks()

	_, changes, err := e.commitLocked(before, next, "")
	if err != nil {
		return nil, nil, err
	}
	updated := r.task(cur.ID).Clone()
	e.auditStatus(updated, cur.Status, "")
	for _, id := range released {
		e.auditStatus(*r.task(id), models.StatusBlocked, "dependencies completed")
	}
	return &StatusChange{Task: updated, From: cur.Status, To: to, Released: released}, changes, nil
}

// --- Deletion and dependency edits ---

func (e *engine) DeleteTask(ref string) error {
	unlock, err := e.lockWriter()
	if err != nil {
		return err
	}
	cur, err := e.findLocked(ref)
	if err == nil {
		err = e.store.Delete(cur.ID)
	}
	unlock()
	if err != nil {
		return err
	}
	e.audit(EventTaskDeleted, map[string]any{"task_id": cur.ID, "name": cur.Name})
	e.logger.Info("task deleted", "task_id", cur.ID)
	e.publish([]events.Event{events.NewTaskRemoved(cur.ID)})
	return nil
}

func (e *engine) AddDependency(ref, depRef string) (models.Task, error) {
	unlock, err := e.lockWriter()
	if err != nil {
		return models.Task{}, err
	}
	t, changes, err := e.editDependencyLocked(ref, depRef, true)
	unlock()
	if err != nil {
		return models.Task{}, err
	}
	e.publish(changes)
	return t, nil
}

func (e *engine) RemoveDependency(ref, depRef string) (models.Task, error) {
	unlock, err := e.lockWriter()
	if err != nil {
		return models.Task{}, err
	}
	t, changes, err := e.editDependencyLocked(ref, depRef, false)
	unlock()
	if err != nil {
		return models.Task{}, err
	}
	e.publish(changes)
	return t, nil
}

func (e *engine) editDependencyLocked(ref, depRef string, add bool) (models.Task, []events.Event, error) {
	cur, err := e.findLocked(ref)
	if err != nil {
		return models.Task{}, nil, err
	}
	dep, err := e.findLocked(depRef)
	if err != nil {
		return models.Task{}, nil, err
	}

	before := e.store.All()
	next := cloneTasks(before)
	i := indexOf(next, cur.ID)

	if add {
		if dep.ID == cur.ID {
			return models.Task{}, nil, &models.ValidationError{
				Task:   cur.Name,
				Issues: []models.FieldIssue{{Field: "dependencies", Message: "a task cannot depend on itself"}},
			}
		}
		if cur.DependsOn(dep.ID) {
			return cur, nil, nil
		}
		g := graph.Build(before)
		if path := g.Path(cur.ID, dep.ID); path != nil {
			members := make([]string, 0, len(path)+1)
			for _, id := range path {
				members = append(members, g.Name(id))
			}
			members = append(members, cur.Name)
			return models.Task{}, nil, &models.CycleError{Members: members}
		}
		next[i].Dependencies = append(next[i].Dependencies, dep.ID)
	} else {
		if !cur.DependsOn(dep.ID) {
			return models.Task{}, nil, &models.TaskError{
				Kind: models.ErrNotFound,
				Task: cur.Name,
				Ref:  depRef,
				Msg:  "not a dependency of this task",
			}
		}
		kept := make([]string, 0, len(cur.Dependencies))
		for _, d := range cur.Dependencies {
			if d != dep.ID {
				kept = append(kept, d)
			}
		}
		next[i].Dependencies = kept
	}

	now := e.timestamp()
	r := NewReadiness(next, now)
	if _, err := r.Reconcile([]string{cur.ID}); err != nil {
		return models.Task{}, nil, err
	}
	next = r.Tasks()
	next[i].UpdatedAt = now

	_, changes, err := e.commitLocked(before, next, "")
	if err != nil {
		return models.Task{}, nil, err
	}
	e.audit(EventTaskUpdated, map[string]any{
		"task_id": cur.ID,
		"name":    cur.Name,
		"fields":  []string{"dependencies"},
	})
	if next[i].Status != cur.Status {
		e.auditStatus(next[i], cur.Status, "dependencies changed")
	}
	return next[i], changes, nil
}

// --- Reset and recovery ---

// ClearAll snapshots the current set to a backup and empties the store.
func (e *engine) ClearAll() (*models.Backup, error) {
	unlock, err := e.lockWriter()
	if err != nil {
		return nil, err
	}
	before := e.store.All()
	bk, err := e.store.Clear(true)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("clearing tasks: %w", err)
	}
	if bk != nil {
		e.audit(EventBackupCreated, map[string]any{
			"backup_id":  bk.ID,
			"reason":     bk.Reason,
			"task_count": bk.TaskCount,
		})
	}
	data := map[string]any{"reason": "clear", "removed": len(before)}
	if bk != nil {
		data["backup_id"] = bk.ID
	}
	e.audit(EventStoreCleared, data)
	e.logger.Info("store cleared", "removed", len(before))
	e.publish(diffChanges(before, nil))
	return bk, nil
}

// RestoreBackup replaces the live set with the contents of backup id. The
// live set is snapshotted first and the restored set must satisfy the same
// graph invariants as any other commit.
func (e *engine) RestoreBackup(id string) (*RestoreResult, error) {
	unlock, err := e.lockWriter()
	if err != nil {
		return nil, err
	}
	res, changes, err := e.restoreLocked(id)
	unlock()
	if err != nil {
		return nil, err
	}
	e.logger.Info("backup restored", "backup_id", id, "tasks", res.Restored)
	e.publish(changes)
	return res, nil
}

func (e *engine) restoreLocked(id string) (*RestoreResult, []events.Event, error) {
	backups, err := e.store.Backups()
	if err != nil {
		return nil, nil, fmt.Errorf("listing backups: %w", err)
	}
	var meta *models.Backup
	for i := range backups {
		if backups[i].ID == id {
			meta = &backups[i]
			break
		}
	}
	if meta == nil {
		return nil, nil, models.NotFoundError(id)
	}
	tasks, err := e.store.ReadBackup(id)
	if err != nil {
		return nil, nil, fmt.Errorf("reading backup %s: %w", id, err)
	}

	names := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := names[t.Name]; dup {
			return nil, nil, &models.TaskError{Kind: models.ErrNameCollision, Task: t.Name,
				Msg: "backup contains duplicate names"}
		}
		names[t.Name] = struct{}{}
	}

	before := e.store.All()
	safety, changes, err := e.commitLocked(before, tasks, "restore")
	if err != nil {
		return nil, nil, err
	}
	data := map[string]any{"backup_id": id, "restored": len(tasks)}
	if safety != nil {
		data["safety_backup_id"] = safety.ID
	}
	e.audit(EventBackupRestored, data)
	return &RestoreResult{Backup: *meta, Restored: len(tasks), SafetyBackup: safety}, changes, nil
}
