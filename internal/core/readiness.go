package core

import (
	"sort"
	"time"

	"github.com/valter-silva-au/taskgraph/internal/graph"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Readiness evaluates execution eligibility over one working copy of the
// task set. It mutates only its copy; the engine commits the result.
type Readiness struct {
	g     *graph.Graph
	tasks []models.Task
	pos   map[string]int
	now   time.Time
}

// NewReadiness builds an evaluator over a deep copy of tasks. now stamps the
// updated_at of any task whose status the evaluator changes.
func NewReadiness(tasks []models.Task, now time.Time) *Readiness {
	r := &Readiness{
		g:     graph.Build(tasks),
		tasks: make([]models.Task, len(tasks)),
		pos:   make(map[string]int, len(tasks)),
		now:   now,
	}
	for i, t := range tasks {
		r.tasks[i] = t.Clone()
		r.pos[t.ID] = i
	}
	return r
}

// Tasks returns the working copy in insertion order.
func (r *Readiness) Tasks() []models.Task { return r.tasks }

// Graph returns the index the evaluator was built on.
func (r *Readiness) Graph() *graph.Graph { return r.g }

func (r *Readiness) task(id string) *models.Task {
	if i, ok := r.pos[id]; ok {
		return &r.tasks[i]
	}
	return nil
}

// DepsCompleted reports whether every dependency of id is COMPLETED.
func (r *Readiness) DepsCompleted(id string) bool {
	deps, ok := r.g.DependenciesOf(id)
	if !ok {
		return false
	}
	for _, d := range deps {
		if t := r.task(d); t == nil || t.Status != models.StatusCompleted {
			return false
		}
	}
	return true
}

// OnStatusChange re-evaluates the full dependent closure of id breadth-first
// and releases every dependency-blocked task whose dependencies are now all
// COMPLETED. It returns the released ids in visit order.
func (r *Readiness) OnStatusChange(id string) []string {
	var released []string
	for _, d := range r.g.Descendants(id) {
		t := r.task(d)
		if t.Status != models.StatusBlocked || t.BlockedReason != models.BlockedByDependencies {
			continue
		}
		if r.DepsCompleted(d) {
			t.Status = models.StatusPending
			t.BlockedReason = ""
			t.UpdatedAt = r.now
			released = append(released, d)
		}
	}
	return released
}

// Reconcile brings the given tasks in line with their current dependencies:
// a PENDING or IN_PROGRESS task with an unfinished dependency becomes
// dependency-blocked, and a dependency-blocked task whose dependencies are
// done returns to PENDING. A COMPLETED task with an unfinished dependency is
// rejected. It returns the ids whose status changed.
func (r *Readiness) Reconcile(ids []string) ([]string, error) {
	var changed []string
	for _, id := range ids {
		t := r.task(id)
		if t == nil {
			continue
		}
		done := r.DepsCompleted(id)
		switch {
		case t.Status == models.StatusCompleted && !done:
			return nil, &models.ValidationError{
				Task: t.Name,
				Issues: []models.FieldIssue{{
					Field:   "dependencies",
					Message: "a COMPLETED task cannot depend on unfinished work",
				}},
			}
		case (t.Status == models.StatusPending || t.Status == models.StatusInProgress) && !done:
			t.Status, t.BlockedReason = models.StatusBlocked, models.BlockedByDependencies
		case t.Status == models.StatusBlocked && t.BlockedReason == models.BlockedByDependencies && done:
			t.Status, t.BlockedReason = models.StatusPending, ""
		case t.Status == models.StatusBlocked && t.BlockedReason == "":
			// Records without a reason predate reason tracking; treat them
			// as waiting on dependencies.
			t.BlockedReason = models.BlockedByDependencies
			if done {
				t.Status, t.BlockedReason = models.StatusPending, ""
			}
		default:
			continue
		}
		t.UpdatedAt = r.now
		changed = append(changed, id)
	}
	return changed, nil
}

// Ready returns PENDING tasks whose dependencies are all COMPLETED, most
// urgent priority first and insertion order within a priority.
func (r *Readiness) Ready() []models.Task {
	var out []models.Task
	for _, t := range r.tasks {
		if t.Status == models.StatusPending && r.DepsCompleted(t.ID) {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Blocked returns BLOCKED tasks in insertion order.
func (r *Readiness) Blocked() []models.Task {
	var out []models.Task
	for _, t := range r.tasks {
		if t.Status == models.StatusBlocked {
			out = append(out, t.Clone())
		}
	}
	return out
}
