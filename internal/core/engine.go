package core

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/taskgraph/internal/events"
	"github.com/valter-silva-au/taskgraph/internal/graph"
	"github.com/valter-silva-au/taskgraph/internal/storage"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Engine is the task dependency graph and splitting engine. Every mutating
// operation runs validate, resolve, commit and re-index as one critical
// section; read operations run concurrently and observe committed state only.
type Engine interface {
	// Split applies a batch of proposed tasks under the request's update mode.
	Split(req models.SplitRequest) (*models.SplitResult, error)
	// ExecutionPlan orders a proposed batch by name without committing it.
	ExecutionPlan(templates []models.TaskTemplate) ([]string, error)
	// Decompose generates subtask templates for an existing task.
	Decompose(ref string, strategy Strategy, maxSubtasks int) (*Decomposition, error)

	GetTask(ref string) (models.Task, error)
	ListTasks(filter models.TaskFilter) []models.Task
	DependenciesOf(ref string) ([]models.Task, error)
	DependentsOf(ref string) ([]models.Task, error)
	ExecutionOrder() ([]models.Task, error)
	ReadyTasks() []models.Task
	BlockedTasks() []models.Task
	DetectCycles() [][]string
	Statistics() Statistics

	UpdateTask(ref string, upd TaskUpdate) (models.Task, error)
	SetStatus(ref string, to models.TaskStatus) (*StatusChange, error)
	Start(ref string) (*StatusChange, error)
	Complete(ref string) (*StatusChange, error)
	Block(ref string) (*StatusChange, error)
	Reset(ref string) (*StatusChange, error)
	Unblock(ref string) (*StatusChange, error)
	DeleteTask(ref string) error
	AddDependency(ref, depRef string) (models.Task, error)
	RemoveDependency(ref, depRef string) (models.Task, error)

	ClearAll() (*models.Backup, error)
	Backups() ([]models.Backup, error)
	RestoreBackup(id string) (*RestoreResult, error)

	// Subscribe registers handler for change notifications and returns an id
	// for Unsubscribe. Handlers run after the write lock is released.
	Subscribe(handler events.Handler) string
	Unsubscribe(id string) bool
}

// EngineConfig carries the engine's collaborators and policies. Zero values
// select defaults.
type EngineConfig struct {
	Granularity models.GranularityRules
	Resolution  models.ResolutionConfig
	EventLog    EventLogger
	Bus         ChangeBus
	Logger      *slog.Logger
	Now         func() time.Time
	// WriterLock, when set, is held around every mutation and the store is
	// reloaded after acquiring it.
	WriterLock WriterLock
}

type engine struct {
	mu sync.RWMutex

	store    TaskRepository
	rules    models.GranularityRules
	policies models.ResolutionConfig
	eventLog EventLogger
	bus      ChangeBus
	logger   *slog.Logger
	now      func() time.Time
	writer   WriterLock
}

// NewEngine creates an Engine over store.
func NewEngine(store TaskRepository, cfg EngineConfig) Engine {
	e := &engine{
		store:    store,
		rules:    cfg.Granularity,
		policies: cfg.Resolution,
		eventLog: cfg.EventLog,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		now:      cfg.Now,
		writer:   cfg.WriterLock,
	}
	if e.rules == (models.GranularityRules{}) {
		e.rules = models.DefaultGranularityRules()
	}
	if !e.policies.CreatePolicy.IsValid() {
		e.policies.CreatePolicy = models.ResolveStrict
	}
	if !e.policies.ImportPolicy.IsValid() {
		e.policies.ImportPolicy = models.ResolveSkip
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.bus == nil {
		e.bus = events.NewBus(e.logger)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// lockWriter takes the engine's write lock and, when configured, the
// cross-process writer lock, refreshing the store from its backend.
func (e *engine) lockWriter() (func(), error) {
	e.mu.Lock()
	if e.writer == nil {
		return e.mu.Unlock, nil
	}
	release, err := e.writer.Lock()
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("acquiring writer lock: %w", err)
	}
	unlock := func() {
		if err := release(); err != nil {
			e.logger.Warn("releasing writer lock", "error", err)
		}
		e.mu.Unlock()
	}
	if r, ok := e.store.(reloader); ok {
		if err := r.Load(); err != nil {
			unlock()
			return nil, fmt.Errorf("reloading task store: %w", err)
		}
	}
	return unlock, nil
}

func (e *engine) timestamp() time.Time {
	return e.now().UTC()
}

// audit records a committed mutation. Audit failures are logged, never
// returned: the commit has already happened.
func (e *engine) audit(eventType string, data map[string]any) {
	if e.eventLog == nil {
		return
	}
	if err := e.eventLog.LogEvent(eventType, data); err != nil {
		e.logger.Warn("audit log write failed", "event", eventType, "error", err)
	}
}

// publish delivers change notifications. Callers must not hold e.mu.
func (e *engine) publish(changes []events.Event) {
	for _, c := range changes {
		e.bus.Publish(c)
	}
}

func (e *engine) Subscribe(handler events.Handler) string {
	return e.bus.SubscribeAll(handler)
}

func (e *engine) Unsubscribe(id string) bool {
	return e.bus.Unsubscribe(id)
}

// findLocked resolves ref against the committed set, by id first and then by
// name.
func (e *engine) findLocked(ref string) (models.Task, error) {
	ref = strings.TrimSpace(ref)
	if storage.IsTaskID(ref) {
		if t, err := e.store.Get(ref); err == nil {
			return t, nil
		}
	}
	for _, t := range e.store.All() {
		if t.Name == ref {
			return t, nil
		}
	}
	return models.Task{}, models.NotFoundError(ref)
}

// verifyGraph enforces the commit-time graph invariants on a proposed full
// task set: every dependency resolves and the relation is acyclic.
func verifyGraph(tasks []models.Task) (*graph.Graph, error) {
	g := graph.Build(tasks)
	if d := g.Dangling(); len(d) > 0 {
		return nil, &models.TaskError{
			Kind: models.ErrUnresolvedDependency,
			Task: g.Name(d[0].TaskID),
			Ref:  d[0].Ref,
		}
	}
	if err := g.CheckAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// commitLocked verifies next and persists it as one unit, returning the
// notifications describing the difference from before.
func (e *engine) commitLocked(before, next []models.Task, backupReason string) (*models.Backup, []events.Event, error) {
	if _, err := verifyGraph(next); err != nil {
		return nil, nil, err
	}
	bk, err := e.store.Replace(next, backupReason)
	if err != nil {
		return nil, nil, fmt.Errorf("committing tasks: %w", err)
	}
	if bk != nil {
		e.audit(EventBackupCreated, map[string]any{
			"backup_id":  bk.ID,
			"reason":     bk.Reason,
			"task_count": bk.TaskCount,
		})
	}
	return bk, diffChanges(before, next), nil
}

// diffChanges returns one notification per task created, removed, or whose
// status differs between before and after.
func diffChanges(before, after []models.Task) []events.Event {
	prev := make(map[string]models.TaskStatus, len(before))
	for _, t := range before {
		prev[t.ID] = t.Status
	}
	var out []events.Event
	seen := make(map[string]struct{}, len(after))
	for _, t := range after {
		seen[t.ID] = struct{}{}
		old, existed := prev[t.ID]
		switch {
		case !existed:
			out = append(out, events.NewTaskCreated(t.ID, t.Status))
		case old != t.Status:
			out = append(out, events.NewTaskStatusChanged(t.ID, t.Status))
		}
	}
	for _, t := range before {
		if _, ok := seen[t.ID]; !ok {
			out = append(out, events.NewTaskRemoved(t.ID))
		}
	}
	return out
}

// --- Queries ---

func (e *engine) GetTask(ref string) (models.Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.findLocked(ref)
}

func (e *engine) ListTasks(filter models.TaskFilter) []models.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.List(filter)
}

func (e *engine) DependenciesOf(ref string) ([]models.Task, error) {
	return e.neighbours(ref, (*graph.Graph).DependenciesOf)
}

func (e *engine) DependentsOf(ref string) ([]models.Task, error) {
	return e.neighbours(ref, (*graph.Graph).DependentsOf)
}

func (e *engine) neighbours(ref string, fn func(*graph.Graph, string) ([]string, bool)) ([]models.Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.findLocked(ref)
	if err != nil {
		return nil, err
	}
	all := e.store.All()
	ids, _ := fn(graph.Build(all), t.ID)
	return pick(all, ids), nil
}

// pick returns the tasks with the given ids, in ids order.
func pick(all []models.Task, ids []string) []models.Task {
	byID := make(map[string]models.Task, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}
	out := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (e *engine) ExecutionOrder() ([]models.Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	all := e.store.All()
	order, err := graph.Build(all).TopologicalOrder()
	if err != nil {
		return nil, err
	}
	return pick(all, order), nil
}

func (e *engine) ReadyTasks() []models.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewReadiness(e.store.All(), e.timestamp()).Ready()
}

func (e *engine) BlockedTasks() []models.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewReadiness(e.store.All(), e.timestamp()).Blocked()
}

func (e *engine) DetectCycles() [][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return graph.Build(e.store.All()).Cycles()
}

func (e *engine) Backups() ([]models.Backup, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Backups()
}
