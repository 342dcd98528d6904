// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the taskgraph engine as MCP tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/internal/observability"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Role restricts which tools a server registers. Planners shape the task
// set; executors move tasks through their lifecycle. Both may query.
type Role string

const (
	RoleAll      Role = "all"
	RolePlanner  Role = "planner"
	RoleExecutor Role = "executor"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAll, RolePlanner, RoleExecutor:
		return true
	}
	return false
}

// Options configures optional server collaborators. MetricsCalc and
// AlertEngine may be nil if the audit log is disabled.
type Options struct {
	Role        Role
	MetricsCalc observability.MetricsCalculator
	AlertEngine observability.AlertEngine
	Version     string
}

// Server wraps the engine and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	engine      core.Engine
	role        Role
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server over engine.
func NewServer(engine core.Engine, opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if !opts.Role.IsValid() {
		opts.Role = RoleAll
	}

	s := &Server{
		engine:      engine,
		role:        opts.Role,
		metricsCalc: opts.MetricsCalc,
		alertEngine: opts.AlertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "taskgraph", Version: opts.Version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskRefInput struct {
	Task string `json:"task" jsonschema:"the task id or exact task name"`
}

type relatedFileOutput struct {
	Path         string `json:"path"`
	RelationType string `json:"relation_type"`
	Description  string `json:"description,omitempty"`
	LineStart    int    `json:"line_start,omitempty"`
	LineEnd      int    `json:"line_end,omitempty"`
}

type taskOutput struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	Description          string              `json:"description"`
	ImplementationGuide  string              `json:"implementation_guide"`
	VerificationCriteria string              `json:"verification_criteria,omitempty"`
	Status               string              `json:"status"`
	BlockedReason        string              `json:"blocked_reason,omitempty"`
	Priority             string              `json:"priority"`
	Complexity           string              `json:"complexity,omitempty"`
	EstimatedHours       int                 `json:"estimated_hours,omitempty"`
	Dependencies         []string            `json:"dependencies"`
	RelatedFiles         []relatedFileOutput `json:"related_files,omitempty"`
	Category             string              `json:"category,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	AnalysisResult       string              `json:"analysis_result,omitempty"`
	CreatedAt            string              `json:"created_at"`
	UpdatedAt            string              `json:"updated_at"`
}

type taskListOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type splitTasksInput struct {
	UpdateMode    string                `json:"update_mode" jsonschema:"one of append, overwrite, selective, clearAllTasks"`
	Tasks         []models.TaskTemplate `json:"tasks" jsonschema:"the proposed tasks; dependencies may name siblings in the batch"`
	GlobalContext string                `json:"global_context,omitempty" jsonschema:"shared analysis attached to every task in the batch"`
	Policy        string                `json:"policy,omitempty" jsonschema:"unresolved dependency policy override: strict or skip"`
	Import        bool                  `json:"import,omitempty" jsonschema:"treat the batch as a bulk import"`
	Strict        bool                  `json:"strict,omitempty" jsonschema:"turn granularity warnings into errors"`
}

type splitTasksOutput struct {
	CreatedIDs []string         `json:"created_ids"`
	UpdatedIDs []string         `json:"updated_ids,omitempty"`
	RemovedIDs []string         `json:"removed_ids,omitempty"`
	Warnings   []models.Warning `json:"warnings,omitempty"`
	Mode       string           `json:"update_mode"`
	Before     int              `json:"tasks_before"`
	After      int              `json:"tasks_after"`
	BackupID   string           `json:"backup_id,omitempty"`
}

type listTasksInput struct {
	Status       []string `json:"status,omitempty" jsonschema:"filter by status (PENDING, IN_PROGRESS, COMPLETED, BLOCKED)"`
	Priority     []string `json:"priority,omitempty" jsonschema:"filter by priority (P0-P3)"`
	Category     string   `json:"category,omitempty" jsonschema:"filter by category, case-insensitive"`
	NameContains string   `json:"name_contains,omitempty" jsonschema:"filter by name substring"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of tasks returned"`
}

type updateTaskStatusInput struct {
	Task   string `json:"task" jsonschema:"the task id or exact task name"`
	Status string `json:"status" jsonschema:"the new status (PENDING, IN_PROGRESS, COMPLETED, BLOCKED)"`
}

type statusChangeOutput struct {
	Task     taskOutput `json:"task"`
	From     string     `json:"from"`
	To       string     `json:"to"`
	Released []string   `json:"released,omitempty"`
	Message  string     `json:"message"`
}

type updateTaskInput struct {
	Task                 string                `json:"task" jsonschema:"the task id or exact task name"`
	Name                 *string               `json:"name,omitempty"`
	Description          *string               `json:"description,omitempty"`
	ImplementationGuide  *string               `json:"implementation_guide,omitempty"`
	VerificationCriteria *string               `json:"verification_criteria,omitempty"`
	Priority             *string               `json:"priority,omitempty"`
	Complexity           *string               `json:"complexity,omitempty"`
	EstimatedHours       *int                  `json:"estimated_hours,omitempty"`
	Dependencies         *[]string             `json:"dependencies,omitempty" jsonschema:"replaces the dependency list; ids or names"`
	RelatedFiles         *[]models.RelatedFile `json:"related_files,omitempty" jsonschema:"replaces the related file list"`
	Category             *string               `json:"category,omitempty"`
	Notes                *string               `json:"notes,omitempty"`
}

type dependencyInput struct {
	Task       string `json:"task" jsonschema:"the dependent task id or name"`
	Dependency string `json:"dependency" jsonschema:"the prerequisite task id or name"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type executionOrderInput struct {
	Tasks []models.TaskTemplate `json:"tasks,omitempty" jsonschema:"optional proposed batch to order by name without committing"`
}

type executionOrderOutput struct {
	Order []string `json:"order" jsonschema:"task ids for the committed set, or names for a proposed batch"`
	Names []string `json:"names"`
}

type noInput struct{}

type cyclesOutput struct {
	Cycles [][]string `json:"cycles"`
	Count  int        `json:"count"`
}

type connectionOutput struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Dependencies int    `json:"dependencies"`
	Dependents   int    `json:"dependents"`
}

type statisticsOutput struct {
	Total           int                `json:"total"`
	ByStatus        map[string]int     `json:"by_status"`
	ByComplexity    map[string]int     `json:"by_complexity"`
	ByPriority      map[string]int     `json:"by_priority"`
	Ready           int                `json:"ready"`
	CompletionRate  float64            `json:"completion_rate"`
	AvgDependencies float64            `json:"avg_dependencies"`
	MostConnected   []connectionOutput `json:"most_connected"`
	Edges           int                `json:"edges"`
	Density         float64            `json:"density"`
	MaxDepth        int                `json:"max_depth"`
	Components      int                `json:"weakly_connected_components"`
	EarliestCreated string             `json:"earliest_created,omitempty"`
	LastUpdated     string             `json:"last_updated,omitempty"`
}

type backupOutput struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Reason    string `json:"reason"`
	TaskCount int    `json:"task_count"`
}

type backupListOutput struct {
	Backups []backupOutput `json:"backups"`
	Count   int            `json:"count"`
}

type restoreBackupInput struct {
	BackupID string `json:"backup_id" jsonschema:"the backup id from list_backups"`
}

type restoreBackupOutput struct {
	Backup       backupOutput  `json:"backup"`
	Restored     int           `json:"restored"`
	SafetyBackup *backupOutput `json:"safety_backup,omitempty"`
}

type decomposeInput struct {
	Task        string `json:"task" jsonschema:"the task id or exact task name"`
	Strategy    string `json:"strategy,omitempty" jsonschema:"functional_modules, sequential_steps, parallel_features or complexity_based"`
	MaxSubtasks int    `json:"max_subtasks,omitempty" jsonschema:"upper bound on generated templates"`
}

type decomposeOutput struct {
	Original  taskOutput            `json:"original"`
	Strategy  string                `json:"strategy"`
	Templates []models.TaskTemplate `json:"templates"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	TasksCreated    int            `json:"tasks_created"`
	TasksCompleted  int            `json:"tasks_completed"`
	TasksDeleted    int            `json:"tasks_deleted"`
	SplitsByMode    map[string]int `json:"splits_by_mode"`
	Transitions     map[string]int `json:"transitions"`
	StoreClears     int            `json:"store_clears"`
	BackupsCreated  int            `json:"backups_created"`
	BackupsRestored int            `json:"backups_restored"`
	EventCount      int            `json:"event_count"`
	OldestEvent     string         `json:"oldest_event,omitempty"`
	NewestEvent     string         `json:"newest_event,omitempty"`
}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	TaskID      string `json:"task_id,omitempty"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) planner() bool  { return s.role == RoleAll || s.role == RolePlanner }
func (s *Server) executor() bool { return s.role == RoleAll || s.role == RoleExecutor }

func (s *Server) registerTools() {
	// Queries are available to every role.
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get a task by id or exact name, including status, dependencies and related files.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks in insertion order with optional status, priority, category and name filters.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_dependencies",
		Description: "List the tasks a task depends on.",
	}, s.handleGetDependencies)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_dependents",
		Description: "List the tasks that depend on a task.",
	}, s.handleGetDependents)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_execution_order",
		Description: "Topological order of the committed tasks, or of a proposed batch when tasks are given.",
	}, s.handleGetExecutionOrder)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_ready_tasks",
		Description: "List PENDING tasks whose dependencies are all COMPLETED, highest priority first.",
	}, s.handleGetReadyTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "detect_cycles",
		Description: "Report dependency cycles in the committed graph. A healthy store reports none.",
	}, s.handleDetectCycles)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_statistics",
		Description: "Task counts by status, complexity and priority plus dependency graph metrics.",
	}, s.handleGetStatistics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Aggregate the audit log: tasks created and completed, splits by mode, status transitions.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate alerts for tasks blocked too long and tasks in progress without activity.",
	}, s.handleGetAlerts)

	if s.planner() {
		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "split_tasks",
			Description: "Commit a batch of proposed tasks under an update mode. The batch is validated, resolved and cycle checked as a whole and either commits fully or not at all.",
		}, s.handleSplitTasks)

		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "delete_task",
			Description: "Delete a task that no other task depends on.",
		}, s.handleDeleteTask)

		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "add_dependency",
			Description: "Make a task depend on another task. Rejected if it would create a cycle.",
		}, s.handleAddDependency)

		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "remove_dependency",
			Description: "Remove a dependency edge between two tasks.",
		}, s.handleRemoveDependency)

		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "decompose_task",
			Description: "Generate subtask templates for an existing task. Nothing is committed; feed the templates to split_tasks.",
		}, s.handleDecomposeTask)

		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "clear_all_tasks",
			Description: "Back up and then remove every task.",
		}, s.handleClearAllTasks)

		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "list_backups",
			Description: "List task set snapshots, oldest first.",
		}, s.handleListBackups)

		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "restore_backup",
			Description: "Replace the task set with a backup. The current set is snapshotted first.",
		}, s.handleRestoreBackup)
	}

	if s.executor() {
		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "update_task_status",
			Description: "Move a task through PENDING, IN_PROGRESS, BLOCKED and COMPLETED. Completing a task releases dependents whose dependencies are all complete.",
		}, s.handleUpdateTaskStatus)

		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "update_task",
			Description: "Update task content. Only the given fields change; dependencies are re-resolved and cycle checked.",
		}, s.handleUpdateTask)
	}
}

// --- Tool handlers ---

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input taskRefInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Task == "" {
		return errorResult("task is required"), taskOutput{}, nil
	}

	task, err := s.engine.GetTask(input.Task)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", input.Task, err)), taskOutput{}, nil
	}

	return nil, taskToOutput(task), nil
}

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, taskListOutput, error) {
	filter := models.TaskFilter{
		Category:     input.Category,
		NameContains: input.NameContains,
		Limit:        input.Limit,
	}
	for _, st := range input.Status {
		status := models.TaskStatus(strings.ToUpper(st))
		if !status.IsValid() {
			return errorResult(fmt.Sprintf("invalid status %q: must be one of PENDING, IN_PROGRESS, COMPLETED, BLOCKED", st)), taskListOutput{}, nil
		}
		filter.Status = append(filter.Status, status)
	}
	for _, p := range input.Priority {
		prio := models.Priority(strings.ToUpper(p))
		if !prio.IsValid() {
			return errorResult(fmt.Sprintf("invalid priority %q: must be one of P0, P1, P2, P3", p)), taskListOutput{}, nil
		}
		filter.Priority = append(filter.Priority, prio)
	}

	return nil, tasksToOutput(s.engine.ListTasks(filter)), nil
}

func (s *Server) handleGetDependencies(_ context.Context, _ *gomcp.CallToolRequest, input taskRefInput) (*gomcp.CallToolResult, taskListOutput, error) {
	if input.Task == "" {
		return errorResult("task is required"), taskListOutput{}, nil
	}
	tasks, err := s.engine.DependenciesOf(input.Task)
	if err != nil {
		return errorResult(fmt.Sprintf("getting dependencies of %s: %s", input.Task, err)), taskListOutput{}, nil
	}
	return nil, tasksToOutput(tasks), nil
}

func (s *Server) handleGetDependents(_ context.Context, _ *gomcp.CallToolRequest, input taskRefInput) (*gomcp.CallToolResult, taskListOutput, error) {
	if input.Task == "" {
		return errorResult("task is required"), taskListOutput{}, nil
	}
	tasks, err := s.engine.DependentsOf(input.Task)
	if err != nil {
		return errorResult(fmt.Sprintf("getting dependents of %s: %s", input.Task, err)), taskListOutput{}, nil
	}
	return nil, tasksToOutput(tasks), nil
}

func (s *Server) handleGetExecutionOrder(_ context.Context, _ *gomcp.CallToolRequest, input executionOrderInput) (*gomcp.CallToolResult, executionOrderOutput, error) {
	if len(input.Tasks) > 0 {
		order, err := s.engine.ExecutionPlan(input.Tasks)
		if err != nil {
			return errorResult(fmt.Sprintf("ordering proposed tasks: %s", err)), executionOrderOutput{}, nil
		}
		return nil, executionOrderOutput{Order: order, Names: order}, nil
	}

	tasks, err := s.engine.ExecutionOrder()
	if err != nil {
		return errorResult(fmt.Sprintf("computing execution order: %s", err)), executionOrderOutput{}, nil
	}
	out := executionOrderOutput{
		Order: make([]string, len(tasks)),
		Names: make([]string, len(tasks)),
	}
	for i, t := range tasks {
		out.Order[i] = t.ID
		out.Names[i] = t.Name
	}
	return nil, out, nil
}

func (s *Server) handleGetReadyTasks(_ context.Context, _ *gomcp.CallToolRequest, _ noInput) (*gomcp.CallToolResult, taskListOutput, error) {
	return nil, tasksToOutput(s.engine.ReadyTasks()), nil
}

func (s *Server) handleDetectCycles(_ context.Context, _ *gomcp.CallToolRequest, _ noInput) (*gomcp.CallToolResult, cyclesOutput, error) {
	cycles := s.engine.DetectCycles()
	if cycles == nil {
		cycles = [][]string{}
	}
	return nil, cyclesOutput{Cycles: cycles, Count: len(cycles)}, nil
}

func (s *Server) handleGetStatistics(_ context.Context, _ *gomcp.CallToolRequest, _ noInput) (*gomcp.CallToolResult, statisticsOutput, error) {
	st := s.engine.Statistics()
	out := statisticsOutput{
		Total:           st.Total,
		ByStatus:        make(map[string]int, len(st.ByStatus)),
		ByComplexity:    make(map[string]int, len(st.ByComplexity)),
		ByPriority:      make(map[string]int, len(st.ByPriority)),
		Ready:           st.Ready,
		CompletionRate:  st.CompletionRate(),
		AvgDependencies: st.AvgDependencies,
		MostConnected:   make([]connectionOutput, len(st.MostConnected)),
		Edges:           st.Graph.EdgeCount,
		Density:         st.Graph.Density,
		MaxDepth:        st.Graph.MaxDepth,
		Components:      st.Graph.Components,
		EarliestCreated: formatTime(st.EarliestCreated),
		LastUpdated:     formatTime(st.LastUpdated),
	}
	for k, v := range st.ByStatus {
		out.ByStatus[string(k)] = v
	}
	for k, v := range st.ByComplexity {
		out.ByComplexity[string(k)] = v
	}
	for k, v := range st.ByPriority {
		out.ByPriority[string(k)] = v
	}
	for i, c := range st.MostConnected {
		out.MostConnected[i] = connectionOutput{
			ID:           c.ID,
			Name:         c.Name,
			Dependencies: c.Dependencies,
			Dependents:   c.Dependents,
		}
	}
	return nil, out, nil
}

func (s *Server) handleSplitTasks(_ context.Context, _ *gomcp.CallToolRequest, input splitTasksInput) (*gomcp.CallToolResult, splitTasksOutput, error) {
	req := models.SplitRequest{
		Mode:          models.UpdateMode(input.UpdateMode),
		Tasks:         input.Tasks,
		GlobalContext: input.GlobalContext,
		Policy:        models.ResolutionPolicy(strings.ToLower(input.Policy)),
		Import:        input.Import,
		Strict:        input.Strict,
	}

	res, err := s.engine.Split(req)
	if err != nil {
		return errorResult(fmt.Sprintf("splitting tasks: %s", err)), splitTasksOutput{}, nil
	}

	return nil, splitTasksOutput{
		CreatedIDs: res.CreatedIDs,
		UpdatedIDs: res.UpdatedIDs,
		RemovedIDs: res.RemovedIDs,
		Warnings:   res.Warnings,
		Mode:       string(res.Operation.Mode),
		Before:     res.Operation.TasksBefore,
		After:      res.Operation.TasksAfter,
		BackupID:   res.BackupID,
	}, nil
}

func (s *Server) handleUpdateTaskStatus(_ context.Context, _ *gomcp.CallToolRequest, input updateTaskStatusInput) (*gomcp.CallToolResult, statusChangeOutput, error) {
	if input.Task == "" {
		return errorResult("task is required"), statusChangeOutput{}, nil
	}
	if input.Status == "" {
		return errorResult("status is required"), statusChangeOutput{}, nil
	}

	status := models.TaskStatus(strings.ToUpper(input.Status))
	if !status.IsValid() {
		return errorResult(fmt.Sprintf("invalid status %q: must be one of PENDING, IN_PROGRESS, COMPLETED, BLOCKED", input.Status)), statusChangeOutput{}, nil
	}

	change, err := s.engine.SetStatus(input.Task, status)
	if err != nil {
		return errorResult(fmt.Sprintf("updating task %s status: %s", input.Task, err)), statusChangeOutput{}, nil
	}

	out := statusChangeOutput{
		Task:     taskToOutput(change.Task),
		From:     string(change.From),
		To:       string(change.To),
		Released: change.Released,
		Message:  fmt.Sprintf("task %s status updated to %s", change.Task.Name, change.To),
	}
	if len(change.Released) > 0 {
		out.Message += fmt.Sprintf(" (%d dependent tasks released)", len(change.Released))
	}
	return nil, out, nil
}

func (s *Server) handleUpdateTask(_ context.Context, _ *gomcp.CallToolRequest, input updateTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Task == "" {
		return errorResult("task is required"), taskOutput{}, nil
	}

	upd := core.TaskUpdate{
		Name:                 input.Name,
		Description:          input.Description,
		ImplementationGuide:  input.ImplementationGuide,
		VerificationCriteria: input.VerificationCriteria,
		EstimatedHours:       input.EstimatedHours,
		Dependencies:         input.Dependencies,
		RelatedFiles:         input.RelatedFiles,
		Category:             input.Category,
		Notes:                input.Notes,
	}
	if input.Priority != nil {
		p := models.Priority(strings.ToUpper(*input.Priority))
		upd.Priority = &p
	}
	if input.Complexity != nil {
		c := models.Complexity(strings.ToUpper(*input.Complexity))
		upd.Complexity = &c
	}

	task, err := s.engine.UpdateTask(input.Task, upd)
	if err != nil {
		return errorResult(fmt.Sprintf("updating task %s: %s", input.Task, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleDeleteTask(_ context.Context, _ *gomcp.CallToolRequest, input taskRefInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.Task == "" {
		return errorResult("task is required"), messageOutput{}, nil
	}
	if err := s.engine.DeleteTask(input.Task); err != nil {
		return errorResult(fmt.Sprintf("deleting task %s: %s", input.Task, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s deleted", input.Task)}, nil
}

func (s *Server) handleAddDependency(_ context.Context, _ *gomcp.CallToolRequest, input dependencyInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Task == "" || input.Dependency == "" {
		return errorResult("task and dependency are required"), taskOutput{}, nil
	}
	task, err := s.engine.AddDependency(input.Task, input.Dependency)
	if err != nil {
		return errorResult(fmt.Sprintf("adding dependency %s to %s: %s", input.Dependency, input.Task, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleRemoveDependency(_ context.Context, _ *gomcp.CallToolRequest, input dependencyInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Task == "" || input.Dependency == "" {
		return errorResult("task and dependency are required"), taskOutput{}, nil
	}
	task, err := s.engine.RemoveDependency(input.Task, input.Dependency)
	if err != nil {
		return errorResult(fmt.Sprintf("removing dependency %s from %s: %s", input.Dependency, input.Task, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleDecomposeTask(_ context.Context, _ *gomcp.CallToolRequest, input decomposeInput) (*gomcp.CallToolResult, decomposeOutput, error) {
	if input.Task == "" {
		return errorResult("task is required"), decomposeOutput{}, nil
	}
	d, err := s.engine.Decompose(input.Task, core.Strategy(input.Strategy), input.MaxSubtasks)
	if err != nil {
		return errorResult(fmt.Sprintf("decomposing task %s: %s", input.Task, err)), decomposeOutput{}, nil
	}
	return nil, decomposeOutput{
		Original:  taskToOutput(d.Original),
		Strategy:  string(d.Strategy),
		Templates: d.Templates,
	}, nil
}

func (s *Server) handleClearAllTasks(_ context.Context, _ *gomcp.CallToolRequest, _ noInput) (*gomcp.CallToolResult, messageOutput, error) {
	b, err := s.engine.ClearAll()
	if err != nil {
		return errorResult(fmt.Sprintf("clearing tasks: %s", err)), messageOutput{}, nil
	}
	if b == nil {
		return nil, messageOutput{Message: "no tasks to clear"}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("cleared %d tasks, backup %s", b.TaskCount, b.ID)}, nil
}

func (s *Server) handleListBackups(_ context.Context, _ *gomcp.CallToolRequest, _ noInput) (*gomcp.CallToolResult, backupListOutput, error) {
	backups, err := s.engine.Backups()
	if err != nil {
		return errorResult(fmt.Sprintf("listing backups: %s", err)), backupListOutput{}, nil
	}
	out := backupListOutput{
		Backups: make([]backupOutput, len(backups)),
		Count:   len(backups),
	}
	for i, b := range backups {
		out.Backups[i] = backupToOutput(b)
	}
	return nil, out, nil
}

func (s *Server) handleRestoreBackup(_ context.Context, _ *gomcp.CallToolRequest, input restoreBackupInput) (*gomcp.CallToolResult, restoreBackupOutput, error) {
	if input.BackupID == "" {
		return errorResult("backup_id is required"), restoreBackupOutput{}, nil
	}
	res, err := s.engine.RestoreBackup(input.BackupID)
	if err != nil {
		return errorResult(fmt.Sprintf("restoring backup %s: %s", input.BackupID, err)), restoreBackupOutput{}, nil
	}
	out := restoreBackupOutput{
		Backup:   backupToOutput(res.Backup),
		Restored: res.Restored,
	}
	if res.SafetyBackup != nil {
		sb := backupToOutput(*res.SafetyBackup)
		out.SafetyBackup = &sb
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (audit log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := ParseSince(sinceStr, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	return nil, metricsOutput{
		TasksCreated:    metrics.TasksCreated,
		TasksCompleted:  metrics.TasksCompleted,
		TasksDeleted:    metrics.TasksDeleted,
		SplitsByMode:    metrics.SplitsByMode,
		Transitions:     metrics.Transitions,
		StoreClears:     metrics.StoreClears,
		BackupsCreated:  metrics.BackupsCreated,
		BackupsRestored: metrics.BackupsRestored,
		EventCount:      metrics.EventCount,
		OldestEvent:     formatTime(metrics.OldestEvent),
		NewestEvent:     formatTime(metrics.NewestEvent),
	}, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ noInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (audit log may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			TaskID:      a.TaskID,
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:                   t.ID,
		Name:                 t.Name,
		Description:          t.Description,
		ImplementationGuide:  t.ImplementationGuide,
		VerificationCriteria: t.VerificationCriteria,
		Status:               string(t.Status),
		BlockedReason:        string(t.BlockedReason),
		Priority:             string(t.Priority),
		Complexity:           string(t.Complexity),
		EstimatedHours:       t.EstimatedHours,
		Dependencies:         t.Dependencies,
		Category:             t.Category,
		Notes:                t.Notes,
		AnalysisResult:       t.AnalysisResult,
		CreatedAt:            t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            t.UpdatedAt.Format(time.RFC3339),
	}
	if out.Dependencies == nil {
		out.Dependencies = []string{}
	}
	for _, rf := range t.RelatedFiles {
		ro := relatedFileOutput{
			Path:         rf.Path,
			RelationType: string(rf.RelationType),
			Description:  rf.Description,
		}
		if rf.LineStart != nil {
			ro.LineStart = *rf.LineStart
		}
		if rf.LineEnd != nil {
			ro.LineEnd = *rf.LineEnd
		}
		out.RelatedFiles = append(out.RelatedFiles, ro)
	}
	return out
}

func tasksToOutput(tasks []models.Task) taskListOutput {
	out := taskListOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return out
}

func backupToOutput(b models.Backup) backupOutput {
	return backupOutput{
		ID:        b.ID,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
		Reason:    b.Reason,
		TaskCount: b.TaskCount,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		SplitsByMode: make(map[string]int),
		Transitions:  make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a human-friendly duration string like "7d", "30d", or
// "24h" into the corresponding time before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
