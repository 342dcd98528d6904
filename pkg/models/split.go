package models

// UpdateMode selects how a proposed batch is merged into the existing task set.
type UpdateMode string

const (
	// ModeAppend keeps every existing task and adds the batch as new tasks.
	ModeAppend UpdateMode = "append"
	// ModeOverwrite drops unfinished tasks, keeps COMPLETED ones, then adds the batch.
	ModeOverwrite UpdateMode = "overwrite"
	// ModeSelective updates tasks matched by name in place and creates the rest.
	ModeSelective UpdateMode = "selective"
	// ModeClearAll backs up and empties the store before adding the batch.
	ModeClearAll UpdateMode = "clearAllTasks"
)

// IsValid reports whether m is one of the four update modes.
func (m UpdateMode) IsValid() bool {
	switch m {
	case ModeAppend, ModeOverwrite, ModeSelective, ModeClearAll:
		return true
	}
	return false
}

// ResolutionPolicy decides what happens to a dependency reference that
// resolves to nothing.
type ResolutionPolicy string

const (
	// ResolveStrict fails the whole operation with ErrUnresolvedDependency.
	ResolveStrict ResolutionPolicy = "strict"
	// ResolveSkip drops the reference and reports a warning.
	ResolveSkip ResolutionPolicy = "skip"
)

// IsValid reports whether p is a known policy.
func (p ResolutionPolicy) IsValid() bool {
	return p == ResolveStrict || p == ResolveSkip
}

// TaskTemplate is a proposed task. Dependencies are references that may be
// task ids or task names, including names of siblings in the same batch.
type TaskTemplate struct {
	Name                 string        `yaml:"name" json:"name"`
	Description          string        `yaml:"description" json:"description"`
	ImplementationGuide  string        `yaml:"implementation_guide" json:"implementation_guide"`
	VerificationCriteria string        `yaml:"verification_criteria,omitempty" json:"verification_criteria,omitempty"`
	Priority             Priority      `yaml:"priority,omitempty" json:"priority,omitempty"`
	Complexity           Complexity    `yaml:"complexity,omitempty" json:"complexity,omitempty"`
	EstimatedHours       int           `yaml:"estimated_hours,omitempty" json:"estimated_hours,omitempty"`
	Dependencies         []string      `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	RelatedFiles         []RelatedFile `yaml:"related_files,omitempty" json:"related_files,omitempty"`
	Category             string        `yaml:"category,omitempty" json:"category,omitempty"`
	Notes                string        `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// SplitRequest is the input to a split operation.
type SplitRequest struct {
	Mode  UpdateMode     `yaml:"update_mode" json:"update_mode"`
	Tasks []TaskTemplate `yaml:"tasks" json:"tasks"`
	// GlobalContext is attached to every task the batch creates or updates.
	GlobalContext string `yaml:"global_context,omitempty" json:"global_context,omitempty"`
	// Policy overrides the configured resolution policy when non-empty.
	Policy ResolutionPolicy `yaml:"policy,omitempty" json:"policy,omitempty"`
	// Import marks a legacy/bulk import, which defaults to ResolveSkip.
	Import bool `yaml:"import,omitempty" json:"import,omitempty"`
	// Strict promotes granularity warnings to validation errors.
	Strict bool `yaml:"strict,omitempty" json:"strict,omitempty"`
}

// WarningCode classifies a soft warning.
type WarningCode string

const (
	WarnUnresolvedSkipped WarningCode = "unresolved_dependency_skipped"
	WarnBatchTooLarge     WarningCode = "batch_too_large"
	WarnChainTooDeep      WarningCode = "dependency_chain_too_deep"
	WarnMultipleDomains   WarningCode = "multiple_domains"
	WarnDurationRange     WarningCode = "duration_out_of_range"
	WarnEpicComplexity    WarningCode = "epic_should_split"
)

// Warning is a non-fatal finding attached to a split result.
type Warning struct {
	Code    WarningCode `yaml:"code" json:"code"`
	Task    string      `yaml:"task,omitempty" json:"task,omitempty"`
	Message string      `yaml:"message" json:"message"`
}

// SplitOperation summarises the effect of a committed split.
type SplitOperation struct {
	Mode        UpdateMode `yaml:"update_mode" json:"update_mode"`
	TasksBefore int        `yaml:"tasks_before" json:"tasks_before"`
	TasksAfter  int        `yaml:"tasks_after" json:"tasks_after"`
	Added       int        `yaml:"added" json:"added"`
	Updated     int        `yaml:"updated" json:"updated"`
	Removed     int        `yaml:"removed" json:"removed"`
}

// SplitResult is returned by a successful split.
type SplitResult struct {
	CreatedIDs []string       `yaml:"created_ids" json:"created_ids"`
	UpdatedIDs []string       `yaml:"updated_ids,omitempty" json:"updated_ids,omitempty"`
	RemovedIDs []string       `yaml:"removed_ids,omitempty" json:"removed_ids,omitempty"`
	Warnings   []Warning      `yaml:"warnings,omitempty" json:"warnings,omitempty"`
	Operation  SplitOperation `yaml:"operation" json:"operation"`
	BackupID   string         `yaml:"backup_id,omitempty" json:"backup_id,omitempty"`
}

// GranularityRules configure the soft sizing checks applied to a batch.
type GranularityRules struct {
	MaxSubtasksPerSplit  int  `yaml:"max_subtasks_per_split" mapstructure:"max_subtasks_per_split"`
	MaxDepthLevels       int  `yaml:"max_depth_levels" mapstructure:"max_depth_levels"`
	MinTaskDurationHours int  `yaml:"min_task_duration_hours" mapstructure:"min_task_duration_hours"`
	MaxTaskDurationHours int  `yaml:"max_task_duration_hours" mapstructure:"max_task_duration_hours"`
	MaxFileAreasPerTask  int  `yaml:"max_file_areas_per_task" mapstructure:"max_file_areas_per_task"`
	Strict               bool `yaml:"strict" mapstructure:"strict"`
}

// DefaultGranularityRules returns the recommended sizing limits.
func DefaultGranularityRules() GranularityRules {
	return GranularityRules{
		MaxSubtasksPerSplit:  10,
		MaxDepthLevels:       3,
		MinTaskDurationHours: 1,
		MaxTaskDurationHours: 16,
		MaxFileAreasPerTask:  3,
	}
}
