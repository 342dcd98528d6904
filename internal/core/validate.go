package core

import (
	"fmt"
	"strings"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Field limits enforced on every proposed or updated task.
const (
	MaxNameLength        = 100
	MinDescriptionLength = 10
	MinGuideLength       = 10
	MaxEstimatedHours    = 40
	MaxCategoryLength    = 50
)

// normalizeTemplate trims the name and applies the default priority.
func normalizeTemplate(t models.TaskTemplate) models.TaskTemplate {
	t.Name = strings.TrimSpace(t.Name)
	if t.Priority == "" {
		t.Priority = models.DefaultPriority
	}
	deps := make([]string, 0, len(t.Dependencies))
	for _, d := range t.Dependencies {
		deps = append(deps, strings.TrimSpace(d))
	}
	t.Dependencies = deps
	return t
}

// ValidateTemplate checks the field constraints of one proposed task and
// returns every violation at once, or nil.
func ValidateTemplate(t models.TaskTemplate) *models.ValidationError {
	var issues []models.FieldIssue
	add := func(field, format string, args ...any) {
		issues = append(issues, models.FieldIssue{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	name := strings.TrimSpace(t.Name)
	switch {
	case name == "":
		add("name", "must not be empty")
	case len([]rune(name)) > MaxNameLength:
		add("name", "must be at most %d characters, got %d", MaxNameLength, len([]rune(name)))
	}
	if n := len([]rune(strings.TrimSpace(t.Description))); n < MinDescriptionLength {
		add("description", "must be at least %d characters, got %d", MinDescriptionLength, n)
	}
	if n := len([]rune(strings.TrimSpace(t.ImplementationGuide))); n < MinGuideLength {
		add("implementation_guide", "must be at least %d characters, got %d", MinGuideLength, n)
	}
	if t.Priority != "" && !t.Priority.IsValid() {
		add("priority", "%q is invalid, must be one of: P0, P1, P2, P3", t.Priority)
	}
	if t.Complexity != "" && !t.Complexity.IsValid() {
		add("complexity", "%q is invalid, must be one of: SIMPLE, MODERATE, COMPLEX, EPIC", t.Complexity)
	}
	if t.EstimatedHours < 0 || t.EstimatedHours > MaxEstimatedHours {
		add("estimated_hours", "must be between 0 and %d, got %d", MaxEstimatedHours, t.EstimatedHours)
	}
	if t.EstimatedHours > 0 && t.Complexity.IsValid() && !t.Complexity.Allows(t.EstimatedHours) {
		lo, hi := t.Complexity.HourRange()
		if hi == 0 {
			add("estimated_hours", "%d is outside the %s range (more than %d)", t.EstimatedHours, t.Complexity, lo)
		} else {
			add("estimated_hours", "%d is outside the %s range (%d, %d]", t.EstimatedHours, t.Complexity, lo, hi)
		}
	}
	if n := len([]rune(t.Category)); n > MaxCategoryLength {
		add("category", "must be at most %d characters, got %d", MaxCategoryLength, n)
	}
	for i, d := range t.Dependencies {
		if strings.TrimSpace(d) == "" {
			add(fmt.Sprintf("dependencies[%d]", i), "must not be empty")
		}
	}
	for i, rf := range t.RelatedFiles {
		field := fmt.Sprintf("related_files[%d]", i)
		if strings.TrimSpace(rf.Path) == "" {
			add(field+".path", "must not be empty")
		}
		if !rf.RelationType.IsValid() {
			add(field+".relation_type", "%q is invalid, must be one of: TO_MODIFY, REFERENCE, CREATE, DEPENDENCY, OTHER", rf.RelationType)
		}
		if rf.LineStart != nil && *rf.LineStart < 1 {
			add(field+".line_start", "must be positive, got %d", *rf.LineStart)
		}
		if rf.LineEnd != nil && *rf.LineEnd < 1 {
			add(field+".line_end", "must be positive, got %d", *rf.LineEnd)
		}
		if rf.LineStart != nil && rf.LineEnd != nil && *rf.LineEnd < *rf.LineStart {
			add(field+".line_end", "%d is before line_start %d", *rf.LineEnd, *rf.LineStart)
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &models.ValidationError{Task: name, Issues: issues}
}

// templateOf returns the content of an existing task as a template, so
// content updates can reuse ValidateTemplate.
func templateOf(t models.Task) models.TaskTemplate {
	c := t.Clone()
	return models.TaskTemplate{
		Name:                 c.Name,
		Description:          c.Description,
		ImplementationGuide:  c.ImplementationGuide,
		VerificationCriteria: c.VerificationCriteria,
		Priority:             c.Priority,
		Complexity:           c.Complexity,
		EstimatedHours:       c.EstimatedHours,
		Dependencies:         c.Dependencies,
		RelatedFiles:         c.RelatedFiles,
		Category:             c.Category,
		Notes:                c.Notes,
	}
}

// applyTemplate replaces the content fields of t with those of tmpl. Id,
// status and timestamps are left alone; dependencies are set by the caller
// after resolution.
func applyTemplate(t *models.Task, tmpl models.TaskTemplate) {
	c := tmpl
	t.Name = c.Name
	t.Description = c.Description
	t.ImplementationGuide = c.ImplementationGuide
	t.VerificationCriteria = c.VerificationCriteria
	t.Priority = c.Priority
	t.Complexity = c.Complexity
	t.EstimatedHours = c.EstimatedHours
	t.Category = c.Category
	t.Notes = c.Notes
	t.RelatedFiles = nil
	if c.RelatedFiles != nil {
		t.RelatedFiles = (models.Task{RelatedFiles: c.RelatedFiles}).Clone().RelatedFiles
	}
}
