package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

var errEngineNotInitialized = errors.New("engine not initialized")

var (
	statusPending    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusCompleted  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusBlocked    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusPending:
		return statusPending
	case models.StatusInProgress:
		return statusInProgress
	case models.StatusCompleted:
		return statusCompleted
	case models.StatusBlocked:
		return statusBlocked
	default:
		return lipgloss.NewStyle()
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting output as JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// shortID keeps the first segment of a UUID, enough to tell tasks apart in
// a table.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func printTaskTable(tasks []models.Task) {
	fmt.Printf("  %-8s %-12s %-4s %-9s %s\n", "ID", "STATUS", "PRI", "DEPS", "NAME")
	fmt.Printf("  %-8s %-12s %-4s %-9s %s\n", "--", "------", "---", "----", "----")
	for _, t := range tasks {
		status := styleForStatus(t.Status).Render(fmt.Sprintf("%-12s", t.Status))
		fmt.Printf("  %-8s %s %-4s %-9d %s\n", shortID(t.ID), status, t.Priority, len(t.Dependencies), truncate(t.Name, 60))
	}
}

func printTask(t models.Task, names map[string]string) {
	fmt.Printf("%s\n", t.Name)
	fmt.Printf("  %-14s %s\n", "ID:", t.ID)
	status := string(t.Status)
	if t.BlockedReason != "" {
		status += " (" + string(t.BlockedReason) + ")"
	}
	fmt.Printf("  %-14s %s\n", "Status:", styleForStatus(t.Status).Render(status))
	fmt.Printf("  %-14s %s\n", "Priority:", t.Priority)
	if t.Complexity != "" {
		fmt.Printf("  %-14s %s\n", "Complexity:", t.Complexity)
	}
	if t.EstimatedHours > 0 {
		fmt.Printf("  %-14s %dh\n", "Estimate:", t.EstimatedHours)
	}
	if t.Category != "" {
		fmt.Printf("  %-14s %s\n", "Category:", t.Category)
	}
	fmt.Printf("  %-14s %s\n", "Created:", t.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("  %-14s %s\n", "Updated:", t.UpdatedAt.Format("2006-01-02 15:04:05 UTC"))

	if len(t.Dependencies) > 0 {
		fmt.Println("\n  Dependencies:")
		for _, d := range t.Dependencies {
			fmt.Printf("    - %s (%s)\n", names[d], shortID(d))
		}
	}
	fmt.Printf("\n  Description:\n    %s\n", indent(t.Description))
	fmt.Printf("\n  Implementation guide:\n    %s\n", indent(t.ImplementationGuide))
	if t.VerificationCriteria != "" {
		fmt.Printf("\n  Verification:\n    %s\n", indent(t.VerificationCriteria))
	}
	if len(t.RelatedFiles) > 0 {
		fmt.Println("\n  Related files:")
		for _, rf := range t.RelatedFiles {
			loc := rf.Path
			if rf.LineStart != nil && rf.LineEnd != nil {
				loc = fmt.Sprintf("%s:%d-%d", rf.Path, *rf.LineStart, *rf.LineEnd)
			}
			fmt.Printf("    - [%s] %s\n", rf.RelationType, loc)
		}
	}
	if t.Notes != "" {
		fmt.Printf("\n  Notes:\n    %s\n", indent(t.Notes))
	}
	if t.AnalysisResult != "" {
		fmt.Printf("\n  Analysis:\n    %s\n", indent(t.AnalysisResult))
	}
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n    ")
}

func printWarnings(warnings []models.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Printf("\n%d warning(s):\n", len(warnings))
	for _, w := range warnings {
		prefix := warningStyle.Render(fmt.Sprintf("[%s]", w.Code))
		if w.Task != "" {
			fmt.Printf("  %s %s: %s\n", prefix, w.Task, w.Message)
		} else {
			fmt.Printf("  %s %s\n", prefix, w.Message)
		}
	}
}

// nameIndex maps task ids to names for rendering dependency lists.
func nameIndex(tasks []models.Task) map[string]string {
	out := make(map[string]string, len(tasks))
	for _, t := range tasks {
		out[t.ID] = t.Name
	}
	return out
}

func parseStatuses(values []string) ([]models.TaskStatus, error) {
	var out []models.TaskStatus
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			s := models.TaskStatus(strings.ToUpper(part))
			if !s.IsValid() {
				return nil, fmt.Errorf("invalid status %q: must be one of PENDING, IN_PROGRESS, COMPLETED, BLOCKED", part)
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func parsePriorities(values []string) ([]models.Priority, error) {
	var out []models.Priority
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			p := models.Priority(strings.ToUpper(part))
			if !p.IsValid() {
				return nil, fmt.Errorf("invalid priority %q: must be one of P0, P1, P2, P3", part)
			}
			out = append(out, p)
		}
	}
	return out, nil
}
