package core

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/valter-silva-au/taskgraph/internal/graph"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// checkGranularity applies the soft sizing rules to a proposed batch. ids are
// the batch task ids and g is the post-batch graph. A zero rule value
// disables that rule. When strict is set, or rules.Strict is, any finding
// fails the batch as a validation error instead of a warning.
func checkGranularity(rules models.GranularityRules, strict bool, batch []models.TaskTemplate, ids []string, g *graph.Graph) ([]models.Warning, error) {
	var out []models.Warning

	if rules.MaxSubtasksPerSplit > 0 && len(batch) > rules.MaxSubtasksPerSplit {
		out = append(out, models.Warning{
			Code: models.WarnBatchTooLarge,
			Message: fmt.Sprintf("batch has %d tasks, recommended maximum is %d",
				len(batch), rules.MaxSubtasksPerSplit),
		})
	}

	var depths map[string]int
	if rules.MaxDepthLevels > 0 {
		depths = g.Depths()
	}

	for i, t := range batch {
		if d := depths[ids[i]]; rules.MaxDepthLevels > 0 && d > rules.MaxDepthLevels {
			out = append(out, models.Warning{
				Code: models.WarnChainTooDeep,
				Task: t.Name,
				Message: fmt.Sprintf("dependency chain depth %d exceeds %d levels",
					d, rules.MaxDepthLevels),
			})
		}
		if areas := fileAreas(t.RelatedFiles); rules.MaxFileAreasPerTask > 0 && len(areas) > rules.MaxFileAreasPerTask {
			out = append(out, models.Warning{
				Code: models.WarnMultipleDomains,
				Task: t.Name,
				Message: fmt.Sprintf("touches %d areas (%s), recommended maximum is %d",
					len(areas), strings.Join(areas, ", "), rules.MaxFileAreasPerTask),
			})
		}
		if h := t.EstimatedHours; h > 0 {
			if rules.MinTaskDurationHours > 0 && h < rules.MinTaskDurationHours {
				out = append(out, models.Warning{
					Code:    models.WarnDurationRange,
					Task:    t.Name,
					Message: fmt.Sprintf("estimate %dh is below the %dh minimum", h, rules.MinTaskDurationHours),
				})
			}
			if rules.MaxTaskDurationHours > 0 && h > rules.MaxTaskDurationHours {
				out = append(out, models.Warning{
					Code:    models.WarnDurationRange,
					Task:    t.Name,
					Message: fmt.Sprintf("estimate %dh is above the %dh maximum", h, rules.MaxTaskDurationHours),
				})
			}
		}
		if t.Complexity == models.ComplexityEpic {
			out = append(out, models.Warning{
				Code:    models.WarnEpicComplexity,
				Task:    t.Name,
				Message: "EPIC tasks should be decomposed further",
			})
		}
	}

	if len(out) > 0 && (strict || rules.Strict) {
		ve := &models.ValidationError{}
		for _, w := range out {
			msg := w.Message
			if w.Task != "" {
				msg = w.Task + ": " + msg
			}
			ve.Issues = append(ve.Issues, models.FieldIssue{Field: string(w.Code), Message: msg})
		}
		return nil, ve
	}
	return out, nil
}

// fileAreas returns the distinct top-level directories of files, sorted.
// Files at the repository root count as ".".
func fileAreas(files []models.RelatedFile) []string {
	seen := make(map[string]struct{})
	for _, f := range files {
		p := strings.TrimPrefix(path.Clean(strings.ReplaceAll(f.Path, "\\", "/")), "./")
		area := "."
		if i := strings.IndexByte(strings.TrimPrefix(p, "/"), '/'); i >= 0 {
			area = strings.TrimPrefix(p, "/")[:i]
		}
		seen[area] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
