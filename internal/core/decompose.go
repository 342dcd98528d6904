package core

import (
	"fmt"
	"strings"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Strategy selects how Decompose breaks a task into subtasks.
type Strategy string

const (
	// StrategyFunctionalModules splits by functional area, chained in order.
	StrategyFunctionalModules Strategy = "functional_modules"
	// StrategySequentialSteps splits into chronological steps, chained in order.
	StrategySequentialSteps Strategy = "sequential_steps"
	// StrategyParallelFeatures splits into independent features joined by an
	// integration layer.
	StrategyParallelFeatures Strategy = "parallel_features"
	// StrategyComplexityBased splits by rising complexity level.
	StrategyComplexityBased Strategy = "complexity_based"
)

// DefaultMaxSubtasks is used when Decompose is given a non-positive limit.
const DefaultMaxSubtasks = 8

// Strategies lists every strategy in documentation order.
var Strategies = []Strategy{
	StrategyFunctionalModules,
	StrategySequentialSteps,
	StrategyParallelFeatures,
	StrategyComplexityBased,
}

// IsValid reports whether s is a known strategy.
func (s Strategy) IsValid() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// Decomposition is a set of generated subtask templates for one task. The
// templates are not committed; feed them to Split.
type Decomposition struct {
	Original  models.Task             `json:"original"`
	Strategy  Strategy                `json:"strategy"`
	Templates []models.TaskTemplate   `json:"templates"`
	Rules     models.GranularityRules `json:"rules"`
}

type part struct {
	title      string
	desc       string
	guide      string
	complexity models.Complexity
}

func (e *engine) Decompose(ref string, strategy Strategy, maxSubtasks int) (*Decomposition, error) {
	if strategy == "" {
		strategy = StrategyFunctionalModules
	}
	if !strategy.IsValid() {
		return nil, &models.ValidationError{Issues: []models.FieldIssue{{
			Field:   "strategy",
			Message: fmt.Sprintf("%q is invalid, must be one of: functional_modules, sequential_steps, parallel_features, complexity_based", strategy),
		}}}
	}
	if maxSubtasks <= 0 {
		maxSubtasks = DefaultMaxSubtasks
	}

	e.mu.RLock()
	orig, err := e.findLocked(ref)
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	return &Decomposition{
		Original:  orig,
		Strategy:  strategy,
		Templates: decompose(orig, strategy, maxSubtasks),
		Rules:     e.rules,
	}, nil
}

func decompose(orig models.Task, strategy Strategy, limit int) []models.TaskTemplate {
	parts := partsFor(orig, strategy)
	if len(parts) > limit {
		parts = parts[:limit]
	}

	out := make([]models.TaskTemplate, 0, len(parts))
	for i, p := range parts {
		t := models.TaskTemplate{
			Name:                subtaskName(orig.Name, p.title),
			Description:         fmt.Sprintf("%s for %s", p.desc, orig.Description),
			ImplementationGuide: p.guide,
			Priority:            orig.Priority,
			Complexity:          p.complexity,
			Category:            orig.Category,
		}
		switch {
		case strategy == StrategyParallelFeatures:
			// Only the integration layer waits, on every feature before it.
			if i == len(parts)-1 && strings.HasPrefix(p.title, "Integration") {
				for _, prev := range out {
					t.Dependencies = append(t.Dependencies, prev.Name)
				}
			}
		case i > 0:
			t.Dependencies = []string{out[i-1].Name}
		}
		out = append(out, t)
	}
	return out
}

func partsFor(orig models.Task, strategy Strategy) []part {
	switch strategy {
	case StrategySequentialSteps:
		return []part{
			{"Planning & Analysis", "Analyze requirements and create a detailed plan", "Complete planning & analysis with attention to detail", models.ComplexityModerate},
			{"Foundation Setup", "Set up basic infrastructure and foundation", "Complete foundation setup with attention to detail", models.ComplexityModerate},
			{"Core Development", "Implement core functionality step by step", "Complete core development with attention to detail", models.ComplexityModerate},
			{"Integration", "Integrate all components and test interactions", "Complete integration with attention to detail", models.ComplexityModerate},
			{"Finalization", "Final testing, cleanup and deployment preparation", "Complete finalization with attention to detail", models.ComplexityModerate},
		}
	case StrategyParallelFeatures:
		return []part{
			{"Feature A", "Implement the first independent feature", "Implement feature a as an independent module", models.ComplexityModerate},
			{"Feature B", "Implement the second independent feature", "Implement feature b as an independent module", models.ComplexityModerate},
			{"Feature C", "Implement the third independent feature", "Implement feature c as an independent module", models.ComplexityModerate},
			{"Integration Layer", "Create the integration layer connecting all features", "Implement the integration layer over the feature modules", models.ComplexityModerate},
		}
	case StrategyComplexityBased:
		return []part{
			{"Simple Components", "Implement straightforward components", "Focus on simple components with appropriate complexity handling", models.ComplexitySimple},
			{"Moderate Logic", "Implement moderately complex logic", "Focus on moderate logic with appropriate complexity handling", models.ComplexityModerate},
			{"Complex Integration", "Handle complex integration requirements", "Focus on complex integration with appropriate complexity handling", models.ComplexityComplex},
		}
	default:
		c := models.ComplexitySimple
		if orig.Complexity == models.ComplexityComplex || orig.Complexity == models.ComplexityEpic {
			c = models.ComplexityModerate
		}
		return []part{
			{"Setup & Configuration", "Initialize project structure and dependencies", "Implement setup & configuration following project conventions", c},
			{"Core Implementation", "Implement the main functionality and business logic", "Implement core implementation following project conventions", c},
			{"User Interface", "Create user interface components and interactions", "Implement user interface following project conventions", c},
			{"Testing & Validation", "Implement comprehensive testing and validation", "Implement testing & validation following project conventions", c},
			{"Documentation", "Create user and technical documentation", "Implement documentation following project conventions", c},
		}
	}
}

// subtaskName joins base and title, shortening base so the result stays
// within MaxNameLength.
func subtaskName(base, title string) string {
	suffix := ": " + title
	room := MaxNameLength - len([]rune(suffix))
	if r := []rune(base); len(r) > room {
		base = strings.TrimSpace(string(r[:room]))
	}
	return base + suffix
}
