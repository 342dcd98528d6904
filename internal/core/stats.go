package core

import (
	"math"
	"sort"
	"time"

	"github.com/valter-silva-au/taskgraph/internal/graph"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// mostConnectedLimit caps Statistics.MostConnected.
const mostConnectedLimit = 5

// Connection is a task ranked by how many edges touch it.
type Connection struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Dependencies int    `json:"dependencies"`
	Dependents   int    `json:"dependents"`
}

// Total is the number of edges touching the task.
func (c Connection) Total() int { return c.Dependencies + c.Dependents }

// Statistics summarises the committed task set.
type Statistics struct {
	Total           int                       `json:"total"`
	ByStatus        map[models.TaskStatus]int `json:"by_status"`
	ByComplexity    map[models.Complexity]int `json:"by_complexity"`
	ByPriority      map[models.Priority]int   `json:"by_priority"`
	Ready           int                       `json:"ready"`
	AvgDependencies float64                   `json:"avg_dependencies"`
	MostConnected   []Connection              `json:"most_connected"`
	Graph           graph.Metrics             `json:"graph"`
	EarliestCreated *time.Time                `json:"earliest_created,omitempty"`
	LatestCreated   *time.Time                `json:"latest_created,omitempty"`
	LastUpdated     *time.Time                `json:"last_updated,omitempty"`
}

// CompletionRate is the fraction of tasks COMPLETED, 0 for an empty set.
func (s Statistics) CompletionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ByStatus[models.StatusCompleted]) / float64(s.Total)
}

func (e *engine) Statistics() Statistics {
	e.mu.RLock()
	all := e.store.All()
	e.mu.RUnlock()
	return computeStatistics(all, e.timestamp())
}

func computeStatistics(tasks []models.Task, now time.Time) Statistics {
	r := NewReadiness(tasks, now)
	g := r.Graph()
	st := Statistics{
		Total:        len(tasks),
		ByStatus:     make(map[models.TaskStatus]int, len(models.AllStatuses)),
		ByComplexity: make(map[models.Complexity]int),
		ByPriority:   make(map[models.Priority]int),
		Ready:        len(r.Ready()),
		Graph:        g.Metrics(),
	}
	for _, s := range models.AllStatuses {
		st.ByStatus[s] = 0
	}

	conns := make([]Connection, 0, len(tasks))
	deps := 0
	for _, t := range tasks {
		st.ByStatus[t.Status]++
		if t.Complexity != "" {
			st.ByComplexity[t.Complexity]++
		}
		st.ByPriority[t.Priority]++
		deps += len(t.Dependencies)

		in, _ := g.DependenciesOf(t.ID)
		out, _ := g.DependentsOf(t.ID)
		conns = append(conns, Connection{ID: t.ID, Name: t.Name, Dependencies: len(in), Dependents: len(out)})

		created, updated := t.CreatedAt, t.UpdatedAt
		if st.EarliestCreated == nil || created.Before(*st.EarliestCreated) {
			st.EarliestCreated = &created
		}
		if st.LatestCreated == nil || created.After(*st.LatestCreated) {
			st.LatestCreated = &created
		}
		if st.LastUpdated == nil || updated.After(*st.LastUpdated) {
			st.LastUpdated = &updated
		}
	}
	if len(tasks) > 0 {
		st.AvgDependencies = math.Round(float64(deps)/float64(len(tasks))*100) / 100
	}

	sort.SliceStable(conns, func(i, j int) bool { return conns[i].Total() > conns[j].Total() })
	for _, c := range conns {
		if len(st.MostConnected) == mostConnectedLimit || c.Total() == 0 {
			break
		}
		st.MostConnected = append(st.MostConnected, c)
	}
	return st
}
