package graph

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/valter-silva-au/taskgraph/pkg/models"
	"pgregory.net/rapid"
)

// genDAG draws tasks whose dependencies only point at earlier tasks, so the
// result is acyclic by construction.
func genDAG(t *rapid.T) []models.Task {
	n := rapid.IntRange(0, 25).Draw(t, "n")
	tasks := make([]models.Task, n)
	for i := range tasks {
		id := fmt.Sprintf("t%02d", i)
		var deps []string
		if i > 0 {
			k := rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("nDeps%d", i))
			for j := 0; j < k; j++ {
				dep := rapid.IntRange(0, i-1).Draw(t, fmt.Sprintf("dep%d_%d", i, j))
				deps = append(deps, fmt.Sprintf("t%02d", dep))
			}
		}
		tasks[i] = models.Task{ID: id, Name: "task " + id, Dependencies: deps}
	}
	// Shuffle insertion order so edges also point forward in the slice.
	perm := rapid.Permutation(tasks).Draw(t, "perm")
	return perm
}

// Feature: taskgraph, Property 1: Topological order respects every edge
func TestTopologicalOrderRespectsEdges(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tasks := genDAG(t)
		g := Build(tasks)

		order, err := g.TopologicalOrder()
		if err != nil {
			t.Fatalf("acyclic input returned error: %v", err)
		}
		if len(order) != len(tasks) {
			t.Fatalf("order has %d ids, want %d", len(order), len(tasks))
		}
		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		for _, task := range tasks {
			for _, dep := range task.Dependencies {
				if pos[dep] >= pos[task.ID] {
					t.Fatalf("%s precedes its dependency %s", task.ID, dep)
				}
			}
		}
	})
}

// Feature: taskgraph, Property 2: Topological order is deterministic
func TestTopologicalOrderDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tasks := genDAG(t)

		first, err := Build(tasks).TopologicalOrder()
		if err != nil {
			t.Fatal(err)
		}
		second, err := Build(tasks).TopologicalOrder()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("order changed between runs:\n%v\n%v", first, second)
		}
	})
}

// Feature: taskgraph, Property 3: A closing back edge is always detected
func TestBackEdgeCreatesDetectedCycle(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tasks := genDAG(t)
		g := Build(tasks)
		if g.HasCycle() {
			t.Fatal("generated DAG reported a cycle")
		}

		// Pick any edge dep -> task and add task -> dep.
		var edges [][2]int
		for i, task := range tasks {
			for _, dep := range task.Dependencies {
				for j := range tasks {
					if tasks[j].ID == dep {
						edges = append(edges, [2]int{i, j})
					}
				}
			}
		}
		if len(edges) == 0 {
			return
		}
		e := edges[rapid.IntRange(0, len(edges)-1).Draw(t, "edge")]
		mutated := make([]models.Task, len(tasks))
		for i := range tasks {
			mutated[i] = tasks[i].Clone()
		}
		mutated[e[1]].Dependencies = append(mutated[e[1]].Dependencies, tasks[e[0]].ID)

		g2 := Build(mutated)
		if !g2.HasCycle() {
			t.Fatal("back edge not detected")
		}
		c := g2.Cycle()
		if len(c) < 3 || c[0] != c[len(c)-1] {
			t.Fatalf("cycle witness %v is not closed", c)
		}
	})
}
