package graph

import (
	"container/heap"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoIndices runs Kahn's algorithm. The ready queue is a min-heap by
// insertion index so ties resolve in insertion order. The result is shorter
// than Len when the graph has a cycle.
func (g *Graph) topoIndices() []int {
	indeg := make([]int, len(g.ids))
	for i := range g.deps {
		indeg[i] = len(g.deps[i])
	}

	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// TopologicalOrder returns ids such that every dependency precedes its
// dependents. Identical input always yields identical output. A cyclic graph
// returns a *models.CycleError naming one cycle.
func (g *Graph) TopologicalOrder() ([]string, error) {
	order := g.topoIndices()
	if len(order) != len(g.ids) {
		return nil, &models.CycleError{Members: g.namesOf(g.findCycle())}
	}
	return g.idsOf(order), nil
}

// HasCycle reports whether any dependency cycle exists.
func (g *Graph) HasCycle() bool {
	return g.findCycle() != nil
}

// Cycle returns the task names of one cycle, first member repeated last, or
// nil for an acyclic graph.
func (g *Graph) Cycle() []string {
	c := g.findCycle()
	if c == nil {
		return nil
	}
	return g.namesOf(c)
}

// CheckAcyclic returns a *models.CycleError when the graph has a cycle.
func (g *Graph) CheckAcyclic() error {
	if c := g.findCycle(); c != nil {
		return &models.CycleError{Members: g.namesOf(c)}
	}
	return nil
}

const (
	white = iota
	gray
	black
)

// findCycle returns the first cycle collectCycles finds, or nil. The walk
// follows dependent edges depth-first, starting from each unvisited node in
// insertion order. A gray node is on the recursion stack; reaching one closes
// a cycle.
func (g *Graph) findCycle() []int {
	cycles := g.collectCycles(1)
	if len(cycles) == 0 {
		return nil
	}
	return cycles[0]
}

// Cycles returns the names of every cycle found by a single depth-first
// pass, one per back edge. An acyclic graph returns nil.
func (g *Graph) Cycles() [][]string {
	raw := g.collectCycles(0)
	if len(raw) == 0 {
		return nil
	}
	out := make([][]string, len(raw))
	for i, c := range raw {
		out[i] = g.namesOf(c)
	}
	return out
}

// collectCycles stops after limit cycles; zero means no limit. Each cycle is
// [v, ..., v] with every member a dependency of the next.
func (g *Graph) collectCycles(limit int) [][]int {
	color := make([]int, len(g.ids))
	stack := make([]int, 0, len(g.ids))
	pos := make([]int, len(g.ids))
	var cycles [][]int

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		pos[u] = len(stack)
		stack = append(stack, u)
		for _, v := range g.dependents[u] {
			switch color[v] {
			case white:
				if visit(v) {
					return true
				}
			case gray:
				c := append([]int(nil), stack[pos[v]:]...)
				c = append(c, v)
				cycles = append(cycles, c)
				if limit > 0 && len(cycles) >= limit {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for i := range g.ids {
		if color[i] != white {
			continue
		}
		if visit(i) {
			break
		}
	}
	return cycles
}
