// Package graph derives the dependency DAG from a task set. A Graph is a pure
// function of the tasks it was built from and is never persisted; rebuild it
// after every commit.
package graph

import (
	"sort"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Dangling is a dependency reference that names no task in the set.
type Dangling struct {
	TaskID string
	Ref    string
}

// Graph is an immutable adjacency index over tasks. Edges point from a
// dependency to its dependent. It is safe for concurrent read access.
//
// Nodes are addressed internally by insertion index, which is the order of
// the task slice passed to Build. Every deterministic traversal breaks ties
// by that index.
type Graph struct {
	ids   []string
	names []string
	index map[string]int

	deps       [][]int // node -> its dependencies, in declaration order
	dependents [][]int // node -> nodes depending on it, ascending
	edgeCount  int

	dangling []Dangling
}

// Build indexes tasks. Duplicate dependency entries collapse to one edge and
// references to unknown ids are recorded as dangling rather than failing.
func Build(tasks []models.Task) *Graph {
	g := &Graph{
		ids:        make([]string, len(tasks)),
		names:      make([]string, len(tasks)),
		index:      make(map[string]int, len(tasks)),
		deps:       make([][]int, len(tasks)),
		dependents: make([][]int, len(tasks)),
	}
	for i, t := range tasks {
		g.ids[i] = t.ID
		g.names[i] = t.Name
		g.index[t.ID] = i
	}

	for i, t := range tasks {
		seen := make(map[int]struct{}, len(t.Dependencies))
		for _, ref := range t.Dependencies {
			j, ok := g.index[ref]
			if !ok {
				g.dangling = append(g.dangling, Dangling{TaskID: t.ID, Ref: ref})
				continue
			}
			if _, dup := seen[j]; dup {
				continue
			}
			seen[j] = struct{}{}
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
			g.edgeCount++
		}
	}
	for i := range g.dependents {
		sort.Ints(g.dependents[i])
	}
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.ids) }

// EdgeCount returns the number of distinct dependency edges.
func (g *Graph) EdgeCount() int { return g.edgeCount }

// Has reports whether id is a node.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// IDs returns node ids in insertion order.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.ids...)
}

// Name returns the task name recorded for id.
func (g *Graph) Name(id string) string {
	if i, ok := g.index[id]; ok {
		return g.names[i]
	}
	return ""
}

// Dangling returns references that did not resolve to a node.
func (g *Graph) Dangling() []Dangling {
	return append([]Dangling(nil), g.dangling...)
}

// DependenciesOf returns the ids id depends on, in declaration order.
func (g *Graph) DependenciesOf(id string) ([]string, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.idsOf(g.deps[i]), true
}

// DependentsOf returns the ids that list id as a dependency, in insertion
// order.
func (g *Graph) DependentsOf(id string) ([]string, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.idsOf(g.dependents[i]), true
}

// Roots returns nodes without dependencies.
func (g *Graph) Roots() []string {
	var out []string
	for i := range g.ids {
		if len(g.deps[i]) == 0 {
			out = append(out, g.ids[i])
		}
	}
	return out
}

// Leaves returns nodes nothing depends on.
func (g *Graph) Leaves() []string {
	var out []string
	for i := range g.ids {
		if len(g.dependents[i]) == 0 {
			out = append(out, g.ids[i])
		}
	}
	return out
}

// Descendants returns every node reachable from id along dependent edges,
// in breadth-first order. id itself is excluded.
func (g *Graph) Descendants(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.idsOf(g.bfs(i, g.dependents))
}

// Ancestors returns every node id transitively depends on, breadth-first.
func (g *Graph) Ancestors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.idsOf(g.bfs(i, g.deps))
}

// Path returns the shortest chain of ids from -> ... -> to following
// dependent edges, or nil when to is not reachable from from.
func (g *Graph) Path(from, to string) []string {
	s, ok1 := g.index[from]
	t, ok2 := g.index[to]
	if !ok1 || !ok2 {
		return nil
	}
	if s == t {
		return []string{from}
	}

	parent := make([]int, len(g.ids))
	for i := range parent {
		parent[i] = -1
	}
	parent[s] = s
	queue := []int{s}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.dependents[u] {
			if parent[v] != -1 {
				continue
			}
			parent[v] = u
			if v == t {
				var rev []int
				for cur := t; cur != s; cur = parent[cur] {
					rev = append(rev, cur)
				}
				rev = append(rev, s)
				out := make([]string, len(rev))
				for k := range rev {
					out[k] = g.ids[rev[len(rev)-1-k]]
				}
				return out
			}
			queue = append(queue, v)
		}
	}
	return nil
}

// Reachable reports whether to can be reached from from along dependent
// edges.
func (g *Graph) Reachable(from, to string) bool {
	return g.Path(from, to) != nil
}

func (g *Graph) bfs(start int, adj [][]int) []int {
	visited := make([]bool, len(g.ids))
	visited[start] = true
	queue := []int{start}
	var out []int
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if visited[v] {
				continue
			}
			visited[v] = true
			out = append(out, v)
			queue = append(queue, v)
		}
	}
	return out
}

func (g *Graph) idsOf(idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = g.ids[i]
	}
	return out
}

func (g *Graph) namesOf(idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = g.names[i]
	}
	return out
}
