package graph

// Depths returns, per id, the length in edges of the longest dependency
// chain ending at that node. Roots have depth 0. Nodes on a cycle are
// omitted.
func (g *Graph) Depths() map[string]int {
	depth := make([]int, len(g.ids))
	order := g.topoIndices()
	out := make(map[string]int, len(order))
	for _, u := range order {
		d := 0
		for _, p := range g.deps[u] {
			if depth[p]+1 > d {
				d = depth[p] + 1
			}
		}
		depth[u] = d
		out[g.ids[u]] = d
	}
	return out
}

// MaxDepth returns the longest dependency chain in edges.
func (g *Graph) MaxDepth() int {
	maxDepth := 0
	for _, d := range g.Depths() {
		if d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth
}

// Components returns the number of weakly connected components.
func (g *Graph) Components() int {
	parent := make([]int, len(g.ids))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	n := len(g.ids)
	for u := range g.dependents {
		for _, v := range g.dependents[u] {
			ru, rv := find(u), find(v)
			if ru != rv {
				parent[ru] = rv
				n--
			}
		}
	}
	return n
}

// Metrics summarises the shape of the graph.
type Metrics struct {
	NodeCount  int     `json:"node_count" yaml:"node_count"`
	EdgeCount  int     `json:"edge_count" yaml:"edge_count"`
	Density    float64 `json:"density" yaml:"density"`
	IsDAG      bool    `json:"is_dag" yaml:"is_dag"`
	MaxDepth   int     `json:"max_depth" yaml:"max_depth"`
	Components int     `json:"weakly_connected_components" yaml:"weakly_connected_components"`
	Roots      int     `json:"roots" yaml:"roots"`
	Leaves     int     `json:"leaves" yaml:"leaves"`
}

// Metrics computes node and edge counts, density (edges over n*(n-1)),
// acyclicity, depth and connectivity.
func (g *Graph) Metrics() Metrics {
	n := len(g.ids)
	m := Metrics{
		NodeCount:  n,
		EdgeCount:  g.edgeCount,
		IsDAG:      !g.HasCycle(),
		MaxDepth:   g.MaxDepth(),
		Components: g.Components(),
		Roots:      len(g.Roots()),
		Leaves:     len(g.Leaves()),
	}
	if n > 1 {
		m.Density = float64(g.edgeCount) / float64(n*(n-1))
	}
	return m
}
