package dag

import "slices"

// Graph is a dependency graph over nodes 0..n-1. An edge from -> to means from
// must be ordered before to.
type Graph struct {
	Edges [][]NodeID // Edges[from] = []to
	Indeg []int
}

func NewGraph(n int) Graph {
	return Graph{
		Edges: make([][]NodeID, n),
		Indeg: make([]int, n),
	}
}

// Len returns the number of nodes.
func (g Graph) Len() int { return len(g.Edges) }

// AddEdge records that dep must precede node. Self edges and repeated edges
// are ignored.
func (g *Graph) AddEdge(dep, node NodeID) {
	if dep == node || int(dep) >= len(g.Edges) || int(node) >= len(g.Edges) {
		return
	}
	if slices.Contains(g.Edges[int(dep)], node) {
		return
	}
	g.Edges[int(dep)] = append(g.Edges[int(dep)], node)
	g.Indeg[int(node)]++
}
