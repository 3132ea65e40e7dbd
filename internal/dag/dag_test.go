package dag

import (
	"slices"
	"testing"
)

func graphOf(idx *Index, edges map[string][]string) Graph {
	g := NewGraph(idx.Len())
	for from, tos := range edges {
		for _, to := range tos {
			g.AddEdge(idx.NameToID[from], idx.NameToID[to])
		}
	}
	return g
}

func indexOf(names ...string) *Index {
	idx := NewIndex()
	for _, n := range names {
		idx.Add(n)
	}
	return idx
}

func TestIndexKeepsInsertionOrder(t *testing.T) {
	idx := indexOf("b", "a", "b", "c")
	if got, want := idx.IDToName, []string{"b", "a", "c"}; !slices.Equal(got, want) {
		t.Fatalf("IDToName = %v, want %v", got, want)
	}
	if id, ok := idx.Lookup("c"); !ok || id != 2 {
		t.Fatalf("Lookup(c) = %d, %v", id, ok)
	}
	if _, ok := idx.Lookup("zz"); ok {
		t.Fatalf("unexpected id for unknown name")
	}
}

func TestToposortKeepsOrderWhenEdgesPointForward(t *testing.T) {
	idx := indexOf("Point", "Rect", "area", "origin")
	g := graphOf(idx, map[string][]string{
		"Point": {"Rect", "origin"},
		"Rect":  {"area"},
	})
	topo := ToposortKahn(g)
	if topo.Cyclic {
		t.Fatalf("unexpected cycle: %v", idx.Names(topo.Cycles))
	}
	if got, want := idx.Names(topo.Order), idx.IDToName; !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestToposortMovesDependencyFirst(t *testing.T) {
	idx := indexOf("use", "other", "List", "Node")
	g := graphOf(idx, map[string][]string{
		"Node": {"List", "use"},
		"List": {"use"},
	})
	topo := ToposortKahn(g)
	want := []string{"other", "Node", "List", "use"}
	if got := idx.Names(topo.Order); !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestToposortReportsCycles(t *testing.T) {
	idx := indexOf("a", "b", "c", "d")
	g := graphOf(idx, map[string][]string{
		"b": {"c"},
		"c": {"b"},
		"a": {"a"},
	})
	topo := ToposortKahn(g)
	if !topo.Cyclic {
		t.Fatalf("expected a cycle")
	}
	if got, want := idx.Names(topo.Cycles), []string{"b", "c"}; !slices.Equal(got, want) {
		t.Fatalf("cycles = %v, want %v", got, want)
	}
	if got, want := idx.Names(topo.Order), []string{"a", "d", "b", "c"}; !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestAddEdgeIgnoresDuplicates(t *testing.T) {
	g := NewGraph(2)
	g.AddEdge(0, 1)
	g.AddEdge(0, 1)
	if g.Indeg[1] != 1 || len(g.Edges[0]) != 1 {
		t.Fatalf("edges = %v, indeg = %v", g.Edges, g.Indeg)
	}
}
