package dag

import (
	"container/heap"
	"fmt"
	"slices"

	"fortio.org/safecast"
)

type Topo struct {
	Order  []NodeID // all nodes; those in cycles come last in ID order
	Cyclic bool
	Cycles []NodeID // узлы, оставшиеся в цикле
}

// ToposortKahn orders g so that every node follows its dependencies. Among the
// nodes that are ready, the one with the smallest ID goes first, so an acyclic
// graph whose edges already point forward keeps its ID order.
func ToposortKahn(g Graph) *Topo {
	nodeCount := len(g.Edges)
	indeg := make([]int, len(g.Indeg))
	copy(indeg, g.Indeg)

	topo := &Topo{Order: make([]NodeID, 0, nodeCount)}

	ready := &idHeap{}
	for i := range nodeCount {
		if indeg[i] == 0 {
			heap.Push(ready, nodeID(i))
		}
	}

	done := make([]bool, nodeCount)
	for ready.Len() > 0 {
		id := heap.Pop(ready).(NodeID) //nolint:errcheck // heap holds NodeIDs only
		topo.Order = append(topo.Order, id)
		done[int(id)] = true
		for _, to := range g.Edges[int(id)] {
			indeg[int(to)]--
			if indeg[int(to)] == 0 {
				heap.Push(ready, to)
			}
		}
	}

	if len(topo.Order) != nodeCount {
		topo.Cyclic = true
		for i := range nodeCount {
			if !done[i] {
				topo.Cycles = append(topo.Cycles, nodeID(i))
			}
		}
		slices.Sort(topo.Cycles)
		topo.Order = append(topo.Order, topo.Cycles...)
	}

	return topo
}

func nodeID(i int) NodeID {
	id, err := safecast.Conv[NodeID](i)
	if err != nil {
		panic(fmt.Errorf("node id overflow: %w", err))
	}
	return id
}

type idHeap []NodeID

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(NodeID)) } //nolint:errcheck // only NodeIDs are pushed
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
