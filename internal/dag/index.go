package dag

import (
	"fmt"

	"fortio.org/safecast"
)

type NodeID uint32

// Index hands out node IDs in insertion order, so IDs follow declaration order.
type Index struct {
	NameToID map[string]NodeID
	IDToName []string
}

func NewIndex() *Index {
	return &Index{NameToID: make(map[string]NodeID)}
}

// Add registers name and returns its ID; a known name keeps its first ID.
func (idx *Index) Add(name string) NodeID {
	if id, ok := idx.NameToID[name]; ok {
		return id
	}
	id, err := safecast.Conv[NodeID](len(idx.IDToName))
	if err != nil {
		panic(fmt.Errorf("node id overflow: %w", err))
	}
	idx.NameToID[name] = id
	idx.IDToName = append(idx.IDToName, name)
	return id
}

// Lookup returns the ID of name.
func (idx *Index) Lookup(name string) (NodeID, bool) {
	id, ok := idx.NameToID[name]
	return id, ok
}

func (idx *Index) Len() int { return len(idx.IDToName) }

func (idx *Index) Names(ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToName[int(id)]
	}
	return out
}
