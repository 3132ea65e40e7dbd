package ast

import (
	"slices"
	"sync"
)

// AttrKey names a kind of auxiliary fact attached to a declaration.
type AttrKey string

const (
	// AttrAnonymous marks a C11 anonymous struct/union member.
	AttrAnonymous AttrKey = "anonymous"
	// AttrSkip marks a declaration excluded from emission; payload is the reason.
	AttrSkip AttrKey = "skip"
	// AttrPacked marks a record declared with __attribute__((packed)).
	AttrPacked AttrKey = "packed"
	// AttrAligned carries an explicit alignment override in bytes (int64).
	AttrAligned AttrKey = "aligned"
	// AttrMaxAlign caps member alignment in bytes (int64), from #pragma pack(n).
	AttrMaxAlign AttrKey = "max-align"
	// AttrFieldOffset carries the front end's bit offset of a field (int64).
	AttrFieldOffset AttrKey = "field-offset"
	// AttrRecordSize carries the front end's size of a record in bytes (int64).
	AttrRecordSize AttrKey = "record-size"
	// AttrRecordAlign carries the front end's alignment of a record in bytes (int64).
	AttrRecordAlign AttrKey = "record-align"
	// AttrFlexible marks a flexible array member.
	AttrFlexible AttrKey = "flexible"
	// AttrUnlayoutable carries the layout error of a declaration that has no layout.
	AttrUnlayoutable AttrKey = "unlayoutable"
)

// attrStore is an append-only side table. Values under a key are never removed
// or reordered; keys are remembered in first-insertion order.
type attrStore struct {
	mu   sync.RWMutex
	vals map[DeclID]map[AttrKey][]any
	keys map[DeclID][]AttrKey
}

func newAttrStore() *attrStore {
	return &attrStore{
		vals: make(map[DeclID]map[AttrKey][]any),
		keys: make(map[DeclID][]AttrKey),
	}
}

func (s *attrStore) add(id DeclID, key AttrKey, vals ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.vals[id]
	if m == nil {
		m = make(map[AttrKey][]any)
		s.vals[id] = m
	}
	if _, ok := m[key]; !ok {
		s.keys[id] = append(s.keys[id], key)
	}
	m[key] = append(m[key], vals...)
}

func (s *attrStore) get(id DeclID, key AttrKey) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.vals[id][key])
}

func (s *attrStore) has(id DeclID, key AttrKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vals[id][key]
	return ok
}

func (s *attrStore) keysOf(id DeclID) []AttrKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.keys[id])
}

// AddAttr appends values under key. Safe for concurrent use.
func (t *Tree) AddAttr(id DeclID, key AttrKey, vals ...any) {
	if !id.IsValid() {
		return
	}
	if len(vals) == 0 {
		vals = []any{true}
	}
	t.attrs.add(id, key, vals...)
}

// Attr returns a copy of the values attached under key, in attachment order.
func (t *Tree) Attr(id DeclID, key AttrKey) []any {
	return t.attrs.get(id, key)
}

// HasAttr reports whether any value was attached under key.
func (t *Tree) HasAttr(id DeclID, key AttrKey) bool {
	return t.attrs.has(id, key)
}

// AttrKeys lists the keys present on id in first-attachment order.
func (t *Tree) AttrKeys(id DeclID) []AttrKey {
	return t.attrs.keysOf(id)
}

// AttrInt returns the first value under key as int64.
func (t *Tree) AttrInt(id DeclID, key AttrKey) (int64, bool) {
	vals := t.Attr(id, key)
	if len(vals) == 0 {
		return 0, false
	}
	v, ok := vals[0].(int64)
	return v, ok
}

// Skipped reports whether the declaration carries the skip attribute.
func (t *Tree) Skipped(id DeclID) bool {
	return t.HasAttr(id, AttrSkip)
}
