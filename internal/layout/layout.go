package layout

import (
	"hbind/internal/abi"
	"hbind/internal/ast"
	"hbind/internal/types"
)

// Class is the shape of a laid-out type.
type Class uint8

const (
	ClassScalar Class = iota
	ClassPointer
	ClassStruct
	ClassUnion
	ClassArray
	ClassVector
	ClassComplex
)

var classNames = [...]string{
	ClassScalar:  "scalar",
	ClassPointer: "pointer",
	ClassStruct:  "struct",
	ClassUnion:   "union",
	ClassArray:   "array",
	ClassVector:  "vector",
	ClassComplex: "complex",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "class?"
}

// MemoryLayout is the ABI layout of a type for a specific Target. Layouts are
// shared through the cache and must not be modified by callers.
type MemoryLayout struct {
	Class Class
	Size  int64
	Align int64

	// Scalar-only:
	Prim     types.PrimKind
	Unsigned bool

	// Array, vector and complex element.
	Elem  *MemoryLayout
	Count int64

	// Struct and union only:
	Members    []MemberLayout
	Padding    []Span
	Mismatches []Mismatch
}

// MemberLayout places one data member of a record.
type MemberLayout struct {
	Decl   ast.DeclID
	Name   string
	Offset int64 // bytes; for bitfields the start of the storage read
	Layout *MemoryLayout

	// Anonymous marks a C11 anonymous struct or union member.
	Anonymous bool
	// Flexible marks a trailing flexible array member; it has no size.
	Flexible bool

	// Bitfield-only: the field occupies BitWidth bits starting BitShift bits
	// above the least significant bit of the Layout.Size bytes at Offset.
	Bitfield bool
	Group    ast.DeclID
	BitWidth int64
	BitShift int64
	// BitOffset is the field's bit offset from the start of the record.
	BitOffset int64
}

// End returns the first byte past the member.
func (m MemberLayout) End() int64 {
	if m.Flexible || m.Layout == nil {
		return m.Offset
	}
	return m.Offset + m.Layout.Size
}

// Span is a run of padding bytes.
type Span struct {
	Offset int64
	Size   int64
}

// MismatchKind says which front-end fact disagreed with the computed layout.
type MismatchKind uint8

const (
	MismatchOffset MismatchKind = iota
	MismatchSize
	MismatchAlign
	MismatchOrder
)

// Mismatch records a front-end fact that differs from the engine's own
// computation. The reported value wins.
type Mismatch struct {
	Kind     MismatchKind
	Decl     ast.DeclID
	Name     string
	Reported int64 // bits for offsets, bytes for size and align
	Computed int64
}

// CallDescriptor is the argument and return layout of a function type.
type CallDescriptor struct {
	Return   *MemoryLayout // nil for void
	Args     []*MemoryLayout
	Variadic bool
}

// LayoutEngine computes memory layout for types of one declaration tree. It is
// safe for concurrent use once the tree is built.
type LayoutEngine struct {
	Target abi.Target
	Tree   *ast.Tree

	cache *cache
}

// New creates a new LayoutEngine for the specified target.
func New(target abi.Target, tree *ast.Tree) *LayoutEngine {
	return &LayoutEngine{
		Target: target,
		Tree:   tree,
		cache:  newCache(0),
	}
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		stack: nil,
		index: make(map[types.TypeID]int, 32),
	}
}

// LayoutOf computes and caches the layout of a type.
func (e *LayoutEngine) LayoutOf(t types.TypeID) (*MemoryLayout, error) {
	l, err := e.layoutOf(t, newLayoutState())
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (e *LayoutEngine) layoutOf(t types.TypeID, state *layoutState) (*MemoryLayout, *LayoutError) {
	canon := e.Tree.Types.Unqualified(t)
	if cached, ok := e.cache.get(canon); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[canon]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, canon)
		err := &LayoutError{Kind: LayoutErrInvalid, Type: canon, Cycle: cycle}
		e.cache.put(canon, &cacheEntry{Err: err})
		return nil, err
	}

	state.index[canon] = len(state.stack)
	state.stack = append(state.stack, canon)
	layout, err := e.computeLayout(canon, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, canon)

	e.cache.put(canon, &cacheEntry{Layout: layout, Err: err})
	return layout, err
}

// SizeOf returns the size of a type in bytes.
func (e *LayoutEngine) SizeOf(t types.TypeID) (int64, error) {
	l, err := e.LayoutOf(t)
	if err != nil {
		return 0, err
	}
	return l.Size, nil
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *LayoutEngine) AlignOf(t types.TypeID) (int64, error) {
	l, err := e.LayoutOf(t)
	if err != nil {
		return 0, err
	}
	return l.Align, nil
}

// FieldOffset returns the byte offset of a named field of a record type.
// Fields of C11 anonymous members are found through the member.
func (e *LayoutEngine) FieldOffset(record types.TypeID, name string) (int64, error) {
	l, err := e.LayoutOf(record)
	if err != nil {
		return 0, err
	}
	if off, ok := findField(l, name); ok {
		return off, nil
	}
	return 0, &LayoutError{Kind: LayoutErrInvalidFieldName, Type: record, Field: name}
}

func findField(l *MemoryLayout, name string) (int64, bool) {
	for _, m := range l.Members {
		if m.Name == name && name != "" {
			return m.Offset, true
		}
		if m.Anonymous && m.Layout != nil {
			if off, ok := findField(m.Layout, name); ok {
				return m.Offset + off, true
			}
		}
	}
	return 0, false
}
