package frontend

import "hbind/internal/source"

// Node is an in-memory Cursor. The cc adapter translates into Nodes and tests
// build them by hand.
type Node struct {
	K         CursorKind
	N         string
	P         source.Pos
	Kids      []*Node
	T         *TypeNode
	Link      Linkage
	Def       bool
	Bitfield  bool
	Width     int64
	HasOffset bool
	Offset    int64 // bits
	Flexible  bool
	IsPacked  bool
	Aligned   int64
	PackAlign int64
	EnumVal   int64
	MacroVal  MacroValue
}

var _ Cursor = (*Node)(nil)

func (n *Node) Kind() CursorKind      { return n.K }
func (n *Node) Name() string          { return n.N }
func (n *Node) Pos() source.Pos       { return n.P }
func (n *Node) Linkage() Linkage      { return n.Link }
func (n *Node) IsDefinition() bool    { return n.Def }
func (n *Node) IsFlexibleArray() bool { return n.Flexible }
func (n *Node) Packed() bool          { return n.IsPacked }
func (n *Node) Macro() MacroValue     { return n.MacroVal }

func (n *Node) Children() []Cursor {
	out := make([]Cursor, len(n.Kids))
	for i, k := range n.Kids {
		out[i] = k
	}
	return out
}

func (n *Node) Type() CType {
	if n.T == nil {
		return nil
	}
	return n.T
}

func (n *Node) BitWidth() (int64, bool) {
	if n.K != CursorField || !n.Bitfield {
		return 0, false
	}
	return n.Width, true
}

func (n *Node) BitOffset() (int64, bool) {
	if !n.HasOffset {
		return 0, false
	}
	return n.Offset, true
}

func (n *Node) AlignAttr() (int64, bool) {
	return n.Aligned, n.Aligned > 0
}

func (n *Node) PackAttr() (int64, bool) {
	return n.PackAlign, n.PackAlign > 0
}

func (n *Node) EnumValue() (int64, bool) {
	return n.EnumVal, n.K == CursorEnumConstant
}

// TypeNode is an in-memory CType.
type TypeNode struct {
	K        TypeKind
	Spell    string
	E        *TypeNode
	Res      *TypeNode
	Ps       []*TypeNode
	PNames   []string
	Var      bool
	N        int64
	D        *Node
	Sz       int64
	Al       int64
	Complete bool
	Volatile bool
}

var _ CType = (*TypeNode)(nil)

func (t *TypeNode) Kind() TypeKind       { return t.K }
func (t *TypeNode) Spelling() string     { return t.Spell }
func (t *TypeNode) Variadic() bool       { return t.Var }
func (t *TypeNode) Len() int64           { return t.N }
func (t *TypeNode) Size() int64          { return t.Sz }
func (t *TypeNode) Align() int64         { return t.Al }
func (t *TypeNode) IsComplete() bool     { return t.Complete }
func (t *TypeNode) IsVolatile() bool     { return t.Volatile }
func (t *TypeNode) ParamNames() []string { return t.PNames }

func (t *TypeNode) Elem() CType {
	if t.E == nil {
		return nil
	}
	return t.E
}

func (t *TypeNode) Result() CType {
	if t.Res == nil {
		return nil
	}
	return t.Res
}

func (t *TypeNode) Params() []CType {
	out := make([]CType, len(t.Ps))
	for i, p := range t.Ps {
		out[i] = p
	}
	return out
}

func (t *TypeNode) Decl() Cursor {
	if t.D == nil {
		return nil
	}
	return t.D
}
