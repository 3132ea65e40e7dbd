// Package emit turns a named, laid-out declaration tree into an ordered
// sequence of binding units for a writer.
package emit

import (
	"hbind/internal/ast"
	"hbind/internal/layout"
	"hbind/internal/source"
)

// Kind is the kind of a binding unit.
type Kind uint8

const (
	KindConstant Kind = iota
	KindVar
	KindFunction
	KindStruct
	KindUnion
	KindEnum
	KindTypedef
	KindCallback
)

var kindNames = [...]string{
	KindConstant: "constant",
	KindVar:      "var",
	KindFunction: "function",
	KindStruct:   "struct",
	KindUnion:    "union",
	KindEnum:     "enum",
	KindTypedef:  "typedef",
	KindCallback: "callback",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unit?"
}

// IsRecord reports whether units of this kind describe a struct or union.
func (k Kind) IsRecord() bool { return k == KindStruct || k == KindUnion }

// unitKey identifies the declaration a unit is made from. Callback units are
// keyed by the declaration whose type introduces them.
type unitKey struct {
	decl     ast.DeclID
	callback bool
}

func (k unitKey) valid() bool { return k.decl.IsValid() }

// Slot is a typed position inside a unit: a field, a parameter, a result or
// the type of a variable, typedef or constant.
type Slot struct {
	Name   string
	Layout *layout.MemoryLayout
	// Ref is the unit of a record, enum or typedef used by value. For arrays
	// it is the unit of the element.
	Ref string
	// Callback is the callback unit of a function pointer.
	Callback string

	ref, cb unitKey
}

// Field is one data member of a record unit. Members of C11 anonymous structs
// and unions are listed in their container with their final offsets.
type Field struct {
	Slot
	Offset   int64 // bytes
	Flexible bool

	Bitfield  bool
	BitWidth  int64
	BitShift  int64
	BitOffset int64
}

// Unit is one emitted binding.
type Unit struct {
	Name  string // canonical name, unique in the sequence
	Kind  Kind
	CName string // name in the header; empty for synthetic units
	Pos   source.Pos

	Layout *layout.MemoryLayout
	Call   *layout.CallDescriptor

	Type   Slot    // var, typedef, enum and constant
	Fields []Field // struct and union
	Params []Slot  // function and callback
	Result *Slot   // function and callback; nil for void

	Value ast.Value // constant
	Enum  string    // enum unit a constant was lifted from

	// Refs lists the units this one depends on in order of first use.
	Refs []string

	enum unitKey
}

// slots returns pointers to every slot of u.
func (u *Unit) slots() []*Slot {
	out := []*Slot{&u.Type}
	for i := range u.Fields {
		out = append(out, &u.Fields[i].Slot)
	}
	for i := range u.Params {
		out = append(out, &u.Params[i])
	}
	if u.Result != nil {
		out = append(out, u.Result)
	}
	return out
}

// Sequence is the emitter's output: units ordered so that every unit follows
// the units it refers to, except inside reported cycles.
type Sequence struct {
	Header string
	Units  []*Unit
}

// ByName indexes the units of s.
func (s *Sequence) ByName() map[string]*Unit {
	out := make(map[string]*Unit, len(s.Units))
	for _, u := range s.Units {
		out[u.Name] = u
	}
	return out
}

// Count returns the number of units of kind k.
func (s *Sequence) Count(k Kind) int {
	n := 0
	for _, u := range s.Units {
		if u.Kind == k {
			n++
		}
	}
	return n
}
