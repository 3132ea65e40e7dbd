package ast

import (
	"hbind/internal/source"
	"hbind/internal/types"
)

// Decl is one node of the declaration tree. Only the fields relevant to Kind are
// set. Nodes are immutable once built; auxiliary facts go to the attribute store.
type Decl struct {
	Kind DeclKind
	Name string // empty for anonymous declarations
	Pos  source.Pos

	// Type is the function type for DeclFunction, the declared type for
	// DeclVariable and DeclConstant, the canonical aliased type for DeclTypedef
	// and Declared(self) for records and enums.
	Type types.TypeID

	Scoped  ScopedKind
	Var     VarKind
	Members []DeclID // DeclScoped
	Params  []DeclID // DeclFunction

	// Nested holds anonymous records owned by this declaration: the record
	// behind a field, a parameter or a typedef.
	Nested []DeclID

	BitWidth   int64        // VarBitfield
	Value      Value        // DeclConstant
	Underlying types.TypeID // ScopeEnum integer type
	Parent     DeclID

	defined bool
}

// IsAnonymous reports whether the declaration has no source name.
func (d *Decl) IsAnonymous() bool { return d.Name == "" }

// IsScoped reports whether d is a scoped declaration of the given kind.
func (d *Decl) IsScoped(kind ScopedKind) bool {
	return d.Kind == DeclScoped && d.Scoped == kind
}

// IsRecord reports whether d is a struct, union or class.
func (d *Decl) IsRecord() bool {
	return d.Kind == DeclScoped && d.Scoped.IsRecord()
}

// KindName returns a short human-readable kind, e.g. "struct" or "function".
func (d *Decl) KindName() string {
	switch d.Kind {
	case DeclScoped:
		return d.Scoped.String()
	case DeclVariable:
		return d.Var.String()
	default:
		return d.Kind.String()
	}
}

// Key identifies a declaration for deduplication independently of its handle.
type Key struct {
	Kind DeclKind
	Sub  uint8
	Name string
	Pos  source.Pos
}

// Key returns the deduplication key of d.
func (d *Decl) Key() Key {
	k := Key{Kind: d.Kind, Name: d.Name, Pos: d.Pos}
	switch d.Kind {
	case DeclScoped:
		k.Sub = uint8(d.Scoped)
	case DeclVariable:
		k.Sub = uint8(d.Var)
	}
	return k
}
