package ast

import "hbind/internal/types"

// DeclID is a stable handle of a declaration inside a Tree.
type DeclID = types.DeclID

// NoDeclID marks the absence of a declaration.
const NoDeclID = types.NoDeclID

// DeclKind enumerates the declaration variants.
type DeclKind uint8

const (
	DeclInvalid DeclKind = iota
	DeclScoped
	DeclFunction
	DeclVariable
	DeclTypedef
	DeclConstant
)

func (k DeclKind) String() string {
	switch k {
	case DeclScoped:
		return "scoped"
	case DeclFunction:
		return "function"
	case DeclVariable:
		return "variable"
	case DeclTypedef:
		return "typedef"
	case DeclConstant:
		return "constant"
	default:
		return "invalid"
	}
}

// ScopedKind refines DeclScoped.
type ScopedKind uint8

const (
	ScopeStruct ScopedKind = iota
	ScopeUnion
	ScopeEnum
	ScopeBitfieldGroup
	ScopeToplevel
	ScopeClass
)

func (k ScopedKind) String() string {
	switch k {
	case ScopeStruct:
		return "struct"
	case ScopeUnion:
		return "union"
	case ScopeEnum:
		return "enum"
	case ScopeBitfieldGroup:
		return "bitfield-group"
	case ScopeToplevel:
		return "toplevel"
	case ScopeClass:
		return "class"
	default:
		return "scoped"
	}
}

// IsRecord reports whether the scope has a memory layout of its own.
func (k ScopedKind) IsRecord() bool {
	return k == ScopeStruct || k == ScopeUnion || k == ScopeClass
}

// VarKind refines DeclVariable.
type VarKind uint8

const (
	VarGlobal VarKind = iota
	VarField
	VarBitfield
	VarParameter
)

func (k VarKind) String() string {
	switch k {
	case VarGlobal:
		return "global"
	case VarField:
		return "field"
	case VarBitfield:
		return "bitfield"
	case VarParameter:
		return "parameter"
	default:
		return "variable"
	}
}
