package frontend

import (
	"hbind/internal/source"
)

// CursorKind is the declaration kind a cursor denotes.
type CursorKind uint8

const (
	CursorUnexposed CursorKind = iota
	CursorTranslationUnit
	CursorFunction
	CursorVar
	CursorStruct
	CursorUnion
	CursorEnum
	CursorEnumConstant
	CursorField
	CursorTypedef
	CursorParam
	CursorMacro
)

var cursorKindNames = [...]string{
	CursorUnexposed:       "unexposed",
	CursorTranslationUnit: "translation-unit",
	CursorFunction:        "function",
	CursorVar:             "var",
	CursorStruct:          "struct",
	CursorUnion:           "union",
	CursorEnum:            "enum",
	CursorEnumConstant:    "enum-constant",
	CursorField:           "field",
	CursorTypedef:         "typedef",
	CursorParam:           "param",
	CursorMacro:           "macro",
}

func (k CursorKind) String() string {
	if int(k) < len(cursorKindNames) {
		return cursorKindNames[k]
	}
	return "unknown"
}

// Linkage of a declaration.
type Linkage uint8

const (
	LinkageNone Linkage = iota
	LinkageExternal
	LinkageInternal
)

// MacroValue is the evaluated value of an object-like macro.
type MacroValue struct {
	Kind  MacroKind
	Int   int64
	Uint  uint64
	Float float64
	Str   string
}

// MacroKind says which field of MacroValue is set.
type MacroKind uint8

const (
	MacroNotEvaluable MacroKind = iota
	MacroInt
	MacroUint
	MacroFloat
	MacroString
)

// Cursor is one node of the front end's declaration tree.
type Cursor interface {
	Kind() CursorKind
	Name() string
	Pos() source.Pos
	Children() []Cursor
	// Type is the function type of a function, the declared type of a variable,
	// field or parameter, the aliased type of a typedef and the record or enum
	// type of a tag declaration.
	Type() CType
	Linkage() Linkage
	// IsDefinition reports whether a tag declaration carries a body.
	IsDefinition() bool
	// BitWidth returns the declared width of a bitfield.
	BitWidth() (int64, bool)
	// BitOffset returns the front end's bit offset of a field, when known.
	BitOffset() (int64, bool)
	IsFlexibleArray() bool
	Packed() bool
	// AlignAttr returns an explicit alignment from __attribute__((aligned)).
	AlignAttr() (int64, bool)
	// PackAttr returns the #pragma pack value a record was defined under.
	PackAttr() (int64, bool)
	// EnumValue returns the value of an enum constant.
	EnumValue() (int64, bool)
	// Macro returns the evaluated value of a macro cursor.
	Macro() MacroValue
}

// TypeKind is the kind of a front-end type.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypeVoid
	TypeBool
	TypeChar
	TypeSChar
	TypeUChar
	TypeChar16
	TypeWChar
	TypeShort
	TypeUShort
	TypeInt
	TypeUInt
	TypeLong
	TypeULong
	TypeLongLong
	TypeULongLong
	TypeInt128
	TypeUInt128
	TypeFloat
	TypeDouble
	TypeLongDouble
	TypeFloat128
	TypeFloat16
	TypePointer
	TypeConstantArray
	TypeIncompleteArray
	TypeVariableArray
	TypeVector
	TypeComplex
	TypeFunction
	TypeRecord
	TypeEnum
	TypeTypedef
	TypeAtomic
	TypeDependent
	TypeUnexposed
)

// CType is a front-end type.
type CType interface {
	Kind() TypeKind
	Spelling() string
	// Elem is the pointee, element, aliased, atomic or complex component type.
	Elem() CType
	Result() CType
	Params() []CType
	ParamNames() []string
	Variadic() bool
	Len() int64
	// Decl is the declaration cursor of a record, enum or typedef type.
	Decl() Cursor
	// Size and Align are -1 when the front end cannot tell.
	Size() int64
	Align() int64
	IsComplete() bool
	IsVolatile() bool
}
