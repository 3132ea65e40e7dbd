package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// DeclID is a stable handle of a declaration in an ast.Tree. It lives here so that
// Declared types can point at their declaration without importing the ast package.
type DeclID uint32

// NoDeclID marks the absence of a declaration.
const NoDeclID DeclID = 0

func (id TypeID) IsValid() bool { return id != NoTypeID }
func (id DeclID) IsValid() bool { return id != NoDeclID }

// Kind enumerates the closed set of type variants.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindPrimitive
	KindDeclared
	KindFunction
	KindArray
	KindDelegated
	KindErroneous
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindPrimitive:
		return "primitive"
	case KindDeclared:
		return "declared"
	case KindFunction:
		return "function"
	case KindArray:
		return "array"
	case KindDelegated:
		return "delegated"
	case KindErroneous:
		return "erroneous"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// PrimKind enumerates the C primitive types. Signedness is expressed with
// Delegated{signed|unsigned} wrappers around the plain integer kinds.
type PrimKind uint8

const (
	PrimVoid PrimKind = iota
	PrimBool
	PrimChar
	PrimChar16
	PrimShort
	PrimInt
	PrimLong
	PrimLongLong
	PrimInt128
	PrimFloat
	PrimDouble
	PrimLongDouble
	PrimFloat128
	PrimHalfFloat
	PrimWChar

	primCount
)

var primNames = [...]string{
	PrimVoid:       "void",
	PrimBool:       "bool",
	PrimChar:       "char",
	PrimChar16:     "char16_t",
	PrimShort:      "short",
	PrimInt:        "int",
	PrimLong:       "long",
	PrimLongLong:   "long long",
	PrimInt128:     "__int128",
	PrimFloat:      "float",
	PrimDouble:     "double",
	PrimLongDouble: "long double",
	PrimFloat128:   "__float128",
	PrimHalfFloat:  "_Float16",
	PrimWChar:      "wchar_t",
}

func (p PrimKind) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return fmt.Sprintf("PrimKind(%d)", p)
}

// AllPrimKinds lists every primitive kind in declaration order.
func AllPrimKinds() []PrimKind {
	out := make([]PrimKind, 0, primCount)
	for k := PrimVoid; k < primCount; k++ {
		out = append(out, k)
	}
	return out
}

// IsInteger reports whether the primitive is an integer (bool and chars included).
func (p PrimKind) IsInteger() bool {
	switch p {
	case PrimBool, PrimChar, PrimChar16, PrimShort, PrimInt, PrimLong, PrimLongLong, PrimInt128, PrimWChar:
		return true
	}
	return false
}

// IsFloat reports whether the primitive is a floating-point type.
func (p PrimKind) IsFloat() bool {
	switch p {
	case PrimFloat, PrimDouble, PrimLongDouble, PrimFloat128, PrimHalfFloat:
		return true
	}
	return false
}

// ArrayKind distinguishes array shapes.
type ArrayKind uint8

const (
	ArrayFixed ArrayKind = iota
	ArrayIncomplete
	ArrayVector
)

func (k ArrayKind) String() string {
	switch k {
	case ArrayFixed:
		return "fixed"
	case ArrayIncomplete:
		return "incomplete"
	case ArrayVector:
		return "vector"
	}
	return fmt.Sprintf("ArrayKind(%d)", k)
}

// DelegKind is the kind of a single-child wrapper.
type DelegKind uint8

const (
	DelegTypedef DelegKind = iota
	DelegPointer
	DelegSigned
	DelegUnsigned
	DelegAtomic
	DelegVolatile
	DelegComplex
)

func (k DelegKind) String() string {
	switch k {
	case DelegTypedef:
		return "typedef"
	case DelegPointer:
		return "pointer"
	case DelegSigned:
		return "signed"
	case DelegUnsigned:
		return "unsigned"
	case DelegAtomic:
		return "atomic"
	case DelegVolatile:
		return "volatile"
	case DelegComplex:
		return "complex"
	}
	return fmt.Sprintf("DelegKind(%d)", k)
}

// ErrKind classifies erroneous types by the reason the front end gave up.
type ErrKind uint8

const (
	// ErrUnsupported is a construct the front end or this tool cannot express.
	ErrUnsupported ErrKind = iota
	// ErrDependent is a type whose shape depends on information not available.
	ErrDependent
	// ErrVariableSize is a variably modified type (VLA).
	ErrVariableSize
	// ErrInvalid is a type the front end reported as invalid.
	ErrInvalid
)

func (k ErrKind) String() string {
	switch k {
	case ErrUnsupported:
		return "unsupported"
	case ErrDependent:
		return "dependent"
	case ErrVariableSize:
		return "variable-size"
	case ErrInvalid:
		return "invalid"
	}
	return fmt.Sprintf("ErrKind(%d)", k)
}

// Type is a compact, comparable descriptor of one type variant. Only the fields
// relevant to Kind are set; the interner uses the whole value as identity.
type Type struct {
	Kind    Kind
	Prim    PrimKind  // KindPrimitive
	Array   ArrayKind // KindArray
	Deleg   DelegKind // KindDelegated
	Err     ErrKind   // KindErroneous
	Elem    TypeID    // KindArray element, KindDelegated underlying
	Count   int64     // KindArray fixed/vector element count
	Decl    DeclID    // KindDeclared
	Name    string    // typedef name, or the reason of an erroneous type
	Payload uint32    // KindFunction: FnInfo slot
}

// Descriptor helpers ---------------------------------------------------------

func MakePrimitive(p PrimKind) Type {
	return Type{Kind: KindPrimitive, Prim: p}
}

func MakeDeclared(decl DeclID) Type {
	return Type{Kind: KindDeclared, Decl: decl}
}

func MakeArray(elem TypeID, count int64) Type {
	return Type{Kind: KindArray, Array: ArrayFixed, Elem: elem, Count: count}
}

func MakeIncompleteArray(elem TypeID) Type {
	return Type{Kind: KindArray, Array: ArrayIncomplete, Elem: elem}
}

func MakeVector(elem TypeID, count int64) Type {
	return Type{Kind: KindArray, Array: ArrayVector, Elem: elem, Count: count}
}

func MakeDelegated(kind DelegKind, under TypeID) Type {
	return Type{Kind: KindDelegated, Deleg: kind, Elem: under}
}

func MakePointer(elem TypeID) Type {
	return MakeDelegated(DelegPointer, elem)
}

func MakeTypedef(name string, under TypeID) Type {
	return Type{Kind: KindDelegated, Deleg: DelegTypedef, Elem: under, Name: name}
}

func MakeErroneous(kind ErrKind, reason string) Type {
	return Type{Kind: KindErroneous, Err: kind, Name: reason}
}
