package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for frequently used types.
type Builtins struct {
	Invalid  TypeID
	Void     TypeID
	Bool     TypeID
	Char     TypeID
	Int      TypeID
	Long     TypeID
	Double   TypeID
	UChar    TypeID
	UInt     TypeID
	ULong    TypeID
	VoidPtr  TypeID
	CharPtr  TypeID
	LongLong TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
//
// Intern and RegisterFn are not safe for concurrent use; once the builder is done
// the interner is only read and may be shared between goroutines.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	prims    [primCount]TypeID
	builtins Builtins
	fns      []FnInfo
	fnIndex  map[string]TypeID
}

// NewInterner constructs an interner seeded with all primitive kinds.
func NewInterner() *Interner {
	in := &Interner{
		index:   make(map[Type]TypeID, 64),
		fnIndex: make(map[string]TypeID),
	}
	in.fns = append(in.fns, FnInfo{}) // reserve 0 as invalid sentinel
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	for _, k := range AllPrimKinds() {
		in.prims[k] = in.Intern(MakePrimitive(k))
	}
	in.builtins.Void = in.prims[PrimVoid]
	in.builtins.Bool = in.prims[PrimBool]
	in.builtins.Char = in.prims[PrimChar]
	in.builtins.Int = in.prims[PrimInt]
	in.builtins.Long = in.prims[PrimLong]
	in.builtins.LongLong = in.prims[PrimLongLong]
	in.builtins.Double = in.prims[PrimDouble]
	in.builtins.UChar = in.Unsigned(in.builtins.Char)
	in.builtins.UInt = in.Unsigned(in.builtins.Int)
	in.builtins.ULong = in.Unsigned(in.builtins.Long)
	in.builtins.VoidPtr = in.Pointer(in.builtins.Void)
	in.builtins.CharPtr = in.Pointer(in.builtins.Char)
	return in
}

// Builtins returns TypeIDs for common types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Primitive returns the TypeID of a primitive kind.
func (in *Interner) Primitive(k PrimKind) TypeID {
	if k >= primCount {
		return NoTypeID
	}
	return in.prims[k]
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Len returns the number of interned descriptors, the invalid sentinel included.
func (in *Interner) Len() int {
	return len(in.types)
}

func (in *Interner) Pointer(elem TypeID) TypeID {
	return in.Intern(MakePointer(elem))
}

func (in *Interner) Typedef(name string, under TypeID) TypeID {
	return in.Intern(MakeTypedef(name, under))
}

func (in *Interner) Signed(under TypeID) TypeID {
	return in.Intern(MakeDelegated(DelegSigned, under))
}

func (in *Interner) Unsigned(under TypeID) TypeID {
	return in.Intern(MakeDelegated(DelegUnsigned, under))
}

func (in *Interner) Declared(decl DeclID) TypeID {
	return in.Intern(MakeDeclared(decl))
}

func (in *Interner) Array(elem TypeID, count int64) TypeID {
	return in.Intern(MakeArray(elem, count))
}

func (in *Interner) IncompleteArray(elem TypeID) TypeID {
	return in.Intern(MakeIncompleteArray(elem))
}

func (in *Interner) Vector(elem TypeID, count int64) TypeID {
	return in.Intern(MakeVector(elem, count))
}

func (in *Interner) Erroneous(kind ErrKind, reason string) TypeID {
	return in.Intern(MakeErroneous(kind, reason))
}
