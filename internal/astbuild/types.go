package astbuild

import (
	"hbind/internal/frontend"
	"hbind/internal/types"
)

var primOf = map[frontend.TypeKind]types.PrimKind{
	frontend.TypeVoid:       types.PrimVoid,
	frontend.TypeBool:       types.PrimBool,
	frontend.TypeChar:       types.PrimChar,
	frontend.TypeSChar:      types.PrimChar,
	frontend.TypeUChar:      types.PrimChar,
	frontend.TypeChar16:     types.PrimChar16,
	frontend.TypeWChar:      types.PrimWChar,
	frontend.TypeShort:      types.PrimShort,
	frontend.TypeUShort:     types.PrimShort,
	frontend.TypeInt:        types.PrimInt,
	frontend.TypeUInt:       types.PrimInt,
	frontend.TypeLong:       types.PrimLong,
	frontend.TypeULong:      types.PrimLong,
	frontend.TypeLongLong:   types.PrimLongLong,
	frontend.TypeULongLong:  types.PrimLongLong,
	frontend.TypeInt128:     types.PrimInt128,
	frontend.TypeUInt128:    types.PrimInt128,
	frontend.TypeFloat:      types.PrimFloat,
	frontend.TypeDouble:     types.PrimDouble,
	frontend.TypeLongDouble: types.PrimLongDouble,
	frontend.TypeFloat128:   types.PrimFloat128,
	frontend.TypeFloat16:    types.PrimHalfFloat,
}

func unsignedKind(k frontend.TypeKind) bool {
	switch k {
	case frontend.TypeUChar, frontend.TypeUShort, frontend.TypeUInt, frontend.TypeULong,
		frontend.TypeULongLong, frontend.TypeUInt128:
		return true
	}
	return false
}

// typeOf converts a front-end type. Constructs that cannot be represented
// become erroneous types carrying the reason, never void.
func (b *builder) typeOf(ct frontend.CType) types.TypeID {
	if ct == nil {
		return b.in.Erroneous(types.ErrInvalid, "missing type")
	}
	id := b.convert(ct)
	if ct.IsVolatile() {
		id = b.in.Intern(types.MakeDelegated(types.DelegVolatile, id))
	}
	return id
}

func (b *builder) convert(ct frontend.CType) types.TypeID {
	k := ct.Kind()
	if p, ok := primOf[k]; ok {
		id := b.in.Primitive(p)
		switch {
		case unsignedKind(k):
			id = b.in.Unsigned(id)
		case k == frontend.TypeSChar:
			id = b.in.Signed(id)
		}
		return id
	}
	switch k {
	case frontend.TypePointer:
		if ct.Elem() == nil {
			return b.in.Builtins().VoidPtr
		}
		return b.in.Pointer(b.typeOf(ct.Elem()))
	case frontend.TypeConstantArray:
		return b.in.Array(b.typeOf(ct.Elem()), ct.Len())
	case frontend.TypeIncompleteArray:
		return b.in.IncompleteArray(b.typeOf(ct.Elem()))
	case frontend.TypeVector:
		return b.in.Vector(b.typeOf(ct.Elem()), ct.Len())
	case frontend.TypeVariableArray:
		return b.in.Erroneous(types.ErrVariableSize, ct.Spelling())
	case frontend.TypeComplex:
		return b.in.Intern(types.MakeDelegated(types.DelegComplex, b.typeOf(ct.Elem())))
	case frontend.TypeAtomic:
		return b.in.Intern(types.MakeDelegated(types.DelegAtomic, b.typeOf(ct.Elem())))
	case frontend.TypeFunction:
		info := types.FnInfo{Result: b.typeOf(ct.Result()), Variadic: ct.Variadic()}
		if ct.Result() == nil {
			info.Result = b.in.Builtins().Void
		}
		for _, p := range ct.Params() {
			info.Params = append(info.Params, b.typeOf(p))
		}
		if names := ct.ParamNames(); len(names) == len(info.Params) {
			info.ParamNames = names
		}
		return b.in.RegisterFn(info)
	case frontend.TypeRecord, frontend.TypeEnum:
		cur := ct.Decl()
		if cur == nil {
			return b.in.Erroneous(types.ErrInvalid, "record without declaration: "+ct.Spelling())
		}
		id, err := b.recordDecl(cur)
		if err != nil {
			return b.in.Erroneous(types.ErrInvalid, err.Error())
		}
		return b.tree.Decl(id).Type
	case frontend.TypeTypedef:
		if id, ok := b.typedefs[ct]; ok {
			return id
		}
		under := b.typeOf(ct.Elem())
		id := under
		if !b.collapsed[ct.Spelling()] {
			id = b.in.Typedef(ct.Spelling(), under)
		}
		b.typedefs[ct] = id
		return id
	case frontend.TypeDependent:
		return b.in.Erroneous(types.ErrDependent, ct.Spelling())
	default:
		reason := ct.Spelling()
		if reason == "" {
			reason = "unexposed type"
		}
		return b.in.Erroneous(types.ErrUnsupported, reason)
	}
}
