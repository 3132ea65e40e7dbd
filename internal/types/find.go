package types //nolint:revive

// Canonical strips typedef wrappers until a non-typedef type is reached.
func (in *Interner) Canonical(id TypeID) TypeID {
	for range in.Len() {
		tt, ok := in.Lookup(id)
		if !ok || tt.Kind != KindDelegated || tt.Deleg != DelegTypedef {
			return id
		}
		id = tt.Elem
	}
	return id
}

// Unqualified strips typedef, atomic and volatile wrappers.
func (in *Interner) Unqualified(id TypeID) TypeID {
	for range in.Len() {
		tt, ok := in.Lookup(id)
		if !ok || tt.Kind != KindDelegated {
			return id
		}
		switch tt.Deleg {
		case DelegTypedef, DelegAtomic, DelegVolatile:
			id = tt.Elem
		default:
			return id
		}
	}
	return id
}

// IntegerInfo reports the primitive kind behind an integer type and whether it is
// explicitly unsigned. Plain char and bool report unsigned=false.
func (in *Interner) IntegerInfo(id TypeID) (prim PrimKind, unsigned, ok bool) {
	id = in.Unqualified(id)
	tt, found := in.Lookup(id)
	if !found {
		return 0, false, false
	}
	if tt.Kind == KindDelegated && (tt.Deleg == DelegSigned || tt.Deleg == DelegUnsigned) {
		unsigned = tt.Deleg == DelegUnsigned
		tt, found = in.Lookup(in.Unqualified(tt.Elem))
		if !found {
			return 0, false, false
		}
	}
	if tt.Kind != KindPrimitive || !tt.Prim.IsInteger() {
		return 0, false, false
	}
	return tt.Prim, unsigned, true
}

// PointeeFunction returns the function type a pointer (possibly behind typedefs)
// points to.
func (in *Interner) PointeeFunction(id TypeID) (TypeID, *FnInfo, bool) {
	tt, ok := in.Lookup(in.Unqualified(id))
	if !ok || tt.Kind != KindDelegated || tt.Deleg != DelegPointer {
		return NoTypeID, nil, false
	}
	fn := in.Unqualified(tt.Elem)
	info, ok := in.FnInfo(fn)
	if !ok {
		return NoTypeID, nil, false
	}
	return fn, info, true
}

// IsVoid reports whether id is void after stripping typedefs and qualifiers.
func (in *Interner) IsVoid(id TypeID) bool {
	tt, ok := in.Lookup(in.Unqualified(id))
	return ok && tt.Kind == KindPrimitive && tt.Prim == PrimVoid
}

// DeclOf returns the declaration a Declared type refers to, looking through
// typedefs and qualifiers.
func (in *Interner) DeclOf(id TypeID) (DeclID, bool) {
	tt, ok := in.Lookup(in.Unqualified(id))
	if !ok || tt.Kind != KindDeclared {
		return NoDeclID, false
	}
	return tt.Decl, true
}

// Walk visits id and every type reachable from it in pre-order. Declared types
// are visited but not entered. Returning false from visit stops descent into the
// children of that type.
func (in *Interner) Walk(id TypeID, visit func(TypeID, Type) bool) {
	seen := make(map[TypeID]struct{})
	var rec func(TypeID)
	rec = func(cur TypeID) {
		if _, ok := seen[cur]; ok {
			return
		}
		seen[cur] = struct{}{}
		tt, ok := in.Lookup(cur)
		if !ok || !visit(cur, tt) {
			return
		}
		switch tt.Kind {
		case KindArray, KindDelegated:
			rec(tt.Elem)
		case KindFunction:
			info, _ := in.FnInfo(cur)
			if info == nil {
				return
			}
			rec(info.Result)
			for _, p := range info.Params {
				rec(p)
			}
		}
	}
	rec(id)
}
