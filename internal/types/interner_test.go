package types

import "testing"

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Void == NoTypeID || b.Int == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	void, _ := in.Lookup(b.Void)
	if void.Kind != KindPrimitive || void.Prim != PrimVoid {
		t.Fatalf("expected void primitive, got %+v", void)
	}
	for _, k := range AllPrimKinds() {
		if in.Primitive(k) == NoTypeID {
			t.Fatalf("primitive %s not interned", k)
		}
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	elem := in.Builtins().Int
	arr1 := in.Array(elem, 4)
	arr2 := in.Intern(MakeArray(elem, 4))
	if arr1 != arr2 {
		t.Fatalf("array types should be deduplicated")
	}
	if in.Array(elem, 5) == arr1 {
		t.Fatalf("arrays of different length must differ")
	}
	if in.IncompleteArray(elem) == in.Array(elem, 0) {
		t.Fatalf("incomplete and zero-length arrays must differ")
	}
}

func TestTypedefNameAffectsIdentity(t *testing.T) {
	in := NewInterner()
	a := in.Typedef("size_t", in.Builtins().ULong)
	b := in.Typedef("uintptr_t", in.Builtins().ULong)
	if a == b {
		t.Fatalf("typedefs with different names must differ")
	}
	if in.Canonical(a) != in.Canonical(b) {
		t.Fatalf("canonical types should match")
	}
}

func TestCanonicalStripsNestedTypedefs(t *testing.T) {
	in := NewInterner()
	inner := in.Typedef("my_int", in.Builtins().Int)
	outer := in.Typedef("my_int2", inner)
	if got := in.Canonical(outer); got != in.Builtins().Int {
		t.Fatalf("Canonical = %d, want int", got)
	}
	ptr := in.Pointer(outer)
	if in.Canonical(ptr) != ptr {
		t.Fatalf("Canonical must not look through pointers")
	}
}

func TestRegisterFnDeduplicates(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	f1 := in.RegisterFn(FnInfo{Result: b.Int, Params: []TypeID{b.Int, b.CharPtr}})
	f2 := in.RegisterFn(FnInfo{Result: b.Int, Params: []TypeID{b.Int, b.CharPtr}})
	if f1 != f2 {
		t.Fatalf("identical signatures should be deduplicated")
	}
	v := in.RegisterFn(FnInfo{Result: b.Int, Params: []TypeID{b.Int, b.CharPtr}, Variadic: true})
	if v == f1 {
		t.Fatalf("variadic signature must differ")
	}
	named := in.RegisterFn(FnInfo{Result: b.Int, Params: []TypeID{b.Int, b.CharPtr}, ParamNames: []string{"n", "s"}})
	if named == f1 {
		t.Fatalf("parameter names take part in identity")
	}
	if !in.SameSignature(named, f1) {
		t.Fatalf("SameSignature should ignore names")
	}
	info, ok := in.FnInfo(named)
	if !ok || info.ParamNames[1] != "s" {
		t.Fatalf("unexpected fn info %+v", info)
	}
}

func TestRegisterFnDropsBlankNames(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	f1 := in.RegisterFn(FnInfo{Result: b.Void, Params: []TypeID{b.Int}, ParamNames: []string{""}})
	f2 := in.RegisterFn(FnInfo{Result: b.Void, Params: []TypeID{b.Int}})
	if f1 != f2 {
		t.Fatalf("all-blank names should be equivalent to no names")
	}
}

func TestIntegerInfo(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	prim, unsigned, ok := in.IntegerInfo(in.Typedef("u32", b.UInt))
	if !ok || prim != PrimInt || !unsigned {
		t.Fatalf("IntegerInfo(u32) = %v %v %v", prim, unsigned, ok)
	}
	if _, _, ok := in.IntegerInfo(b.Double); ok {
		t.Fatalf("double is not an integer")
	}
	if _, _, ok := in.IntegerInfo(b.VoidPtr); ok {
		t.Fatalf("pointer is not an integer")
	}
}

func TestPointeeFunction(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	fn := in.RegisterFn(FnInfo{Result: b.Void, Params: []TypeID{b.VoidPtr}})
	cb := in.Typedef("callback_t", in.Pointer(fn))
	got, info, ok := in.PointeeFunction(cb)
	if !ok || got != fn || len(info.Params) != 1 {
		t.Fatalf("PointeeFunction = %d %+v %v", got, info, ok)
	}
	if _, _, ok := in.PointeeFunction(b.VoidPtr); ok {
		t.Fatalf("void* is not a function pointer")
	}
}

func TestWalkStopsAtDeclared(t *testing.T) {
	in := NewInterner()
	decl := in.Declared(DeclID(7))
	fn := in.RegisterFn(FnInfo{Result: in.Pointer(decl), Params: []TypeID{in.Array(decl, 2)}})
	var decls []DeclID
	in.Walk(fn, func(_ TypeID, tt Type) bool {
		if tt.Kind == KindDeclared {
			decls = append(decls, tt.Decl)
		}
		return true
	})
	if len(decls) != 1 || decls[0] != 7 {
		t.Fatalf("Walk visited declared %v, want [7] once", decls)
	}
}
