package filter

import (
	"strings"
	"testing"

	"hbind/internal/abi"
	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/source"
	"hbind/internal/types"
)

func at(file string, line uint32) source.Pos {
	return source.Pos{File: file, Line: line, Col: 1}
}

func finish(t *testing.T, tree *ast.Tree, top ...ast.DeclID) {
	t.Helper()
	root, err := tree.NewScoped(ast.ScopeToplevel, "", source.NoPos, top)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	tree.Root = root
}

func fn(tree *ast.Tree, name string, result types.TypeID, params ...types.TypeID) ast.DeclID {
	var ids []ast.DeclID
	for _, p := range params {
		ids = append(ids, tree.NewVariable(ast.VarParameter, "", at("a.h", 1), p))
	}
	typ := tree.Types.RegisterFn(types.FnInfo{Result: result, Params: params})
	return tree.NewFunction(name, at("a.h", 1), typ, ids)
}

func structOf(t *testing.T, tree *ast.Tree, name string, fields ...ast.DeclID) ast.DeclID {
	t.Helper()
	id, err := tree.NewScoped(ast.ScopeStruct, name, at("a.h", 1), fields)
	if err != nil {
		t.Fatalf("struct %s: %v", name, err)
	}
	return id
}

func codes(bag *diag.Bag) map[diag.Code]int {
	out := make(map[diag.Code]int)
	for _, d := range bag.Items() {
		out[d.Code]++
	}
	return out
}

func TestIncludeByKindAndName(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	f := fn(tree, "f", bt.Int)
	g := fn(tree, "g", bt.Int)
	s := structOf(t, tree, "S", tree.NewVariable(ast.VarField, "x", at("a.h", 2), bt.Int))
	c := tree.NewConstant("C", at("a.h", 3), bt.Int, ast.IntValue(1))
	finish(t, tree, f, g, s, c)

	h := NewIncludes()
	h.Add(KindFunction, "f")
	Include(tree, h, nil)

	if tree.Skipped(f) {
		t.Fatalf("f must be kept")
	}
	for _, id := range []ast.DeclID{g, s, c} {
		if !tree.Skipped(id) {
			t.Fatalf("%s must be skipped", tree.Name(id))
		}
	}
	if used := h.Used(); len(used) != 1 || used[0] != f {
		t.Fatalf("used = %v", used)
	}
}

func TestIncludeSelectsEnumConstants(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	red := tree.NewConstant("RED", at("a.h", 1), bt.Int, ast.IntValue(0))
	blue := tree.NewConstant("BLUE", at("a.h", 1), bt.Int, ast.IntValue(1))
	e, _ := tree.NewScoped(ast.ScopeEnum, "color", at("a.h", 1), []ast.DeclID{red, blue})
	finish(t, tree, e)

	h := NewIncludes()
	h.Add(KindConstant, "BLUE")
	Include(tree, h, nil)
	if !tree.Skipped(red) || tree.Skipped(blue) || tree.Skipped(e) {
		t.Fatalf("red=%v blue=%v enum=%v", tree.Skipped(red), tree.Skipped(blue), tree.Skipped(e))
	}
}

func TestIncludePatterns(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	keep := fn(tree, "png_read", bt.Int)
	hidden := fn(tree, "png_read_internal", bt.Int)
	other := fn(tree, "inflate", bt.Int)
	finish(t, tree, keep, hidden, other)

	h := NewIncludes()
	if err := h.AddPattern("png_*", false); err != nil {
		t.Fatal(err)
	}
	if err := h.AddPattern("*_internal", true); err != nil {
		t.Fatal(err)
	}
	Include(tree, h, nil)
	if tree.Skipped(keep) || !tree.Skipped(hidden) || !tree.Skipped(other) {
		t.Fatalf("keep=%v hidden=%v other=%v", tree.Skipped(keep), tree.Skipped(hidden), tree.Skipped(other))
	}
}

func TestIncludesKeyIsStable(t *testing.T) {
	build := func(names ...string) *Includes {
		h := NewIncludes()
		for _, n := range names {
			h.Add(KindFunction, n)
		}
		h.Add(KindStruct, "S")
		if err := h.AddPattern("png_*", false); err != nil {
			t.Fatal(err)
		}
		return h
	}
	a, b := build("f", "g"), build("g", "f")
	want := []string{
		"include-function=f",
		"include-function=g",
		"include-struct=S",
		"include-symbols=png_*",
	}
	if got := a.Key(); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("Key = %v, want %v", got, want)
	}
	if strings.Join(a.Key(), " ") != strings.Join(b.Key(), " ") {
		t.Fatalf("key depends on insertion order")
	}
	if NewIncludes().Key() != nil {
		t.Fatalf("empty selection has a key")
	}
}

func TestDedup(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	in := tree.Types
	bt := in.Builtins()
	fnA := in.RegisterFn(types.FnInfo{Result: bt.Int, Params: []types.TypeID{bt.Int}, ParamNames: []string{"a"}})
	fnB := in.RegisterFn(types.FnInfo{Result: bt.Int, Params: []types.TypeID{bt.Int}, ParamNames: []string{"b"}})
	f1 := tree.NewFunction("f", at("a.h", 1), fnA, nil)
	f2 := tree.NewFunction("f", at("a.h", 2), fnB, nil)
	c1 := tree.NewConstant("N", at("a.h", 3), bt.Int, ast.IntValue(1))
	c2 := tree.NewConstant("N", at("a.h", 4), bt.Int, ast.IntValue(2))
	t1 := tree.NewTypedef("T", at("a.h", 5), bt.Int)
	t2 := tree.NewTypedef("T", at("a.h", 6), bt.Long)
	finish(t, tree, f1, f2, c1, c2, t1, t2)

	if n := Dedup(tree); n != 2 {
		t.Fatalf("skipped %d, want 2", n)
	}
	if tree.Skipped(f1) || !tree.Skipped(f2) || tree.Skipped(c1) || !tree.Skipped(c2) {
		t.Fatalf("first declaration must win")
	}
	if tree.Skipped(t1) || tree.Skipped(t2) {
		t.Fatalf("typedefs of different types are not duplicates")
	}
}

func TestUnsupportedTypes(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	in := tree.Types
	bt := in.Builtins()
	i128 := in.Primitive(types.PrimInt128)
	wide := tree.NewVariable(ast.VarField, "w", at("a.h", 2), in.Primitive(types.PrimWChar))
	s := structOf(t, tree, "S", tree.NewVariable(ast.VarField, "x", at("a.h", 2), bt.Int), wide)
	takes := fn(tree, "takes_i128", bt.Void, i128)
	ptr := fn(tree, "takes_ptr", bt.Void, in.Pointer(i128))
	ld := tree.NewVariable(ast.VarGlobal, "ld", at("a.h", 3), in.Primitive(types.PrimLongDouble))
	opaque := tree.Reserve(ast.ScopeStruct, "Opaque", at("a.h", 4))
	varCB := in.Pointer(in.RegisterFn(types.FnInfo{Result: bt.Void, Params: []types.TypeID{bt.Int}, Variadic: true}))
	cb := tree.NewTypedef("logger", at("a.h", 5), varCB)
	finish(t, tree, s, takes, ptr, ld, opaque, cb)

	bag := diag.NewBag(0)
	Unsupported(tree, DefaultCapabilities(abi.X86_64Linux()), diag.BagReporter{Bag: bag})

	want := map[ast.DeclID]bool{s: false, wide: true, takes: true, ptr: false, ld: true, opaque: true, cb: true}
	for id, skipped := range want {
		if tree.Skipped(id) != skipped {
			t.Fatalf("%s skipped = %v, want %v", tree.Name(id), tree.Skipped(id), skipped)
		}
	}
	got := codes(bag)
	if got[diag.FilterUnsupportedType] != 3 || got[diag.FilterVariadicCallback] != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
	for _, d := range bag.Items() {
		if d.Code == diag.FilterUnsupportedType && strings.HasPrefix(d.Message, "skipping S.w: unsupported type usage") {
			return
		}
	}
	t.Fatalf("field skip not qualified by its record: %v", bag.Items())
}

func TestLongDoubleOnWindows(t *testing.T) {
	caps := DefaultCapabilities(abi.X86_64Windows())
	if caps.Unsupported[types.PrimLongDouble] {
		t.Fatalf("long double is double on windows")
	}
	if !DefaultCapabilities(abi.X86_64Linux()).Unsupported[types.PrimLongDouble] {
		t.Fatalf("x87 long double must be unsupported")
	}
}

func TestMissingDependencies(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	in := tree.Types
	bt := in.Builtins()
	s := structOf(t, tree, "Hidden", tree.NewVariable(ast.VarField, "x", at("a.h", 1), bt.Int))
	hidden := tree.Decl(s).Type
	byValue := fn(tree, "by_value", bt.Void, hidden)
	byPtr := fn(tree, "by_ptr", bt.Void, in.Pointer(hidden))
	arr := tree.NewTypedef("Many", at("a.h", 2), in.Array(hidden, 4))
	finish(t, tree, s, byValue, byPtr, arr)
	tree.AddAttr(s, ast.AttrSkip, "not included")

	bag := diag.NewBag(0)
	if n := MissingDeps(tree, diag.BagReporter{Bag: bag}); n != 2 {
		t.Fatalf("reports = %d, want 2: %v", n, bag.Items())
	}
	msgs := []string{bag.Items()[0].Message, bag.Items()[1].Message}
	if msgs[0] != "bad include: by_value depends on Hidden" || msgs[1] != "bad include: Many depends on Hidden" {
		t.Fatalf("messages = %q", msgs)
	}
}

func TestDumpIncludes(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	f := tree.NewFunction("f", at("a.h", 1), tree.Types.RegisterFn(types.FnInfo{Result: bt.Int}), nil)
	s := structOf(t, tree, "S")
	g := tree.NewVariable(ast.VarGlobal, "g", at("b.h", 1), bt.Int)
	finish(t, tree, s, g, f)

	var sb strings.Builder
	if err := DumpIncludes(&sb, tree, []ast.DeclID{s, g, f}); err != nil {
		t.Fatal(err)
	}
	want := "#### Extracted from: a.h\n\n" +
		"--include-function f # header: a.h\n" +
		"--include-struct S   # header: a.h\n" +
		"\n#### Extracted from: b.h\n\n" +
		"--include-var g      # header: b.h\n"
	if sb.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", sb.String(), want)
	}
}
