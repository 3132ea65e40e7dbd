package naming

import (
	"context"
	"maps"
	"testing"

	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/source"
	"hbind/internal/types"
)

func at(line uint32) source.Pos {
	return source.Pos{File: "n.h", Line: line, Col: 1}
}

func record(t *testing.T, tree *ast.Tree, kind ast.ScopedKind, name string, members ...ast.DeclID) ast.DeclID {
	t.Helper()
	id, err := tree.NewScoped(kind, name, at(1), members)
	if err != nil {
		t.Fatalf("record %q: %v", name, err)
	}
	return id
}

func field(tree *ast.Tree, name string, typ types.TypeID) ast.DeclID {
	return tree.NewVariable(ast.VarField, name, at(2), typ)
}

func finish(t *testing.T, tree *ast.Tree, top ...ast.DeclID) {
	t.Helper()
	root, err := tree.NewScoped(ast.ScopeToplevel, "", source.NoPos, top)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	tree.Root = root
}

func assign(t *testing.T, tree *ast.Tree, jobs int) (*Names, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(100)
	names, err := Assign(context.Background(), tree, Options{Header: "n_h", Jobs: jobs, Reporter: diag.BagReporter{Bag: bag}})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	return names, bag
}

func wantName(t *testing.T, names *Names, id ast.DeclID, want string) {
	t.Helper()
	got, ok := names.Of(id)
	if !ok || got != want {
		t.Fatalf("name = %q (%v), want %q", got, ok, want)
	}
}

func count(bag *diag.Bag, code diag.Code) int {
	n := 0
	for _, d := range bag.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}

// nestedTree builds
//
//	struct S {
//	    struct { struct { int z; } deep; } inner;
//	    union { int a; float b; };
//	};
func nestedTree(t *testing.T) (tree *ast.Tree, s, inner, deep, anon ast.DeclID) {
	t.Helper()
	tree = ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	deep = record(t, tree, ast.ScopeStruct, "", field(tree, "z", bt.Int))
	deepField := field(tree, "deep", tree.Types.Declared(deep))
	tree.AddNested(deepField, deep)
	inner = record(t, tree, ast.ScopeStruct, "", deepField)
	innerField := field(tree, "inner", tree.Types.Declared(inner))
	tree.AddNested(innerField, inner)
	anon = record(t, tree, ast.ScopeUnion, "",
		field(tree, "a", bt.Int), field(tree, "b", tree.Types.Primitive(types.PrimFloat)))
	tree.AddAttr(anon, ast.AttrAnonymous)
	s = record(t, tree, ast.ScopeStruct, "S", innerField, anon)
	finish(t, tree, s)
	return tree, s, inner, deep, anon
}

func TestNestedAnonymousRecords(t *testing.T) {
	tree, s, inner, deep, anon := nestedTree(t)
	names, _ := assign(t, tree, 1)

	wantName(t, names, s, "S")
	wantName(t, names, inner, "S$inner")
	wantName(t, names, deep, "S$inner$deep")
	if name, ok := names.Of(anon); ok {
		t.Fatalf("anonymous member got name %q", name)
	}
	for _, f := range tree.Fields(anon) {
		wantName(t, names, f, tree.Name(f))
	}
}

func TestTypedefHandsNameToAnonymousRecord(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	rec := record(t, tree, ast.ScopeStruct, "", field(tree, "x", bt.Int))
	td := tree.NewTypedef("Point", at(3), tree.Types.Declared(rec))
	tree.AddNested(td, rec)

	hidden := record(t, tree, ast.ScopeStruct, "", field(tree, "y", bt.Int))
	ptr := tree.NewTypedef("Handle", at(4), tree.Types.Pointer(tree.Types.Declared(hidden)))
	tree.AddNested(ptr, hidden)
	finish(t, tree, td, ptr)

	names, _ := assign(t, tree, 1)
	wantName(t, names, td, "Point")
	wantName(t, names, rec, "Point")
	wantName(t, names, ptr, "Handle")
	wantName(t, names, hidden, "Handle$type")
}

func TestFunctionRoles(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types

	ret := record(t, tree, ast.ScopeStruct, "", field(tree, "x", bt.Int))
	arg := record(t, tree, ast.ScopeStruct, "", field(tree, "y", bt.Int))
	p0 := tree.NewVariable(ast.VarParameter, "opts", at(5), in.Declared(arg))
	tree.AddNested(p0, arg)
	p1 := tree.NewVariable(ast.VarParameter, "", at(5), bt.Int)
	fnType := in.RegisterFn(types.FnInfo{Result: in.Declared(ret), Params: []types.TypeID{in.Declared(arg), bt.Int}})
	f := tree.NewFunction("make", at(5), fnType, []ast.DeclID{p0, p1})
	tree.AddNested(f, ret)
	finish(t, tree, f)

	names, _ := assign(t, tree, 1)
	wantName(t, names, f, "make")
	wantName(t, names, ret, "make$return")
	wantName(t, names, p0, "opts")
	wantName(t, names, arg, "make$opts")
	wantName(t, names, p1, "x1")
}

func TestCallbacks(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types

	cbFn := in.RegisterFn(types.FnInfo{Result: bt.Void, Params: []types.TypeID{bt.Int}})
	cbPtr := in.Pointer(cbFn)
	td := tree.NewTypedef("cb_t", at(1), cbPtr)
	uses := field(tree, "on", in.Typedef("cb_t", cbPtr))
	own := field(tree, "done", cbPtr)
	s := record(t, tree, ast.ScopeStruct, "S", uses, own)

	p := tree.NewVariable(ast.VarParameter, "notify", at(2), cbPtr)
	reg := tree.NewFunction("reg", at(2), in.RegisterFn(types.FnInfo{Result: cbPtr, Params: []types.TypeID{cbPtr}}), []ast.DeclID{p})
	g := tree.NewVariable(ast.VarGlobal, "handler", at(3), cbPtr)
	finish(t, tree, td, s, reg, g)

	names, _ := assign(t, tree, 2)
	cases := []struct {
		id      ast.DeclID
		want    string
		typedef ast.DeclID
	}{
		{td, "cb_t", ast.NoDeclID},
		{uses, "cb_t", td},
		{own, "S$done", ast.NoDeclID},
		{p, "reg$notify", ast.NoDeclID},
		{reg, "reg$return", ast.NoDeclID},
		{g, "handler$type", ast.NoDeclID},
	}
	for _, tc := range cases {
		cb, ok := names.Callback(tc.id)
		if !ok {
			t.Fatalf("%s: no callback", tree.Name(tc.id))
		}
		if cb.Name != tc.want || cb.Typedef != tc.typedef {
			t.Fatalf("%s: callback = %+v, want %q via %d", tree.Name(tc.id), cb, tc.want, tc.typedef)
		}
	}
	if cb, _ := names.Callback(uses); cb.Introduced() {
		t.Fatalf("typedef callback must not be introduced again")
	}
}

func TestAnonymousRecordInCallbackSignature(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types

	arg := record(t, tree, ast.ScopeStruct, "", field(tree, "v", bt.Int))
	fnT := in.RegisterFn(types.FnInfo{Result: bt.Void, Params: []types.TypeID{bt.Int, in.Pointer(in.Declared(arg))}})
	td := tree.NewTypedef("visit_fn", at(1), in.Pointer(fnT))
	tree.AddNested(td, arg)
	finish(t, tree, td)

	names, _ := assign(t, tree, 1)
	wantName(t, names, arg, "visit_fn$x1")
}

func TestDisambiguationIsCaseInsensitiveAndOrdered(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	lower := record(t, tree, ast.ScopeStruct, "point", field(tree, "x", bt.Int))
	upper := tree.NewTypedef("Point", at(2), bt.Long)
	third := tree.NewTypedef("POINT", at(3), bt.Int)

	a := record(t, tree, ast.ScopeStruct, "", field(tree, "p", bt.Int))
	fa := field(tree, "A", tree.Types.Declared(a))
	tree.AddNested(fa, a)
	b := record(t, tree, ast.ScopeStruct, "", field(tree, "q", bt.Int))
	fb := field(tree, "a", tree.Types.Declared(b))
	tree.AddNested(fb, b)
	s := record(t, tree, ast.ScopeStruct, "S", fa, fb)
	finish(t, tree, lower, upper, third, s)

	names, bag := assign(t, tree, 4)
	wantName(t, names, lower, "point")
	wantName(t, names, upper, "Point$0")
	wantName(t, names, third, "POINT$1")
	wantName(t, names, a, "S$A")
	wantName(t, names, b, "S$a$0")
	if n := count(bag, diag.NameDisambiguated); n != 3 {
		t.Fatalf("disambiguation reports = %d, want 3", n)
	}
}

func TestKeywordsAreRenamed(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	p := tree.NewVariable(ast.VarParameter, "type", at(1), bt.Int)
	f := tree.NewFunction("range", at(1), tree.Types.RegisterFn(types.FnInfo{Result: bt.Void, Params: []types.TypeID{bt.Int}}), []ast.DeclID{p})
	s := record(t, tree, ast.ScopeStruct, "S", field(tree, "func", bt.Int))
	finish(t, tree, f, s)

	names, bag := assign(t, tree, 1)
	wantName(t, names, f, "range_")
	wantName(t, names, p, "type_")
	wantName(t, names, tree.Fields(s)[0], "func_")
	if n := count(bag, diag.NameKeywordRename); n != 3 {
		t.Fatalf("keyword reports = %d, want 3", n)
	}
}

func TestEnumConstantsAreNamed(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	red := tree.NewConstant("RED", at(1), bt.Int, ast.IntValue(0))
	blue := tree.NewConstant("BLUE", at(1), bt.Int, ast.IntValue(1))
	enum := record(t, tree, ast.ScopeEnum, "", red, blue)
	finish(t, tree, enum)

	names, _ := assign(t, tree, 1)
	wantName(t, names, red, "RED")
	wantName(t, names, blue, "BLUE")
	if _, ok := names.Of(enum); ok {
		t.Fatalf("anonymous top-level enum must stay unnamed")
	}
}

func TestSkippedDeclarationsAreNotNamed(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	s := record(t, tree, ast.ScopeStruct, "S", field(tree, "x", bt.Int))
	tree.AddAttr(s, ast.AttrSkip, "test")
	finish(t, tree, s)

	names, _ := assign(t, tree, 1)
	if names.Len() != 0 {
		t.Fatalf("named %d declarations, want 0", names.Len())
	}
}

func TestResultDoesNotDependOnWorkers(t *testing.T) {
	build := func() *ast.Tree {
		tree, _, _, _, _ := nestedTree(t)
		return tree
	}
	seq, _ := assign(t, build(), 1)
	par, _ := assign(t, build(), 8)
	if !maps.Equal(seq.decls, par.decls) {
		t.Fatalf("sequential %v != parallel %v", seq.decls, par.decls)
	}
	again, _ := assign(t, build(), 8)
	if !maps.Equal(par.decls, again.decls) {
		t.Fatalf("names differ between runs")
	}
}

func TestHeaderName(t *testing.T) {
	cases := map[string]string{
		"foo.h":              "foo_h",
		"include/sys/stat.h": "stat_h",
		"my-lib.h":           "my_lib_h",
		"9p.h":               "_p_h",
	}
	for in, want := range cases {
		if got := HeaderName(in); got != want {
			t.Fatalf("HeaderName(%q) = %q, want %q", in, got, want)
		}
	}
}
