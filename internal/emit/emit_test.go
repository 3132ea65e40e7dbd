package emit

import (
	"context"
	"slices"
	"testing"

	"hbind/internal/abi"
	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/layout"
	"hbind/internal/naming"
	"hbind/internal/source"
	"hbind/internal/types"
)

func at(line uint32) source.Pos {
	return source.Pos{File: "e.h", Line: line, Col: 1}
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

func function(tree *ast.Tree, name string, result types.TypeID, params ...ast.DeclID) ast.DeclID {
	var ptypes []types.TypeID
	for _, p := range params {
		ptypes = append(ptypes, tree.Decl(p).Type)
	}
	fn := tree.Types.RegisterFn(types.FnInfo{Result: result, Params: ptypes})
	return tree.NewFunction(name, at(3), fn, params)
}

func param(tree *ast.Tree, name string, typ types.TypeID) ast.DeclID {
	return tree.NewVariable(ast.VarParameter, name, at(3), typ)
}

func run(t *testing.T, tree *ast.Tree, top ...ast.DeclID) (*Sequence, *diag.Bag) {
	t.Helper()
	root, err := tree.NewScoped(ast.ScopeToplevel, "", source.NoPos, top)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	tree.Root = root
	bag := diag.NewBag(100)
	rep := diag.BagReporter{Bag: bag}
	names, err := naming.Assign(context.Background(), tree, naming.Options{Header: "e_h", Reporter: rep})
	if err != nil {
		t.Fatalf("naming: %v", err)
	}
	seq := Emit(tree, names, layout.New(abi.X86_64Linux(), tree), Options{Reporter: rep})
	return seq, bag
}

func unitNames(seq *Sequence) []string {
	out := make([]string, len(seq.Units))
	for i, u := range seq.Units {
		out[i] = u.Name
	}
	return out
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

func TestUnitsFollowTheirDependencies(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types

	// Rect is declared first but embeds Point by value.
	point := record(t, tree, ast.ScopeStruct, "Point", field(tree, "x", bt.Int), field(tree, "y", bt.Int))
	rect := record(t, tree, ast.ScopeStruct, "Rect", field(tree, "min", in.Declared(point)), field(tree, "max", in.Declared(point)))
	area := function(tree, "area", bt.Long, param(tree, "r", in.Declared(rect)))
	first := function(tree, "first", bt.Int, param(tree, "r", in.Pointer(in.Declared(rect))))

	seq, bag := run(t, tree, rect, area, first, point)
	if bag.HasWarnings() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	want := []string{"first", "Point", "Rect", "area"}
	if got := unitNames(seq); !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	units := seq.ByName()
	if got := units["Rect"].Refs; !slices.Equal(got, []string{"Point"}) {
		t.Fatalf("Rect refs = %v", got)
	}
	if got := units["area"].Params[0].Ref; got != "Rect" {
		t.Fatalf("area param ref = %q", got)
	}
	if len(units["first"].Refs) != 0 {
		t.Fatalf("pointer parameters must not create references: %v", units["first"].Refs)
	}
	if l := units["area"].Call.Args[0]; l != units["Rect"].Layout {
		t.Fatalf("by-value argument must carry the record layout")
	}
}

func TestNestedAnonymousRecordUnits(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types

	inner := record(t, tree, ast.ScopeStruct, "", field(tree, "a", bt.Int), field(tree, "b", bt.Char))
	innerField := field(tree, "inner", in.Declared(inner))
	tree.AddNested(innerField, inner)
	u := record(t, tree, ast.ScopeUnion, "", field(tree, "i", bt.Int), field(tree, "d", bt.Double))
	tree.AddAttr(u, ast.AttrAnonymous)
	s := record(t, tree, ast.ScopeStruct, "S", field(tree, "tag", bt.Char), innerField, u)

	seq, _ := run(t, tree, s)
	if got, want := unitNames(seq), []string{"S$inner", "S"}; !slices.Equal(got, want) {
		t.Fatalf("units = %v, want %v", got, want)
	}
	su := seq.ByName()["S"]
	var got []string
	offsets := map[string]int64{}
	for _, f := range su.Fields {
		got = append(got, f.Name)
		offsets[f.Name] = f.Offset
	}
	if want := []string{"tag", "inner", "i", "d"}; !slices.Equal(got, want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	if offsets["inner"] != 4 || offsets["i"] != 16 || offsets["d"] != 16 {
		t.Fatalf("offsets = %v", offsets)
	}
	if su.Fields[1].Ref != "S$inner" {
		t.Fatalf("inner ref = %q", su.Fields[1].Ref)
	}
}

func TestTypedefOfAnonymousRecordIsOneUnit(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types
	rec := record(t, tree, ast.ScopeStruct, "", field(tree, "x", bt.Int))
	td := tree.NewTypedef("vec_t", at(4), in.Declared(rec))
	tree.AddNested(td, rec)
	alias := tree.NewTypedef("size_type", at(5), bt.ULong)
	use := function(tree, "len", in.Typedef("size_type", bt.ULong), param(tree, "v", in.Typedef("vec_t", in.Declared(rec))))

	seq, _ := run(t, tree, td, alias, use)
	units := seq.ByName()
	if got, want := unitNames(seq), []string{"vec_t", "size_type", "len"}; !slices.Equal(got, want) {
		t.Fatalf("units = %v, want %v", got, want)
	}
	if units["vec_t"].Kind != KindStruct {
		t.Fatalf("vec_t kind = %v, want struct", units["vec_t"].Kind)
	}
	if units["size_type"].Kind != KindTypedef {
		t.Fatalf("size_type kind = %v", units["size_type"].Kind)
	}
	fn := units["len"]
	if fn.Params[0].Ref != "vec_t" || fn.Result == nil || fn.Result.Ref != "size_type" {
		t.Fatalf("len slots = %+v / %+v", fn.Params, fn.Result)
	}
}

func TestEnumConstantsAreLifted(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	red := tree.NewConstant("RED", at(1), bt.Int, ast.IntValue(0))
	blue := tree.NewConstant("BLUE", at(1), bt.Int, ast.IntValue(4))
	color, err := tree.NewScoped(ast.ScopeEnum, "Color", at(1), []ast.DeclID{red, blue})
	if err != nil {
		t.Fatal(err)
	}
	tree.SetUnderlying(color, bt.UInt)
	loose := tree.NewConstant("LOOSE", at(2), bt.Int, ast.IntValue(7))
	anon := record(t, tree, ast.ScopeEnum, "", loose)
	tree.SetUnderlying(anon, bt.Int)

	seq, _ := run(t, tree, color, anon)
	if got, want := unitNames(seq), []string{"Color", "RED", "BLUE", "LOOSE"}; !slices.Equal(got, want) {
		t.Fatalf("units = %v, want %v", got, want)
	}
	units := seq.ByName()
	if units["BLUE"].Enum != "Color" || units["BLUE"].Value.Int != 4 {
		t.Fatalf("BLUE = %+v", units["BLUE"])
	}
	if units["LOOSE"].Enum != "" {
		t.Fatalf("constant of an anonymous enum has enum %q", units["LOOSE"].Enum)
	}
	if l := units["Color"].Layout; l == nil || l.Size != 4 || !l.Unsigned {
		t.Fatalf("Color layout = %+v", l)
	}
}

func TestCallbackUnits(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types

	cbPtr := in.Pointer(in.RegisterFn(types.FnInfo{Result: bt.Void, Params: []types.TypeID{bt.Int}}))
	td := tree.NewTypedef("cb_t", at(1), cbPtr)
	reg := function(tree, "reg", bt.Void,
		param(tree, "on", in.Typedef("cb_t", cbPtr)),
		param(tree, "done", cbPtr))

	seq, _ := run(t, tree, td, reg)
	if got, want := unitNames(seq), []string{"cb_t", "reg$done", "reg"}; !slices.Equal(got, want) {
		t.Fatalf("units = %v, want %v", got, want)
	}
	units := seq.ByName()
	if units["cb_t"].Kind != KindCallback || len(units["cb_t"].Params) != 1 {
		t.Fatalf("cb_t = %+v", units["cb_t"])
	}
	fn := units["reg"]
	if fn.Params[0].Callback != "cb_t" || fn.Params[1].Callback != "reg$done" {
		t.Fatalf("reg params = %+v", fn.Params)
	}
	if got := fn.Refs; !slices.Equal(got, []string{"cb_t", "reg$done"}) {
		t.Fatalf("reg refs = %v", got)
	}
}

func TestUnlayoutableDeclarationsAreSkipped(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types

	table := tree.NewVariable(ast.VarGlobal, "table", at(1), in.IncompleteArray(bt.Int))
	opaque := tree.Reserve(ast.ScopeStruct, "opaque", at(2))
	handle := tree.NewVariable(ast.VarGlobal, "handle", at(3), in.Declared(opaque))
	ok := tree.NewVariable(ast.VarGlobal, "count", at(4), bt.Int)

	eng := layout.New(abi.X86_64Linux(), tree)
	if _, err := eng.Annotate(table); err == nil {
		t.Fatalf("incomplete array must not have a layout")
	}
	seq, bag := run(t, tree, table, handle, ok)
	if got, want := unitNames(seq), []string{"count"}; !slices.Equal(got, want) {
		t.Fatalf("units = %v, want %v", got, want)
	}
	if n := count(bag, diag.EmitSkippedUnlayoutable); n != 2 {
		t.Fatalf("skip reports = %d, want 2", n)
	}
	if !tree.HasAttr(table, ast.AttrUnlayoutable) {
		t.Fatalf("table must stay in the tree marked unlayoutable")
	}
}

func TestUsersOfMissingUnitsArePruned(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types

	hidden := record(t, tree, ast.ScopeStruct, "hidden", field(tree, "x", bt.Int))
	tree.AddAttr(hidden, ast.AttrSkip, "not included")
	wrap := record(t, tree, ast.ScopeStruct, "wrap", field(tree, "h", in.Declared(hidden)))
	take := function(tree, "take", bt.Void, param(tree, "w", in.Declared(wrap)))
	peek := function(tree, "peek", bt.Void, param(tree, "h", in.Pointer(in.Declared(hidden))))

	seq, bag := run(t, tree, hidden, wrap, take, peek)
	if got, want := unitNames(seq), []string{"peek"}; !slices.Equal(got, want) {
		t.Fatalf("units = %v, want %v", got, want)
	}
	if n := count(bag, diag.EmitMissingReference); n != 2 {
		t.Fatalf("missing reference reports = %d, want 2", n)
	}
}

func TestNameCollisionsAreRenamed(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	fn := function(tree, "point", bt.Int)
	rec := record(t, tree, ast.ScopeStruct, "Point", field(tree, "x", bt.Int))
	use := function(tree, "origin", bt.Void, param(tree, "p", tree.Types.Declared(rec)))

	seq, bag := run(t, tree, fn, rec, use)
	units := seq.ByName()
	if _, ok := units["point"]; !ok {
		t.Fatalf("first binding must keep its name: %v", unitNames(seq))
	}
	if u, ok := units["Point$1"]; !ok || u.Kind != KindStruct {
		t.Fatalf("struct must be renamed: %v", unitNames(seq))
	}
	if got := units["origin"].Params[0].Ref; got != "Point$1" {
		t.Fatalf("reference must follow the rename, got %q", got)
	}
	if n := count(bag, diag.EmitNameCollision); n != 1 {
		t.Fatalf("collision reports = %d, want 1", n)
	}
}

func TestDependencyCycleIsReported(t *testing.T) {
	tree := ast.NewTree(nil, 0)
	bt := tree.Types.Builtins()
	in := tree.Types

	// typedef void (*visit)(struct node); struct node { visit fn; };
	node := tree.Reserve(ast.ScopeStruct, "node", at(1))
	visitPtr := in.Pointer(in.RegisterFn(types.FnInfo{Result: bt.Void, Params: []types.TypeID{in.Declared(node)}}))
	visit := tree.NewTypedef("visit", at(1), visitPtr)
	if err := tree.DefineMembers(node, []ast.DeclID{field(tree, "fn", in.Typedef("visit", visitPtr))}); err != nil {
		t.Fatal(err)
	}

	seq, bag := run(t, tree, visit, node)
	if got, want := unitNames(seq), []string{"visit", "node"}; !slices.Equal(got, want) {
		t.Fatalf("units = %v, want %v", got, want)
	}
	if n := count(bag, diag.EmitDependencyCycle); n != 1 {
		t.Fatalf("cycle reports = %d, want 1", n)
	}
}
