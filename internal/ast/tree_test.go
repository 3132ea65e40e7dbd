package ast

import (
	"errors"
	"sync"
	"testing"

	"hbind/internal/source"
	"hbind/internal/types"
)

func pos(line uint32) source.Pos {
	return source.Pos{File: "test.h", Line: line, Col: 1}
}

func TestAttributesAreAppendOnly(t *testing.T) {
	tree := NewTree(nil, 0)
	id := tree.NewVariable(VarGlobal, "g", pos(1), tree.Types.Builtins().Int)

	tree.AddAttr(id, AttrAligned, int64(8))
	tree.AddAttr(id, AttrPacked)
	tree.AddAttr(id, AttrAligned, int64(16))

	got := tree.Attr(id, AttrAligned)
	if len(got) != 2 || got[0] != int64(8) || got[1] != int64(16) {
		t.Fatalf("aligned = %v, want [8 16]", got)
	}
	if !tree.HasAttr(id, AttrPacked) {
		t.Fatalf("packed attribute lost")
	}
	keys := tree.AttrKeys(id)
	if len(keys) != 2 || keys[0] != AttrAligned || keys[1] != AttrPacked {
		t.Fatalf("keys = %v", keys)
	}

	got[0] = int64(99)
	if v, _ := tree.AttrInt(id, AttrAligned); v != 8 {
		t.Fatalf("Attr must return a copy, got %d", v)
	}
}

func TestAttributesConcurrentAppend(t *testing.T) {
	tree := NewTree(nil, 0)
	id := tree.NewVariable(VarGlobal, "g", pos(1), tree.Types.Builtins().Int)
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree.AddAttr(id, AttrSkip, i)
		}()
	}
	wg.Wait()
	if n := len(tree.Attr(id, AttrSkip)); n != 32 {
		t.Fatalf("got %d values, want 32", n)
	}
}

func TestTypedefStoresCanonicalType(t *testing.T) {
	tree := NewTree(nil, 0)
	in := tree.Types
	myInt := in.Typedef("MyInt", in.Builtins().Int)
	id := tree.NewTypedef("MyInt2", pos(2), myInt)
	if got := tree.Decl(id).Type; got != in.Builtins().Int {
		t.Fatalf("typedef type = %s, want int", tree.TypeString(got))
	}
}

func TestSelfReferenceThroughPointer(t *testing.T) {
	tree := NewTree(nil, 0)
	node := tree.Reserve(ScopeStruct, "Node", pos(1))
	next := tree.NewVariable(VarField, "next", pos(2), tree.Types.Pointer(tree.Decl(node).Type))
	val := tree.NewVariable(VarField, "val", pos(3), tree.Types.Builtins().Int)
	if err := tree.DefineMembers(node, []DeclID{next, val}); err != nil {
		t.Fatalf("DefineMembers: %v", err)
	}
	if tree.Decl(next).Parent != node {
		t.Fatalf("member parent not set")
	}
	if err := tree.DefineMembers(node, nil); !errors.Is(err, ErrAlreadyDefined) {
		t.Fatalf("second DefineMembers = %v, want ErrAlreadyDefined", err)
	}
}

func TestSelfContainmentByValueRejected(t *testing.T) {
	tree := NewTree(nil, 0)
	s := tree.Reserve(ScopeStruct, "S", pos(1))
	self := tree.NewVariable(VarField, "inner", pos(2), tree.Types.Array(tree.Decl(s).Type, 2))
	err := tree.DefineMembers(s, []DeclID{self})
	var cerr *ContainmentError
	if !errors.As(err, &cerr) || cerr.Record != s {
		t.Fatalf("DefineMembers = %v, want ContainmentError", err)
	}
	if tree.IsDefined(s) {
		t.Fatalf("rejected record must stay undefined")
	}
}

func TestMutualContainmentRejected(t *testing.T) {
	tree := NewTree(nil, 0)
	a := tree.Reserve(ScopeStruct, "A", pos(1))
	b := tree.Reserve(ScopeStruct, "B", pos(5))
	fa := tree.NewVariable(VarField, "b", pos(2), tree.Decl(b).Type)
	if err := tree.DefineMembers(a, []DeclID{fa}); err != nil {
		t.Fatalf("A: %v", err)
	}
	fb := tree.NewVariable(VarField, "a", pos(6), tree.Decl(a).Type)
	var cerr *ContainmentError
	if err := tree.DefineMembers(b, []DeclID{fb}); !errors.As(err, &cerr) {
		t.Fatalf("B: %v, want ContainmentError", err)
	}
}

func TestIncompleteArrayIsNotContainment(t *testing.T) {
	tree := NewTree(nil, 0)
	s := tree.Reserve(ScopeStruct, "S", pos(1))
	flex := tree.NewVariable(VarField, "tail", pos(2), tree.Types.IncompleteArray(tree.Decl(s).Type))
	if err := tree.DefineMembers(s, []DeclID{flex}); err != nil {
		t.Fatalf("DefineMembers: %v", err)
	}
}

func TestKeyIgnoresHandle(t *testing.T) {
	tree := NewTree(nil, 0)
	a := tree.NewVariable(VarGlobal, "x", pos(3), tree.Types.Builtins().Int)
	b := tree.NewVariable(VarGlobal, "x", pos(3), tree.Types.Builtins().Long)
	c := tree.NewVariable(VarGlobal, "x", pos(4), tree.Types.Builtins().Int)
	if tree.Decl(a).Key() != tree.Decl(b).Key() {
		t.Fatalf("same kind, name and position must compare equal")
	}
	if tree.Decl(a).Key() == tree.Decl(c).Key() {
		t.Fatalf("different positions must differ")
	}
}

func TestFieldsFlattensBitfieldGroups(t *testing.T) {
	tree := NewTree(nil, 0)
	in := tree.Types
	s := tree.Reserve(ScopeStruct, "Flags", pos(1))
	a := tree.NewBitfield("a", pos(2), in.Builtins().UInt, 1)
	b := tree.NewBitfield("b", pos(3), in.Builtins().UInt, 3)
	group, err := tree.NewScoped(ScopeBitfieldGroup, "", pos(2), []DeclID{a, b})
	if err != nil {
		t.Fatal(err)
	}
	c := tree.NewVariable(VarField, "c", pos(4), in.Builtins().Int)
	if err := tree.DefineMembers(s, []DeclID{group, c}); err != nil {
		t.Fatal(err)
	}
	fields := tree.Fields(s)
	if len(fields) != 3 || fields[0] != a || fields[2] != c {
		t.Fatalf("fields = %v", fields)
	}
	if tree.Enclosing(a) != s {
		t.Fatalf("Enclosing should skip the bitfield group")
	}
}

func TestTypeString(t *testing.T) {
	tree := NewTree(nil, 0)
	in := tree.Types
	b := in.Builtins()
	s := tree.Reserve(ScopeStruct, "Point", pos(1))
	fn := in.RegisterFn(types.FnInfo{Result: b.Int, Params: []types.TypeID{in.Pointer(tree.Decl(s).Type)}, Variadic: true})
	tests := []struct {
		typ  types.TypeID
		want string
	}{
		{b.UInt, "unsigned int"},
		{in.Array(b.Char, 8), "char[8]"},
		{in.Typedef("size_t", b.ULong), "size_t"},
		{fn, "int (struct Point*, ...)"},
		{in.Erroneous(types.ErrVariableSize, ""), "<error: variable-size>"},
	}
	for _, tt := range tests {
		if got := tree.TypeString(tt.typ); got != tt.want {
			t.Errorf("TypeString = %q, want %q", got, tt.want)
		}
	}
}
