package writer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/emit"
	"hbind/internal/layout"
	"hbind/internal/types"
)

func intL(size int64, unsigned bool) *layout.MemoryLayout {
	return &layout.MemoryLayout{Class: layout.ClassScalar, Size: size, Align: size, Prim: types.PrimInt, Unsigned: unsigned}
}

func floatL() *layout.MemoryLayout {
	return &layout.MemoryLayout{Class: layout.ClassScalar, Size: 4, Align: 4, Prim: types.PrimFloat}
}

func field(name string, offset int64, l *layout.MemoryLayout) emit.Field {
	return emit.Field{Slot: emit.Slot{Name: name, Layout: l}, Offset: offset}
}

func render(t *testing.T, opts Options, units ...*emit.Unit) map[string]string {
	t.Helper()
	files, err := Render(&emit.Sequence{Header: "hdr_h", Units: units}, opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Name] = string(f.Data)
	}
	return out
}

func mustContain(t *testing.T, src string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(src, p) {
			t.Errorf("missing %q in:\n%s", p, src)
		}
	}
}

func TestExported(t *testing.T) {
	cases := map[string]string{
		"point":       "Point",
		"Point":       "Point",
		"S$inner":     "S_Inner",
		"make$return": "Make_Return",
		"max_size":    "MaxSize",
		"MAX_SIZE":    "MaxSize",
		"_private":    "Private",
		"x1":          "X1",
	}
	for in, want := range cases {
		if got := Exported(in); got != want {
			t.Errorf("Exported(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPlainStructAndFunction(t *testing.T) {
	point := &layout.MemoryLayout{Class: layout.ClassStruct, Size: 8, Align: 4}
	files := render(t, Options{},
		&emit.Unit{Name: "Point", Kind: emit.KindStruct, CName: "Point", Layout: point,
			Fields: []emit.Field{field("x", 0, intL(4, false)), field("y", 4, intL(4, false))}},
		&emit.Unit{Name: "area", Kind: emit.KindFunction, CName: "area",
			Call:   &layout.CallDescriptor{Return: intL(4, false), Args: []*layout.MemoryLayout{point}},
			Params: []emit.Slot{{Name: "p", Layout: point, Ref: "Point"}},
			Result: &emit.Slot{Layout: intL(4, false)}},
	)
	mustContain(t, files["types.go"],
		"type Point struct {\n\tX int32\n\tY int32\n}",
		"var typePoint = ffi.NewType(",
		`"github.com/jupiterrider/ffi"`,
	)
	mustContain(t, files["functions.go"],
		`var fnArea = &fun{name: "area", ret: &ffi.TypeSint32, args: []*ffi.Type{&typePoint}}`,
		"func Area(p Point) int32 {",
		"var ret ffi.Arg",
		"return int32(ret)",
	)
	mustContain(t, files["hdr_h.go"],
		"// Code generated by hbind. DO NOT EDIT.",
		"package hdr_h",
		"func Load() error {",
		`var Library = libraryName("hdr")`,
	)
}

func TestPaddingIsExplicit(t *testing.T) {
	files := render(t, Options{},
		&emit.Unit{Name: "S", Kind: emit.KindStruct, CName: "S",
			Layout: &layout.MemoryLayout{Class: layout.ClassStruct, Size: 16, Align: 4},
			Fields: []emit.Field{field("c", 0, intL(1, false)), field("i", 8, intL(4, false))}},
	)
	mustContain(t, files["types.go"], "_ [7]byte", "_ [4]byte", "C int8", "I int32")
}

func TestUnionIsOpaque(t *testing.T) {
	files := render(t, Options{},
		&emit.Unit{Name: "U", Kind: emit.KindUnion, CName: "U",
			Layout: &layout.MemoryLayout{Class: layout.ClassUnion, Size: 4, Align: 4},
			Fields: []emit.Field{field("i", 0, intL(4, false)), field("f", 0, floatL())}},
	)
	mustContain(t, files["types.go"],
		"type U struct {\n\t_ [1]uint32\n}",
		"func (p *U) I() int32 {",
		"func (p *U) SetI(v int32) {",
		"func (p *U) F() float32 {",
		`"unsafe"`,
	)
}

func TestBitfieldAccessors(t *testing.T) {
	a := field("a", 0, intL(4, true))
	a.Bitfield, a.BitWidth, a.BitShift = true, 3, 0
	b := field("b", 0, intL(4, false))
	b.Bitfield, b.BitWidth, b.BitShift = true, 5, 3
	files := render(t, Options{},
		&emit.Unit{Name: "Flags", Kind: emit.KindStruct, CName: "Flags",
			Layout: &layout.MemoryLayout{Class: layout.ClassStruct, Size: 4, Align: 4},
			Fields: []emit.Field{a, b}},
	)
	mustContain(t, files["types.go"],
		"type Flags struct {\n\t_ [1]uint32\n}",
		"func (p *Flags) A() uint32 {",
		"func (p *Flags) SetA(v uint32) {",
		"func (p *Flags) B() int32 {",
		"func (p *Flags) SetB(v int32) {",
	)
}

func TestEnumsConstantsAndCallbacks(t *testing.T) {
	files := render(t, Options{},
		&emit.Unit{Name: "Color", Kind: emit.KindEnum, CName: "Color", Layout: intL(4, true)},
		&emit.Unit{Name: "RED", Kind: emit.KindConstant, CName: "RED", Enum: "Color",
			Type: emit.Slot{Layout: intL(4, true), Ref: "Color"}, Value: ast.UintValue(0)},
		&emit.Unit{Name: "MAX", Kind: emit.KindConstant, CName: "MAX",
			Type: emit.Slot{Layout: intL(4, false)}, Value: ast.IntValue(10)},
		&emit.Unit{Name: "GREETING", Kind: emit.KindConstant, CName: "GREETING", Value: ast.StringValue("hi")},
		&emit.Unit{Name: "cb_t", Kind: emit.KindCallback, CName: "cb_t",
			Call:   &layout.CallDescriptor{Return: intL(4, false), Args: []*layout.MemoryLayout{intL(4, false)}},
			Params: []emit.Slot{{Name: "x0", Layout: intL(4, false)}},
			Result: &emit.Slot{Layout: intL(4, false)}},
	)
	mustContain(t, files["types.go"],
		"type Color uint32",
		"type CbT uintptr",
		"func NewCbT(fn func(x0 int32) int32) CbT {",
	)
	mustContain(t, files["constants.go"],
		"const Red Color = 0",
		"const Max = 10",
		`const Greeting = "hi"`,
	)
}

func TestIdentifierCollisionIsReported(t *testing.T) {
	bag := diag.NewBag(10)
	files := render(t, Options{Reporter: diag.BagReporter{Bag: bag}},
		&emit.Unit{Name: "Point", Kind: emit.KindStruct, CName: "Point",
			Layout: &layout.MemoryLayout{Class: layout.ClassStruct, Size: 4, Align: 4},
			Fields: []emit.Field{field("x", 0, intL(4, false))}},
		&emit.Unit{Name: "point", Kind: emit.KindFunction, CName: "point", Call: &layout.CallDescriptor{}},
	)
	mustContain(t, files["functions.go"], "func Point_2() {", `fnPoint_2.call(nil)`)
	if bag.Len() != 1 || bag.Items()[0].Code != diag.OutputIdentCollision {
		t.Fatalf("got %d diagnostics, want one identifier collision", bag.Len())
	}
}

func TestSymbolsPerFile(t *testing.T) {
	var units []*emit.Unit
	for _, name := range []string{"a", "b", "c"} {
		units = append(units, &emit.Unit{Name: name, Kind: emit.KindFunction, CName: name, Call: &layout.CallDescriptor{}})
	}
	files := render(t, Options{SymbolsPerFile: 2}, units...)
	if _, ok := files["functions.go"]; ok {
		t.Fatalf("functions.go written with symbols per file set")
	}
	mustContain(t, files["functions_1.go"], "func A() {", "func B() {")
	mustContain(t, files["functions_2.go"], "func C() {")
	if _, ok := files["functions_3.go"]; ok {
		t.Fatalf("unexpected third file")
	}
}

func TestLibraryOverride(t *testing.T) {
	files := render(t, Options{Library: "libz.so.1", Package: "zlib"})
	src := files["hdr_h.go"]
	mustContain(t, src, `var Library = "libz.so.1"`, "package zlib")
	if strings.Contains(src, `"runtime"`) {
		t.Fatalf("runtime imported without a derived library name:\n%s", src)
	}
}

func TestPackageName(t *testing.T) {
	seq := &emit.Sequence{Header: "hdr_h"}
	if got := packageName(seq, Options{}); got != "hdr_h" {
		t.Fatalf("got %q, want hdr_h", got)
	}
	if got := packageName(seq, Options{Package: "type"}); got != "bindings" {
		t.Fatalf("got %q, want bindings", got)
	}
}

func TestJSONFormat(t *testing.T) {
	files := render(t, Options{Format: FormatJSON},
		&emit.Unit{Name: "MAX", Kind: emit.KindConstant, CName: "MAX",
			Type: emit.Slot{Layout: intL(4, false)}, Value: ast.IntValue(10)},
	)
	if len(files) != 1 {
		t.Fatalf("got %d files, want units.json only", len(files))
	}
	var doc struct {
		Header string
		Units  []struct {
			Name  string
			Kind  string
			Value string
		}
	}
	json := jsoniter.ConfigCompatibleWithStandardLibrary
	if err := json.Unmarshal([]byte(files["units.json"]), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Header != "hdr_h" || len(doc.Units) != 1 || doc.Units[0].Kind != "constant" || doc.Units[0].Value != "10" {
		t.Fatalf("unexpected dump: %+v", doc)
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := Write(context.Background(), &emit.Sequence{Header: "hdr_h"}, Options{Dir: dir})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("got %v, want the loader file only", paths)
	}
	if _, err := os.Stat(filepath.Join(dir, "hdr_h.go")); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestWriteIntoFileFails(t *testing.T) {
	file := filepath.Join(t.TempDir(), "taken")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Write(context.Background(), &emit.Sequence{Header: "hdr_h"}, Options{Dir: file})
	var oe *OutputError
	if !errors.As(err, &oe) || oe.Op != "mkdir" {
		t.Fatalf("got %v, want mkdir OutputError", err)
	}
}

func TestParseModeAndFormat(t *testing.T) {
	if m, err := ParseMode("compiled"); err != nil || m != ModeCompiled {
		t.Fatalf("ParseMode(compiled) = %v, %v", m, err)
	}
	if _, err := ParseMode("binary"); err == nil {
		t.Fatalf("ParseMode(binary) succeeded")
	}
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Fatalf("ParseFormat(JSON) = %v, %v", f, err)
	}
}
