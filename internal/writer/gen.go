package writer

import (
	"fmt"
	"slices"
	"strings"

	"hbind/internal/emit"
	"hbind/internal/layout"
	"hbind/internal/types"
)

const ffiPath = "github.com/jupiterrider/ffi"

// buf is one output file under construction. Imports are recorded as code
// that needs them is written.
type buf struct {
	strings.Builder
	imports map[string]bool
}

func newBuf() *buf { return &buf{imports: make(map[string]bool)} }

func (b *buf) use(pkgs ...string) {
	for _, p := range pkgs {
		b.imports[p] = true
	}
}

type gen struct {
	seq   *emit.Sequence
	opts  Options
	pkg   string
	units map[string]*emit.Unit
	ids   *identTable
}

func newGen(seq *emit.Sequence, opts Options) *gen {
	g := &gen{
		seq:   seq,
		opts:  opts,
		pkg:   packageName(seq, opts),
		units: seq.ByName(),
		ids:   newIdentTable(opts.Reporter, "Load", "Library"),
	}
	for _, u := range seq.Units {
		if u.Kind == emit.KindCallback {
			g.ids.claim(u.Name, u.Pos, "New")
			continue
		}
		g.ids.claim(u.Name, u.Pos)
	}
	return g
}

// files renders every output file in a fixed order: the loader, types,
// constants, then functions and variables.
func (g *gen) files() []File {
	typ, cst := newBuf(), newBuf()
	var calls []*emit.Unit
	for _, u := range g.seq.Units {
		switch u.Kind {
		case emit.KindStruct, emit.KindUnion:
			g.record(typ, u)
		case emit.KindEnum:
			g.enum(typ, u)
		case emit.KindTypedef:
			g.typedef(typ, u)
		case emit.KindCallback:
			g.callback(typ, u)
		case emit.KindConstant:
			g.constant(cst, u)
		case emit.KindFunction, emit.KindVar:
			calls = append(calls, u)
		}
	}

	header := g.seq.Header
	if header == "" {
		header = g.pkg
	}
	out := []File{g.file(header+".go", g.loader(), g.packageDoc())}
	if typ.Len() > 0 {
		out = append(out, g.file("types.go", typ, ""))
	}
	if cst.Len() > 0 {
		out = append(out, g.file("constants.go", cst, ""))
	}
	per := g.opts.SymbolsPerFile
	if per <= 0 {
		if len(calls) > 0 {
			out = append(out, g.file("functions.go", g.calls(calls), ""))
		}
		return out
	}
	for i, chunk := 1, calls; len(chunk) > 0; i++ {
		n := min(per, len(chunk))
		out = append(out, g.file(fmt.Sprintf("functions_%d.go", i), g.calls(chunk[:n]), ""))
		chunk = chunk[n:]
	}
	return out
}

func (g *gen) calls(units []*emit.Unit) *buf {
	b := newBuf()
	for _, u := range units {
		if u.Kind == emit.KindVar {
			g.variable(b, u)
		} else {
			g.function(b, u)
		}
	}
	return b
}

func (g *gen) packageDoc() string {
	src := g.seq.Header
	if src == "" {
		return ""
	}
	return fmt.Sprintf("// Package %s binds the C declarations of %s.\n", g.pkg, src)
}

func (g *gen) file(name string, body *buf, doc string) File {
	var sb strings.Builder
	sb.WriteString("// Code generated by hbind. DO NOT EDIT.\n\n")
	sb.WriteString(doc)
	fmt.Fprintf(&sb, "package %s\n\n", g.pkg)
	var std []string
	for p := range body.imports {
		if p != ffiPath {
			std = append(std, p)
		}
	}
	slices.Sort(std)
	if len(body.imports) > 0 {
		sb.WriteString("import (\n")
		for _, p := range std {
			fmt.Fprintf(&sb, "\t%q\n", p)
		}
		if body.imports[ffiPath] {
			if len(std) > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "\t%q\n", ffiPath)
		}
		sb.WriteString(")\n\n")
	}
	sb.WriteString(body.String())
	return File{Name: name, Data: []byte(sb.String())}
}

// goType returns the Go type of a slot.
func (g *gen) goType(b *buf, s emit.Slot) string {
	if s.Callback != "" {
		return g.ids.of(s.Callback)
	}
	return g.typeOf(b, s.Layout, s.Ref)
}

func (g *gen) typeOf(b *buf, l *layout.MemoryLayout, ref string) string {
	if l == nil {
		b.use("unsafe")
		return "unsafe.Pointer"
	}
	if u := g.refUnit(l, ref); u != nil {
		return g.ids.of(u.Name)
	}
	switch l.Class {
	case layout.ClassArray, layout.ClassVector:
		return fmt.Sprintf("[%d]%s", l.Count, g.typeOf(b, l.Elem, ref))
	case layout.ClassPointer:
		b.use("unsafe")
		return "unsafe.Pointer"
	case layout.ClassComplex:
		switch l.Size {
		case 8:
			return "complex64"
		case 16:
			return "complex128"
		}
	case layout.ClassScalar:
		if t, ok := scalarType(l); ok {
			return t
		}
	}
	return fmt.Sprintf("[%d]byte", l.Size)
}

// refUnit returns the unit a slot refers to when l is that unit's layout.
// Arrays of a referenced element are not the element itself.
func (g *gen) refUnit(l *layout.MemoryLayout, ref string) *emit.Unit {
	if ref == "" {
		return nil
	}
	u := g.units[ref]
	if u == nil || u.Layout == nil {
		return nil
	}
	if u.Layout == l {
		return u
	}
	ul := u.Layout
	if ul.Class != l.Class || ul.Size != l.Size || ul.Align != l.Align || ul.Count != l.Count {
		return nil
	}
	return u
}

func scalarType(l *layout.MemoryLayout) (string, bool) {
	switch {
	case l.Prim == types.PrimBool && l.Size == 1:
		return "bool", true
	case l.Prim.IsFloat():
		switch l.Size {
		case 4:
			return "float32", true
		case 8:
			return "float64", true
		}
		return "", false
	}
	switch l.Size {
	case 1, 2, 4, 8:
		if l.Unsigned {
			return fmt.Sprintf("uint%d", l.Size*8), true
		}
		return fmt.Sprintf("int%d", l.Size*8), true
	}
	return "", false
}

// ffiSlot returns the ffi type expression of a slot passed by value.
func (g *gen) ffiSlot(b *buf, s emit.Slot) string {
	if s.Callback != "" {
		return "&ffi.TypePointer"
	}
	return g.ffiType(b, s.Layout, s.Ref)
}

func (g *gen) ffiType(b *buf, l *layout.MemoryLayout, ref string) string {
	if l == nil {
		return "&ffi.TypePointer"
	}
	if u := g.refUnit(l, ref); u != nil {
		switch {
		case u.Kind.IsRecord():
			return "&type" + g.ids.of(u.Name)
		case u.Kind == emit.KindTypedef:
			return g.ffiSlot(b, u.Type)
		}
	}
	switch l.Class {
	case layout.ClassScalar:
		return ffiScalar(l)
	case layout.ClassComplex:
		if l.Size == 8 {
			return "&ffi.TypeComplexFloat"
		}
		return "&ffi.TypeComplexDouble"
	}
	return "&ffi.TypePointer"
}

// ffiElems returns a []*ffi.Type expression listing the elements l occupies
// inside a record.
func (g *gen) ffiElems(b *buf, l *layout.MemoryLayout, ref string) string {
	if l != nil && g.refUnit(l, ref) == nil && (l.Class == layout.ClassArray || l.Class == layout.ClassVector) {
		return fmt.Sprintf("repeat(%s, %d)", g.ffiElems(b, l.Elem, ref), l.Count)
	}
	if u := g.refUnit(l, ref); u != nil && u.Kind == emit.KindTypedef && u.Type.Callback == "" {
		return g.ffiElems(b, u.Type.Layout, u.Type.Ref)
	}
	return "[]*ffi.Type{" + g.ffiType(b, l, ref) + "}"
}

func ffiScalar(l *layout.MemoryLayout) string {
	if l.Prim.IsFloat() {
		switch l.Size {
		case 4:
			return "&ffi.TypeFloat"
		case 8:
			return "&ffi.TypeDouble"
		}
		return "&ffi.TypeLongdouble"
	}
	sign := "Sint"
	if l.Unsigned || l.Prim == types.PrimBool {
		sign = "Uint"
	}
	switch l.Size {
	case 1, 2, 4, 8:
		return fmt.Sprintf("&ffi.Type%s%d", sign, l.Size*8)
	}
	return "&ffi.TypePointer"
}

// widened reports whether a scalar result comes back in a full ffi.Arg.
func widened(s emit.Slot) bool {
	l := s.Layout
	return s.Callback == "" && l != nil && l.Class == layout.ClassScalar && !l.Prim.IsFloat()
}

func isBool(s emit.Slot) bool {
	return s.Callback == "" && s.Layout != nil && s.Layout.Class == layout.ClassScalar && s.Layout.Prim == types.PrimBool
}

// goAlign is the alignment Go gives the generated type for l.
func goAlign(l *layout.MemoryLayout) int64 {
	return max(1, min(l.Align, 8))
}

func alignUp(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

// reserved holds names a parameter must not shadow inside generated bodies.
var reserved = map[string]bool{
	"ffi": true, "unsafe": true, "ret": true, "args": true, "fn": true, "r": true,
	"bool": true, "byte": true, "complex64": true, "complex128": true, "float32": true,
	"float64": true, "int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"rune": true, "string": true, "uint": true, "uint8": true, "uint16": true, "uint32": true,
	"uint64": true, "uintptr": true, "true": true, "false": true, "nil": true,
}

// paramNames returns distinct local names for slots.
func paramNames(slots []emit.Slot) []string {
	seen := make(map[string]bool, len(slots))
	out := make([]string, len(slots))
	for i, s := range slots {
		name := local(s.Name, i)
		for reserved[name] || seen[name] {
			name += "_"
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
