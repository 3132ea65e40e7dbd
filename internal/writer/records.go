package writer

import (
	"fmt"
	"strings"

	"hbind/internal/emit"
	"hbind/internal/layout"
)

type plainField struct {
	name  string
	typ   string
	elems string // ffi element list; empty for padding
}

// record writes a struct or union. A struct whose members fall where Go would
// place them becomes a Go struct with the same fields; anything else (unions,
// bitfields, packing, over-alignment) is opaque storage with accessors.
func (g *gen) record(b *buf, u *emit.Unit) {
	id := g.ids.of(u.Name)
	l := u.Layout
	b.use(ffiPath)
	fmt.Fprintf(b, "// %s is %s (%d bytes, align %d).\n", id, describe(u), l.Size, l.Align)
	if fields, ok := g.plain(b, u); ok {
		fmt.Fprintf(b, "type %s struct {\n", id)
		var elems []string
		for _, f := range fields {
			fmt.Fprintf(b, "\t%s %s\n", f.name, f.typ)
			if f.elems != "" {
				elems = append(elems, f.elems)
			}
		}
		b.WriteString("}\n\n")
		fmt.Fprintf(b, "var type%s = ffi.NewType(join(%s)...)\n\n", id, strings.Join(elems, ", "))
		return
	}
	unit, count := storage(l)
	fmt.Fprintf(b, "type %s struct {\n\t_ [%d]uint%d\n}\n\n", id, count, unit*8)
	fmt.Fprintf(b, "var type%s = ffi.NewType(repeat([]*ffi.Type{&ffi.TypeUint%d}, %d)...)\n\n", id, unit*8, count)
	g.accessors(b, u, id)
}

// storage returns the unit size in bytes and the unit count backing an opaque
// record.
func storage(l *layout.MemoryLayout) (int64, int64) {
	unit := goAlign(l)
	for unit > 1 && l.Size%unit != 0 {
		unit /= 2
	}
	return unit, l.Size / unit
}

func (g *gen) plain(b *buf, u *emit.Unit) ([]plainField, bool) {
	l := u.Layout
	if u.Kind != emit.KindStruct || len(u.Fields) == 0 {
		return nil, false
	}
	names := memberTable{}
	var out []plainField
	var cursor, align int64 = 0, 1
	for _, f := range u.Fields {
		fl := f.Layout
		if f.Bitfield || f.Flexible || fl == nil || fl.Size == 0 || f.Name == "" || hasVector(fl) {
			return nil, false
		}
		a := goAlign(fl)
		if f.Offset < cursor || f.Offset%a != 0 {
			return nil, false
		}
		if alignUp(cursor, a) != f.Offset {
			out = append(out, plainField{name: "_", typ: fmt.Sprintf("[%d]byte", f.Offset-cursor)})
		}
		out = append(out, plainField{
			name:  names.claim(Exported(f.Name)),
			typ:   g.goType(b, f.Slot),
			elems: g.ffiElems(b, fl, f.Ref),
		})
		cursor = f.Offset + fl.Size
		align = max(align, a)
	}
	if goAlign(l) != align || l.Size%align != 0 || cursor > l.Size {
		return nil, false
	}
	if cursor < l.Size {
		out = append(out, plainField{name: "_", typ: fmt.Sprintf("[%d]byte", l.Size-cursor)})
	}
	return out, true
}

func hasVector(l *layout.MemoryLayout) bool {
	for ; l != nil; l = l.Elem {
		if l.Class == layout.ClassVector {
			return true
		}
	}
	return false
}

func (g *gen) accessors(b *buf, u *emit.Unit, id string) {
	names := memberTable{}
	for _, f := range u.Fields {
		if f.Name == "" || f.Layout == nil {
			continue
		}
		get := names.claim(Exported(f.Name))
		set := names.claim("Set" + get)
		b.use("unsafe")
		switch {
		case f.Flexible:
			fmt.Fprintf(b, "// %s returns the address of the flexible array member %s.\n", get, f.Name)
			fmt.Fprintf(b, "func (p *%s) %s() unsafe.Pointer {\n\treturn unsafe.Add(unsafe.Pointer(p), %d)\n}\n\n", id, get, f.Offset)
		case f.Bitfield:
			g.bitfield(b, id, get, set, f)
		default:
			typ := g.goType(b, f.Slot)
			fmt.Fprintf(b, "func (p *%s) %s() %s {\n\treturn *(*%s)(unsafe.Add(unsafe.Pointer(p), %d))\n}\n\n",
				id, get, typ, typ, f.Offset)
			fmt.Fprintf(b, "func (p *%s) %s(v %s) {\n\t*(*%s)(unsafe.Add(unsafe.Pointer(p), %d)) = v\n}\n\n",
				id, set, typ, typ, f.Offset)
		}
	}
}

// bitfield writes the accessors of a bitfield. The field occupies BitWidth
// bits starting BitShift bits above the least significant bit of the storage
// integer at Offset.
func (g *gen) bitfield(b *buf, id, get, set string, f emit.Field) {
	bits := f.Layout.Size * 8
	switch bits {
	case 8, 16, 32, 64:
	default:
		fmt.Fprintf(b, "// %s: bitfield storage of %d bytes has no accessor.\n\n", f.Name, f.Layout.Size)
		return
	}
	store := fmt.Sprintf("uint%d", bits)
	mask := ^uint64(0)
	if f.BitWidth < 64 {
		mask = uint64(1)<<uint(f.BitWidth) - 1
	}
	shift, width := f.BitShift, f.BitWidth
	typ := g.goType(b, f.Slot)
	at := fmt.Sprintf("unsafe.Add(unsafe.Pointer(p), %d)", f.Offset)

	fmt.Fprintf(b, "// %s reads the %d-bit field %s.\n", get, width, f.Name)
	fmt.Fprintf(b, "func (p *%s) %s() %s {\n", id, get, typ)
	fmt.Fprintf(b, "\tv := *(*%s)(%s)\n", store, at)
	switch {
	case isBool(f.Slot):
		fmt.Fprintf(b, "\treturn v>>%d&%#x != 0\n", shift, mask)
	case f.Layout.Unsigned:
		fmt.Fprintf(b, "\treturn %s(v >> %d & %#x)\n", typ, shift, mask)
	default:
		fmt.Fprintf(b, "\treturn %s(int%d(v<<%d) >> %d)\n", typ, bits, bits-shift-width, bits-width)
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "func (p *%s) %s(v %s) {\n", id, set, typ)
	fmt.Fprintf(b, "\tq := (*%s)(%s)\n", store, at)
	if isBool(f.Slot) {
		fmt.Fprintf(b, "\tvar x %s\n\tif v {\n\t\tx = 1\n\t}\n", store)
	} else {
		fmt.Fprintf(b, "\tx := %s(v)\n", store)
	}
	fmt.Fprintf(b, "\t*q = *q&^(%#x<<%d) | (x&%#x)<<%d\n", mask, shift, mask, shift)
	b.WriteString("}\n\n")
}

func (g *gen) enum(b *buf, u *emit.Unit) {
	id := g.ids.of(u.Name)
	typ := "int32"
	if u.Layout != nil {
		if t, ok := scalarType(u.Layout); ok {
			typ = t
		}
	}
	fmt.Fprintf(b, "// %s is %s.\n", id, describe(u))
	fmt.Fprintf(b, "type %s %s\n\n", id, typ)
}

func (g *gen) typedef(b *buf, u *emit.Unit) {
	id := g.ids.of(u.Name)
	fmt.Fprintf(b, "// %s is typedef %s.\n", id, u.CName)
	fmt.Fprintf(b, "type %s = %s\n\n", id, g.goType(b, u.Type))
}

func describe(u *emit.Unit) string {
	kind := u.Kind.String()
	if u.CName != "" {
		return kind + " " + u.CName
	}
	return fmt.Sprintf("an anonymous %s named %s", kind, u.Name)
}
