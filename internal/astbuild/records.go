package astbuild

import (
	"errors"
	"fmt"

	"hbind/internal/abi"
	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/frontend"
	"hbind/internal/types"
)

func scopeOf(k frontend.CursorKind) (ast.ScopedKind, bool) {
	switch k {
	case frontend.CursorStruct:
		return ast.ScopeStruct, true
	case frontend.CursorUnion:
		return ast.ScopeUnion, true
	case frontend.CursorEnum:
		return ast.ScopeEnum, true
	}
	return 0, false
}

// recordDecl returns the declaration of a struct, union or enum cursor,
// creating it on first sight. A definition seen after a forward declaration
// fills in the members of the already reserved declaration.
func (b *builder) recordDecl(c frontend.Cursor) (ast.DeclID, error) {
	if id, ok := b.records[c]; ok {
		return id, nil
	}
	kind, ok := scopeOf(c.Kind())
	if !ok {
		return ast.NoDeclID, fmt.Errorf("%s is not a tag declaration", c.Kind())
	}
	name := c.Name()
	key := tagKey{kind: c.Kind(), name: name}
	if name != "" {
		if id, ok := b.tags[key]; ok {
			b.records[c] = id
			if c.IsDefinition() && !b.tree.IsDefined(id) {
				b.define(id, c)
			}
			return id, nil
		}
	}
	id := b.tree.Reserve(kind, name, c.Pos())
	b.records[c] = id
	if name != "" {
		b.tags[key] = id
		b.pending = append(b.pending, id)
	}
	if c.IsDefinition() {
		b.define(id, c)
	}
	return id, nil
}

func (b *builder) define(id ast.DeclID, c frontend.Cursor) {
	if c.Kind() == frontend.CursorEnum {
		b.defineEnum(id, c)
		return
	}
	packed := c.Packed()
	members := b.members(id, c, packed)
	if err := b.tree.DefineMembers(id, members); err != nil {
		var ce *ast.ContainmentError
		if errors.As(err, &ce) {
			diag.ReportError(b.rep, diag.BuildSelfContainment, c.Pos(),
				fmt.Sprintf("%s contains itself by value", describe(c))).
				WithNote(c.Pos(), "a record may refer to itself only through a pointer").Emit()
			return
		}
		diag.ReportError(b.rep, diag.BuildDeclOmitted, c.Pos(), err.Error()).Emit()
		return
	}
	if packed {
		b.tree.AddAttr(id, ast.AttrPacked)
	}
	if a, ok := c.AlignAttr(); ok {
		b.tree.AddAttr(id, ast.AttrAligned, a)
	}
	if n, ok := c.PackAttr(); ok {
		b.tree.AddAttr(id, ast.AttrMaxAlign, n)
	}
	if ct := c.Type(); ct != nil && ct.IsComplete() && ct.Size() > 0 && ct.Align() > 0 {
		b.tree.AddAttr(id, ast.AttrRecordSize, ct.Size())
		b.tree.AddAttr(id, ast.AttrRecordAlign, ct.Align())
	}
}

func (b *builder) defineEnum(id ast.DeclID, c frontend.Cursor) {
	under := b.in.Builtins().Int
	if ct := c.Type(); ct != nil && ct.Elem() != nil {
		under = b.typeOf(ct.Elem())
	}
	b.tree.SetUnderlying(id, under)
	var consts []ast.DeclID
	for _, k := range c.Children() {
		if k.Kind() != frontend.CursorEnumConstant {
			continue
		}
		v, _ := k.EnumValue()
		consts = append(consts, b.tree.NewConstant(k.Name(), k.Pos(), under, ast.IntValue(v)))
	}
	if err := b.tree.DefineMembers(id, consts); err != nil {
		diag.ReportError(b.rep, diag.BuildDeclOmitted, c.Pos(), err.Error()).Emit()
	}
}

// field is one data member before bitfield grouping.
type field struct {
	id       ast.DeclID
	bitfield bool
	width    int64
	unitBits int64
	off      int64
	hasOff   bool
	cur      frontend.Cursor
}

func (b *builder) members(rec ast.DeclID, c frontend.Cursor, packed bool) []ast.DeclID {
	union := c.Kind() == frontend.CursorUnion
	var fields []field
	var cursor int64
	for _, k := range c.Children() {
		switch k.Kind() {
		case frontend.CursorStruct, frontend.CursorUnion, frontend.CursorEnum:
			// nested tag definitions have file scope in C
			if k.Name() != "" {
				if _, err := b.recordDecl(k); err != nil {
					diag.ReportWarning(b.rep, diag.BuildDeclOmitted, k.Pos(), err.Error()).Emit()
				}
			}
			continue
		case frontend.CursorField:
		default:
			continue
		}
		f, ok := b.field(k)
		if !ok {
			continue
		}
		if off, known := k.BitOffset(); known && (!f.bitfield || f.width > 0) {
			f.off, f.hasOff = off, true
		}
		switch {
		case union:
			cursor = 0
		case f.hasOff:
			cursor = f.off
		case !f.bitfield:
			if ct := k.Type(); ct != nil && ct.Align() > 0 {
				cursor = alignBits(cursor, ct.Align()*8)
			}
		}
		if !f.hasOff && !union {
			f.off = cursor
		}
		if f.bitfield {
			if !f.hasOff {
				f.off = b.target.PlaceBitfield(cursor, f.width, f.unitBits, packed)
			}
			cursor = f.off + f.width
		} else if ct := k.Type(); ct != nil && ct.Size() > 0 {
			cursor += ct.Size() * 8
		}
		fields = append(fields, f)
	}

	var out []ast.DeclID
	for i := 0; i < len(fields); {
		if !fields[i].bitfield {
			out = append(out, fields[i].id)
			i++
			continue
		}
		j := i
		for j < len(fields) && fields[j].bitfield {
			j++
		}
		out = append(out, b.groups(fields[i:j], union)...)
		i = j
	}
	return out
}

// field converts one field cursor. Anonymous record members become the nested
// record itself; named fields of anonymous record type own that record.
func (b *builder) field(k frontend.Cursor) (field, bool) {
	ct := k.Type()
	if ct == nil {
		diag.ReportWarning(b.rep, diag.BuildDeclOmitted, k.Pos(),
			fmt.Sprintf("field %q has no type", k.Name())).Emit()
		return field{}, false
	}
	var anon ast.DeclID
	if kk := ct.Kind(); (kk == frontend.TypeRecord || kk == frontend.TypeEnum) && ct.Decl() != nil && ct.Decl().Name() == "" {
		rec, err := b.recordDecl(ct.Decl())
		if err == nil {
			anon = rec
		}
	}
	if width, ok := k.BitWidth(); ok {
		typ := b.typeOf(ct)
		id := b.tree.NewBitfield(k.Name(), k.Pos(), typ, width)
		if width > 0 {
			b.fieldAttrs(id, k)
		}
		if anon.IsValid() && !b.owned[anon] {
			b.owned[anon] = true
			b.tree.AddNested(id, anon)
		}
		return field{id: id, bitfield: true, width: width, unitBits: b.unitBits(typ), cur: k}, true
	}
	if anon.IsValid() && k.Name() == "" && b.tree.Decl(anon).IsRecord() && !b.owned[anon] {
		b.owned[anon] = true
		b.tree.AddAttr(anon, ast.AttrAnonymous)
		b.fieldAttrs(anon, k)
		return field{id: anon, cur: k}, true
	}
	id := b.tree.NewVariable(ast.VarField, k.Name(), k.Pos(), b.typeOf(ct))
	b.fieldAttrs(id, k)
	if anon.IsValid() && !b.owned[anon] {
		b.owned[anon] = true
		b.tree.AddNested(id, anon)
	} else {
		b.adopt(id, ct)
	}
	return field{id: id, cur: k}, true
}

func (b *builder) fieldAttrs(id ast.DeclID, k frontend.Cursor) {
	if off, ok := k.BitOffset(); ok {
		b.tree.AddAttr(id, ast.AttrFieldOffset, off)
	}
	if k.IsFlexibleArray() {
		b.tree.AddAttr(id, ast.AttrFlexible)
	}
}

// groups splits a run of bitfields into storage groups. Offsets reported by
// the front end take precedence over simulated placement.
func (b *builder) groups(run []field, union bool) []ast.DeclID {
	bfs := make([]abi.Bitfield, len(run))
	offs := make([]int64, len(run))
	for i, f := range run {
		bfs[i] = abi.Bitfield{Width: f.width, UnitBits: f.unitBits}
		offs[i] = f.off
	}
	var idx []int
	if union {
		// every union member starts at offset zero
		idx = make([]int, len(run))
		for i := range idx {
			idx[i] = i
		}
	} else {
		idx = abi.GroupPlaced(bfs, offs)
	}
	var out []ast.DeclID
	for start := 0; start < len(run); {
		end := start + 1
		for end < len(run) && idx[end] == idx[start] {
			end++
		}
		ids := make([]ast.DeclID, 0, end-start)
		for _, f := range run[start:end] {
			ids = append(ids, f.id)
		}
		g := b.tree.Reserve(ast.ScopeBitfieldGroup, "", run[start].cur.Pos())
		if err := b.tree.DefineMembers(g, ids); err != nil {
			diag.ReportError(b.rep, diag.BuildDeclOmitted, run[start].cur.Pos(), err.Error()).Emit()
		}
		out = append(out, g)
		start = end
	}
	return out
}

// unitBits is the storage unit of a bitfield: the width of its declared
// integer type, or of the enum's underlying type.
func (b *builder) unitBits(typ types.TypeID) int64 {
	canon := b.in.Canonical(typ)
	if d, ok := b.in.DeclOf(canon); ok {
		if dd := b.tree.Decl(d); dd != nil && dd.Underlying.IsValid() {
			canon = b.in.Canonical(dd.Underlying)
		}
	}
	if prim, _, ok := b.in.IntegerInfo(canon); ok {
		if s, ok := b.target.Prim(prim); ok {
			return s.Size * 8
		}
	}
	if t, ok := b.in.Lookup(b.in.Unqualified(canon)); ok && t.Kind == types.KindPrimitive {
		if s, ok := b.target.Prim(t.Prim); ok {
			return s.Size * 8
		}
	}
	return 32
}

func alignBits(n, align int64) int64 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}

func describe(c frontend.Cursor) string {
	name := c.Name()
	if name == "" {
		name = "<anonymous>"
	}
	return c.Kind().String() + " " + name
}
