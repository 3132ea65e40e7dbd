package layout

import (
	"cmp"
	"math"
	"math/bits"
	"slices"

	"fortio.org/safecast"

	"hbind/internal/ast"
	"hbind/internal/types"
)

// maxVectorAlign caps the alignment of GNU vector types.
const maxVectorAlign = 64

func (e *LayoutEngine) computeLayout(id types.TypeID, state *layoutState) (*MemoryLayout, *LayoutError) {
	tt, ok := e.Tree.Types.Lookup(id)
	if !ok {
		return nil, errorf(LayoutErrInvalid, id, "unknown type")
	}

	switch tt.Kind {
	case types.KindPrimitive:
		return e.scalar(id, tt.Prim)

	case types.KindDelegated:
		switch tt.Deleg {
		case types.DelegPointer:
			// the pointee is never consulted
			return e.ptrLayout(), nil
		case types.DelegSigned, types.DelegUnsigned:
			el, err := e.layoutOf(tt.Elem, state)
			if err != nil {
				return nil, err
			}
			if el.Class != ClassScalar || !el.Prim.IsInteger() {
				return nil, errorf(LayoutErrInvalid, id, "%s applied to a non-integer type", tt.Deleg)
			}
			out := *el
			out.Unsigned = tt.Deleg == types.DelegUnsigned
			return &out, nil
		case types.DelegComplex:
			el, err := e.layoutOf(tt.Elem, state)
			if err != nil {
				return nil, err
			}
			return &MemoryLayout{Class: ClassComplex, Size: 2 * el.Size, Align: el.Align, Elem: el, Count: 2}, nil
		default:
			return e.layoutOf(tt.Elem, state)
		}

	case types.KindArray:
		switch tt.Array {
		case types.ArrayIncomplete:
			return nil, errorf(LayoutErrIncomplete, id, "array of unknown length")
		case types.ArrayVector:
			return e.vectorLayout(id, tt, state)
		default:
			return e.arrayFixedLayout(id, tt, state)
		}

	case types.KindFunction:
		return nil, errorf(LayoutErrInvalid, id, "function type has no object layout")

	case types.KindDeclared:
		return e.declaredLayout(id, tt.Decl, state)

	case types.KindErroneous:
		switch tt.Err {
		case types.ErrDependent:
			return nil, errorf(LayoutErrDependent, id, "%s", tt.Name)
		case types.ErrVariableSize:
			return nil, errorf(LayoutErrNotConstantSize, id, "%s", tt.Name)
		default:
			return nil, errorf(LayoutErrInvalid, id, "%s type: %s", tt.Err, tt.Name)
		}
	}
	return nil, errorf(LayoutErrInvalid, id, "unexpected type kind %s", tt.Kind)
}

func (e *LayoutEngine) scalar(id types.TypeID, p types.PrimKind) (*MemoryLayout, *LayoutError) {
	if p == types.PrimVoid {
		return nil, errorf(LayoutErrIncomplete, id, "void")
	}
	s, ok := e.Target.Prim(p)
	if !ok {
		return nil, errorf(LayoutErrInvalid, id, "%s is not available on %s", p, e.Target.Name)
	}
	return &MemoryLayout{Class: ClassScalar, Size: s.Size, Align: s.Align, Prim: p}, nil
}

func (e *LayoutEngine) ptrLayout() *MemoryLayout {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return &MemoryLayout{Class: ClassPointer, Size: ptrSize, Align: ptrAlign}
}

// unitLayout returns an unsigned integer scalar of exactly size bytes.
func (e *LayoutEngine) unitLayout(size int64) *MemoryLayout {
	for _, p := range []types.PrimKind{types.PrimChar, types.PrimShort, types.PrimInt, types.PrimLongLong} {
		if s, ok := e.Target.Prim(p); ok && s.Size == size {
			return &MemoryLayout{Class: ClassScalar, Size: size, Align: s.Align, Prim: p, Unsigned: true}
		}
	}
	return &MemoryLayout{Class: ClassScalar, Size: size, Align: 1, Prim: types.PrimChar, Unsigned: true}
}

func roundUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func roundDown(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return n - n%align
}

func bytesFor(bitCount int64) int64 {
	return (bitCount + 7) / 8
}

func (e *LayoutEngine) arrayFixedLayout(id types.TypeID, tt types.Type, state *layoutState) (*MemoryLayout, *LayoutError) {
	el, err := e.layoutOf(tt.Elem, state)
	if err != nil {
		return nil, err
	}
	if tt.Count < 0 {
		return nil, errorf(LayoutErrInvalid, id, "negative array length %d", tt.Count)
	}
	if el.Size > 0 && tt.Count > math.MaxInt64/el.Size {
		return nil, errorf(LayoutErrInvalid, id, "array of %d elements overflows", tt.Count)
	}
	return &MemoryLayout{
		Class: ClassArray,
		Size:  el.Size * tt.Count,
		Align: max(el.Align, 1),
		Elem:  el,
		Count: tt.Count,
	}, nil
}

func (e *LayoutEngine) vectorLayout(id types.TypeID, tt types.Type, state *layoutState) (*MemoryLayout, *LayoutError) {
	el, err := e.layoutOf(tt.Elem, state)
	if err != nil {
		return nil, err
	}
	n, convErr := safecast.Conv[uint64](tt.Count)
	if convErr != nil || n == 0 || bits.OnesCount64(n) != 1 {
		return nil, errorf(LayoutErrInvalid, id, "vector length %d is not a power of two", tt.Count)
	}
	size := el.Size * tt.Count
	return &MemoryLayout{
		Class: ClassVector,
		Size:  size,
		Align: min(max(size, el.Align), maxVectorAlign),
		Elem:  el,
		Count: tt.Count,
	}, nil
}

func (e *LayoutEngine) declaredLayout(id types.TypeID, decl ast.DeclID, state *layoutState) (*MemoryLayout, *LayoutError) {
	tree := e.Tree
	d := tree.Decl(decl)
	if d == nil {
		return nil, errorf(LayoutErrInvalid, id, "dangling declaration #%d", decl)
	}
	switch {
	case d.IsScoped(ast.ScopeEnum):
		if !d.Underlying.IsValid() {
			return nil, &LayoutError{Kind: LayoutErrIncomplete, Type: id, Decl: decl, Reason: "enum " + d.Name + " is only forward-declared"}
		}
		return e.layoutOf(d.Underlying, state)
	case d.IsRecord():
		if !tree.IsDefined(decl) {
			return nil, &LayoutError{Kind: LayoutErrIncomplete, Type: id, Decl: decl, Reason: recordName(d) + " is only forward-declared"}
		}
		return e.recordLayout(id, decl, d, state)
	}
	return nil, errorf(LayoutErrInvalid, id, "%s declaration has no layout", d.KindName())
}

func recordName(d *ast.Decl) string {
	if d.IsAnonymous() {
		return d.KindName() + " <anonymous>"
	}
	return d.KindName() + " " + d.Name
}

// recordState is the running placement of one record.
type recordState struct {
	l       *MemoryLayout
	packed  bool
	pack    int64 // member alignment cap in bytes, 0 when none
	union   bool
	bits    int64 // struct: end of the last member in bits
	maxEnd  int64 // union: largest member end in bytes
	lastOff int64 // last front-end offset seen, for order checks
}

// capAlign applies the record's packing to a member alignment.
func (rs *recordState) capAlign(a int64) int64 {
	switch {
	case rs.packed:
		return 1
	case rs.pack > 0 && a > rs.pack:
		return rs.pack
	}
	return a
}

func (e *LayoutEngine) recordLayout(id types.TypeID, rec ast.DeclID, d *ast.Decl, state *layoutState) (*MemoryLayout, *LayoutError) {
	tree := e.Tree
	rs := &recordState{
		l:      &MemoryLayout{Class: ClassStruct, Align: 1},
		packed: tree.HasAttr(rec, ast.AttrPacked),
		union:  d.IsScoped(ast.ScopeUnion),
	}
	if n, ok := tree.AttrInt(rec, ast.AttrMaxAlign); ok && n > 0 {
		rs.pack = n
	}
	if rs.union {
		rs.l.Class = ClassUnion
	}

	for i, m := range d.Members {
		md := tree.Decl(m)
		if md == nil {
			continue
		}
		last := i == len(d.Members)-1
		switch {
		case md.IsScoped(ast.ScopeBitfieldGroup):
			for _, bf := range md.Members {
				if err := e.placeBitfield(rs, m, bf, state); err != nil {
					return nil, err
				}
			}
		case md.Kind == ast.DeclVariable:
			if err := e.placeMember(rs, m, md, false, last, state); err != nil {
				return nil, err
			}
		case md.IsRecord():
			if err := e.placeMember(rs, m, md, true, last, state); err != nil {
				return nil, err
			}
		}
	}

	size := bytesFor(rs.bits)
	if rs.union {
		size = rs.maxEnd
	}
	if a, ok := tree.AttrInt(rec, ast.AttrAligned); ok && a > rs.l.Align {
		rs.l.Align = a
	}
	rs.l.Size = roundUp(size, rs.l.Align)

	if reported, ok := tree.AttrInt(rec, ast.AttrRecordAlign); ok && reported != rs.l.Align {
		rs.l.Mismatches = append(rs.l.Mismatches, Mismatch{Kind: MismatchAlign, Decl: rec, Name: d.Name, Reported: reported, Computed: rs.l.Align})
		rs.l.Align = reported
	}
	if reported, ok := tree.AttrInt(rec, ast.AttrRecordSize); ok && reported != rs.l.Size {
		rs.l.Mismatches = append(rs.l.Mismatches, Mismatch{Kind: MismatchSize, Decl: rec, Name: d.Name, Reported: reported, Computed: rs.l.Size})
		rs.l.Size = reported
	}
	rs.l.Padding = padding(rs.l)
	return rs.l, nil
}

// reportedOffset applies a front-end bit offset to a computed one. The reported
// value wins; a disagreement is kept as a mismatch.
func (e *LayoutEngine) reportedOffset(rs *recordState, m ast.DeclID, name string, computed int64) int64 {
	reported, ok := e.Tree.AttrInt(m, ast.AttrFieldOffset)
	if !ok {
		return computed
	}
	if reported != computed {
		rs.l.Mismatches = append(rs.l.Mismatches, Mismatch{Kind: MismatchOffset, Decl: m, Name: name, Reported: reported, Computed: computed})
	}
	if !rs.union && reported < rs.lastOff {
		rs.l.Mismatches = append(rs.l.Mismatches, Mismatch{Kind: MismatchOrder, Decl: m, Name: name, Reported: reported, Computed: rs.lastOff})
	}
	rs.lastOff = reported
	return reported
}

func (e *LayoutEngine) placeMember(rs *recordState, m ast.DeclID, md *ast.Decl, anonymous, last bool, state *layoutState) *LayoutError {
	ml, err := e.layoutOf(md.Type, state)
	flexible := false
	if err != nil {
		el, ok := e.flexibleElem(m, md, last && !rs.union, err, state)
		if !ok {
			return within(err, m, "field "+memberName(md))
		}
		flexible = true
		ml = &MemoryLayout{Class: ClassArray, Align: el.Align, Elem: el}
	}
	align := rs.capAlign(ml.Align)
	off := roundUp(bytesFor(rs.bits), align)
	if rs.union {
		off = 0
	}
	off = e.reportedOffset(rs, m, md.Name, off*8) / 8
	rs.l.Members = append(rs.l.Members, MemberLayout{
		Decl:      m,
		Name:      md.Name,
		Offset:    off,
		Layout:    ml,
		Anonymous: anonymous,
		Flexible:  flexible,
		BitOffset: off * 8,
	})
	rs.l.Align = max(rs.l.Align, align)
	end := off + ml.Size
	if flexible {
		end = off
	}
	if rs.union {
		rs.maxEnd = max(rs.maxEnd, end)
	} else {
		rs.bits = end * 8
	}
	return nil
}

// flexibleElem returns the element layout of a trailing flexible array member.
func (e *LayoutEngine) flexibleElem(m ast.DeclID, md *ast.Decl, last bool, err *LayoutError, state *layoutState) (*MemoryLayout, bool) {
	if !last || err.Kind != LayoutErrIncomplete {
		return nil, false
	}
	in := e.Tree.Types
	tt, ok := in.Lookup(in.Unqualified(md.Type))
	if !ok || tt.Kind != types.KindArray || tt.Array != types.ArrayIncomplete {
		return nil, false
	}
	el, elErr := e.layoutOf(tt.Elem, state)
	if elErr != nil {
		return nil, false
	}
	return el, true
}

func (e *LayoutEngine) placeBitfield(rs *recordState, group, m ast.DeclID, state *layoutState) *LayoutError {
	md := e.Tree.Decl(m)
	if md == nil {
		return nil
	}
	ul, err := e.layoutOf(md.Type, state)
	if err != nil {
		return within(err, m, "bitfield "+memberName(md))
	}
	if ul.Class != ClassScalar || !ul.Prim.IsInteger() {
		return &LayoutError{Kind: LayoutErrInvalid, Type: md.Type, Decl: m, Reason: "bitfield " + memberName(md) + " has a non-integer type"}
	}
	unit := ul.Size * 8
	width := md.BitWidth
	if width < 0 || width > unit {
		return &LayoutError{Kind: LayoutErrInvalid, Type: md.Type, Decl: m, Reason: "bitfield " + memberName(md) + " is wider than its type"}
	}
	cursor := rs.bits
	if rs.union {
		cursor = 0
	}
	off := e.Target.PlaceBitfield(cursor, width, unit, rs.packed)
	if width > 0 {
		// a zero-width bitfield has no storage; front ends report 0 for it
		off = e.reportedOffset(rs, m, md.Name, off)
	}

	end := off + width
	if rs.union {
		rs.maxEnd = max(rs.maxEnd, bytesFor(end))
	} else {
		rs.bits = max(rs.bits, end)
	}
	if width == 0 || md.Name == "" {
		// unnamed bitfields only move the cursor
		return nil
	}
	rs.l.Align = max(rs.l.Align, rs.capAlign(ul.Align))

	start := roundDown(off, unit)
	storage := ul
	if end > start+unit {
		start = roundDown(off, 8)
		n := bytesFor(end - start)
		switch {
		case n <= 1:
			n = 1
		case n <= 2:
			n = 2
		case n <= 4:
			n = 4
		case n <= 8:
			n = 8
		default:
			return &LayoutError{Kind: LayoutErrInvalid, Type: md.Type, Decl: m, Reason: "bitfield " + md.Name + " spans more than 8 bytes"}
		}
		storage = e.unitLayout(n)
	}
	rs.l.Members = append(rs.l.Members, MemberLayout{
		Decl:      m,
		Name:      md.Name,
		Offset:    start / 8,
		Layout:    storage,
		Bitfield:  true,
		Group:     group,
		BitWidth:  width,
		BitShift:  e.Target.BitShift(off-start, width, storage.Size*8),
		BitOffset: off,
	})
	return nil
}

// padding lists the bytes no member covers.
func padding(l *MemoryLayout) []Span {
	type interval struct{ lo, hi int64 }
	cover := make([]interval, 0, len(l.Members))
	for _, m := range l.Members {
		if m.Bitfield {
			cover = append(cover, interval{m.BitOffset / 8, bytesFor(m.BitOffset + m.BitWidth)})
			continue
		}
		cover = append(cover, interval{m.Offset, m.End()})
	}
	slices.SortStableFunc(cover, func(a, b interval) int { return cmp.Compare(a.lo, b.lo) })
	var out []Span
	var end int64
	for _, c := range cover {
		if c.lo > end {
			out = append(out, Span{Offset: end, Size: c.lo - end})
		}
		end = max(end, c.hi)
	}
	if l.Size > end {
		out = append(out, Span{Offset: end, Size: l.Size - end})
	}
	return out
}

func memberName(d *ast.Decl) string {
	if d.Name == "" {
		return "<anonymous>"
	}
	return d.Name
}

// within copies err with the member it was found in.
func within(err *LayoutError, decl ast.DeclID, what string) *LayoutError {
	out := *err
	if !out.Decl.IsValid() {
		out.Decl = decl
	}
	if out.Reason == "" {
		out.Reason = what
	} else {
		out.Reason = what + ": " + out.Reason
	}
	return &out
}
