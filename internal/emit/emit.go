package emit

import (
	"fmt"
	"strconv"
	"strings"

	"hbind/internal/ast"
	"hbind/internal/dag"
	"hbind/internal/diag"
	"hbind/internal/layout"
	"hbind/internal/naming"
	"hbind/internal/types"
)

// Layouts is the part of the layout engine the emitter uses.
type Layouts interface {
	Decl(id ast.DeclID) (layout.DeclLayout, error)
	LayoutOf(t types.TypeID) (*layout.MemoryLayout, error)
	DescriptorOf(fn types.TypeID) (*layout.CallDescriptor, error)
}

// Options configure Emit.
type Options struct {
	Reporter diag.Reporter
}

type draft struct {
	key  unitKey
	unit *Unit
	dead bool
}

type emitter struct {
	tree  *ast.Tree
	in    *types.Interner
	names *naming.Names
	lay   Layouts
	rep   diag.Reporter

	drafts []*draft
	byKey  map[unitKey]*draft
	// typedefs maps a typedef name to the unit it produced: its own unit or
	// the anonymous record it named.
	typedefs map[string]unitKey
}

// Emit builds binding units for every kept, named top-level declaration and
// for the anonymous records and callbacks they own. Declarations without a
// layout are skipped with a warning, as are declarations that use a skipped
// unit by value. Colliding names are renamed with a warning.
func Emit(tree *ast.Tree, names *naming.Names, lay Layouts, opts Options) *Sequence {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	e := &emitter{
		tree:     tree,
		in:       tree.Types,
		names:    names,
		lay:      lay,
		rep:      opts.Reporter,
		byKey:    make(map[unitKey]*draft),
		typedefs: make(map[string]unitKey),
	}
	for _, id := range tree.Toplevel() {
		e.toplevel(id)
	}
	e.prune()
	e.rename()
	e.resolve()
	return &Sequence{Header: names.Header, Units: e.order()}
}

func (e *emitter) add(key unitKey, u *Unit) {
	d := &draft{key: key, unit: u}
	e.drafts = append(e.drafts, d)
	e.byKey[key] = d
}

func (e *emitter) toplevel(id ast.DeclID) {
	d := e.tree.Decl(id)
	if d == nil || e.tree.Skipped(id) {
		return
	}
	switch d.Kind {
	case ast.DeclConstant:
		e.constant(id, d, unitKey{})
	case ast.DeclVariable:
		e.variable(id, d)
	case ast.DeclFunction:
		e.function(id, d)
	case ast.DeclTypedef:
		e.typedef(id, d)
	case ast.DeclScoped:
		switch {
		case d.IsScoped(ast.ScopeEnum):
			e.enum(id, d)
		case d.IsRecord():
			e.record(id, d)
		}
	}
}

// layoutFor returns the layout of a declaration, reporting it as skipped when
// there is none. A layout error recorded on the declaration is reused.
func (e *emitter) layoutFor(id ast.DeclID, d *ast.Decl, name string) (layout.DeclLayout, bool) {
	var err error
	if vals := e.tree.Attr(id, ast.AttrUnlayoutable); len(vals) > 0 {
		err, _ = vals[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", vals[0])
		}
	} else {
		var dl layout.DeclLayout
		if dl, err = e.lay.Decl(id); err == nil {
			return dl, true
		}
	}
	e.skipUnlayoutable(d, name, err)
	return layout.DeclLayout{}, false
}

func (e *emitter) skipUnlayoutable(d *ast.Decl, name string, err error) {
	msg := fmt.Sprintf("skipping %s %s: %v", d.KindName(), name, err)
	if kind, ok := layout.KindOf(err); ok {
		msg += " (" + kind.String() + ")"
	}
	diag.ReportWarning(e.rep, diag.EmitSkippedUnlayoutable, d.Pos, msg).Emit()
}

func (e *emitter) variable(id ast.DeclID, d *ast.Decl) {
	name, ok := e.names.Of(id)
	if !ok {
		return
	}
	dl, ok := e.layoutFor(id, d, name)
	if !ok {
		return
	}
	e.add(unitKey{decl: id}, &Unit{
		Name: name, Kind: KindVar, CName: d.Name, Pos: d.Pos,
		Layout: dl.Layout, Call: dl.Call,
		Type: e.slot("", d.Type, dl.Layout, id),
	})
	e.callback(id, d.Type)
	e.nested(id)
}

func (e *emitter) function(id ast.DeclID, d *ast.Decl) {
	name, ok := e.names.Of(id)
	if !ok {
		return
	}
	dl, ok := e.layoutFor(id, d, name)
	if !ok || dl.Call == nil {
		return
	}
	u := &Unit{Name: name, Kind: KindFunction, CName: d.Name, Pos: d.Pos, Call: dl.Call}
	for i, p := range d.Params {
		pd := e.tree.Decl(p)
		if pd == nil || i >= len(dl.Call.Args) {
			continue
		}
		pname, _ := e.names.Of(p)
		u.Params = append(u.Params, e.paramSlot(pname, pd.Type, dl.Call.Args[i], p))
	}
	info, _ := e.in.FnInfo(d.Type)
	if dl.Call.Return != nil && info != nil {
		res := e.slot("", info.Result, dl.Call.Return, id)
		u.Result = &res
	}
	e.add(unitKey{decl: id}, u)
	for _, p := range d.Params {
		if pd := e.tree.Decl(p); pd != nil {
			e.callback(p, pd.Type)
			e.nested(p)
		}
	}
	if info != nil {
		e.callback(id, info.Result)
	}
	e.nested(id)
}

func (e *emitter) typedef(id ast.DeclID, d *ast.Decl) {
	name, ok := e.names.Of(id)
	if !ok {
		return
	}
	if _, ok := e.names.Callback(id); ok {
		e.callback(id, d.Type)
		e.nested(id)
		return
	}
	if rec, ok := e.in.DeclOf(d.Type); ok && e.tree.Decl(rec).Type == d.Type {
		if recName, named := e.names.Of(rec); named && recName == name && e.owns(id, rec) {
			// the typedef named an anonymous record: one unit under that name
			e.typedefs[d.Name] = unitKey{decl: rec}
			e.nested(id)
			return
		}
	}
	if _, isFn := e.in.FnInfo(e.in.Unqualified(d.Type)); isFn {
		diag.ReportInfo(e.rep, diag.EmitInfo, d.Pos,
			fmt.Sprintf("typedef %s names a function type; only pointers to it are emitted", name)).Emit()
		return
	}
	e.typedefs[d.Name] = unitKey{decl: id}
	dl, ok := e.layoutFor(id, d, name)
	if !ok {
		return
	}
	e.add(unitKey{decl: id}, &Unit{
		Name: name, Kind: KindTypedef, CName: d.Name, Pos: d.Pos,
		Layout: dl.Layout,
		Type:   e.slot("", d.Type, dl.Layout, ast.NoDeclID),
	})
	e.nested(id)
}

func (e *emitter) owns(owner, rec ast.DeclID) bool {
	for _, n := range e.tree.Decl(owner).Nested {
		if n == rec {
			return true
		}
	}
	return false
}

func (e *emitter) record(id ast.DeclID, d *ast.Decl) {
	name, ok := e.names.Of(id)
	if !ok {
		return
	}
	dl, ok := e.layoutFor(id, d, name)
	if !ok || dl.Layout == nil {
		return
	}
	kind := KindStruct
	if d.IsScoped(ast.ScopeUnion) {
		kind = KindUnion
	}
	u := &Unit{Name: name, Kind: kind, CName: d.Name, Pos: d.Pos, Layout: dl.Layout}
	u.Fields = e.fields(dl.Layout, 0)
	e.add(unitKey{decl: id}, u)
	e.mismatches(name, dl.Layout)
	e.members(id)
}

// fields lists the named members of a record layout. Members of anonymous
// structs and unions are lifted into the container.
func (e *emitter) fields(l *layout.MemoryLayout, base int64) []Field {
	var out []Field
	for _, m := range l.Members {
		if m.Anonymous {
			if m.Layout != nil {
				out = append(out, e.fields(m.Layout, base+m.Offset)...)
			}
			continue
		}
		md := e.tree.Decl(m.Decl)
		if md == nil || md.Name == "" || e.tree.Skipped(m.Decl) {
			continue
		}
		name, ok := e.names.Of(m.Decl)
		if !ok {
			name = md.Name
		}
		f := Field{
			Slot:     e.slot(name, md.Type, m.Layout, m.Decl),
			Offset:   base + m.Offset,
			Flexible: m.Flexible,
		}
		if m.Bitfield {
			f.Bitfield = true
			f.BitWidth = m.BitWidth
			f.BitShift = m.BitShift
			f.BitOffset = base*8 + m.BitOffset
		}
		out = append(out, f)
	}
	return out
}

// members emits the callbacks and anonymous records owned by the fields of a
// record.
func (e *emitter) members(rec ast.DeclID) {
	for _, f := range e.tree.Fields(rec) {
		fd := e.tree.Decl(f)
		if fd == nil || e.tree.Skipped(f) {
			continue
		}
		if fd.Kind == ast.DeclScoped {
			e.members(f)
			continue
		}
		e.callback(f, fd.Type)
		e.nested(f)
	}
}

func (e *emitter) nested(owner ast.DeclID) {
	for _, rec := range e.tree.Decl(owner).Nested {
		rd := e.tree.Decl(rec)
		if rd == nil || e.tree.Skipped(rec) {
			continue
		}
		if _, done := e.byKey[unitKey{decl: rec}]; done {
			continue
		}
		switch {
		case rd.IsScoped(ast.ScopeEnum):
			e.enum(rec, rd)
		case rd.IsRecord():
			e.record(rec, rd)
		}
	}
}

func (e *emitter) enum(id ast.DeclID, d *ast.Decl) {
	var key unitKey
	if name, ok := e.names.Of(id); ok {
		dl, ok := e.layoutFor(id, d, name)
		if !ok {
			return
		}
		key = unitKey{decl: id}
		e.add(key, &Unit{
			Name: name, Kind: KindEnum, CName: d.Name, Pos: d.Pos,
			Layout: dl.Layout,
			Type:   e.slot("", d.Underlying, dl.Layout, ast.NoDeclID),
		})
	}
	for _, c := range d.Members {
		if cd := e.tree.Decl(c); cd != nil && !e.tree.Skipped(c) {
			e.constant(c, cd, key)
		}
	}
}

func (e *emitter) constant(id ast.DeclID, d *ast.Decl, enum unitKey) {
	name, ok := e.names.Of(id)
	if !ok {
		return
	}
	l, err := e.lay.LayoutOf(d.Type)
	if err != nil {
		e.skipUnlayoutable(d, name, err)
		return
	}
	e.add(unitKey{decl: id}, &Unit{
		Name: name, Kind: KindConstant, CName: d.Name, Pos: d.Pos,
		Layout: l,
		Type:   e.slot("", d.Type, l, ast.NoDeclID),
		Value:  d.Value,
		enum:   enum,
	})
}

// callback emits the callback introduced by owner, if any. typ is the
// function pointer type.
func (e *emitter) callback(owner ast.DeclID, typ types.TypeID) {
	cb, ok := e.names.Callback(owner)
	if !ok || !cb.Introduced() {
		return
	}
	key := unitKey{decl: owner, callback: true}
	if _, done := e.byKey[key]; done {
		return
	}
	od := e.tree.Decl(owner)
	cd, err := e.lay.DescriptorOf(typ)
	if err != nil {
		e.skipUnlayoutable(od, cb.Name, err)
		return
	}
	_, info, _ := e.in.PointeeFunction(typ)
	u := &Unit{Name: cb.Name, Kind: KindCallback, Pos: od.Pos, Call: cd}
	if od.Kind == ast.DeclTypedef {
		u.CName = od.Name
	}
	if info != nil {
		for i, p := range info.Params {
			if i >= len(cd.Args) {
				break
			}
			pname := "x" + strconv.Itoa(i)
			if i < len(info.ParamNames) && info.ParamNames[i] != "" {
				pname = info.ParamNames[i]
			}
			u.Params = append(u.Params, e.paramSlot(pname, p, cd.Args[i], ast.NoDeclID))
		}
		if cd.Return != nil {
			res := e.slot("", info.Result, cd.Return, ast.NoDeclID)
			u.Result = &res
		}
	}
	e.add(key, u)
}

func (e *emitter) slot(name string, typ types.TypeID, l *layout.MemoryLayout, owner ast.DeclID) Slot {
	s := Slot{Name: name, Layout: l}
	s.ref, _ = e.refOf(typ)
	if cb, ok := e.names.Callback(owner); ok {
		if cb.Introduced() {
			s.cb = unitKey{decl: owner, callback: true}
		} else {
			s.cb = unitKey{decl: cb.Typedef, callback: true}
		}
	}
	return s
}

// paramSlot is slot with the C parameter adjustments: arrays are passed as
// pointers and do not depend on their element type.
func (e *emitter) paramSlot(name string, typ types.TypeID, l *layout.MemoryLayout, owner ast.DeclID) Slot {
	s := e.slot(name, typ, l, owner)
	if tt, ok := e.in.Lookup(e.in.Unqualified(typ)); ok && tt.Kind == types.KindArray && tt.Array != types.ArrayVector {
		s.ref = unitKey{}
	}
	return s
}

// refOf returns the unit a type uses by value. Pointers do not count.
func (e *emitter) refOf(typ types.TypeID) (unitKey, bool) {
	for range 64 {
		tt, ok := e.in.Lookup(typ)
		if !ok {
			return unitKey{}, false
		}
		switch tt.Kind {
		case types.KindDeclared:
			return unitKey{decl: tt.Decl}, true
		case types.KindArray:
			typ = tt.Elem
		case types.KindDelegated:
			switch tt.Deleg {
			case types.DelegPointer:
				return unitKey{}, false
			case types.DelegTypedef:
				if key, ok := e.typedefs[tt.Name]; ok {
					return key, true
				}
			}
			typ = tt.Elem
		default:
			return unitKey{}, false
		}
	}
	return unitKey{}, false
}

func (e *emitter) mismatches(name string, l *layout.MemoryLayout) {
	for _, m := range l.Mismatches {
		pos := e.tree.Decl(m.Decl)
		if pos == nil {
			continue
		}
		var code diag.Code
		var msg string
		switch m.Kind {
		case layout.MismatchOffset:
			code = diag.LayoutOffsetMismatch
			msg = fmt.Sprintf("%s.%s: front end places the field at bit %d, computed %d", name, m.Name, m.Reported, m.Computed)
		case layout.MismatchOrder:
			code = diag.LayoutOutOfOrderField
			msg = fmt.Sprintf("%s.%s: field at bit %d precedes the previous field", name, m.Name, m.Reported)
		case layout.MismatchAlign:
			code = diag.LayoutSizeMismatch
			msg = fmt.Sprintf("%s: front end reports alignment %d, computed %d", name, m.Reported, m.Computed)
		default:
			code = diag.LayoutSizeMismatch
			msg = fmt.Sprintf("%s: front end reports size %d, computed %d", name, m.Reported, m.Computed)
		}
		diag.ReportWarning(e.rep, code, pos.Pos, msg).Emit()
	}
}

// prune drops units that use a missing unit by value until none is left.
// References to missing callbacks and enums are cleared instead: those are
// pointers and plain integers to the writer.
func (e *emitter) prune() {
	for changed := true; changed; {
		changed = false
		for _, d := range e.drafts {
			if d.dead {
				continue
			}
			if d.unit.enum.valid() && !e.live(d.unit.enum) {
				d.unit.enum = unitKey{}
			}
			for _, s := range d.unit.slots() {
				if s.cb.valid() && !e.live(s.cb) {
					s.cb = unitKey{}
				}
				if !s.ref.valid() || s.ref == d.key || e.live(s.ref) {
					continue
				}
				d.dead = true
				changed = true
				diag.ReportWarning(e.rep, diag.EmitMissingReference, d.unit.Pos,
					fmt.Sprintf("skipping %s %s: depends on %s, which is not emitted", d.unit.Kind, d.unit.Name, e.describe(s.ref))).Emit()
				break
			}
		}
	}
}

func (e *emitter) live(key unitKey) bool {
	d, ok := e.byKey[key]
	return ok && !d.dead
}

func (e *emitter) describe(key unitKey) string {
	if name, ok := e.names.Of(key.decl); ok {
		return name
	}
	d := e.tree.Decl(key.decl)
	if d == nil {
		return "<unknown>"
	}
	if d.IsAnonymous() {
		return d.KindName() + " <anonymous>"
	}
	return d.KindName() + " " + d.Name
}

// rename forces unique names across units. Names are compared
// case-insensitively; the later unit in declaration order is renamed.
func (e *emitter) rename() {
	owner := make(map[string]*draft)
	next := make(map[string]int)
	for _, d := range e.drafts {
		if d.dead {
			continue
		}
		u := d.unit
		lower := strings.ToLower(u.Name)
		first, clash := owner[lower]
		if !clash {
			owner[lower] = d
			continue
		}
		base := u.Name
		for {
			next[lower]++
			cand := base + "$" + strconv.Itoa(next[lower])
			if _, taken := owner[strings.ToLower(cand)]; !taken {
				u.Name = cand
				break
			}
		}
		owner[strings.ToLower(u.Name)] = d
		diag.ReportWarning(e.rep, diag.EmitNameCollision, u.Pos,
			fmt.Sprintf("%s %s collides with %s %s; emitted as %s", u.Kind, base, first.unit.Kind, first.unit.Name, u.Name)).
			WithNote(first.unit.Pos, "previous binding is here").Emit()
	}
}

// resolve turns unit keys into final names and fills Refs.
func (e *emitter) resolve() {
	for _, d := range e.drafts {
		if d.dead {
			continue
		}
		u := d.unit
		var refs []string
		addRef := func(key unitKey) string {
			if !key.valid() || key == d.key {
				return ""
			}
			name := e.byKey[key].unit.Name
			if !containsString(refs, name) {
				refs = append(refs, name)
			}
			return name
		}
		for _, s := range u.slots() {
			s.Ref = addRef(s.ref)
			s.Callback = addRef(s.cb)
		}
		u.Enum = addRef(u.enum)
		u.Refs = refs
	}
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// order sorts live units so that references come first. Ties keep
// declaration order.
func (e *emitter) order() []*Unit {
	idx := dag.NewIndex()
	var live []*Unit
	for _, d := range e.drafts {
		if d.dead {
			continue
		}
		idx.Add(d.unit.Name)
		live = append(live, d.unit)
	}
	g := dag.NewGraph(idx.Len())
	for i, u := range live {
		for _, r := range u.Refs {
			if dep, ok := idx.Lookup(r); ok {
				g.AddEdge(dep, dag.NodeID(i)) //nolint:gosec // i < idx.Len()
			}
		}
	}
	topo := dag.ToposortKahn(g)
	if topo.Cyclic {
		cycle := idx.Names(topo.Cycles)
		u := live[int(topo.Cycles[0])]
		diag.ReportWarning(e.rep, diag.EmitDependencyCycle, u.Pos,
			"binding units depend on each other: "+strings.Join(cycle, ", ")).Emit()
	}
	out := make([]*Unit, 0, len(live))
	for _, id := range topo.Order {
		out = append(out, live[int(id)])
	}
	return out
}
