package naming

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/source"
	"hbind/internal/types"
)

// Options configure Assign.
type Options struct {
	// Header is the binding group name; see HeaderName.
	Header   string
	Jobs     int
	Reporter diag.Reporter
}

// note is a diagnostic held back until the results of all workers are merged,
// so reports come out in declaration order.
type note struct {
	code diag.Code
	pos  source.Pos
	msg  string
}

// sink collects names assigned by one worker.
type sink struct {
	decls     map[ast.DeclID]string
	callbacks map[ast.DeclID]Callback
	notes     []note
}

func newSink() *sink {
	return &sink{
		decls:     make(map[ast.DeclID]string),
		callbacks: make(map[ast.DeclID]Callback),
	}
}

type namer struct {
	tree     *ast.Tree
	in       *types.Interner
	top      *scope
	shared   *sink // top-level results; read-only while workers run
	typedefs map[string]ast.DeclID
	records  []ast.DeclID
}

// Assign names every kept declaration reachable from the top level of tree.
// Top-level names are assigned sequentially in declaration order; the members
// of each record are then named concurrently, one worker per record. The
// result does not depend on the number of workers.
func Assign(ctx context.Context, tree *ast.Tree, opts Options) (*Names, error) {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	n := &namer{
		tree:     tree,
		in:       tree.Types,
		top:      newScope(""),
		shared:   newSink(),
		typedefs: make(map[string]ast.DeclID),
	}
	for _, id := range tree.Toplevel() {
		if d := tree.Decl(id); d != nil && d.Kind == ast.DeclTypedef {
			n.typedefs[d.Name] = id
		}
	}
	for _, id := range tree.Toplevel() {
		n.toplevel(n.shared, id)
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// индекс слота совпадает с порядком записей, мьютекс не нужен
	slots := make([]*sink, len(n.records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(n.records))))
	for i, rec := range n.records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s := newSink()
			n.record(s, rec, n.shared.decls[rec])
			slots[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := newNames(opts.Header)
	all := append([]*sink{n.shared}, slots...)
	for _, s := range all {
		for id, name := range s.decls {
			out.decls[id] = name
		}
		for id, cb := range s.callbacks {
			out.callbacks[id] = cb
		}
		for _, nt := range s.notes {
			diag.ReportInfo(opts.Reporter, nt.code, nt.pos, nt.msg).Emit()
		}
	}
	return out, nil
}

// value names a function, variable, field, parameter or constant. Values are
// not disambiguated: C already keeps them unique in their scope.
func (s *sink) value(id ast.DeclID, d *ast.Decl, name string) string {
	safe, renamed := safeIdent(name)
	if renamed {
		s.notes = append(s.notes, note{diag.NameKeywordRename, d.Pos,
			fmt.Sprintf("%s %q is emitted as %q", d.KindName(), name, safe)})
	}
	s.decls[id] = safe
	return safe
}

// typeName registers a type-like name in sc.
func (s *sink) typeName(sc *scope, id ast.DeclID, d *ast.Decl, local string) string {
	safe, renamed := safeIdent(local)
	if renamed {
		s.notes = append(s.notes, note{diag.NameKeywordRename, d.Pos,
			fmt.Sprintf("%s %q is emitted as %q", d.KindName(), local, safe)})
	}
	uniq, clash := sc.unique(safe)
	if clash {
		s.notes = append(s.notes, note{diag.NameDisambiguated, d.Pos,
			fmt.Sprintf("%s %q is emitted as %q", d.KindName(), sc.qualify(safe), sc.qualify(uniq))})
	}
	name := sc.qualify(uniq)
	s.decls[id] = name
	return name
}

func (n *namer) toplevel(s *sink, id ast.DeclID) {
	d := n.tree.Decl(id)
	if d == nil || n.tree.Skipped(id) {
		return
	}
	switch d.Kind {
	case ast.DeclConstant:
		s.value(id, d, d.Name)
	case ast.DeclVariable:
		name := s.value(id, d, d.Name)
		n.callback(s, n.top, id, d, name+"$type")
		n.nested(s, n.top, id, name, "type")
	case ast.DeclFunction:
		name := s.value(id, d, d.Name)
		for i, p := range d.Params {
			n.param(s, name, i, p)
		}
		if info, ok := n.in.FnInfo(d.Type); ok {
			if _, _, isFn := n.in.PointeeFunction(info.Result); isFn {
				n.callbackType(s, n.top, id, d, info.Result, name+"$return")
			}
		}
		n.nested(s, n.top, id, name, "")
	case ast.DeclTypedef:
		name := s.typeName(n.top, id, d, d.Name)
		if _, _, ok := n.in.PointeeFunction(d.Type); ok {
			s.callbacks[id] = Callback{Name: name}
		}
		n.nested(s, n.top, id, name, "type")
	case ast.DeclScoped:
		if d.IsScoped(ast.ScopeEnum) {
			n.constants(s, id)
		}
		if d.IsAnonymous() {
			return
		}
		s.typeName(n.top, id, d, d.Name)
		if d.IsRecord() {
			n.records = append(n.records, id)
		}
	}
}

func (n *namer) param(s *sink, fn string, i int, id ast.DeclID) {
	d := n.tree.Decl(id)
	if d == nil {
		return
	}
	role := d.Name
	if role == "" {
		role = fmt.Sprintf("x%d", i)
	}
	role = s.value(id, d, role)
	base := fn + "$" + role
	n.callback(s, n.top, id, d, base)
	n.nested(s, n.top, id, base, "")
}

func (n *namer) constants(s *sink, enum ast.DeclID) {
	for _, c := range n.tree.Decl(enum).Members {
		if cd := n.tree.Decl(c); cd != nil && !n.tree.Skipped(c) {
			s.value(c, cd, cd.Name)
		}
	}
}

// callback names the function-pointer type of d, if it has one. A declaration
// whose type is a callback typedef reuses the typedef's callback.
func (n *namer) callback(s *sink, sc *scope, id ast.DeclID, d *ast.Decl, local string) {
	if _, _, ok := n.in.PointeeFunction(d.Type); !ok {
		return
	}
	n.callbackType(s, sc, id, d, d.Type, local)
}

func (n *namer) callbackType(s *sink, sc *scope, id ast.DeclID, d *ast.Decl, typ types.TypeID, local string) {
	if td, ok := n.typedefOf(typ); ok {
		if cb, ok := n.shared.callbacks[td]; ok {
			s.callbacks[id] = Callback{Name: cb.Name, Typedef: td}
			return
		}
	}
	uniq, clash := sc.unique(local)
	if clash {
		s.notes = append(s.notes, note{diag.NameDisambiguated, d.Pos,
			fmt.Sprintf("callback %q is emitted as %q", sc.qualify(local), sc.qualify(uniq))})
	}
	s.callbacks[id] = Callback{Name: sc.qualify(uniq)}
}

// typedefOf returns the top-level typedef a type is spelled with, looking
// through qualifiers only.
func (n *namer) typedefOf(typ types.TypeID) (ast.DeclID, bool) {
	for range 16 {
		tt, ok := n.in.Lookup(typ)
		if !ok || tt.Kind != types.KindDelegated {
			return ast.NoDeclID, false
		}
		switch tt.Deleg {
		case types.DelegTypedef:
			id, ok := n.typedefs[tt.Name]
			return id, ok
		case types.DelegVolatile, types.DelegAtomic:
			typ = tt.Elem
		default:
			return ast.NoDeclID, false
		}
	}
	return ast.NoDeclID, false
}

// nested names the anonymous records owned by owner. base is the name the
// owner contributes; dataRole is appended when the record is not part of a
// function signature. A typedef whose aliased type is the record itself hands
// its own name down.
func (n *namer) nested(s *sink, sc *scope, owner ast.DeclID, base, dataRole string) {
	od := n.tree.Decl(owner)
	for _, rec := range od.Nested {
		rd := n.tree.Decl(rec)
		if rd == nil || n.tree.Skipped(rec) {
			continue
		}
		if _, done := s.decls[rec]; done {
			continue
		}
		if od.Kind == ast.DeclTypedef && od.Type == rd.Type {
			s.decls[rec] = s.decls[owner]
		} else {
			local := base
			if role, ok := n.fnRole(od.Type, rec); ok {
				local += "$" + role
			} else if dataRole != "" {
				local += "$" + dataRole
			}
			uniq, clash := sc.unique(local)
			if clash {
				s.notes = append(s.notes, note{diag.NameDisambiguated, rd.Pos,
					fmt.Sprintf("anonymous %s %q is emitted as %q", rd.KindName(), sc.qualify(local), sc.qualify(uniq))})
			}
			s.decls[rec] = sc.qualify(uniq)
		}
		if rd.IsScoped(ast.ScopeEnum) {
			n.constants(s, rec)
			continue
		}
		if sc == n.top {
			n.records = append(n.records, rec)
		} else {
			n.record(s, rec, s.decls[rec])
		}
	}
}

// fnRole locates rec in the signature of the function behind typ: "x<i>" for
// parameter i, "return" otherwise.
func (n *namer) fnRole(typ types.TypeID, rec ast.DeclID) (string, bool) {
	info, ok := n.in.FnInfo(n.peel(typ))
	if !ok {
		return "", false
	}
	for i, p := range info.Params {
		if d, ok := n.in.DeclOf(n.peel(p)); ok && d == rec {
			return fmt.Sprintf("x%d", i), true
		}
	}
	return "return", true
}

// peel strips qualifiers, pointers and arrays.
func (n *namer) peel(typ types.TypeID) types.TypeID {
	for range n.in.Len() {
		typ = n.in.Unqualified(typ)
		tt, ok := n.in.Lookup(typ)
		if !ok {
			return typ
		}
		switch {
		case tt.Kind == types.KindArray:
			typ = tt.Elem
		case tt.Kind == types.KindDelegated && tt.Deleg == types.DelegPointer:
			typ = tt.Elem
		default:
			return typ
		}
	}
	return typ
}

// record names the members of a record in a scope of its own. C11 anonymous
// members share the scope of the record that contains them.
func (n *namer) record(s *sink, rec ast.DeclID, name string) {
	n.members(s, newScope(name), rec)
}

func (n *namer) members(s *sink, sc *scope, rec ast.DeclID) {
	for _, f := range n.tree.Fields(rec) {
		fd := n.tree.Decl(f)
		if fd == nil || n.tree.Skipped(f) {
			continue
		}
		if fd.Kind == ast.DeclScoped {
			n.members(s, sc, f)
			continue
		}
		if fd.Name == "" {
			continue
		}
		role := s.value(f, fd, fd.Name)
		n.callback(s, sc, f, fd, role)
		n.nested(s, sc, f, role, "")
	}
}
