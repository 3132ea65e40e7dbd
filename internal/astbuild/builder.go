// Package astbuild turns a front-end cursor tree into an ast.Tree.
package astbuild

import (
	"errors"
	"fmt"

	"hbind/internal/abi"
	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/frontend"
	"hbind/internal/source"
	"hbind/internal/types"
)

// ErrNoTree is returned when the front end supplied no root cursor.
var ErrNoTree = errors.New("front end produced no translation unit")

// Options configure a build.
type Options struct {
	Target   abi.Target
	Reporter diag.Reporter
	// Types lets callers share an interner; a fresh one is used when nil.
	Types *types.Interner
}

type tagKey struct {
	kind frontend.CursorKind
	name string
}

type builder struct {
	tree   *ast.Tree
	in     *types.Interner
	target abi.Target
	rep    diag.Reporter

	records   map[frontend.Cursor]ast.DeclID
	tags      map[tagKey]ast.DeclID
	typedefs  map[frontend.CType]types.TypeID
	owned     map[ast.DeclID]bool
	placed    map[ast.DeclID]bool
	collapsed map[string]bool

	pending  []ast.DeclID
	toplevel []ast.DeclID
}

// Build walks root in source order and returns the declaration tree. Failing
// declarations are reported and omitted; only a missing root is fatal.
func Build(root frontend.Cursor, opts Options) (*ast.Tree, error) {
	if root == nil {
		return nil, ErrNoTree
	}
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	if opts.Target.PtrSize == 0 {
		opts.Target = abi.X86_64Linux()
	}
	tree := ast.NewTree(opts.Types, 0)
	b := &builder{
		tree:      tree,
		in:        tree.Types,
		target:    opts.Target,
		rep:       opts.Reporter,
		records:   make(map[frontend.Cursor]ast.DeclID),
		tags:      make(map[tagKey]ast.DeclID),
		typedefs:  make(map[frontend.CType]types.TypeID),
		owned:     make(map[ast.DeclID]bool),
		placed:    make(map[ast.DeclID]bool),
		collapsed: make(map[string]bool),
	}
	for _, c := range root.Children() {
		if c == nil {
			continue
		}
		id, err := b.toplevelDecl(c)
		b.flush()
		if err != nil {
			diag.ReportWarning(b.rep, diag.BuildDeclOmitted, c.Pos(),
				fmt.Sprintf("omitting %s %q: %v", c.Kind(), c.Name(), err)).Emit()
			continue
		}
		if id.IsValid() && !b.placed[id] {
			b.placed[id] = true
			b.toplevel = append(b.toplevel, id)
		}
	}
	rootID, err := tree.NewScoped(ast.ScopeToplevel, "", source.NoPos, b.toplevel)
	if err != nil {
		return nil, err
	}
	tree.Root = rootID
	return tree, nil
}

// flush moves named records discovered while building the current declaration
// to the top level, ahead of it.
func (b *builder) flush() {
	for _, id := range b.pending {
		if b.placed[id] {
			continue
		}
		b.placed[id] = true
		b.toplevel = append(b.toplevel, id)
	}
	b.pending = b.pending[:0]
}

func (b *builder) toplevelDecl(c frontend.Cursor) (ast.DeclID, error) {
	switch c.Kind() {
	case frontend.CursorFunction:
		if c.Linkage() == frontend.LinkageInternal {
			return ast.NoDeclID, nil
		}
		return b.function(c)
	case frontend.CursorVar:
		if c.Linkage() == frontend.LinkageInternal {
			return ast.NoDeclID, nil
		}
		return b.global(c)
	case frontend.CursorStruct, frontend.CursorUnion, frontend.CursorEnum:
		id, err := b.recordDecl(c)
		if err != nil {
			return ast.NoDeclID, err
		}
		d := b.tree.Decl(id)
		if d.IsAnonymous() {
			// only anonymous enums live at the top level; anonymous records
			// belong to whatever declaration uses them
			if d.IsScoped(ast.ScopeEnum) && !b.owned[id] {
				b.owned[id] = true
				return id, nil
			}
			return ast.NoDeclID, nil
		}
		return id, nil
	case frontend.CursorTypedef:
		return b.typedef(c)
	case frontend.CursorMacro:
		return b.macro(c), nil
	default:
		diag.ReportInfo(b.rep, diag.BuildUnsupportedCursor, c.Pos(),
			fmt.Sprintf("ignoring %s cursor %q", c.Kind(), c.Name())).Emit()
		return ast.NoDeclID, nil
	}
}

func (b *builder) function(c frontend.Cursor) (ast.DeclID, error) {
	ct := c.Type()
	if ct == nil || ct.Kind() != frontend.TypeFunction {
		return ast.NoDeclID, fmt.Errorf("function without a function type")
	}
	fnType := b.typeOf(ct)
	var params []ast.DeclID
	for _, p := range c.Children() {
		if p.Kind() != frontend.CursorParam {
			continue
		}
		pid := b.tree.NewVariable(ast.VarParameter, p.Name(), p.Pos(), b.typeOf(p.Type()))
		b.adopt(pid, p.Type())
		params = append(params, pid)
	}
	id := b.tree.NewFunction(c.Name(), c.Pos(), fnType, params)
	if res := ct.Result(); res != nil {
		b.adopt(id, res)
	}
	return id, nil
}

func (b *builder) global(c frontend.Cursor) (ast.DeclID, error) {
	if c.Type() == nil {
		return ast.NoDeclID, fmt.Errorf("variable without a type")
	}
	id := b.tree.NewVariable(ast.VarGlobal, c.Name(), c.Pos(), b.typeOf(c.Type()))
	b.adopt(id, c.Type())
	return id, nil
}

func (b *builder) typedef(c frontend.Cursor) (ast.DeclID, error) {
	aliased := c.Type()
	if aliased == nil {
		return ast.NoDeclID, fmt.Errorf("typedef without a type")
	}
	if k := aliased.Kind(); (k == frontend.TypeRecord || k == frontend.TypeEnum) && aliased.Decl() != nil {
		rec, err := b.recordDecl(aliased.Decl())
		if err != nil {
			return ast.NoDeclID, err
		}
		rd := b.tree.Decl(rec)
		if rd.Name == c.Name() {
			// tag and typedef share the name: keep the tag only
			b.collapsed[c.Name()] = true
			return ast.NoDeclID, nil
		}
		if rd.IsAnonymous() && !b.owned[rec] {
			id := b.tree.NewTypedef(c.Name(), c.Pos(), rd.Type)
			b.owned[rec] = true
			b.tree.AddNested(id, rec)
			return id, nil
		}
	}
	id := b.tree.NewTypedef(c.Name(), c.Pos(), b.typeOf(aliased))
	b.adopt(id, aliased)
	return id, nil
}

// adopt makes owner the owner of anonymous records reachable from ct without
// going through a typedef.
func (b *builder) adopt(owner ast.DeclID, ct frontend.CType) {
	for depth := 0; ct != nil && depth < 64; depth++ {
		switch ct.Kind() {
		case frontend.TypePointer, frontend.TypeConstantArray, frontend.TypeIncompleteArray,
			frontend.TypeVector, frontend.TypeAtomic:
			ct = ct.Elem()
		case frontend.TypeFunction:
			b.adopt(owner, ct.Result())
			for _, p := range ct.Params() {
				b.adopt(owner, p)
			}
			return
		case frontend.TypeRecord, frontend.TypeEnum:
			cur := ct.Decl()
			if cur == nil || cur.Name() != "" {
				return
			}
			rec, ok := b.records[cur]
			if !ok || b.owned[rec] {
				return
			}
			b.owned[rec] = true
			b.tree.AddNested(owner, rec)
			return
		default:
			return
		}
	}
}
