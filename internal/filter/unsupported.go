package filter

import (
	"fmt"

	"hbind/internal/abi"
	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/types"
)

// Capabilities is what the binding writer can express.
type Capabilities struct {
	// Unsupported primitives.
	Unsupported map[types.PrimKind]bool
	Vectors     bool
	Complex     bool
}

// DefaultCapabilities returns the writer capabilities for a target. long
// double is usable only where it is the same as double.
func DefaultCapabilities(t abi.Target) Capabilities {
	c := Capabilities{Unsupported: map[types.PrimKind]bool{
		types.PrimChar16:    true,
		types.PrimFloat128:  true,
		types.PrimHalfFloat: true,
		types.PrimInt128:    true,
		types.PrimWChar:     true,
	}}
	ld, okLD := t.Prim(types.PrimLongDouble)
	d, okD := t.Prim(types.PrimDouble)
	if !okLD || !okD || ld != d {
		c.Unsupported[types.PrimLongDouble] = true
	}
	return c
}

type unsupported struct {
	tree *ast.Tree
	caps Capabilities
	rep  diag.Reporter
	n    int
}

// Unsupported skips declarations whose types the writer cannot express, and
// callbacks with variadic parameters. It returns the number skipped.
func Unsupported(tree *ast.Tree, caps Capabilities, rep diag.Reporter) int {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	u := &unsupported{tree: tree, caps: caps, rep: rep}
	for _, id := range tree.Toplevel() {
		u.visit(id, "")
	}
	return u.n
}

func (u *unsupported) skip(id ast.DeclID, name, msg string) {
	d := u.tree.Decl(id)
	u.tree.AddAttr(id, ast.AttrSkip, msg)
	u.n++
	diag.ReportWarning(u.rep, diag.FilterUnsupportedType, d.Pos, fmt.Sprintf("skipping %s: %s", name, msg)).Emit()
}

func (u *unsupported) visitNested(d *ast.Decl, parent string) {
	for _, n := range d.Nested {
		u.visit(n, parent)
	}
}

// visit checks one declaration. parent is the name of the nearest named
// enclosing declaration, used to qualify field names.
func (u *unsupported) visit(id ast.DeclID, parent string) {
	tree := u.tree
	d := tree.Decl(id)
	if d == nil || tree.Skipped(id) {
		return
	}
	name := d.Name
	if parent != "" && d.Kind == ast.DeclVariable {
		name = parent + "." + d.Name
	}

	switch d.Kind {
	case ast.DeclFunction:
		u.visitNested(d, parent)
		for _, p := range d.Params {
			if pd := tree.Decl(p); pd != nil {
				u.visitNested(pd, parent)
			}
		}
		if bad, ok := u.first(d.Type, false); ok {
			u.skip(id, name, "unsupported type usage: "+tree.TypeString(bad))
			return
		}
		info, _ := tree.Types.FnInfo(d.Type)
		for _, p := range d.Params {
			if !u.callbackOK(p, name, tree.Decl(p).Type) {
				tree.AddAttr(id, ast.AttrSkip, "unsupported callback")
				return
			}
		}
		if info != nil && !u.callbackOK(id, name, info.Result) {
			tree.AddAttr(id, ast.AttrSkip, "unsupported callback")
		}

	case ast.DeclVariable:
		u.visitNested(d, d.Name)
		if bad, ok := u.first(d.Type, false); ok {
			u.skip(id, name, "unsupported type usage: "+tree.TypeString(bad))
			return
		}
		if !u.callbackOK(id, name, d.Type) {
			tree.AddAttr(id, ast.AttrSkip, "unsupported callback")
		}

	case ast.DeclTypedef:
		if rec, ok := tree.Types.DeclOf(d.Type); ok && containsID(d.Nested, rec) {
			u.visit(rec, "")
		}
		if bad, ok := u.first(d.Type, false); ok {
			u.skip(id, name, "unsupported type usage: "+tree.TypeString(bad))
			return
		}
		if !u.callbackOK(id, name, d.Type) {
			tree.AddAttr(id, ast.AttrSkip, "unsupported callback")
		}

	case ast.DeclScoped:
		switch {
		case d.IsRecord():
			if !tree.IsDefined(id) {
				// opaque records are only used through pointers
				tree.AddAttr(id, ast.AttrSkip, "incomplete")
				diag.ReportInfo(u.rep, diag.FilterInfo, d.Pos, fmt.Sprintf("skipping %s: incomplete type", recordLabel(d))).Emit()
				return
			}
			next := parent
			if !d.IsAnonymous() {
				next = d.Name
			}
			for _, m := range d.Members {
				u.visit(m, next)
			}
		case d.IsScoped(ast.ScopeBitfieldGroup):
			for _, m := range d.Members {
				u.visit(m, parent)
			}
		}
	}
}

func containsID(ids []ast.DeclID, id ast.DeclID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func recordLabel(d *ast.Decl) string {
	if d.IsAnonymous() {
		return d.KindName() + " <anonymous>"
	}
	return d.KindName() + " " + d.Name
}

// callbackOK checks a function pointer used by a declaration. Callbacks with
// variadic parameters cannot be implemented by the writer.
func (u *unsupported) callbackOK(at ast.DeclID, name string, typ types.TypeID) bool {
	_, info, ok := u.tree.Types.PointeeFunction(typ)
	if !ok {
		return true
	}
	if info.Variadic && len(info.Params) > 0 {
		u.n++
		d := u.tree.Decl(at)
		diag.ReportWarning(u.rep, diag.FilterVariadicCallback, d.Pos,
			fmt.Sprintf("skipping %s: varargs in callbacks is not supported: %s", name, d.Name)).Emit()
		return false
	}
	return true
}

// first returns the first type reachable from id that the writer cannot
// express. Pointers are opaque: their pointee is never checked.
func (u *unsupported) first(id types.TypeID, allowVoid bool) (types.TypeID, bool) {
	in := u.tree.Types
	tt, ok := in.Lookup(id)
	if !ok {
		return id, true
	}
	switch tt.Kind {
	case types.KindPrimitive:
		if tt.Prim == types.PrimVoid {
			return id, !allowVoid
		}
		return id, u.caps.Unsupported[tt.Prim]
	case types.KindFunction:
		info, _ := in.FnInfo(id)
		for _, p := range info.Params {
			if bad, ok := u.first(p, false); ok {
				return bad, true
			}
		}
		return u.first(info.Result, true)
	case types.KindDeclared:
		d := u.tree.Decl(tt.Decl)
		if d != nil && d.IsRecord() && !u.tree.IsDefined(tt.Decl) {
			return id, true
		}
		return id, false
	case types.KindDelegated:
		switch tt.Deleg {
		case types.DelegPointer:
			return id, false
		case types.DelegComplex:
			if !u.caps.Complex {
				return id, true
			}
		}
		return u.first(tt.Elem, allowVoid)
	case types.KindArray:
		if tt.Array == types.ArrayVector && !u.caps.Vectors {
			return id, true
		}
		return u.first(tt.Elem, false)
	case types.KindErroneous:
		return id, true
	}
	return id, false
}
