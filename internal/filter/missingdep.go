package filter

import (
	"fmt"

	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/types"
)

// MissingDeps reports kept declarations that use a skipped struct or union by
// value. Pointers to skipped records are fine. It returns the number of
// reports.
func MissingDeps(tree *ast.Tree, rep diag.Reporter) int {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	c := &depChecker{tree: tree, rep: rep, reported: make(map[[2]ast.DeclID]bool)}
	for _, id := range tree.Toplevel() {
		c.visit(id, ast.NoDeclID)
	}
	return c.n
}

type depChecker struct {
	tree     *ast.Tree
	rep      diag.Reporter
	reported map[[2]ast.DeclID]bool
	n        int
}

func (c *depChecker) visit(id, owner ast.DeclID) {
	d := c.tree.Decl(id)
	if d == nil || c.tree.Skipped(id) {
		return
	}
	if !owner.IsValid() {
		owner = id
	}
	for _, n := range d.Nested {
		c.visit(n, owner)
	}
	switch d.Kind {
	case ast.DeclFunction:
		for _, p := range d.Params {
			c.visit(p, owner)
		}
		c.checkFn(owner, d.Type)
	case ast.DeclScoped:
		for _, m := range d.Members {
			c.visit(m, owner)
		}
	case ast.DeclTypedef, ast.DeclVariable:
		c.check(owner, d.Type)
		if fn, _, ok := c.tree.Types.PointeeFunction(d.Type); ok {
			c.checkFn(owner, fn)
		}
	}
}

func (c *depChecker) checkFn(owner ast.DeclID, fn types.TypeID) {
	info, ok := c.tree.Types.FnInfo(c.tree.Types.Unqualified(fn))
	if !ok {
		return
	}
	c.check(owner, info.Result)
	for _, p := range info.Params {
		c.check(owner, p)
	}
}

func (c *depChecker) check(owner ast.DeclID, typ types.TypeID) {
	in := c.tree.Types
	tt, ok := in.Lookup(typ)
	if !ok {
		return
	}
	switch tt.Kind {
	case types.KindDeclared:
		if !c.tree.Skipped(tt.Decl) {
			return
		}
		key := [2]ast.DeclID{owner, tt.Decl}
		if c.reported[key] {
			return
		}
		c.reported[key] = true
		c.n++
		od, dep := c.tree.Decl(owner), c.tree.Decl(tt.Decl)
		diag.ReportError(c.rep, diag.FilterBadInclude, od.Pos,
			fmt.Sprintf("bad include: %s depends on %s", od.Name, depName(dep))).
			WithNote(dep.Pos, "add it with --"+includeOption(dep)).Emit()
	case types.KindDelegated:
		if tt.Deleg == types.DelegTypedef {
			c.check(owner, tt.Elem)
		}
	case types.KindArray:
		c.check(owner, tt.Elem)
	}
}

func depName(d *ast.Decl) string {
	if d.IsAnonymous() {
		return d.KindName() + " <anonymous>"
	}
	return d.Name
}

func includeOption(d *ast.Decl) string {
	if k, ok := KindOf(d); ok {
		return k.OptionName() + " " + d.Name
	}
	return "include-struct " + d.Name
}
