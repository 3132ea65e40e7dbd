package filter

import (
	"hbind/internal/ast"
	"hbind/internal/types"
)

// Dedup skips repeated top-level declarations. Constants and variables repeat
// by name; functions and typedefs by name and type. The first one wins.
func Dedup(tree *ast.Tree) int {
	var (
		constants = make(map[string]bool)
		variables = make(map[string]bool)
		functions = make(map[string][]types.TypeID)
		typedefs  = make(map[string][]types.TypeID)
		skipped   int
	)
	seen := func(m map[string][]types.TypeID, name string, typ types.TypeID, same func(a, b types.TypeID) bool) bool {
		for _, t := range m[name] {
			if same(t, typ) {
				return true
			}
		}
		m[name] = append(m[name], typ)
		return false
	}
	identical := func(a, b types.TypeID) bool { return a == b }

	for _, id := range tree.Toplevel() {
		d := tree.Decl(id)
		if d == nil || tree.Skipped(id) {
			continue
		}
		dup := false
		switch d.Kind {
		case ast.DeclConstant:
			dup = constants[d.Name]
			constants[d.Name] = true
		case ast.DeclVariable:
			dup = variables[d.Name]
			variables[d.Name] = true
		case ast.DeclFunction:
			dup = seen(functions, d.Name, d.Type, tree.Types.SameSignature)
		case ast.DeclTypedef:
			dup = seen(typedefs, d.Name, d.Type, identical)
		}
		if dup {
			tree.AddAttr(id, ast.AttrSkip, "duplicate")
			skipped++
		}
	}
	return skipped
}
