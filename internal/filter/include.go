// Package filter holds the passes that decide which declarations become
// bindings. Passes never remove declarations; excluded ones get ast.AttrSkip.
package filter

import (
	"fmt"
	"slices"

	"github.com/gobwas/glob"

	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/source"
)

// Kind is the include option family a declaration belongs to.
type Kind uint8

const (
	KindConstant Kind = iota
	KindVar
	KindFunction
	KindTypedef
	KindStruct
	KindUnion
)

var kindNames = [...]string{
	KindConstant: "constant",
	KindVar:      "var",
	KindFunction: "function",
	KindTypedef:  "typedef",
	KindStruct:   "struct",
	KindUnion:    "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind?"
}

// OptionName is the command-line option selecting this kind, e.g. "include-function".
func (k Kind) OptionName() string {
	return "include-" + k.String()
}

// Kinds lists every include kind.
func Kinds() []Kind {
	return []Kind{KindConstant, KindVar, KindFunction, KindTypedef, KindStruct, KindUnion}
}

// KindOf classifies a declaration. Enums, bitfield groups and the root have
// no include kind.
func KindOf(d *ast.Decl) (Kind, bool) {
	switch d.Kind {
	case ast.DeclConstant:
		return KindConstant, true
	case ast.DeclVariable:
		return KindVar, true
	case ast.DeclFunction:
		return KindFunction, true
	case ast.DeclTypedef:
		return KindTypedef, true
	case ast.DeclScoped:
		switch d.Scoped {
		case ast.ScopeStruct, ast.ScopeClass:
			return KindStruct, true
		case ast.ScopeUnion:
			return KindUnion, true
		}
	}
	return 0, false
}

// pattern is a compiled glob that remembers its source.
type pattern struct {
	glob.Glob
	src string
}

// Includes selects symbols by kind and name, and by glob patterns over names.
type Includes struct {
	names   map[Kind]map[string]bool
	include []pattern
	exclude []pattern

	used []ast.DeclID
}

// NewIncludes returns a selection that includes everything.
func NewIncludes() *Includes {
	return &Includes{names: make(map[Kind]map[string]bool)}
}

// Add includes a symbol of the given kind by exact name.
func (h *Includes) Add(kind Kind, name string) {
	set := h.names[kind]
	if set == nil {
		set = make(map[string]bool)
		h.names[kind] = set
	}
	set[name] = true
}

// AddPattern adds an include or exclude glob over symbol names.
func (h *Includes) AddPattern(src string, exclude bool) error {
	g, err := glob.Compile(src)
	if err != nil {
		return fmt.Errorf("bad symbol pattern %q: %w", src, err)
	}
	if exclude {
		h.exclude = append(h.exclude, pattern{Glob: g, src: src})
	} else {
		h.include = append(h.include, pattern{Glob: g, src: src})
	}
	return nil
}

// Enabled reports whether any name-based include option was given.
func (h *Includes) Enabled() bool {
	return len(h.names) > 0
}

// Included reports whether a symbol passes every selection rule.
func (h *Includes) Included(kind Kind, name string) bool {
	if h.Enabled() && !h.names[kind][name] {
		return false
	}
	if len(h.include) > 0 {
		matched := false
		for _, p := range h.include {
			if p.Match(name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, p := range h.exclude {
		if p.Match(name) {
			return false
		}
	}
	return true
}

// Key lists every selection rule in a stable order, one "<option>=<value>"
// per rule. Two selections with equal keys select the same symbols.
func (h *Includes) Key() []string {
	if h == nil {
		return nil
	}
	var out []string
	for _, k := range Kinds() {
		names := make([]string, 0, len(h.names[k]))
		for name := range h.names[k] {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			out = append(out, k.OptionName()+"="+name)
		}
	}
	for _, p := range h.include {
		out = append(out, "include-symbols="+p.src)
	}
	for _, p := range h.exclude {
		out = append(out, "exclude-symbols="+p.src)
	}
	return out
}

// Used returns the declarations the last Include pass kept, in visit order.
func (h *Includes) Used() []ast.DeclID {
	return h.used
}

// Include marks top-level declarations that are not selected. Record members
// are not filtered; enum constants are.
func Include(tree *ast.Tree, h *Includes, rep diag.Reporter) {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	h.used = h.used[:0]
	for _, id := range tree.Toplevel() {
		h.visit(tree, id, rep)
	}
}

func (h *Includes) visit(tree *ast.Tree, id ast.DeclID, rep diag.Reporter) {
	d := tree.Decl(id)
	if d == nil {
		return
	}
	if d.IsScoped(ast.ScopeEnum) {
		for _, m := range d.Members {
			h.visit(tree, m, rep)
		}
		return
	}
	kind, ok := KindOf(d)
	if !ok || (d.IsRecord() && d.IsAnonymous()) {
		return
	}
	if h.Included(kind, d.Name) {
		h.used = append(h.used, id)
		return
	}
	tree.AddAttr(id, ast.AttrSkip, "not included")
	diag.ReportInfo(rep, diag.FilterInfo, d.Pos, fmt.Sprintf("skipping %s %s: not included", kind, d.Name)).Emit()
}

// CheckPatterns compiles glob patterns and reports each bad one.
func CheckPatterns(h *Includes, patterns []string, exclude bool, rep diag.Reporter) bool {
	ok := true
	for _, p := range patterns {
		if err := h.AddPattern(p, exclude); err != nil {
			diag.ReportError(rep, diag.FilterBadPattern, source.NoPos, err.Error()).Emit()
			ok = false
		}
	}
	return ok
}
