// Package naming assigns canonical binding names to declarations.
//
// Names are kept in a side table; the declaration tree is never modified.
// Anonymous records and function-pointer types get synthetic names built from
// their enclosing declaration and their role in it, joined with '$':
//
//	struct S { struct { int a; } inner; };   // S$inner
//	struct { int x; } *make(void);           // make$return
//	void on(void (*done)(int));              // callback on$done
//
// Synthetic and type names are unique per scope, compared case-insensitively.
// A name that is already taken gets a "$<n>" suffix, where n counts collisions
// in declaration order.
package naming

import (
	"path/filepath"
	"strings"
	"unicode"

	"hbind/internal/ast"
)

// Callback names the function-pointer type of a declaration.
type Callback struct {
	Name string
	// Typedef is the typedef that introduced the callback when the declaration
	// merely uses it; NoDeclID when the declaration introduces it.
	Typedef ast.DeclID
}

// Introduced reports whether the callback belongs to the declaration itself.
func (c Callback) Introduced() bool { return !c.Typedef.IsValid() }

// Names is the result of Assign. It is read-only once returned.
type Names struct {
	// Header is the name of the binding group, e.g. "stdio_h".
	Header string

	decls     map[ast.DeclID]string
	callbacks map[ast.DeclID]Callback
}

func newNames(header string) *Names {
	return &Names{
		Header:    header,
		decls:     make(map[ast.DeclID]string),
		callbacks: make(map[ast.DeclID]Callback),
	}
}

// Of returns the canonical name of id.
func (n *Names) Of(id ast.DeclID) (string, bool) {
	if n == nil {
		return "", false
	}
	name, ok := n.decls[id]
	return name, ok
}

// Callback returns the callback assigned to a function-pointer typed
// declaration.
func (n *Names) Callback(id ast.DeclID) (Callback, bool) {
	if n == nil {
		return Callback{}, false
	}
	cb, ok := n.callbacks[id]
	return cb, ok
}

// Len returns the number of named declarations.
func (n *Names) Len() int {
	if n == nil {
		return 0
	}
	return len(n.decls)
}

// HeaderName derives the binding group name from a header path: "foo.h"
// becomes "foo_h". Characters that cannot appear in an identifier are
// replaced with '_'.
func HeaderName(path string) string {
	base := filepath.Base(path)
	base = strings.ReplaceAll(base, ".h", "_h")
	var sb strings.Builder
	for i, r := range base {
		switch {
		case r == '_' || unicode.IsLetter(r):
			sb.WriteRune(r)
		case i > 0 && unicode.IsDigit(r):
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}
