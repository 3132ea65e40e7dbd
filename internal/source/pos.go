package source

import (
	"cmp"
	"fmt"
)

// Pos is a source position as reported by the front end.
// An empty File marks a synthetic node (built-ins, lifted constants, group pseudo-members).
type Pos struct {
	File string
	Line uint32
	Col  uint32
}

// NoPos is the position of synthetic nodes.
var NoPos = Pos{}

// IsSynthetic reports whether the position has no backing file.
func (p Pos) IsSynthetic() bool {
	return p.File == ""
}

func (p Pos) String() string {
	if p.IsSynthetic() {
		return "<synthetic>"
	}
	if p.Line == 0 {
		return p.File
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Compare orders positions by file, line and column. Synthetic positions sort last
// so that tie-breaks never move a real declaration behind a generated one.
func (p Pos) Compare(other Pos) int {
	switch {
	case p.IsSynthetic() && other.IsSynthetic():
		return 0
	case p.IsSynthetic():
		return 1
	case other.IsSynthetic():
		return -1
	}
	if c := cmp.Compare(p.File, other.File); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Line, other.Line); c != 0 {
		return c
	}
	return cmp.Compare(p.Col, other.Col)
}

// Before reports whether p sorts strictly before other.
func (p Pos) Before(other Pos) bool {
	return p.Compare(other) < 0
}
