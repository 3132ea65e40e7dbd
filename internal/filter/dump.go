package filter

import (
	"bufio"
	"cmp"
	"io"
	"slices"

	"github.com/mattn/go-runewidth"

	"hbind/internal/ast"
)

// DumpIncludes writes one include option per declaration, grouped by the
// header that declares it. The output can be edited and fed back as options.
func DumpIncludes(w io.Writer, tree *ast.Tree, ids []ast.DeclID) error {
	type entry struct {
		kind Kind
		name string
	}
	byPath := make(map[string][]entry)
	for _, id := range ids {
		d := tree.Decl(id)
		if d == nil || tree.Skipped(id) {
			continue
		}
		kind, ok := KindOf(d)
		if !ok {
			continue
		}
		byPath[d.Pos.File] = append(byPath[d.Pos.File], entry{kind, d.Name})
	}
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	bw := bufio.NewWriter(w)
	for i, path := range paths {
		entries := byPath[path]
		slices.SortStableFunc(entries, func(a, b entry) int {
			if c := cmp.Compare(a.kind, b.kind); c != 0 {
				return c
			}
			return cmp.Compare(a.name, b.name)
		})
		entries = slices.Compact(entries)

		width := 0
		for _, e := range entries {
			width = max(width, runewidth.StringWidth(e.name))
		}
		// "--" + the longest option name + a space
		width += 2 + len(KindFunction.OptionName()) + 1

		if i > 0 {
			bw.WriteString("\n")
		}
		label := path
		if label == "" {
			label = "<builtin>"
		}
		bw.WriteString("#### Extracted from: " + label + "\n\n")
		for _, e := range entries {
			opt := "--" + e.kind.OptionName() + " " + e.name
			bw.WriteString(runewidth.FillRight(opt, width) + " # header: " + label + "\n")
		}
	}
	return bw.Flush()
}
