package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"hbind/internal/diag"
	"hbind/internal/source"
)

type palette struct {
	err, warn, info, code, path, caret *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:   color.New(color.FgRed, color.Bold),
		warn:  color.New(color.FgYellow, color.Bold),
		info:  color.New(color.FgCyan, color.Bold),
		code:  color.New(color.Faint),
		path:  color.New(color.Bold),
		caret: color.New(color.FgGreen, color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.code, p.path, p.caret} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty форматирует диагностики в человекочитаемый вид:
//
//	<path>:<line>:<col>: <SEV> <ID>: <message>
//
// затем строку исходника с ^ под колонкой и заметки. Позиции без файла
// печатаются с префиксом "hbind". fs may be nil.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		if d.Severity < opts.MinSeverity {
			continue
		}
		fmt.Fprintf(w, "%s: %s %s: %s\n",
			p.path.Sprint(location(d.Primary, opts.PathMode, opts.BaseDir)),
			p.severity(d.Severity).Sprint(d.Severity.String()),
			p.code.Sprint(d.Code.ID()),
			d.Message)
		if opts.ShowContext && fs != nil {
			context(w, fs, d.Primary, p)
		}
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			if n.Pos.IsSynthetic() {
				fmt.Fprintf(w, "  note: %s\n", n.Msg)
				continue
			}
			fmt.Fprintf(w, "  note: %s: %s\n", location(n.Pos, opts.PathMode, opts.BaseDir), n.Msg)
		}
	}
	if n := bag.Dropped(); n > 0 {
		fmt.Fprintf(w, "hbind: %d more diagnostics not shown\n", n)
	}
}

// Summary returns e.g. "2 errors, 1 warning", or "" when the bag is empty
// of errors and warnings.
func Summary(bag *diag.Bag) string {
	var parts []string
	if n := bag.Count(diag.SevError); n > 0 {
		parts = append(parts, plural(n, "error"))
	}
	if n := bag.Count(diag.SevWarning); n > 0 {
		parts = append(parts, plural(n, "warning"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func location(pos source.Pos, mode PathMode, baseDir string) string {
	if pos.IsSynthetic() {
		return "hbind"
	}
	path := source.FormatPath(pos.File, mode.String(), baseDir)
	switch {
	case pos.Line == 0:
		return path
	case pos.Col == 0:
		return fmt.Sprintf("%s:%d", path, pos.Line)
	}
	return fmt.Sprintf("%s:%d:%d", path, pos.Line, pos.Col)
}

// context prints the source line and a caret under pos. Tabs are kept so
// the caret lines up in a terminal.
func context(w io.Writer, fs *source.FileSet, pos source.Pos, p palette) {
	line, ok := fs.LineOf(pos)
	if !ok || strings.TrimSpace(line) == "" {
		return
	}
	fmt.Fprintf(w, "  %s\n", line)
	if pos.Col == 0 {
		return
	}
	var pad strings.Builder
	col := 1
	for _, r := range line {
		if col >= int(pos.Col) {
			break
		}
		if r == '\t' {
			pad.WriteByte('\t')
		} else {
			pad.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
		}
		col += len(string(r))
	}
	fmt.Fprintf(w, "  %s%s\n", pad.String(), p.caret.Sprint("^"))
}
