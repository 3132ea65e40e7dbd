package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"hbind/internal/source"
)

type goldenDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Message  string
}

// FormatShortDiagnostics renders diagnostics one per line in a stable order:
// "<severity> <ID> <path>:<line>:<col> <message>", notes as "note" lines.
// Paths are relative to baseDir when it is set. This is --diag-format short.
func FormatShortDiagnostics(diags []Diagnostic, baseDir string, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}

	rendered := make([]goldenDiagnostic, 0, len(diags))
	for i := range diags {
		rendered = appendDiagnostic(rendered, &diags[i], baseDir, includeNotes)
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})

	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "%s %s %s:%d:%d %s", d.Severity, d.Code, d.Path, d.Line, d.Column, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func appendDiagnostic(out []goldenDiagnostic, d *Diagnostic, baseDir string, includeNotes bool) []goldenDiagnostic {
	out = append(out, goldenDiagnostic{
		Severity: d.Severity.Label(),
		Code:     d.Code.ID(),
		Path:     displayPath(d.Primary, baseDir),
		Line:     d.Primary.Line,
		Column:   d.Primary.Col,
		Message:  sanitizeMessage(d.Message),
	})

	if includeNotes {
		for _, note := range d.Notes {
			out = append(out, goldenDiagnostic{
				Severity: "note",
				Code:     d.Code.ID(),
				Path:     displayPath(note.Pos, baseDir),
				Line:     note.Pos.Line,
				Column:   note.Pos.Col,
				Message:  sanitizeMessage(note.Msg),
			})
		}
	}

	return out
}

func displayPath(pos source.Pos, baseDir string) string {
	if pos.IsSynthetic() {
		return "<synthetic>"
	}
	if baseDir == "" {
		return normalizePath(pos.File)
	}
	return normalizePath(source.FormatPath(pos.File, "relative", baseDir))
}

func normalizePath(path string) string {
	p := filepath.ToSlash(path)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return p
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
