// Package writer renders an emitted unit sequence as Go bindings over
// github.com/jupiterrider/ffi, or as a JSON dump of the units.
package writer

import (
	"context"
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"hbind/internal/diag"
	"hbind/internal/emit"
	"hbind/internal/source"
)

// Mode selects what Write produces.
type Mode uint8

const (
	// ModeSource writes Go files only.
	ModeSource Mode = iota
	// ModeCompiled also builds the written package.
	ModeCompiled
)

func (m Mode) String() string {
	if m == ModeCompiled {
		return "compiled"
	}
	return "source"
}

// ParseMode accepts "source" and "compiled".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "source":
		return ModeSource, nil
	case "compiled":
		return ModeCompiled, nil
	}
	return ModeSource, fmt.Errorf("unknown output mode %q (want source or compiled)", s)
}

// Format selects the output representation.
type Format uint8

const (
	FormatGo Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "go"
}

// ParseFormat accepts "go" and "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "go":
		return FormatGo, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatGo, fmt.Errorf("unknown output format %q (want go or json)", s)
}

// Options configure rendering and writing.
type Options struct {
	Dir     string
	Package string // defaults to the header name
	// Library is the shared library the bindings load; empty derives
	// lib<header>.so (or the platform equivalent) at run time.
	Library        string
	Mode           Mode
	Format         Format
	SymbolsPerFile int // 0 keeps every function in functions.go
	GoTool         string
	Reporter       diag.Reporter
}

// File is one rendered output file.
type File struct {
	Name string
	Data []byte
}

// Render produces the output files for seq without touching the disk.
func Render(seq *emit.Sequence, opts Options) ([]File, error) {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	if opts.Format == FormatJSON {
		data, err := renderJSON(seq)
		if err != nil {
			return nil, &OutputError{Op: "format", Path: "units.json", Err: err}
		}
		return []File{{Name: "units.json", Data: data}}, nil
	}
	g := newGen(seq, opts)
	var out []File
	for _, f := range g.files() {
		data, err := format.Source(f.Data)
		if err != nil {
			return nil, &OutputError{Op: "format", Path: f.Name, Err: err}
		}
		out = append(out, File{Name: f.Name, Data: data})
	}
	return out, nil
}

// Write renders seq into opts.Dir and, in compiled mode, builds the result.
// It returns the paths written.
func Write(ctx context.Context, seq *emit.Sequence, opts Options) ([]string, error) {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	files, err := Render(seq, opts)
	if err != nil {
		return nil, err
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &OutputError{Op: "mkdir", Path: dir, Err: err}
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			diag.ReportError(opts.Reporter, diag.OutputWriteFailed, source.Pos{}, err.Error()).Emit()
			return paths, &OutputError{Op: "write", Path: path, Err: err}
		}
		paths = append(paths, path)
	}
	if opts.Mode == ModeCompiled && opts.Format == FormatGo {
		if err := compile(ctx, dir, packageName(seq, opts), opts.GoTool); err != nil {
			diag.ReportError(opts.Reporter, diag.OutputCompileFailed, source.Pos{}, err.Error()).Emit()
			return paths, &OutputError{Op: "compile", Path: dir, Err: err}
		}
	}
	return paths, nil
}

// packageName returns the Go package clause for seq.
func packageName(seq *emit.Sequence, opts Options) string {
	name := opts.Package
	if name == "" {
		name = strings.ToLower(seq.Header)
	}
	if !token.IsIdentifier(name) || strings.ContainsFunc(name, func(r rune) bool { return r > 127 }) {
		return "bindings"
	}
	return name
}
