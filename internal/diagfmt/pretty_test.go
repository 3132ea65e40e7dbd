package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"hbind/internal/diag"
	"hbind/internal/source"
)

func sampleBag() *diag.Bag {
	bag := diag.NewBag(10)
	bag.Add(diag.New(diag.SevWarning, diag.FilterUnsupportedType,
		source.Pos{File: "/home/user/project/include/geo.h", Line: 2, Col: 13},
		"skipping precise: unsupported type usage: long double"))
	bag.Add(diag.New(diag.SevError, diag.FilterBadInclude,
		source.Pos{File: "/home/user/project/include/geo.h", Line: 3, Col: 1},
		"bad include: area depends on Point").
		WithNote(source.Pos{File: "/home/user/project/include/geo.h", Line: 1, Col: 8}, "Point is excluded here"))
	bag.Add(diag.New(diag.SevInfo, diag.ConfigInfo, source.NoPos, "using hbind.toml"))
	return bag
}

func TestPrettyLayout(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleBag(), nil, PrettyOpts{PathMode: PathModeRelative, BaseDir: "/home/user/project", ShowNotes: true})
	want := "include/geo.h:2:13: WARNING FLT5001: skipping precise: unsupported type usage: long double\n" +
		"include/geo.h:3:1: ERROR FLT5002: bad include: area depends on Point\n" +
		"  note: include/geo.h:1:8: Point is excluded here\n" +
		"hbind: INFO CFG9000: using hbind.toml\n"
	if got := buf.String(); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrettyPathModes(t *testing.T) {
	tests := []struct {
		mode     PathMode
		contains string
	}{
		{PathModeAbsolute, "/home/user/project/include/geo.h:2:13"},
		{PathModeRelative, "include/geo.h:2:13"},
		{PathModeBasename, "geo.h:2:13"},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, sampleBag(), nil, PrettyOpts{PathMode: tt.mode, BaseDir: "/home/user/project"})
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("output lacks %q:\n%s", tt.contains, buf.String())
			}
			if strings.Contains(buf.String(), "note:") {
				t.Errorf("notes shown without ShowNotes")
			}
		})
	}
}

func TestPrettyMinSeverityAndContext(t *testing.T) {
	fs := source.NewFileSet()
	fs.AddVirtual("/home/user/project/include/geo.h", []byte("struct Point { int x, y; };\nint area(struct Point p);\n\tlong double precise(void);\n"))
	bag := diag.NewBag(10)
	bag.Add(diag.New(diag.SevInfo, diag.NameInfo, source.Pos{File: "/home/user/project/include/geo.h", Line: 1, Col: 8}, "named"))
	bag.Add(diag.New(diag.SevWarning, diag.FilterUnsupportedType, source.Pos{File: "/home/user/project/include/geo.h", Line: 3, Col: 14}, "skipping precise"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{MinSeverity: diag.SevWarning, ShowContext: true, PathMode: PathModeBasename})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[1] != "  \tlong double precise(void);" {
		t.Fatalf("context line = %q", lines[1])
	}
	if lines[2] != "  \t"+strings.Repeat(" ", 12)+"^" {
		t.Fatalf("caret line = %q", lines[2])
	}
}

func TestPrettyColor(t *testing.T) {
	var plain, colored bytes.Buffer
	Pretty(&plain, sampleBag(), nil, PrettyOpts{})
	Pretty(&colored, sampleBag(), nil, PrettyOpts{Color: true})
	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatalf("escape codes without color")
	}
	if !strings.Contains(colored.String(), "\x1b[") {
		t.Fatalf("no escape codes with color")
	}
}

func TestSummary(t *testing.T) {
	if got := Summary(sampleBag()); got != "1 error, 1 warning" {
		t.Fatalf("got %q", got)
	}
	bag := diag.NewBag(0)
	if got := Summary(bag); got != "" {
		t.Fatalf("empty bag summary = %q", got)
	}
	bag.Add(diag.NewError(diag.OutputWriteFailed, source.NoPos, "a"))
	bag.Add(diag.NewError(diag.OutputWriteFailed, source.NoPos, "b"))
	if got := Summary(bag); got != "2 errors" {
		t.Fatalf("got %q", got)
	}
}
