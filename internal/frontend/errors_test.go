package frontend

import (
	"errors"
	"testing"

	"hbind/internal/diag"
)

func TestCheckLanguage(t *testing.T) {
	tests := []struct {
		header string
		args   []string
		ok     bool
	}{
		{"foo.h", nil, true},
		{"foo.H", []string{"-x", "c"}, true},
		{"foo.hpp", nil, false},
		{"foo.h", []string{"-x", "c++"}, false},
		{"foo.h", []string{"-xobjective-c"}, false},
	}
	for _, tt := range tests {
		err := CheckLanguage(tt.header, tt.args)
		if tt.ok && err != nil {
			t.Errorf("%s %v: unexpected error %v", tt.header, tt.args, err)
		}
		if !tt.ok && !errors.Is(err, ErrUnsupportedLanguage) {
			t.Errorf("%s %v: got %v, want ErrUnsupportedLanguage", tt.header, tt.args, err)
		}
	}
}

func TestFatalErrorIsDistinct(t *testing.T) {
	var err error = &FatalError{
		Messages: []Message{{Severity: diag.SevError, Text: "expected ';'"}},
		Err:      errors.New("parse failed"),
	}
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("errors.As failed")
	}
	if errors.Is(err, ErrHeaderNotFound) || errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("fatal error must not match the other classes")
	}
}

func TestNodeOptionalFields(t *testing.T) {
	n := &Node{K: CursorField, N: "x"}
	if _, ok := n.BitWidth(); ok {
		t.Fatalf("plain field reported as bitfield")
	}
	if _, ok := n.BitOffset(); ok {
		t.Fatalf("offset reported without HasOffset")
	}
	if n.Type() != nil {
		t.Fatalf("nil type must be a nil interface")
	}
	bf := &Node{K: CursorField, Bitfield: true, Width: 0}
	if w, ok := bf.BitWidth(); !ok || w != 0 {
		t.Fatalf("zero-width bitfield lost")
	}
}
