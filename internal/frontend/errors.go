package frontend

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"hbind/internal/diag"
	"hbind/internal/source"
)

var (
	// ErrHeaderNotFound is returned when an input header cannot be located.
	ErrHeaderNotFound = errors.New("header not found")
	// ErrUnsupportedLanguage is returned for inputs that are not C headers.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Message is one diagnostic produced by the front end.
type Message struct {
	Severity diag.Severity
	Pos      source.Pos
	Text     string
}

// FatalError is returned when the front end could not build any tree.
type FatalError struct {
	Messages []Message
	Err      error
}

func (e *FatalError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString("front end failed")
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	for _, m := range e.Messages {
		if m.Severity < diag.SevError {
			continue
		}
		fmt.Fprintf(&sb, "\n  %s: %s", m.Pos, m.Text)
	}
	return sb.String()
}

func (e *FatalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

var cxxExts = map[string]bool{
	".hpp": true, ".hh": true, ".hxx": true, ".h++": true,
	".cpp": true, ".cc": true, ".cxx": true, ".mm": true, ".m": true,
}

// CheckLanguage rejects C++ and Objective-C inputs, by extension or by an
// explicit -x flag among the front-end arguments.
func CheckLanguage(header string, args []string) error {
	if cxxExts[strings.ToLower(filepath.Ext(header))] {
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, header)
	}
	for i, a := range args {
		lang := ""
		switch {
		case a == "-x" && i+1 < len(args):
			lang = args[i+1]
		case strings.HasPrefix(a, "-x") && len(a) > 2:
			lang = a[2:]
		}
		if lang != "" && lang != "c" && lang != "c-header" {
			return fmt.Errorf("%w: -x %s", ErrUnsupportedLanguage, lang)
		}
	}
	return nil
}
