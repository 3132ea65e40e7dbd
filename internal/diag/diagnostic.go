package diag

import (
	"hbind/internal/source"
)

// Severity orders diagnostics; only SevError fails a run.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{
	SevInfo:    "INFO",
	SevWarning: "WARNING",
	SevError:   "ERROR",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}

// Label is the lower-case form used by the short format.
func (s Severity) Label() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	}
	return "info"
}

// Note attaches secondary context to a diagnostic.
type Note struct {
	Pos source.Pos
	Msg string
}

// Diagnostic is one finding reported by a pipeline stage.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Pos
	Notes    []Note
}
