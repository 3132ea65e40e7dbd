package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota // no tracing
	LevelError               // keep a ring, write it only when the run fails
	LevelPhase               // driver and stage boundaries
	LevelDetail              // plus one span per declaration
	LevelDebug               // plus a point per diagnostic
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelPhase:
		return "phase"
	case LevelDetail:
		return "detail"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level. "stage" is accepted for "phase".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "off", "":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "phase", "stage":
		return LevelPhase, nil
	case "detail":
		return LevelDetail, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|phase|detail|debug)", s)
	}
}

// ShouldEmit reports whether a span of the given scope is recorded at this
// level. The ring kept by LevelError records everything up to declarations.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelPhase:
		return scope <= ScopeStage
	case LevelError, LevelDetail, LevelDebug:
		return scope <= ScopeDecl
	}
	return false
}

// ShouldEmitPoint reports whether instant events are recorded.
func (l Level) ShouldEmitPoint() bool {
	return l >= LevelDebug
}
