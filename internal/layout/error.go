package layout

import (
	"errors"
	"fmt"
	"strings"

	"hbind/internal/ast"
	"hbind/internal/types"
)

// LayoutErrorKind enumerates why a layout could not be computed. The set is
// closed: callers choose how to degrade by kind.
type LayoutErrorKind uint8

const (
	// LayoutErrInvalid covers malformed or unsupported types, including a
	// record that contains itself by value.
	LayoutErrInvalid LayoutErrorKind = iota + 1
	// LayoutErrIncomplete is a forward-declared record, an incomplete array or void.
	LayoutErrIncomplete
	// LayoutErrDependent means the layout needs information the front end did not resolve.
	LayoutErrDependent
	// LayoutErrNotConstantSize is a variably modified type.
	LayoutErrNotConstantSize
	// LayoutErrInvalidFieldName is a field lookup by a name the record does not have.
	LayoutErrInvalidFieldName
)

var kindNames = [...]string{
	LayoutErrInvalid:          "invalid",
	LayoutErrIncomplete:       "incomplete",
	LayoutErrDependent:        "dependent",
	LayoutErrNotConstantSize:  "not-constant-size",
	LayoutErrInvalidFieldName: "invalid-field-name",
}

func (k LayoutErrorKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("LayoutErrorKind(%d)", k)
}

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind   LayoutErrorKind
	Type   types.TypeID
	Decl   ast.DeclID     // record or field the error was found in, if any
	Field  string         // for LayoutErrInvalidFieldName
	Reason string         // free-form detail
	Cycle  []types.TypeID // by-value recursion path
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrInvalid:
		if len(e.Cycle) > 0 {
			parts := make([]string, 0, len(e.Cycle))
			for _, id := range e.Cycle {
				parts = append(parts, fmt.Sprintf("type#%d", id))
			}
			return fmt.Sprintf("record contains itself by value (cycle: %s)", strings.Join(parts, " -> "))
		}
		return fmt.Sprintf("invalid layout (type#%d): %s", e.Type, e.Reason)
	case LayoutErrIncomplete:
		return fmt.Sprintf("incomplete type has no layout (type#%d): %s", e.Type, e.Reason)
	case LayoutErrDependent:
		return fmt.Sprintf("layout depends on unresolved information (type#%d): %s", e.Type, e.Reason)
	case LayoutErrNotConstantSize:
		return fmt.Sprintf("type has no constant size (type#%d): %s", e.Type, e.Reason)
	case LayoutErrInvalidFieldName:
		return fmt.Sprintf("no field %q in type#%d", e.Field, e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}

// KindOf returns the layout error kind carried by err.
func KindOf(err error) (LayoutErrorKind, bool) {
	var le *LayoutError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return 0, false
}

func errorf(kind LayoutErrorKind, typ types.TypeID, format string, args ...any) *LayoutError {
	return &LayoutError{Kind: kind, Type: typ, Reason: fmt.Sprintf(format, args...)}
}
