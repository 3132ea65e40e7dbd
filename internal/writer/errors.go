package writer

import "fmt"

// OutputError is returned when bindings cannot be written or compiled.
type OutputError struct {
	Op   string // "mkdir", "write", "format", "compile"
	Path string
	Err  error
}

func (e *OutputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("output %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("output %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }
