package main

import (
	"errors"

	"github.com/spf13/cobra"

	"hbind/internal/config"
	"hbind/internal/frontend"
	"hbind/internal/writer"
)

// Exit statuses.
const (
	exitOK       = 0
	exitFailed   = 1 // error diagnostics were reported
	exitUsage    = 2
	exitInput    = 3
	exitFrontEnd = 4
	exitRuntime  = 5
	exitOutput   = 6
)

// optionError marks a bad flag, argument or project file.
type optionError struct{ err error }

func (e *optionError) Error() string { return e.err.Error() }
func (e *optionError) Unwrap() error { return e.err }

func usageError(err error) error {
	if err == nil {
		return nil
	}
	return &optionError{err: err}
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(check(cmd, args))
	}
}

// errDiagnostics is returned after error diagnostics were printed.
var errDiagnostics = errors.New("errors reported")

// reportedError wraps a failure whose diagnostics were already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func isReported(err error) bool {
	var r *reportedError
	return errors.Is(err, errDiagnostics) || errors.As(err, &r)
}

// exitCode maps an error returned by a command to the process status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var (
		opt    *optionError
		cfg    *config.Error
		fatal  *frontend.FatalError
		output *writer.OutputError
	)
	switch {
	case errors.Is(err, errDiagnostics):
		return exitFailed
	case errors.As(err, &opt), errors.As(err, &cfg):
		return exitUsage
	case errors.Is(err, frontend.ErrHeaderNotFound), errors.Is(err, frontend.ErrUnsupportedLanguage):
		return exitInput
	case errors.As(err, &fatal):
		return exitFrontEnd
	case errors.As(err, &output):
		return exitOutput
	}
	return exitRuntime
}
