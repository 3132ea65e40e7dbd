package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hbind/internal/trace"
)

// setupTracing inspects trace-related flags and attaches a tracer to the
// command context. It returns the tracer and a cleanup function.
func setupTracing(cmd *cobra.Command) (trace.Tracer, func(), error) {
	root := cmd.Root()
	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, nil, usageError(fmt.Errorf("invalid trace level: %w", err))
	}
	// --trace без уровня включает фазы
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		return trace.Nop, func() {}, nil
	}

	tracer, err := trace.New(trace.Config{Level: level, OutputPath: traceOutput})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	cleanup := func() {
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

// dumpTrace writes the retained events of an error-level tracer after a
// failed run. Streaming tracers have already written everything.
func dumpTrace(w io.Writer, tracer trace.Tracer) {
	ring, ok := tracer.(*trace.RingTracer)
	if !ok {
		return
	}
	fmt.Fprintln(w, "hbind: trace of the failed run:")
	if err := ring.Dump(w, trace.FormatText); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}
