package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hbind/internal/diag"
	"hbind/internal/observ"
	"hbind/internal/pipeline"
	"hbind/internal/source"
	"hbind/internal/trace"
	"hbind/internal/writer"
)

// session is the state shared by the commands that run the pipeline.
type session struct {
	opts   *options
	glob   globals
	fs     *source.FileSet
	bag    *diag.Bag
	rep    diag.Reporter
	tracer trace.Tracer
	close  func()
}

// openSession reads flags and the project file and sets up tracing.
func openSession(cmd *cobra.Command, args []string) (*session, error) {
	o, err := readOptions(cmd, args)
	if err != nil {
		return nil, usageError(err)
	}
	g, err := readGlobals(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	if err := mergeConfig(o, cfg, cmd.Flags().Changed); err != nil {
		return nil, err
	}
	tracer, cleanup, err := setupTracing(cmd)
	if err != nil {
		return nil, err
	}
	bag := diag.NewBag(0)
	s := &session{
		opts:   o,
		glob:   g,
		fs:     source.NewFileSet(),
		bag:    bag,
		rep:    diag.NewDedupReporter(diag.BagReporter{Bag: bag}),
		tracer: tracer,
		close:  cleanup,
	}
	if cfg != nil {
		diag.ReportInfo(s.rep, diag.ConfigInfo, source.NoPos, "using "+cfg.Path).Emit()
	}
	return s, nil
}

// run executes req, with the progress view when enabled.
func (s *session) run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	req.Timer = observ.NewTimer()
	var (
		res *pipeline.Result
		err error
	)
	if s.glob.ui.draws(s.glob.quiet) {
		res, err = runWithUI(ctx, filepath.Base(req.Headers[0]), req)
	} else {
		res, err = pipeline.Run(ctx, req)
	}
	if s.glob.timings && !s.glob.quiet {
		fmt.Fprint(os.Stderr, req.Timer.Summary())
	}
	return res, err
}

// finish prints diagnostics and turns the outcome of a run into the
// command's error.
func (s *session) finish(w io.Writer, runErr error) error {
	defer s.close()
	if err := printDiagnostics(w, s.bag, s.fs, s.glob); err != nil {
		return err
	}
	failed := runErr != nil || s.bag.HasErrors()
	if failed {
		dumpTrace(w, s.tracer)
	}
	switch {
	case runErr == nil && s.bag.HasErrors():
		return errDiagnostics
	case runErr != nil && s.bag.HasErrors() && !errors.Is(runErr, context.Canceled):
		return &reportedError{err: runErr}
	}
	return runErr
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	req, err := buildRequest(s.opts, s.fs, s.rep)
	if err != nil {
		return s.finish(cmd.ErrOrStderr(), err)
	}

	if path := s.opts.dumpIncludes; path != "" {
		w, closeDump, err := openDump(path, cmd.OutOrStdout())
		if err != nil {
			return s.finish(cmd.ErrOrStderr(), err)
		}
		req.DumpIncludes = w
		_, runErr := s.run(cmd.Context(), req)
		if err := closeDump(); err != nil && runErr == nil {
			runErr = &writer.OutputError{Op: "write", Path: path, Err: err}
		}
		return s.finish(cmd.ErrOrStderr(), runErr)
	}

	res, runErr := s.run(cmd.Context(), req)
	if err := s.finish(cmd.ErrOrStderr(), runErr); err != nil {
		return err
	}
	if !s.glob.quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), writeSummary(res, req.Output.Dir))
	}
	return nil
}

// openDump opens the --dump-includes destination; "-" is stdout.
func openDump(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, &writer.OutputError{Op: "create", Path: path, Err: err}
	}
	return f, f.Close, nil
}

func writeSummary(res *pipeline.Result, dir string) string {
	if res == nil {
		return ""
	}
	var size uint64
	for _, f := range res.Files {
		if st, err := os.Stat(f); err == nil {
			size += uint64(st.Size())
		}
	}
	from := "generated"
	if res.Cached {
		from = "cached"
	}
	units := 0
	if res.Sequence != nil {
		units = len(res.Sequence.Units)
	}
	return fmt.Sprintf("hbind: %s %s: %d units, %d files in %s (%s)",
		from, res.Header, units, len(res.Files), dir, humanize.Bytes(size))
}
