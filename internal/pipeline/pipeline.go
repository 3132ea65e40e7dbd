// Package pipeline runs one translation unit through every stage, from the
// front end to written bindings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"hbind/internal/abi"
	"hbind/internal/ast"
	"hbind/internal/astbuild"
	"hbind/internal/cache"
	"hbind/internal/diag"
	"hbind/internal/emit"
	"hbind/internal/filter"
	"hbind/internal/frontend"
	"hbind/internal/frontend/ccfront"
	"hbind/internal/layout"
	"hbind/internal/naming"
	"hbind/internal/observ"
	"hbind/internal/source"
	"hbind/internal/trace"
	"hbind/internal/writer"
)

// Request describes one run. Several headers form one translation unit.
type Request struct {
	Headers      []string
	IncludePaths []string
	Defines      []string
	Args         []string
	Target       abi.Target

	// HeaderName overrides the binding group name derived from the first header.
	HeaderName   string
	Includes     *filter.Includes
	Capabilities *filter.Capabilities
	Jobs         int

	// Parser defaults to the cc front end reading from the file system.
	Parser frontend.Parser
	Cache  *cache.Cache
	// Version is part of the cache key.
	Version string

	// DumpIncludes, when set, receives the include options of every kept
	// declaration and the run stops after filtering.
	DumpIncludes io.Writer
	// StopAfter ends the run after the named stage. Only StageLayout and
	// StageEmit are meaningful.
	StopAfter Stage
	// Output is where bindings go; nil skips the write stage.
	Output *writer.Options

	Reporter diag.Reporter
	Progress ProgressSink
	Timer    *observ.Timer
}

// Laid is the layout of one top-level declaration.
type Laid struct {
	ID   ast.DeclID
	Name string
	Pos  source.Pos
	layout.DeclLayout
	Err error
}

// Result is what a run produced. Tree, Engine, Layouts and Names are nil
// when the sequence came from the cache.
type Result struct {
	Header   string
	Tree     *ast.Tree
	Engine   *layout.LayoutEngine
	Layouts  []Laid
	Names    *naming.Names
	Sequence *emit.Sequence
	Files    []string
	Cached   bool
	Timings  Timings
}

type runner struct {
	req    *Request
	rep    diag.Reporter
	run    *diag.Bag // diagnostics of this run, for the cache
	tracer trace.Tracer
	parent uint64
	timer  *observ.Timer
	label  string
	res    *Result
}

// Report forwards a diagnostic to the caller, keeps it for the cache and
// records it as a trace point.
func (r *runner) Report(code diag.Code, sev diag.Severity, primary source.Pos, msg string, notes []diag.Note) {
	r.req.Reporter.Report(code, sev, primary, msg, notes)
	r.run.Add(diag.Diagnostic{Severity: sev, Code: code, Message: msg, Primary: primary, Notes: notes})
	trace.Point(r.tracer, trace.ScopeStage, code.ID(), primary.String()+": "+msg, r.parent)
}

// Run executes the stages in order. Declarations that fail are reported and
// skipped; Run returns an error only when no tree could be built, the
// context was cancelled, or the output could not be written.
func Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Headers) == 0 {
		return nil, fmt.Errorf("%w: no input", frontend.ErrHeaderNotFound)
	}
	if req.Reporter == nil {
		req.Reporter = diag.NopReporter{}
	}
	if req.Timer == nil {
		req.Timer = observ.NewTimer()
	}
	if req.Target.PtrSize == 0 {
		req.Target = abi.X86_64Linux()
	}
	if req.Includes == nil {
		req.Includes = filter.NewIncludes()
	}
	if req.Parser == nil {
		req.Parser = ccfront.New(nil)
	}
	header := req.HeaderName
	if header == "" {
		header = naming.HeaderName(req.Headers[0])
	}

	r := &runner{
		req:    &req,
		run:    diag.NewBag(0),
		tracer: trace.FromContext(ctx),
		timer:  req.Timer,
		label:  req.Headers[0],
		res:    &Result{Header: header},
	}
	r.rep = r

	span := trace.Begin(r.tracer, trace.ScopeDriver, "hbind", 0).
		WithExtra("header", header).
		WithExtra("target", req.Target.Name)
	r.parent = span.ID()
	err := r.execute(ctx)
	detail := "ok"
	if err != nil {
		detail = err.Error()
	}
	span.End(detail)
	return r.res, err
}

func (r *runner) execute(ctx context.Context) error {
	var key cache.Digest
	useCache := r.req.Cache != nil && r.req.DumpIncludes == nil && r.req.StopAfter == ""
	if useCache {
		in, err := r.cacheInputs()
		if err != nil {
			useCache = false
		} else {
			key = cache.Key(in)
			if r.lookup(key) {
				return r.write(ctx)
			}
		}
	}

	var root frontend.Cursor
	if err := r.stage(ctx, StageParse, func(ctx context.Context) (string, error) {
		var err error
		root, err = r.parse(ctx)
		return "", err
	}); err != nil {
		return err
	}

	var tree *ast.Tree
	if err := r.stage(ctx, StageBuild, func(context.Context) (string, error) {
		var err error
		tree, err = astbuild.Build(root, astbuild.Options{Target: r.req.Target, Reporter: r.rep})
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len(tree.Toplevel())) + " declarations", nil
	}); err != nil {
		return err
	}
	r.res.Tree = tree

	if err := r.stage(ctx, StageFilter, func(context.Context) (string, error) {
		return r.filter(tree)
	}); err != nil {
		return err
	}
	if r.req.DumpIncludes != nil {
		return nil
	}

	engine := layout.New(r.req.Target, tree)
	r.res.Engine = engine
	if err := r.stage(ctx, StageLayout, func(ctx context.Context) (string, error) {
		return r.layout(ctx, engine)
	}); err != nil {
		return err
	}
	if r.req.StopAfter == StageLayout {
		return nil
	}

	if err := r.stage(ctx, StageNaming, func(ctx context.Context) (string, error) {
		names, err := naming.Assign(ctx, tree, naming.Options{
			Header:   r.res.Header,
			Jobs:     r.req.Jobs,
			Reporter: r.rep,
		})
		if err != nil {
			return "", err
		}
		r.res.Names = names
		return strconv.Itoa(names.Len()) + " names", nil
	}); err != nil {
		return err
	}

	if err := r.stage(ctx, StageEmit, func(context.Context) (string, error) {
		r.res.Sequence = emit.Emit(tree, r.res.Names, engine, emit.Options{Reporter: r.rep})
		return strconv.Itoa(len(r.res.Sequence.Units)) + " units", nil
	}); err != nil {
		return err
	}
	if r.req.StopAfter == StageEmit {
		return nil
	}

	if useCache && !r.run.HasErrors() {
		if err := r.req.Cache.Put(key, r.res.Sequence, r.run.Items()); err != nil {
			diag.ReportWarning(r.rep, diag.OutputInfo, source.NoPos,
				fmt.Sprintf("cannot store unit cache entry: %v", err)).Emit()
		}
	}
	return r.write(ctx)
}

// stage runs fn between progress events, under a trace span and a timer phase.
func (r *runner) stage(ctx context.Context, st Stage, fn func(context.Context) (string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.emit(Event{Stage: st, Status: StatusWorking})
	idx := r.timer.Begin(string(st))
	span := trace.Begin(r.tracer, trace.ScopeStage, string(st), r.parent)
	start := time.Now()

	note, err := fn(trace.WithParent(ctx, span))

	elapsed := time.Since(start)
	if err != nil {
		note = err.Error()
	}
	r.timer.End(idx, note)
	span.End(note)
	r.res.Timings.Set(st, elapsed)
	evt := Event{Stage: st, Status: StatusDone, Elapsed: elapsed}
	if err != nil {
		evt.Status, evt.Err = StatusError, err
	}
	r.emit(evt)
	return err
}

func (r *runner) emit(evt Event) {
	if r.req.Progress == nil {
		return
	}
	evt.File = r.label
	r.req.Progress.OnEvent(evt)
}

func (r *runner) parse(ctx context.Context) (frontend.Cursor, error) {
	out, err := r.req.Parser.Parse(ctx, frontend.Request{
		Headers:      r.req.Headers,
		IncludePaths: r.req.IncludePaths,
		Defines:      r.req.Defines,
		Args:         r.req.Args,
		Target:       r.req.Target,
	})
	var fatal *frontend.FatalError
	switch {
	case err == nil:
		r.messages(out.Messages)
		return out.Root, nil
	case errors.Is(err, frontend.ErrHeaderNotFound):
		diag.ReportError(r.rep, diag.InputNotReadable, source.NoPos, err.Error()).Emit()
	case errors.Is(err, frontend.ErrUnsupportedLanguage):
		diag.ReportError(r.rep, diag.FrontUnsupportedLanguage, source.NoPos, err.Error()).Emit()
	case errors.As(err, &fatal):
		r.messages(fatal.Messages)
		msg := "front end failed"
		if fatal.Err != nil {
			msg += ": " + fatal.Err.Error()
		}
		diag.ReportError(r.rep, diag.FrontFatal, source.NoPos, msg).Emit()
	}
	return nil, err
}

func (r *runner) messages(msgs []frontend.Message) {
	for _, m := range msgs {
		code := diag.FrontInfo
		switch {
		case m.Severity >= diag.SevError:
			code = diag.FrontError
		case m.Severity == diag.SevWarning:
			code = diag.FrontWarning
		}
		diag.NewReportBuilder(r.rep, m.Severity, code, m.Pos, m.Text).Emit()
	}
}

func (r *runner) filter(tree *ast.Tree) (string, error) {
	dups := filter.Dedup(tree)
	filter.Include(tree, r.req.Includes, r.rep)
	if r.req.DumpIncludes != nil {
		return "dump includes", filter.DumpIncludes(r.req.DumpIncludes, tree, r.req.Includes.Used())
	}
	caps := filter.DefaultCapabilities(r.req.Target)
	if r.req.Capabilities != nil {
		caps = *r.req.Capabilities
	}
	unsupported := filter.Unsupported(tree, caps, r.rep)
	missing := filter.MissingDeps(tree, r.rep)
	return fmt.Sprintf("%d duplicate, %d unsupported, %d bad include", dups, unsupported, missing), nil
}

// layout annotates every kept top-level declaration. Workers write into
// slots indexed by declaration order, so the result matches a sequential run.
func (r *runner) layout(ctx context.Context, engine *layout.LayoutEngine) (string, error) {
	tree := engine.Tree
	var ids []ast.DeclID
	for _, id := range tree.Toplevel() {
		if !tree.Skipped(id) {
			ids = append(ids, id)
		}
	}
	jobs := r.req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	slots := make([]Laid, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(ids))))
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d := tree.Decl(id)
			sp := trace.Child(gctx, trace.ScopeDecl, strings.TrimSpace(d.KindName()+" "+d.Name))
			dl, err := engine.Annotate(id)
			if err != nil {
				sp.WithExtra("error", err.Error())
			}
			sp.End("")
			slots[i] = Laid{ID: id, Name: d.Name, Pos: d.Pos, DeclLayout: dl, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	r.res.Layouts = slots
	failed := 0
	for _, s := range slots {
		if s.Err != nil {
			failed++
		}
	}
	return fmt.Sprintf("%d laid out, %d unlayoutable", len(slots)-failed, failed), nil
}

func (r *runner) write(ctx context.Context) error {
	if r.req.Output == nil {
		return nil
	}
	return r.stage(ctx, StageWrite, func(ctx context.Context) (string, error) {
		opts := *r.req.Output
		opts.Reporter = r.rep
		if opts.Package == "" {
			opts.Package = r.res.Header
		}
		files, err := writer.Write(ctx, r.res.Sequence, opts)
		r.res.Files = files
		return strconv.Itoa(len(files)) + " files", err
	})
}

func (r *runner) cacheInputs() (cache.Inputs, error) {
	in := cache.Inputs{
		Target:  r.req.Target.Name + "/" + r.req.Target.Bitfields.String(),
		Filters: r.req.Includes.Key(),
		Naming:  r.req.HeaderName,
		Version: r.req.Version,
	}
	for _, h := range r.req.Headers {
		data, err := os.ReadFile(h)
		if err != nil {
			return cache.Inputs{}, err
		}
		in.Headers = append(in.Headers, cache.Header{Path: h, Content: data})
	}
	for _, p := range r.req.IncludePaths {
		in.Args = append(in.Args, "-I"+p)
	}
	for _, d := range r.req.Defines {
		in.Args = append(in.Args, "-D"+d)
	}
	in.Args = append(in.Args, r.req.Args...)
	if r.req.Capabilities != nil {
		in.Filters = append(in.Filters, "capabilities=custom")
	}
	return in, nil
}

// lookup replays a cached sequence and its diagnostics.
func (r *runner) lookup(key cache.Digest) bool {
	span := trace.Begin(r.tracer, trace.ScopeStage, "cache", r.parent).WithExtra("key", key.String())
	payload, ok, err := r.req.Cache.Get(key)
	if err != nil {
		span.End(err.Error())
		diag.ReportWarning(r.rep, diag.InputInfo, source.NoPos,
			fmt.Sprintf("ignoring unreadable unit cache entry: %v", err)).Emit()
		return false
	}
	if !ok {
		span.End("miss")
		return false
	}
	span.End("hit")
	for _, d := range payload.Diagnostics {
		r.rep.Report(d.Code, d.Severity, d.Primary, d.Message, d.Notes)
	}
	r.res.Sequence = payload.Sequence
	r.res.Cached = true
	for _, st := range []Stage{StageParse, StageBuild, StageFilter, StageLayout, StageNaming, StageEmit} {
		r.emit(Event{Stage: st, Status: StatusCached})
	}
	return true
}
