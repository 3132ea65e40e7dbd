package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"hbind/internal/cache"
	"hbind/internal/diag"
	"hbind/internal/frontend"
	"hbind/internal/source"
	"hbind/internal/trace"
	"hbind/internal/writer"
)

func pos(line uint32) source.Pos {
	return source.Pos{File: "geo.h", Line: line, Col: 1}
}

func intT() *frontend.TypeNode {
	return &frontend.TypeNode{K: frontend.TypeInt, Spell: "int", Sz: 4, Al: 4, Complete: true}
}

// geometry is:
//
//	struct Point { int x; int y; };
//	int area(struct Point p);
//	long double precise(void);
//	#define ANSWER 42
func geometry() *frontend.Node {
	point := &frontend.Node{K: frontend.CursorStruct, N: "Point", P: pos(1), Def: true, Kids: []*frontend.Node{
		{K: frontend.CursorField, N: "x", P: pos(1), T: intT()},
		{K: frontend.CursorField, N: "y", P: pos(1), T: intT()},
	}}
	point.T = &frontend.TypeNode{K: frontend.TypeRecord, Spell: "Point", D: point, Sz: -1, Al: -1}

	areaT := &frontend.TypeNode{K: frontend.TypeFunction, Res: intT(), Ps: []*frontend.TypeNode{point.T}, PNames: []string{"p"}}
	area := &frontend.Node{
		K: frontend.CursorFunction, N: "area", P: pos(2), Link: frontend.LinkageExternal, T: areaT,
		Kids: []*frontend.Node{{K: frontend.CursorParam, N: "p", P: pos(2), T: point.T}},
	}
	ld := &frontend.TypeNode{K: frontend.TypeLongDouble, Spell: "long double", Sz: 16, Al: 16, Complete: true}
	precise := &frontend.Node{
		K: frontend.CursorFunction, N: "precise", P: pos(3), Link: frontend.LinkageExternal,
		T: &frontend.TypeNode{K: frontend.TypeFunction, Res: ld},
	}
	answer := &frontend.Node{K: frontend.CursorMacro, N: "ANSWER", P: pos(4),
		MacroVal: frontend.MacroValue{Kind: frontend.MacroInt, Int: 42}}
	return &frontend.Node{K: frontend.CursorTranslationUnit, Kids: []*frontend.Node{point, area, precise, answer}}
}

type recorder struct {
	events []Event
}

func (r *recorder) OnEvent(evt Event) { r.events = append(r.events, evt) }

func TestRunProducesOrderedUnits(t *testing.T) {
	bag := diag.NewBag(0)
	rec := &recorder{}
	res, err := Run(context.Background(), Request{
		Headers:  []string{"geo.h"},
		Parser:   frontend.Static(geometry()),
		Reporter: diag.BagReporter{Bag: bag},
		Progress: rec,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Header != "geo_h" || res.Sequence.Header != "geo_h" {
		t.Fatalf("header = %q / %q", res.Header, res.Sequence.Header)
	}
	var names []string
	for _, u := range res.Sequence.Units {
		names = append(names, u.Name)
	}
	pi, ai := slices.Index(names, "Point"), slices.Index(names, "area")
	if pi < 0 || ai < 0 || pi > ai {
		t.Fatalf("units = %v, want Point before area", names)
	}
	if slices.Contains(names, "precise") {
		t.Fatalf("long double function was not filtered: %v", names)
	}
	if !slices.Contains(names, "ANSWER") {
		t.Fatalf("macro constant missing: %v", names)
	}
	if !bag.HasWarnings() || bag.HasErrors() {
		t.Fatalf("want a warning for precise and no errors, got %v", bag.Items())
	}

	want := []Stage{StageParse, StageBuild, StageFilter, StageLayout, StageNaming, StageEmit}
	if len(rec.events) != 2*len(want) {
		t.Fatalf("got %d events, want %d", len(rec.events), 2*len(want))
	}
	for i, st := range want {
		begin, end := rec.events[2*i], rec.events[2*i+1]
		if begin.Stage != st || begin.Status != StatusWorking || end.Stage != st || end.Status != StatusDone {
			t.Fatalf("events for %s = %+v, %+v", st, begin, end)
		}
		if end.File != "geo.h" {
			t.Fatalf("event file = %q", end.File)
		}
		if !res.Timings.Has(st) {
			t.Fatalf("no timing for %s", st)
		}
	}
	if res.Timings.Has(StageWrite) {
		t.Fatalf("write stage ran without output options")
	}
}

func TestLayoutDoesNotDependOnJobs(t *testing.T) {
	run := func(jobs int) []Laid {
		res, err := Run(context.Background(), Request{
			Headers:   []string{"geo.h"},
			Parser:    frontend.Static(geometry()),
			Jobs:      jobs,
			StopAfter: StageLayout,
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if res.Names != nil || res.Sequence != nil {
			t.Fatalf("run went past layout")
		}
		return res.Layouts
	}
	one, many := run(1), run(8)
	if len(one) != len(many) || len(one) == 0 {
		t.Fatalf("got %d and %d layouts", len(one), len(many))
	}
	for i := range one {
		if one[i].ID != many[i].ID || one[i].Name != many[i].Name {
			t.Fatalf("slot %d: %s vs %s", i, one[i].Name, many[i].Name)
		}
	}
	for _, l := range one {
		if l.Name == "Point" && (l.Layout == nil || l.Layout.Size != 8 || l.Layout.Align != 4) {
			t.Fatalf("Point layout = %+v", l.Layout)
		}
		if l.Name == "precise" {
			t.Fatalf("skipped declaration was laid out")
		}
	}
}

func TestDumpIncludesStopsAfterFilter(t *testing.T) {
	var sb strings.Builder
	res, err := Run(context.Background(), Request{
		Headers:      []string{"geo.h"},
		Parser:       frontend.Static(geometry()),
		DumpIncludes: &sb,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Sequence != nil || res.Engine != nil {
		t.Fatalf("run went past filtering")
	}
	for _, want := range []string{"--include-function area", "--include-struct Point", "--include-constant ANSWER"} {
		if !strings.Contains(sb.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, sb.String())
		}
	}
}

func TestFatalFrontEndError(t *testing.T) {
	bag := diag.NewBag(0)
	msg := frontend.Message{Severity: diag.SevError, Pos: pos(7), Text: "expected ';'"}
	_, err := Run(context.Background(), Request{
		Headers:  []string{"geo.h"},
		Parser:   frontend.Static(nil, msg),
		Reporter: diag.BagReporter{Bag: bag},
	})
	var fatal *frontend.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("got %v, want *frontend.FatalError", err)
	}
	codes := make([]diag.Code, 0, bag.Len())
	for _, d := range bag.Items() {
		codes = append(codes, d.Code)
	}
	if !slices.Equal(codes, []diag.Code{diag.FrontError, diag.FrontFatal}) {
		t.Fatalf("codes = %v", codes)
	}
}

func TestMissingHeaderIsAnInputError(t *testing.T) {
	bag := diag.NewBag(0)
	parser := frontend.ParserFunc(func(context.Context, frontend.Request) (*frontend.Result, error) {
		return nil, frontend.ErrHeaderNotFound
	})
	_, err := Run(context.Background(), Request{Headers: []string{"nope.h"}, Parser: parser, Reporter: diag.BagReporter{Bag: bag}})
	if !errors.Is(err, frontend.ErrHeaderNotFound) {
		t.Fatalf("got %v", err)
	}
	if bag.Len() != 1 || bag.Items()[0].Code != diag.InputNotReadable {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
	if _, err := Run(context.Background(), Request{}); !errors.Is(err, frontend.ErrHeaderNotFound) {
		t.Fatalf("no headers: got %v", err)
	}
}

func TestCacheHitSkipsParsing(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "geo.h")
	if err := os.WriteFile(header, []byte("struct Point { int x, y; };\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := cache.Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	var parses atomic.Int32
	parser := frontend.ParserFunc(func(ctx context.Context, req frontend.Request) (*frontend.Result, error) {
		parses.Add(1)
		return frontend.Static(geometry()).Parse(ctx, req)
	})
	run := func() (*Result, *diag.Bag, *recorder) {
		bag := diag.NewBag(0)
		rec := &recorder{}
		res, err := Run(context.Background(), Request{
			Headers:  []string{header},
			Parser:   parser,
			Cache:    c,
			Version:  "test",
			Reporter: diag.BagReporter{Bag: bag},
			Progress: rec,
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return res, bag, rec
	}
	first, firstBag, _ := run()
	second, secondBag, rec := run()
	if parses.Load() != 1 {
		t.Fatalf("parsed %d times, want 1", parses.Load())
	}
	if first.Cached || !second.Cached {
		t.Fatalf("cached = %v, %v", first.Cached, second.Cached)
	}
	if len(second.Sequence.Units) != len(first.Sequence.Units) || second.Tree != nil {
		t.Fatalf("cached run = %+v", second)
	}
	if secondBag.Len() != firstBag.Len() {
		t.Fatalf("replayed %d diagnostics, want %d", secondBag.Len(), firstBag.Len())
	}
	for _, evt := range rec.events {
		if evt.Status != StatusCached {
			t.Fatalf("cached run reported %+v", evt)
		}
	}
}

func TestWriteStage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "gen")
	res, err := Run(context.Background(), Request{
		Headers: []string{"geo.h"},
		Parser:  frontend.Static(geometry()),
		Output:  &writer.Options{Dir: out},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Files) == 0 || !res.Timings.Has(StageWrite) {
		t.Fatalf("nothing written: %v", res.Files)
	}
	data, err := os.ReadFile(filepath.Join(out, "geo_h.go"))
	if err != nil {
		t.Fatalf("read loader: %v", err)
	}
	if !strings.Contains(string(data), "package geo_h") {
		t.Fatalf("package not derived from the header:\n%s", data)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Request{Headers: []string{"geo.h"}, Parser: frontend.Static(geometry())})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestStagesAreTraced(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)
	if _, err := Run(ctx, Request{Headers: []string{"geo.h"}, Parser: frontend.Static(geometry())}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var (
		stages, decls int
		layoutSpan    uint64
	)
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanBegin {
			switch {
			case ev.Scope == trace.ScopeStage && ev.Name == "layout":
				layoutSpan = ev.SpanID
			case ev.Scope == trace.ScopeDecl && ev.ParentID != layoutSpan:
				t.Fatalf("declaration span %q not under the layout stage", ev.Name)
			}
			continue
		}
		if ev.Kind != trace.KindSpanEnd {
			continue
		}
		switch ev.Scope {
		case trace.ScopeStage:
			stages++
		case trace.ScopeDecl:
			decls++
		}
	}
	if stages != 6 {
		t.Fatalf("got %d stage spans, want 6", stages)
	}
	if decls == 0 {
		t.Fatalf("no declaration spans at detail level")
	}
}
