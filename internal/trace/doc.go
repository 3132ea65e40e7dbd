// Package trace records spans of an hbind run: the driver, each pipeline
// stage and, at the finer levels, each top-level declaration.
//
// Enable tracing from the command line:
//
//	hbind --trace=- --trace-level=stage foo.h
//
// A Tracer travels in the context together with the span that new spans nest
// under:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	stage := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, "layout", parentID)
//	decl := trace.Child(trace.WithParent(ctx, stage), trace.ScopeDecl, "struct Point")
//	defer decl.End("")
//
// LevelError keeps events in a ring and writes them out only when the run
// fails; the other levels stream events as they happen.
package trace
