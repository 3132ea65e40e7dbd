package trace

import "context"

// binding is the tracing state a context carries: where events go and which
// span new spans nest under.
type binding struct {
	tracer Tracer
	parent uint64
}

type bindingKey struct{}

func bindingOf(ctx context.Context) binding {
	if ctx != nil {
		if b, ok := ctx.Value(bindingKey{}).(binding); ok {
			return b
		}
	}
	return binding{tracer: Nop}
}

// FromContext returns the tracer bound to ctx, Nop when there is none.
func FromContext(ctx context.Context) Tracer {
	return bindingOf(ctx).tracer
}

// WithTracer binds t to ctx with no parent span. A nil t binds Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, bindingKey{}, binding{tracer: t})
}

// WithParent nests the spans begun through Child on the returned context
// under span.
func WithParent(ctx context.Context, span *Span) context.Context {
	b := bindingOf(ctx)
	b.parent = span.ID()
	return context.WithValue(ctx, bindingKey{}, b)
}

// Child begins a span on the tracer of ctx, under its parent span.
func Child(ctx context.Context, scope Scope, name string) *Span {
	b := bindingOf(ctx)
	return Begin(b.tracer, scope, name, b.parent)
}
