package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultInstrumentation = "bookstore"

type tracer struct{ t trace.Tracer }

// New returns a tracer resolved from the global provider. Without an SDK
// provider installed the spans are non-recording but still propagate.
func New(name string) observability.Tracer {
	if name == "" {
		name = defaultInstrumentation
	}
	return &tracer{t: otel.Tracer(name)}
}

// NewFromProvider binds to an explicit provider, used by tests and by
// deployments that install an SDK provider.
func NewFromProvider(tp trace.TracerProvider, name string) observability.Tracer {
	if tp == nil {
		return New(name)
	}
	if name == "" {
		name = defaultInstrumentation
	}
	return &tracer{t: tp.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
