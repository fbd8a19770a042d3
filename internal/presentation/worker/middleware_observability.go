package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability/logctx"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects an event-scoped logger for worker executions:
// event_id (generated if empty), trace_id/span_id when valid, and the
// caller's low-cardinality attributes.
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	sc trace.SpanContext,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, len(attrs)+3)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if sc.HasTraceID() {
		fields = append(fields, observability.F("trace_id", sc.TraceID().String()))
	}
	if sc.HasSpanID() {
		fields = append(fields, observability.F("span_id", sc.SpanID().String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// EventMiddleware opens a consumer span per delivery and scopes the
// handler's logger to it. It plugs into the event bus as a middleware.
func EventMiddleware(tel observability.Observability) func(string, domoutbox.Handler) domoutbox.Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	base := tel.Logger().With(observability.F("component", "worker"))

	return func(eventName string, next domoutbox.Handler) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) error {
			ctx, span := tel.Tracer().Start(ctx, "EVENT "+eventName,
				attribute.String("messaging.system", "outbox"),
				attribute.String("messaging.operation", "process"),
				attribute.String("event", eventName),
			)
			defer span.End()

			ctx = WithEventContext(ctx, logctx.FromOr(ctx, base), span.SpanContext(), map[string]string{
				"event": eventName,
			})
			err := next(ctx, e)
			if err != nil {
				span.RecordError(err)
			}
			return err
		}
	}
}
