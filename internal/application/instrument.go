package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	SpanPrefix     = "UC."
	publishPeer    = "outbox"
	PublishTimeout = 300 * time.Millisecond
)

// Instrumentation holds the RED instruments shared by every use case of one
// service.
type Instrumentation struct {
	tel observability.Observability
	log observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstrumentation(service string, tel observability.Observability) *Instrumentation {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Instrumentation{
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Logger returns the service logger.
func (in *Instrumentation) Logger() observability.Logger { return in.log }

// Metrics exposes the provider's instruments for domain specific series.
func (in *Instrumentation) Metrics() observability.Metrics { return in.tel.Metrics() }

// Call tracks one use case execution. End must be called exactly once.
type Call struct {
	in      *Instrumentation
	ctx     context.Context
	span    trace.Span
	logger  observability.Logger
	useCase string
	start   time.Time

	outcome string
	status  string
	fields  []observability.Field
}

// Start opens the UC.<spanName> span and returns a context carrying a logger
// scoped to the use case.
func (in *Instrumentation) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Call) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tel.Tracer().Start(ctx, SpanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)

	return ctx, &Call{
		in:      in,
		ctx:     ctx,
		span:    span,
		logger:  logger,
		useCase: useCase,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

// Fail marks the call as failed with a machine readable status.
func (c *Call) Fail(status string) {
	c.outcome, c.status = "error", status
}

// Status overrides the status text without changing the outcome.
func (c *Call) Status(status string) { c.status = status }

// Field adds a field to the use_case_done log line.
func (c *Call) Field(key string, value any) {
	c.fields = append(c.fields, observability.F(key, value))
}

// Span returns the use case span.
func (c *Call) Span() trace.Span { return c.span }

// Logger returns the use case scoped logger.
func (c *Call) Logger() observability.Logger { return c.logger }

// End closes the span, records RED metrics and logs use_case_done.
func (c *Call) End(err error) {
	if err != nil && c.outcome == "success" {
		c.Fail("ERROR")
	}
	lat := time.Since(c.start).Seconds()

	if c.span != nil {
		if err != nil {
			c.span.RecordError(err)
			c.span.SetStatus(codes.Error, c.status)
		} else {
			c.span.SetStatus(codes.Ok, c.status)
		}
		c.span.End()
	}

	c.in.reqCounter.Add(1,
		observability.L("use_case", c.useCase),
		observability.L("outcome", c.outcome),
	)
	c.in.durHistogram.Observe(lat,
		observability.L("use_case", c.useCase),
	)

	fields := append([]observability.Field{
		observability.F("outcome", c.outcome),
		observability.F("status", c.status),
		observability.F("latency_seconds", lat),
	}, c.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
		c.logger.Warn("use_case_done", fields...)
		return
	}
	c.logger.Info("use_case_done", fields...)
}

// Publish hands an event to the publisher with a short timeout. Failures are
// counted and recorded on the call but never returned to the caller.
func (c *Call) Publish(pub domoutbox.Publisher, e domoutbox.Event) {
	if pub == nil || e == nil {
		return
	}
	endpoint := e.EventName()

	pubCtx, cancel := context.WithTimeout(c.ctx, PublishTimeout)
	start := time.Now()
	outcome := "success"

	err := pub.Publish(pubCtx, e)
	if err == nil && pubCtx.Err() != nil {
		err = pubCtx.Err()
		outcome = "canceled"
	} else if err != nil {
		outcome = "error"
	}
	cancel()

	c.in.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	c.in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
	)

	if err != nil {
		c.Field("event_publish_error", err.Error())
		c.Status("EVENT_PUBLISH_FAILED")
	}
	c.span.AddEvent(endpoint)
}
