package order

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const workerService = "order-worker"

// Worker follows order events and counts them per lifecycle step.
type Worker struct {
	subscriber domoutbox.Subscriber
	tel        observability.Observability

	log          observability.Logger
	lifecycle    observability.Counter   // orders_lifecycle_total{event}
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Worker{
		subscriber:   subscriber,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", workerService)),
		lifecycle:    m.Counter(observability.MOrderLifecycle),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderCreatedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(domorder.OrderCancelledEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(domorder.OrderStatusChangedEvent{}.EventName(), w.handle)
}

func (w *Worker) handle(ctx context.Context, e domoutbox.Event) error {
	const useCase = "order.worker.lifecycle"

	var (
		orderID string
		step    string
		fields  []observability.Field
	)
	switch evt := e.(type) {
	case domorder.OrderCreatedEvent:
		orderID, step = evt.OrderID, "created"
		fields = append(fields,
			observability.F("user_id", evt.UserID),
			observability.F("lines", evt.Lines),
			observability.F("total", evt.Total.StringFixed(2)),
		)
	case domorder.OrderCancelledEvent:
		orderID, step = evt.OrderID, "cancelled"
		fields = append(fields, observability.F("from", string(evt.From)))
	case domorder.OrderStatusChangedEvent:
		orderID, step = evt.OrderID, "status_"+string(evt.To)
		fields = append(fields,
			observability.F("from", string(evt.From)),
			observability.F("to", string(evt.To)),
		)
	default:
		w.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", "ignored"),
		)
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, application.SpanPrefix+"OrderLifecycle",
		attribute.String("use_case", useCase),
		attribute.String("event", e.EventName()),
		attribute.String("order.id", orderID),
	)
	start := time.Now()

	w.lifecycle.Add(1, observability.L("event", step))
	logctx.FromOr(ctx, w.log).Info("order_lifecycle",
		append([]observability.Field{
			observability.F("use_case", useCase),
			observability.F("order_id", orderID),
			observability.F("step", step),
		}, fields...)...,
	)

	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", "success"),
	)
	w.durHistogram.Observe(time.Since(start).Seconds(), observability.L("use_case", useCase))
	span.SetStatus(codes.Ok, "OK")
	span.End()
	return nil
}
