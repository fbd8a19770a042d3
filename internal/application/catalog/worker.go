package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/application"
	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	domoutbox "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const workerService = "catalog_worker"

// Worker feeds stock events into the low-stock use case.
type Worker struct {
	subscriber domoutbox.Subscriber
	useCase    application.UseCase[domain.StockAdjustedEvent, LowStockResult]
	tel        observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewWorker(
	subscriber domoutbox.Subscriber,
	useCase application.UseCase[domain.StockAdjustedEvent, LowStockResult],
	tel observability.Observability,
) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber:   subscriber,
		useCase:      useCase,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.useCase == nil {
		return
	}
	w.subscriber.Subscribe(domain.StockAdjustedEvent{}.EventName(), w.handleStockAdjusted)
}

func (w *Worker) handleStockAdjusted(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "catalog.worker.stock_adjusted"
	evt, ok := e.(domain.StockAdjustedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, application.SpanPrefix+"StockAdjusted",
		attribute.String("use_case", useCase),
		attribute.String("book.id", evt.BookID),
	)
	start := time.Now()
	outcome, status := "success", "OK"

	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("use_case", useCase),
		observability.F("book_id", evt.BookID),
	)
	ctx = logctx.With(ctx, logger)

	defer func() {
		lat := time.Since(start).Seconds()
		w.count(useCase, outcome)
		w.durHistogram.Observe(lat, observability.L("use_case", useCase))

		logger.Debug("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
			observability.F("stock", evt.Stock),
			observability.F("delta", evt.Delta),
		)
		if outcome == "error" {
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	res, err := w.useCase.Execute(ctx, evt)
	if err != nil {
		outcome, status = "error", "LOW_STOCK_CHECK_FAILED"
		return fmt.Errorf("catalog worker: low stock check: %w", err)
	}
	if res.Alert {
		status = "LOW_STOCK"
	}
	return nil
}

func (w *Worker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
