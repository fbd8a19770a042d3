package catalog

import (
	"context"

	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability/logctx"
)

const useCaseLowStock = "catalog.low_stock"

// LowStockResult tells whether an alert was raised for the event.
type LowStockResult struct {
	Alert bool
	Stock int
}

// LowStockUseCase raises an alert when a decrease leaves a book at or below
// the threshold.
type LowStockUseCase struct {
	threshold int
	log       observability.Logger
	alerts    observability.Counter // low_stock_alerts_total
}

func NewLowStockUseCase(threshold int, tel observability.Observability) *LowStockUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &LowStockUseCase{
		threshold: threshold,
		log:       tel.Logger().With(observability.F("service", catalogService)),
		alerts:    tel.Metrics().Counter(observability.MLowStockAlerts),
	}
}

func (uc *LowStockUseCase) Execute(ctx context.Context, evt domain.StockAdjustedEvent) (LowStockResult, error) {
	res := LowStockResult{Stock: evt.Stock}
	if evt.Delta >= 0 || evt.Stock > uc.threshold {
		return res, nil
	}
	res.Alert = true
	uc.alerts.Add(1)
	logctx.FromOr(ctx, uc.log).Warn("low_stock",
		observability.F("book_id", evt.BookID),
		observability.F("title", evt.Title),
		observability.F("stock", evt.Stock),
		observability.F("threshold", uc.threshold),
	)
	return res, nil
}
