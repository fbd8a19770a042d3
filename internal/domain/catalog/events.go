package catalog

import "time"

// StockAdjustedEvent is emitted after a stock change has been persisted.
type StockAdjustedEvent struct {
	BookID     string
	Title      string
	Delta      int
	Stock      int
	OccurredAt time.Time
}

func (StockAdjustedEvent) EventName() string { return "catalog.stock_adjusted" }

func NewStockAdjustedEvent(b Book, delta int) StockAdjustedEvent {
	return StockAdjustedEvent{
		BookID:     b.ID,
		Title:      b.Title,
		Delta:      delta,
		Stock:      b.Stock,
		OccurredAt: time.Now().UTC(),
	}
}
