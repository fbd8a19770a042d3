package order

import (
	"context"

	domcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
)

type IDGenerator interface {
	NewID() string
}

// StockPort reserves and releases stock for whole orders. Both calls take
// positive quantities and apply all of them or none.
type StockPort interface {
	Reserve(ctx context.Context, items []domcatalog.Adjustment) ([]domcatalog.Book, error)
	Release(ctx context.Context, items []domcatalog.Adjustment) ([]domcatalog.Book, error)
}
