package catalog

import "context"

type Repository interface {
	List(ctx context.Context) ([]Book, error)
	Get(ctx context.Context, id string) (Book, error)
	Insert(ctx context.Context, book Book) error
	// Update overwrites the book's fields and moves its stock to book.Stock.
	// It returns the book as stored and the stock delta that was applied.
	Update(ctx context.Context, book Book) (Book, int, error)
	Delete(ctx context.Context, id string) error
	// AdjustStock applies one delta and returns the book as stored afterwards.
	AdjustStock(ctx context.Context, id string, delta int) (Book, error)
	// AdjustStockBatch applies every adjustment or none of them. The returned
	// books follow the order of adjs.
	AdjustStockBatch(ctx context.Context, adjs []Adjustment) ([]Book, error)
}
