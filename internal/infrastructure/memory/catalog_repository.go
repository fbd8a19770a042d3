package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
)

// CatalogRepository keeps books in catalog order behind one lock. Every
// stock change, including the stock part of an update, goes through
// adjustLocked.
type CatalogRepository struct {
	mu    sync.RWMutex
	books []domain.Book
	index map[string]int
	sink  Snapshotter[domain.Book]
}

func NewCatalogRepository(initial []domain.Book, sink Snapshotter[domain.Book]) *CatalogRepository {
	r := &CatalogRepository{
		books: slices.Clone(initial),
		sink:  sink,
	}
	r.reindex()
	return r
}

func (r *CatalogRepository) List(ctx context.Context) ([]domain.Book, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.books), nil
}

func (r *CatalogRepository) Get(ctx context.Context, id string) (domain.Book, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return domain.Book{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return r.books[i], nil
}

func (r *CatalogRepository) Insert(ctx context.Context, book domain.Book) error {
	if book.ID == "" {
		return fmt.Errorf("catalog repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[book.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrConflict, book.ID)
	}

	prev := slices.Clone(r.books)
	r.books = append(r.books, book)
	r.index[book.ID] = len(r.books) - 1
	return r.persistLocked(ctx, prev)
}

// Update overwrites title, author, genre and price, and moves stock to the
// requested level through a stock adjustment.
func (r *CatalogRepository) Update(ctx context.Context, book domain.Book) (domain.Book, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[book.ID]
	if !ok {
		return domain.Book{}, 0, fmt.Errorf("%w: %s", domain.ErrNotFound, book.ID)
	}

	prev := slices.Clone(r.books)
	cur := &r.books[i]
	cur.Title, cur.Author, cur.Genre, cur.Price = book.Title, book.Author, book.Genre, book.Price
	delta := book.Stock - cur.Stock
	stored, err := r.adjustLocked(book.ID, delta)
	if err != nil {
		r.books = prev
		return domain.Book{}, 0, err
	}
	if err := r.persistLocked(ctx, prev); err != nil {
		return domain.Book{}, 0, err
	}
	return stored, delta, nil
}

func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	prev := slices.Clone(r.books)
	r.books = slices.Delete(r.books, i, i+1)
	r.reindex()
	return r.persistLocked(ctx, prev)
}

func (r *CatalogRepository) AdjustStock(ctx context.Context, id string, delta int) (domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := slices.Clone(r.books)
	book, err := r.adjustLocked(id, delta)
	if err != nil {
		return domain.Book{}, err
	}
	if err := r.persistLocked(ctx, prev); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// AdjustStockBatch applies the adjustments in order while holding the lock.
// On the first failure every adjustment already applied is reversed, in
// reverse order, and the original error is returned.
func (r *CatalogRepository) AdjustStockBatch(ctx context.Context, adjs []domain.Adjustment) ([]domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := slices.Clone(r.books)
	out := make([]domain.Book, 0, len(adjs))
	for i, adj := range adjs {
		book, err := r.adjustLocked(adj.BookID, adj.Delta)
		if err != nil {
			r.compensateLocked(adjs[:i])
			return nil, err
		}
		out = append(out, book)
	}
	if err := r.persistLocked(ctx, prev); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CatalogRepository) adjustLocked(id string, delta int) (domain.Book, error) {
	i, ok := r.index[id]
	if !ok {
		return domain.Book{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err := r.books[i].AdjustStock(delta); err != nil {
		return domain.Book{}, err
	}
	return r.books[i], nil
}

func (r *CatalogRepository) compensateLocked(applied []domain.Adjustment) {
	for i := len(applied) - 1; i >= 0; i-- {
		// Reversing an applied delta always lands on a previously valid level.
		_, _ = r.adjustLocked(applied[i].BookID, -applied[i].Delta)
	}
}

// persistLocked hands a snapshot to the sink and restores prev when the
// write fails, so memory never runs ahead of the file.
func (r *CatalogRepository) persistLocked(ctx context.Context, prev []domain.Book) error {
	if r.sink == nil {
		return nil
	}
	if err := r.sink.Save(ctx, slices.Clone(r.books)); err != nil {
		r.books = prev
		r.reindex()
		return fmt.Errorf("catalog repository: persist: %w", err)
	}
	return nil
}

func (r *CatalogRepository) reindex() {
	r.index = make(map[string]int, len(r.books))
	for i, b := range r.books {
		r.index[b.ID] = i
	}
}
