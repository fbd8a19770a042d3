package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/application/apptest"
	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed() []domain.Book {
	return []domain.Book{
		{ID: "B1", Title: "The Go Programming Language", Author: "Donovan", Genre: "Programming", Price: price("10.00"), Stock: 5},
		{ID: "B2", Title: "Dune", Author: "Herbert", Genre: "Science Fiction", Price: price("7.50"), Stock: 1},
		{ID: "B3", Title: "Learning Go", Author: "Bodner", Genre: "programming", Price: price("12.00"), Stock: 0},
	}
}

type fixture struct {
	svc  *Service
	repo *memory.CatalogRepository
	pub  *apptest.Publisher
	tel  *apptest.Telemetry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memory.NewCatalogRepository(seed(), nil)
	pub := &apptest.Publisher{}
	tel := apptest.NewTelemetry(t)
	return fixture{
		svc:  NewService(repo, &apptest.Sequence{Prefix: "BK"}, pub, tel),
		repo: repo,
		pub:  pub,
		tel:  tel,
	}
}

func TestService_SearchIsCaseInsensitiveInCatalogOrder(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.SearchBooks(context.Background(), "GO")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B1", got[0].ID)
	assert.Equal(t, "B3", got[1].ID)

	got, err = f.svc.SearchBooks(context.Background(), "fiction")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B2", got[0].ID)

	got, err = f.svc.SearchBooks(context.Background(), "nothing like this")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_AddAssignsFreshID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.AddBook(ctx, BookInput{Title: " Refactoring ", Author: "Fowler", Genre: "Programming", Price: price("39.99"), Stock: 2})
	require.NoError(t, err)
	assert.Equal(t, "BK1", b.ID)
	assert.Equal(t, "Refactoring", b.Title)

	books, err := f.svc.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 4)
	assert.Equal(t, "BK1", books[3].ID)

	_, err = f.svc.AddBook(ctx, BookInput{Title: "Bad", Price: price("-1")})
	require.ErrorIs(t, err, domain.ErrInvalidPrice)
	_, err = f.svc.AddBook(ctx, BookInput{Title: "a,b", Price: price("1")})
	require.ErrorIs(t, err, domain.ErrInvalidField)
	assert.Equal(t, 2.0, f.tel.Value(t, "usecase_requests_total", map[string]string{"use_case": useCaseAdd, "outcome": "error"}))
	assert.Equal(t, 1.0, f.tel.Value(t, "usecase_requests_total", map[string]string{"use_case": useCaseAdd, "outcome": "success"}))
}

func TestService_UpdateOverwritesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.UpdateBook(ctx, "B2", BookInput{Title: "Dune Messiah", Author: "Herbert", Genre: "SF", Price: price("8.25"), Stock: 4})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", b.Title)

	got, err := f.svc.GetBook(ctx, "B2")
	require.NoError(t, err)
	assert.Equal(t, "SF", got.Genre)
	assert.True(t, got.Price.Equal(price("8.25")))
	assert.Equal(t, 4, got.Stock)

	events := f.pub.Events(domain.StockAdjustedEvent{}.EventName())
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].(domain.StockAdjustedEvent).Delta)

	_, err = f.svc.UpdateBook(ctx, "nope", BookInput{Title: "x", Price: price("1")})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_UpdateBookDeltaMatchesStoredStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.svc.AdjustStock(ctx, "B1", 1)
		}()
		go func() {
			defer wg.Done()
			b, err := f.svc.UpdateBook(ctx, "B1", BookInput{Title: "Go", Author: "Donovan", Genre: "Programming", Price: price("10.00"), Stock: 10})
			assert.NoError(t, err)
			assert.Equal(t, 10, b.Stock)
		}()
	}
	wg.Wait()

	sum := 0
	for _, e := range f.pub.Events(domain.StockAdjustedEvent{}.EventName()) {
		sum += e.(domain.StockAdjustedEvent).Delta
	}
	got, err := f.svc.GetBook(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, got.Stock-5, sum, "published deltas add up to the stored stock change")
}

func TestService_RemoveAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RemoveBook(ctx, "B1"))
	_, err := f.svc.GetBook(ctx, "B1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, f.svc.RemoveBook(ctx, "B1"), domain.ErrNotFound)
}

func TestService_AdjustStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.AdjustStock(ctx, "B1", -2)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Stock)

	_, err = f.svc.AdjustStock(ctx, "B2", -2)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	got, err := f.svc.GetBook(ctx, "B2")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	assert.Equal(t, 1.0, f.tel.Value(t, "stock_adjustments_total", map[string]string{"direction": "decrease"}))
	assert.Equal(t, 3.0, f.tel.Value(t, "book_stock_level", map[string]string{"book_id": "B1"}))
	assert.Equal(t, 1.0, f.tel.Value(t, "usecase_requests_total", map[string]string{"use_case": useCaseAdjust, "outcome": "error"}))
}

func TestService_ReserveAndReleaseAreAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, []domain.Adjustment{{BookID: "B1", Delta: 3}, {BookID: "B9", Delta: 1}})
	require.ErrorIs(t, err, domain.ErrNotFound)
	b1, _ := f.svc.GetBook(ctx, "B1")
	assert.Equal(t, 5, b1.Stock)
	assert.Empty(t, f.pub.Events())

	books, err := f.svc.Reserve(ctx, []domain.Adjustment{{BookID: "B1", Delta: 3}, {BookID: "B2", Delta: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, books[0].Stock)
	assert.Equal(t, 0, books[1].Stock)

	_, err = f.svc.Reserve(ctx, []domain.Adjustment{{BookID: "B1", Delta: 0}})
	require.ErrorIs(t, err, domain.ErrInvalidStock)

	books, err = f.svc.Release(ctx, []domain.Adjustment{{BookID: "B1", Delta: 3}, {BookID: "B2", Delta: 1}})
	require.NoError(t, err)
	assert.Equal(t, 5, books[0].Stock)
	assert.Equal(t, 1, books[1].Stock)

	assert.Len(t, f.pub.Events(domain.StockAdjustedEvent{}.EventName()), 4)
}

func TestService_PublishFailureDoesNotFailAdjustment(t *testing.T) {
	f := newFixture(t)
	f.pub.Err = errors.New("bus closed")

	b, err := f.svc.AdjustStock(context.Background(), "B1", 1)
	require.NoError(t, err)
	assert.Equal(t, 6, b.Stock)
	assert.Equal(t, 1.0, f.tel.Value(t, "external_requests_total", map[string]string{
		"peer": "outbox", "endpoint": "catalog.stock_adjusted", "outcome": "error",
	}))
}
