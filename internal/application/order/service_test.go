package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/application/apptest"
	appcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/application/catalog"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/clock"
	domcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"
	domuser "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type users map[string]bool

func (u users) GetUserByID(_ context.Context, id string) (domuser.User, error) {
	if !u[id] {
		return domuser.User{}, fmt.Errorf("%w: %s", domuser.ErrNotFound, id)
	}
	return domuser.User{ID: id, Username: id}, nil
}

type failingSink struct{ err error }

func (f *failingSink) Save(context.Context, []*domain.Order) error { return f.err }

// hookSink runs onSave in place of a snapshot write when set.
type hookSink struct{ onSave func() error }

func (h *hookSink) Save(context.Context, []*domain.Order) error {
	if h.onSave == nil {
		return nil
	}
	return h.onSave()
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

type fixture struct {
	ledger  *Ledger
	catalog *appcatalog.Service
	books   *memory.CatalogRepository
	orders  *memory.OrderRepository
	pub     *apptest.Publisher
}

func newFixture(t tb, books []domcatalog.Book, sink memory.Snapshotter[*domain.Order]) fixture {
	t.Helper()
	pub := &apptest.Publisher{}
	bookRepo := memory.NewCatalogRepository(books, nil)
	catalog := appcatalog.NewService(bookRepo, &apptest.Sequence{Prefix: "BK"}, pub, nil)
	orderRepo := memory.NewOrderRepository(nil, sink)
	ledger := NewLedger(orderRepo, catalog, users{"u1": true, "u2": true},
		&apptest.Sequence{Prefix: "ORD-"}, clock.NewFixed(now), pub, nil)
	return fixture{ledger: ledger, catalog: catalog, books: bookRepo, orders: orderRepo, pub: pub}
}

func defaultBooks() []domcatalog.Book {
	return []domcatalog.Book{
		{ID: "B1", Title: "One", Author: "A", Genre: "G", Price: decimal.RequireFromString("10.00"), Stock: 5},
		{ID: "B2", Title: "Two", Author: "A", Genre: "G", Price: decimal.RequireFromString("2.50"), Stock: 3},
	}
}

func (f fixture) stock(t tb, id string) int {
	t.Helper()
	b, err := f.books.Get(context.Background(), id)
	require.NoError(t, err)
	return b.Stock
}

func TestLedger_CreateAndCancelRestoresStock(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)
	ctx := context.Background()

	o, err := f.ledger.CreateOrder(ctx, "u1", []LineInput{{BookID: "B1", Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", o.ID)
	assert.Equal(t, "30.00", o.Total.StringFixed(2))
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, now.Truncate(time.Millisecond), o.CreatedAt)
	assert.Equal(t, 2, f.stock(t, "B1"))

	o, err = f.ledger.UpdateOrderStatus(ctx, o.ID, domain.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, o.Status)

	o, err = f.ledger.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, o.Status)
	assert.Equal(t, 5, f.stock(t, "B1"))

	o, err = f.ledger.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, o.Status)
	assert.Equal(t, 5, f.stock(t, "B1"), "a second cancel must not release again")

	assert.Len(t, f.pub.Events(domain.OrderCreatedEvent{}.EventName()), 1)
	assert.Len(t, f.pub.Events(domain.OrderCancelledEvent{}.EventName()), 1)
	assert.Len(t, f.pub.Events(domain.OrderStatusChangedEvent{}.EventName()), 1)
}

func TestLedger_CreateWithMissingBookRollsBack(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)

	_, err := f.ledger.CreateOrder(context.Background(), "u1", []LineInput{
		{BookID: "B1", Quantity: 3},
		{BookID: "B2-missing", Quantity: 1},
	})
	require.ErrorIs(t, err, domcatalog.ErrNotFound)
	assert.Equal(t, 5, f.stock(t, "B1"))

	all, err := f.ledger.GetAllOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLedger_CreateRejections(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		user   string
		lines  []LineInput
		target error
	}{
		{"insufficient stock", "u1", []LineInput{{BookID: "B2", Quantity: 1}, {BookID: "B1", Quantity: 6}}, domcatalog.ErrInsufficientStock},
		{"unknown user", "ghost", []LineInput{{BookID: "B1", Quantity: 1}}, domuser.ErrNotFound},
		{"empty order", "u1", nil, domain.ErrEmptyOrder},
		{"zero quantity", "u1", []LineInput{{BookID: "B1", Quantity: 0}}, domain.ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.CreateOrder(ctx, tc.user, tc.lines)
			require.ErrorIs(t, err, tc.target)
			assert.Equal(t, 5, f.stock(t, "B1"))
			assert.Equal(t, 3, f.stock(t, "B2"))
		})
	}
}

func TestLedger_TotalUsesPriceAtCallTime(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)
	ctx := context.Background()

	o, err := f.ledger.CreateOrder(ctx, "u1", []LineInput{{BookID: "B1", Quantity: 1}, {BookID: "B2", Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, "15.00", o.Total.StringFixed(2))

	_, err = f.catalog.UpdateBook(ctx, "B2", appcatalog.BookInput{Title: "Two", Author: "A", Genre: "G", Price: decimal.RequireFromString("9.99"), Stock: 1})
	require.NoError(t, err)

	stored, err := f.ledger.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "15.00", stored.Total.StringFixed(2))
	assert.True(t, stored.Lines[1].UnitPrice.Equal(decimal.RequireFromString("2.50")))
}

func TestLedger_CancelErrors(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)
	ctx := context.Background()

	_, err := f.ledger.CancelOrder(ctx, "ORD-404")
	require.ErrorIs(t, err, domain.ErrNotFound)

	done, err := f.ledger.CreateOrder(ctx, "u1", []LineInput{{BookID: "B2", Quantity: 1}})
	require.NoError(t, err)
	_, err = f.ledger.UpdateOrderStatus(ctx, done.ID, domain.StatusProcessing)
	require.NoError(t, err)
	_, err = f.ledger.UpdateOrderStatus(ctx, done.ID, domain.StatusCompleted)
	require.NoError(t, err)
	_, err = f.ledger.CancelOrder(ctx, done.ID)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, 2, f.stock(t, "B2"))

	gone, err := f.ledger.CreateOrder(ctx, "u1", []LineInput{{BookID: "B1", Quantity: 2}, {BookID: "B2", Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, f.catalog.RemoveBook(ctx, "B2"))

	_, err = f.ledger.CancelOrder(ctx, gone.ID)
	require.ErrorIs(t, err, domcatalog.ErrNotFound)
	assert.Equal(t, 3, f.stock(t, "B1"), "nothing is released when a book is gone")
	stored, err := f.ledger.GetOrder(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestLedger_UpdateOrderStatus(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)
	ctx := context.Background()

	o, err := f.ledger.CreateOrder(ctx, "u1", []LineInput{{BookID: "B1", Quantity: 2}})
	require.NoError(t, err)

	_, err = f.ledger.UpdateOrderStatus(ctx, o.ID, domain.StatusCompleted)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	same, err := f.ledger.UpdateOrderStatus(ctx, o.ID, domain.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, same.Status)

	cancelled, err := f.ledger.UpdateOrderStatus(ctx, o.ID, domain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.stock(t, "B1"))

	_, err = f.ledger.UpdateOrderStatus(ctx, "ORD-404", domain.StatusProcessing)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_MarkPaidOnlyForPendingOrders(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)
	ctx := context.Background()

	o, err := f.ledger.CreateOrder(ctx, "u1", []LineInput{{BookID: "B1", Quantity: 1}})
	require.NoError(t, err)

	calls := 0
	record := func(context.Context, *domain.Order) error { calls++; return nil }

	paid, err := f.ledger.MarkPaid(ctx, o.ID, record)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, paid.Status)

	_, err = f.ledger.MarkPaid(ctx, o.ID, record)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, 1, calls)

	other, err := f.ledger.CreateOrder(ctx, "u1", []LineInput{{BookID: "B1", Quantity: 1}})
	require.NoError(t, err)
	_, err = f.ledger.MarkPaid(ctx, other.ID, func(context.Context, *domain.Order) error { return errors.New("declined") })
	require.EqualError(t, err, "declined")
	stored, err := f.ledger.GetOrder(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestLedger_InsertFailureReleasesReservation(t *testing.T) {
	f := newFixture(t, defaultBooks(), &failingSink{err: errors.New("disk full")})

	_, err := f.ledger.CreateOrder(context.Background(), "u1", []LineInput{{BookID: "B1", Quantity: 4}})
	require.Error(t, err)
	assert.Equal(t, 5, f.stock(t, "B1"))
}

func TestLedger_CancelSaveFailureKeepsReservation(t *testing.T) {
	sink := &hookSink{}
	f := newFixture(t, defaultBooks(), sink)
	ctx := context.Background()

	o, err := f.ledger.CreateOrder(ctx, "u1", []LineInput{{BookID: "B1", Quantity: 3}})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, "B1"))

	var competing error
	sink.onSave = func() error {
		_, competing = f.catalog.Reserve(ctx, []domcatalog.Adjustment{{BookID: "B1", Delta: 5}})
		return errors.New("disk full")
	}
	_, err = f.ledger.CancelOrder(ctx, o.ID)
	require.Error(t, err)
	require.ErrorIs(t, competing, domcatalog.ErrInsufficientStock, "units are not released before the cancel is stored")

	stored, err := f.ledger.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, 2, f.stock(t, "B1"))

	sink.onSave = nil
	cancelled, err := f.ledger.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.stock(t, "B1"))
}

func TestLedger_CreatedAtIsUTC(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)
	zoned := time.Date(2024, 3, 1, 13, 0, 0, 987654321, time.FixedZone("CET", 3600))
	f.ledger.clock = clock.NewFixed(zoned)

	o, err := f.ledger.CreateOrder(context.Background(), "u1", []LineInput{{BookID: "B1", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, o.CreatedAt.Location())
	assert.Equal(t, time.UnixMilli(zoned.UnixMilli()).UTC(), o.CreatedAt)
}

func TestLedger_GetUserOrders(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)
	ctx := context.Background()

	for _, u := range []string{"u1", "u2", "u1"} {
		_, err := f.ledger.CreateOrder(ctx, u, []LineInput{{BookID: "B1", Quantity: 1}})
		require.NoError(t, err)
	}

	mine, err := f.ledger.GetUserOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "ORD-1", mine[0].ID)
	assert.Equal(t, "ORD-3", mine[1].ID)

	none, err := f.ledger.GetUserOrders(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLedger_ConcurrentOrdersNeverOverReserve(t *testing.T) {
	f := newFixture(t, defaultBooks(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.CreateOrder(ctx, "u1", []LineInput{{BookID: "B2", Quantity: 1}, {BookID: "B1", Quantity: 1}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, domcatalog.ErrInsufficientStock)
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 0, f.stock(t, "B2"))
	assert.Equal(t, 2, f.stock(t, "B1"))
}

func TestLedger_CreateCancelProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(rt, "books")
		books := make([]domcatalog.Book, n)
		for i := range books {
			cents := rapid.Int64Range(0, 100000).Draw(rt, "cents")
			books[i] = domcatalog.Book{
				ID:    fmt.Sprintf("B%d", i),
				Title: "T",
				Price: decimal.New(cents, -2),
				Stock: rapid.IntRange(0, 20).Draw(rt, "stock"),
			}
		}
		f := newFixture(rt, books, nil)
		ctx := context.Background()

		before := map[string]int{}
		for _, b := range books {
			before[b.ID] = b.Stock
		}

		lines := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) LineInput {
			return LineInput{
				BookID:   fmt.Sprintf("B%d", rapid.IntRange(0, n-1).Draw(t, "book")),
				Quantity: rapid.IntRange(1, 8).Draw(t, "qty"),
			}
		}), 1, 5).Draw(rt, "lines")

		o, err := f.ledger.CreateOrder(ctx, "u1", lines)
		if err != nil {
			if !errors.Is(err, domcatalog.ErrInsufficientStock) {
				rt.Fatalf("unexpected error: %v", err)
			}
			for id, s := range before {
				if got := f.stock(rt, id); got != s {
					rt.Fatalf("failed create changed %s: %d -> %d", id, s, got)
				}
			}
			return
		}

		want := decimal.Zero
		for _, l := range o.Lines {
			want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		if !o.Total.Equal(want) {
			rt.Fatalf("total %s, lines sum to %s", o.Total, want)
		}

		if _, err := f.ledger.CancelOrder(ctx, o.ID); err != nil {
			rt.Fatalf("cancel: %v", err)
		}
		for id, s := range before {
			if got := f.stock(rt, id); got != s {
				rt.Fatalf("cancel did not restore %s: want %d, got %d", id, s, got)
			}
		}
	})
}
