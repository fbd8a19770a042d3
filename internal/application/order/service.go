package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/application"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/clock"
	domcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/outbox"
	domuser "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	orderService = "order-service"

	useCaseCreate       = "order.create"
	useCaseCancel       = "order.cancel"
	useCaseUpdateStatus = "order.update_status"
	useCaseMarkPaid     = "order.mark_paid"
	useCaseGet          = "order.get"
	useCaseListByUser   = "order.list_by_user"
	useCaseList         = "order.list"
)

// LineInput is one requested cart line.
type LineInput struct {
	BookID   string
	Quantity int
}

// Ledger owns the orders. Creation reserves stock through the catalog;
// cancellation releases it. Status changes are serialised so a reservation
// is released at most once.
type Ledger struct {
	mu sync.Mutex

	repo        domain.Repository
	stock       StockPort
	users       domuser.Directory
	idGenerator IDGenerator
	clock       clock.Clock
	publisher   domoutbox.Publisher
	ins         *application.Instrumentation
}

func NewLedger(
	repo domain.Repository,
	stock StockPort,
	users domuser.Directory,
	idGen IDGenerator,
	clk clock.Clock,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Ledger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Ledger{
		repo:        repo,
		stock:       stock,
		users:       users,
		idGenerator: idGen,
		clock:       clk,
		publisher:   publisher,
		ins:         application.NewInstrumentation(orderService, tel),
	}
}

// CreateOrder reserves every line or none, prices the lines at the current
// catalog price and stores a PENDING order.
func (l *Ledger) CreateOrder(ctx context.Context, userID string, lines []LineInput) (_ *domain.Order, err error) {
	ctx, call := l.ins.Start(ctx, useCaseCreate, "CreateOrder",
		attribute.String("order.user_id", userID),
		attribute.Int("order.lines", len(lines)),
	)
	defer func() { call.End(err) }()

	if len(lines) == 0 {
		call.Fail("EMPTY_ORDER")
		return nil, domain.ErrEmptyOrder
	}
	items := make([]domcatalog.Adjustment, len(lines))
	for i, ln := range lines {
		if ln.Quantity <= 0 {
			call.Fail("QUANTITY_INVALID")
			return nil, fmt.Errorf("%w: book %s", domain.ErrInvalidQuantity, ln.BookID)
		}
		items[i] = domcatalog.Adjustment{BookID: ln.BookID, Delta: ln.Quantity}
	}

	if _, err := l.users.GetUserByID(ctx, userID); err != nil {
		call.Fail("USER_NOT_FOUND")
		return nil, err
	}

	books, err := l.stock.Reserve(ctx, items)
	if err != nil {
		call.Fail(failStatus(err))
		return nil, fmt.Errorf("order: reserve: %w", err)
	}

	cart := make([]domain.CartLine, len(lines))
	for i, ln := range lines {
		cart[i] = domain.CartLine{BookID: ln.BookID, Quantity: ln.Quantity, UnitPrice: books[i].Price}
	}

	entity, err := domain.New(l.idGenerator.NewID(), userID, cart, l.clock.Now().UTC().Truncate(time.Millisecond))
	if err == nil {
		err = l.repo.Insert(ctx, entity)
	}
	if err != nil {
		call.Fail("REPO_INSERT_FAILED")
		l.compensate(ctx, call, items)
		return nil, fmt.Errorf("order: save: %w", err)
	}

	call.Field("order_id", entity.ID)
	call.Field("total", entity.Total.StringFixed(2))
	call.Span().SetAttributes(attribute.String("order.id", entity.ID))
	call.Publish(l.publisher, domain.NewOrderCreatedEvent(entity))
	return entity, nil
}

// compensate releases a reservation whose order could not be stored.
func (l *Ledger) compensate(ctx context.Context, call *application.Call, items []domcatalog.Adjustment) {
	if _, err := l.stock.Release(context.WithoutCancel(ctx), items); err != nil {
		call.Logger().Error("reservation_compensation_failed",
			observability.F("error", err),
			observability.F("lines", len(items)),
		)
	}
}

// CancelOrder marks the order CANCELLED and then releases its stock.
// Cancelling a cancelled order does nothing. If the release fails, for
// instance because a book no longer exists, the order gets its previous
// status back and nothing is released.
func (l *Ledger) CancelOrder(ctx context.Context, orderID string) (_ *domain.Order, err error) {
	ctx, call := l.ins.Start(ctx, useCaseCancel, "CancelOrder", attribute.String("order.id", orderID))
	defer func() { call.End(err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	entity, err := l.repo.Get(ctx, orderID)
	if err != nil {
		call.Fail(failStatus(err))
		return nil, err
	}
	from := entity.Status
	if from == domain.StatusCancelled {
		call.Status("ALREADY_CANCELLED")
		return entity, nil
	}
	prev := entity.Clone()
	if _, err := entity.Transition(domain.StatusCancelled); err != nil {
		call.Fail("INVALID_TRANSITION")
		return nil, err
	}
	if err := l.repo.Update(ctx, entity); err != nil {
		call.Fail("REPO_UPDATE_FAILED")
		return nil, fmt.Errorf("order: save: %w", err)
	}

	items := make([]domcatalog.Adjustment, len(entity.Lines))
	for i, ln := range entity.Lines {
		items[i] = domcatalog.Adjustment{BookID: ln.BookID, Delta: ln.Quantity}
	}
	if _, err := l.stock.Release(ctx, items); err != nil {
		call.Fail(failStatus(err))
		if rerr := l.repo.Update(context.WithoutCancel(ctx), prev); rerr != nil {
			call.Logger().Error("cancel_revert_failed",
				observability.F("error", rerr),
				observability.F("status", string(from)),
			)
		}
		return nil, fmt.Errorf("order: release: %w", err)
	}

	call.Publish(l.publisher, domain.NewOrderCancelledEvent(entity, from))
	return entity, nil
}

// UpdateOrderStatus moves an order along its lifecycle. Moving to the
// current status does nothing; CANCELLED goes through CancelOrder so stock
// is released.
func (l *Ledger) UpdateOrderStatus(ctx context.Context, orderID string, status domain.Status) (*domain.Order, error) {
	if status == domain.StatusCancelled {
		return l.CancelOrder(ctx, orderID)
	}
	return l.transition(ctx, useCaseUpdateStatus, "UpdateOrderStatus", orderID, status, nil)
}

// MarkPaid runs record against a PENDING order and then moves the order to
// PROCESSING. record is not called for an order in any other status.
func (l *Ledger) MarkPaid(ctx context.Context, orderID string, record func(context.Context, *domain.Order) error) (*domain.Order, error) {
	guard := func(ctx context.Context, o *domain.Order) error {
		if o.Status != domain.StatusPending {
			return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidStateTransition, o.ID, o.Status)
		}
		return record(ctx, o)
	}
	return l.transition(ctx, useCaseMarkPaid, "MarkPaid", orderID, domain.StatusProcessing, guard)
}

func (l *Ledger) transition(
	ctx context.Context,
	useCase, span, orderID string,
	to domain.Status,
	guard func(context.Context, *domain.Order) error,
) (_ *domain.Order, err error) {
	ctx, call := l.ins.Start(ctx, useCase, span,
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(to)),
	)
	defer func() { call.End(err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	entity, err := l.repo.Get(ctx, orderID)
	if err != nil {
		call.Fail(failStatus(err))
		return nil, err
	}
	if guard != nil {
		if err := guard(ctx, entity); err != nil {
			call.Fail(failStatus(err))
			return nil, err
		}
	}

	from := entity.Status
	changed, err := entity.Transition(to)
	if err != nil {
		call.Fail("INVALID_TRANSITION")
		return nil, err
	}
	if !changed {
		call.Status("UNCHANGED")
		return entity, nil
	}
	if err := l.repo.Update(ctx, entity); err != nil {
		call.Fail("REPO_UPDATE_FAILED")
		return nil, fmt.Errorf("order: save: %w", err)
	}

	call.Field("from", string(from))
	call.Publish(l.publisher, domain.NewOrderStatusChangedEvent(entity, from))
	return entity, nil
}

func (l *Ledger) GetOrder(ctx context.Context, orderID string) (_ *domain.Order, err error) {
	ctx, call := l.ins.Start(ctx, useCaseGet, "GetOrder", attribute.String("order.id", orderID))
	defer func() { call.End(err) }()

	entity, err := l.repo.Get(ctx, orderID)
	if err != nil {
		call.Fail(failStatus(err))
		return nil, err
	}
	return entity, nil
}

// GetUserOrders returns the user's orders in creation order.
func (l *Ledger) GetUserOrders(ctx context.Context, userID string) (_ []*domain.Order, err error) {
	ctx, call := l.ins.Start(ctx, useCaseListByUser, "GetUserOrders", attribute.String("order.user_id", userID))
	defer func() { call.End(err) }()

	orders, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		call.Fail("REPO_LIST_FAILED")
		return nil, err
	}
	call.Field("orders", len(orders))
	return orders, nil
}

func (l *Ledger) GetAllOrders(ctx context.Context) (_ []*domain.Order, err error) {
	ctx, call := l.ins.Start(ctx, useCaseList, "GetAllOrders")
	defer func() { call.End(err) }()

	orders, err := l.repo.List(ctx)
	if err != nil {
		call.Fail("REPO_LIST_FAILED")
		return nil, err
	}
	call.Field("orders", len(orders))
	return orders, nil
}

func failStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "ORDER_NOT_FOUND"
	case errors.Is(err, domcatalog.ErrNotFound):
		return "BOOK_NOT_FOUND"
	case errors.Is(err, domcatalog.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, domuser.ErrNotFound):
		return "USER_NOT_FOUND"
	default:
		return "ERROR"
	}
}
