package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/application"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/clock"
	domorder "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService = "payment-service"

	useCaseProcess     = "payment.process"
	useCaseList        = "payment.list"
	useCaseListByOrder = "payment.list_by_order"
)

// Recorder stores payments and advances the paid order.
type Recorder struct {
	repo        domain.Repository
	orders      OrderPort
	idGenerator IDGenerator
	clock       clock.Clock
	publisher   domoutbox.Publisher
	ins         *application.Instrumentation
}

func NewRecorder(
	repo domain.Repository,
	orders OrderPort,
	idGen IDGenerator,
	clk clock.Clock,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Recorder {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Recorder{
		repo:        repo,
		orders:      orders,
		idGenerator: idGen,
		clock:       clk,
		publisher:   publisher,
		ins:         application.NewInstrumentation(paymentService, tel),
	}
}

// ProcessPayment records a COMPLETED payment for a PENDING order and moves
// the order to PROCESSING. Nothing is recorded for an order in any other
// status.
func (r *Recorder) ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal, method domain.Method) (_ domain.Payment, err error) {
	ctx, call := r.ins.Start(ctx, useCaseProcess, "ProcessPayment",
		attribute.String("payment.order_id", orderID),
		attribute.String("payment.method", string(method)),
	)
	defer func() { call.End(err) }()

	p, err := domain.New(r.idGenerator.NewID(), orderID, amount, method, r.clock.Now().UTC().Truncate(time.Millisecond))
	if err != nil {
		call.Fail("VALIDATION_FAILED")
		return domain.Payment{}, err
	}

	record := func(ctx context.Context, o *domorder.Order) error {
		if !o.Total.Equal(p.Amount) {
			call.Logger().Warn("payment_amount_mismatch",
				observability.F("order_id", o.ID),
				observability.F("order_total", o.Total.StringFixed(2)),
				observability.F("amount", p.Amount.StringFixed(2)),
			)
		}
		return r.repo.Insert(ctx, p)
	}
	if _, err := r.orders.MarkPaid(ctx, orderID, record); err != nil {
		switch {
		case errors.Is(err, domorder.ErrNotFound):
			call.Fail("ORDER_NOT_FOUND")
		case errors.Is(err, domorder.ErrInvalidStateTransition):
			call.Fail("ORDER_NOT_PAYABLE")
		default:
			call.Fail("PAYMENT_RECORD_FAILED")
		}
		return domain.Payment{}, fmt.Errorf("payment: %w", err)
	}

	call.Field("payment_id", p.ID)
	call.Field("amount", p.Amount.StringFixed(2))
	call.Span().SetAttributes(attribute.String("payment.id", p.ID))
	call.Publish(r.publisher, domain.NewPaymentRecordedEvent(p))
	return p, nil
}

func (r *Recorder) GetAllPayments(ctx context.Context) (_ []domain.Payment, err error) {
	ctx, call := r.ins.Start(ctx, useCaseList, "GetAllPayments")
	defer func() { call.End(err) }()

	ps, err := r.repo.List(ctx)
	if err != nil {
		call.Fail("REPO_LIST_FAILED")
		return nil, err
	}
	call.Field("payments", len(ps))
	return ps, nil
}

// GetPaymentsByOrder returns the order's payments in recording order.
func (r *Recorder) GetPaymentsByOrder(ctx context.Context, orderID string) (_ []domain.Payment, err error) {
	ctx, call := r.ins.Start(ctx, useCaseListByOrder, "GetPaymentsByOrder", attribute.String("payment.order_id", orderID))
	defer func() { call.End(err) }()

	ps, err := r.repo.ListByOrder(ctx, orderID)
	if err != nil {
		call.Fail("REPO_LIST_FAILED")
		return nil, err
	}
	call.Field("payments", len(ps))
	return ps, nil
}
