package payment

import (
	"context"

	domorder "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"
)

type IDGenerator interface {
	NewID() string
}

// OrderPort is the ledger operation a payment depends on: record runs only
// for a PENDING order, which then moves to PROCESSING.
type OrderPort interface {
	MarkPaid(ctx context.Context, orderID string, record func(context.Context, *domorder.Order) error) (*domorder.Order, error)
}
