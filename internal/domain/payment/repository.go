package payment

import "context"

type Repository interface {
	Insert(ctx context.Context, p Payment) error
	List(ctx context.Context) ([]Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
}
