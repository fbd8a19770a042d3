package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/payment"
)

type PaymentRepository struct {
	mu       sync.RWMutex
	payments []domain.Payment
	sink     Snapshotter[domain.Payment]
}

func NewPaymentRepository(initial []domain.Payment, sink Snapshotter[domain.Payment]) *PaymentRepository {
	return &PaymentRepository{
		payments: slices.Clone(initial),
		sink:     sink,
	}
}

func (r *PaymentRepository) Insert(ctx context.Context, p domain.Payment) error {
	if p.ID == "" {
		return fmt.Errorf("payment repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.payments = append(r.payments, p)
	if r.sink == nil {
		return nil
	}
	if err := r.sink.Save(ctx, slices.Clone(r.payments)); err != nil {
		r.payments = r.payments[:len(r.payments)-1]
		return fmt.Errorf("payment repository: persist: %w", err)
	}
	return nil
}

func (r *PaymentRepository) List(ctx context.Context) ([]domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.payments), nil
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Payment, 0)
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}
