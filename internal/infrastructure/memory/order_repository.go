package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders []*domain.Order
	index  map[string]int
	sink   Snapshotter[*domain.Order]
}

func NewOrderRepository(initial []*domain.Order, sink Snapshotter[*domain.Order]) *OrderRepository {
	r := &OrderRepository{
		orders: make([]*domain.Order, 0, len(initial)),
		index:  make(map[string]int, len(initial)),
		sink:   sink,
	}
	for _, o := range initial {
		r.index[o.ID] = len(r.orders)
		r.orders = append(r.orders, cloneOrder(o))
	}
	return r
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[order.ID]; exists {
		return domain.ErrConflict
	}

	prev := slices.Clone(r.orders)
	r.orders = append(r.orders, cloneOrder(order))
	r.index[order.ID] = len(r.orders) - 1
	if err := r.persistLocked(ctx, prev); err != nil {
		delete(r.index, order.ID)
		return err
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return cloneOrder(r.orders[i]), nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[order.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, order.ID)
	}

	prev := slices.Clone(r.orders)
	r.orders[i] = cloneOrder(order)
	return r.persistLocked(ctx, prev)
}

func (r *OrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	return r.filter(ctx, func(*domain.Order) bool { return true }), nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.filter(ctx, func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (r *OrderRepository) filter(ctx context.Context, keep func(*domain.Order) bool) []*domain.Order {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	return out
}

func (r *OrderRepository) persistLocked(ctx context.Context, prev []*domain.Order) error {
	if r.sink == nil {
		return nil
	}
	snapshot := make([]*domain.Order, len(r.orders))
	for i, o := range r.orders {
		snapshot[i] = cloneOrder(o)
	}
	if err := r.sink.Save(ctx, snapshot); err != nil {
		r.orders = prev
		return fmt.Errorf("order repository: persist: %w", err)
	}
	return nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	if order == nil {
		return nil
	}
	return order.Clone()
}
