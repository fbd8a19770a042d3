package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted once an order and its reservations are persisted.
type OrderCreatedEvent struct {
	OrderID    string
	UserID     string
	Lines      int
	Total      decimal.Decimal
	OccurredAt time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Lines:      len(o.Lines),
		Total:      o.Total,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after the order's stock has been released.
type OrderCancelledEvent struct {
	OrderID    string
	From       Status
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order, from Status) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		From:       from,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChangedEvent covers every non-cancelling transition.
type OrderStatusChangedEvent struct {
	OrderID    string
	From       Status
	To         Status
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(o *Order, from Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    o.ID,
		From:       from,
		To:         o.Status,
		OccurredAt: time.Now().UTC(),
	}
}
