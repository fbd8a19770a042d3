package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRecordedEvent is emitted after a payment has been persisted.
type PaymentRecordedEvent struct {
	PaymentID  string
	OrderID    string
	Amount     decimal.Decimal
	Method     Method
	OccurredAt time.Time
}

func (PaymentRecordedEvent) EventName() string { return "payment.recorded" }

func NewPaymentRecordedEvent(p Payment) PaymentRecordedEvent {
	return PaymentRecordedEvent{
		PaymentID:  p.ID,
		OrderID:    p.OrderID,
		Amount:     p.Amount,
		Method:     p.Method,
		OccurredAt: time.Now().UTC(),
	}
}
