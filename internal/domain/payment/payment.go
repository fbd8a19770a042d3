package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMethod = errors.New("payment: unknown payment method")
	ErrInvalidStatus = errors.New("payment: unknown payment status")
	ErrInvalidAmount = errors.New("payment: amount must be zero or greater with at most two decimals")
)

type Method string

const (
	MethodCreditCard Method = "CREDIT_CARD"
	MethodDebitCard  Method = "DEBIT_CARD"
	MethodPayPal     Method = "PAYPAL"
	MethodUnknown    Method = "UNKNOWN"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodCreditCard, MethodDebitCard, MethodPayPal, MethodUnknown:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// ValidateAmount accepts zero or positive amounts with at most two decimals.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// Payment is immutable once recorded.
type Payment struct {
	ID      string
	OrderID string
	Amount  decimal.Decimal
	PaidAt  time.Time
	Method  Method
	Status  Status
}

// New returns a completed payment. No decline path exists: recording a
// payment is the confirmation.
func New(id, orderID string, amount decimal.Decimal, method Method, paidAt time.Time) (Payment, error) {
	if err := ValidateAmount(amount); err != nil {
		return Payment{}, err
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return Payment{}, err
	}
	return Payment{
		ID:      id,
		OrderID: orderID,
		Amount:  amount,
		PaidAt:  paidAt,
		Method:  method,
		Status:  StatusCompleted,
	}, nil
}
