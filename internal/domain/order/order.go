package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrEmptyOrder             = errors.New("order: at least one line is required")
	ErrInvalidStatus          = errors.New("order: unknown status")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrConflict               = errors.New("order: already exists")
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// CartLine is one priced line item. UnitPrice is the catalog price captured
// when the line was reserved.
type CartLine struct {
	BookID    string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesTotal sums the line totals.
func LinesTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

type Order struct {
	ID        string
	UserID    string
	Lines     []CartLine
	Total     decimal.Decimal
	CreatedAt time.Time
	Status    Status
}

// New builds a PENDING order whose total is the sum of its line totals.
func New(id, userID string, lines []CartLine, createdAt time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: book %s", ErrInvalidQuantity, l.BookID)
		}
	}
	return &Order{
		ID:        id,
		UserID:    userID,
		Lines:     append([]CartLine(nil), lines...),
		Total:     LinesTotal(lines),
		CreatedAt: createdAt,
		Status:    StatusPending,
	}, nil
}

// Transition moves the order to the target status. It reports false without
// error when the order already has that status.
func (o *Order) Transition(to Status) (bool, error) {
	if o.Status == to {
		return false, nil
	}
	st, err := next(stateOf(o.Status), to)
	if err != nil {
		return false, fmt.Errorf("%w: %s -> %s", err, o.Status, to)
	}
	o.Status = st.Status()
	return true, nil
}

// Clone returns a deep copy so callers never share the line slice.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]CartLine(nil), o.Lines...)
	return &c
}
