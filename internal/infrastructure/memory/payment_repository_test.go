package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentRepository(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink[domain.Payment]{}
	r := NewPaymentRepository(nil, sink)

	for i, orderID := range []string{"ORD-1", "ORD-2", "ORD-1"} {
		p, err := domain.New("PAY-"+string(rune('a'+i)), orderID, decimal.RequireFromString("1.00"), domain.MethodCreditCard, time.Now())
		require.NoError(t, err)
		require.NoError(t, r.Insert(ctx, p))
	}

	byOrder, err := r.ListByOrder(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, byOrder, 2)
	assert.Equal(t, "PAY-a", byOrder[0].ID)
	assert.Equal(t, "PAY-c", byOrder[1].ID)

	none, err := r.ListByOrder(ctx, "ORD-9")
	require.NoError(t, err)
	assert.Empty(t, none)

	sink.err = errors.New("boom")
	p, err := domain.New("PAY-z", "ORD-2", decimal.Zero, domain.MethodPayPal, time.Now())
	require.NoError(t, err)
	require.Error(t, r.Insert(ctx, p))

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
