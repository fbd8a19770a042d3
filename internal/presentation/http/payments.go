package httppresentation

import (
	"net/http"
	"time"

	dompayment "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/payment"

	"github.com/shopspring/decimal"
)

type processPaymentRequest struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method"`
}

type paymentResponse struct {
	ID      string            `json:"id"`
	OrderID string            `json:"order_id"`
	Amount  string            `json:"amount"`
	Method  dompayment.Method `json:"method"`
	Status  dompayment.Status `json:"status"`
	PaidAt  time.Time         `json:"paid_at"`
}

func toPaymentResponse(p dompayment.Payment) paymentResponse {
	return paymentResponse{
		ID:      p.ID,
		OrderID: p.OrderID,
		Amount:  p.Amount.StringFixed(2),
		Method:  p.Method,
		Status:  p.Status,
		PaidAt:  p.PaidAt,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	method, err := dompayment.ParseMethod(req.Method)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := h.payments.ProcessPayment(r.Context(), req.OrderID, req.Amount, method)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	var (
		payments []dompayment.Payment
		err      error
	)
	if orderID := r.URL.Query().Get("order_id"); orderID != "" {
		payments, err = h.payments.GetPaymentsByOrder(r.Context(), orderID)
	} else {
		payments, err = h.payments.GetAllPayments(r.Context())
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]paymentResponse, len(payments))
	for i, p := range payments {
		out[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}
