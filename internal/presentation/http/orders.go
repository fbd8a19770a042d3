package httppresentation

import (
	"net/http"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-bookstore/internal/application/order"
	domorder "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"

	"github.com/go-chi/chi/v5"
)

type orderLineRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

type createOrderRequest struct {
	UserID string             `json:"user_id"`
	Lines  []orderLineRequest `json:"lines"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderLineResponse struct {
	BookID    string `json:"book_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

type orderResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Status    domorder.Status     `json:"status"`
	Total     string              `json:"total"`
	CreatedAt time.Time           `json:"created_at"`
	Lines     []orderLineResponse `json:"lines"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	lines := make([]orderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineResponse{
			BookID:    l.BookID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Total:     l.Total().StringFixed(2),
		}
	}
	return orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Total:     o.Total.StringFixed(2),
		CreatedAt: o.CreatedAt,
		Lines:     lines,
	}
}

func toOrderResponses(orders []*domorder.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	return out
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lines := make([]apporder.LineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = apporder.LineInput{BookID: l.BookID, Quantity: l.Quantity}
	}

	o, err := h.orders.CreateOrder(r.Context(), req.UserID, lines)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/orders/"+o.ID)
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []*domorder.Order
		err    error
	)
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		orders, err = h.orders.GetUserOrders(r.Context(), userID)
	} else {
		orders, err = h.orders.GetAllOrders(r.Context())
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.CancelOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := domorder.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	o, err := h.orders.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
