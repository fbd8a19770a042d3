package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/minishop-bookstore/internal/application/order"
	domcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/payment"
	domuser "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxBodyBytes         = 1 << 20
)

type CatalogService interface {
	ListBooks(ctx context.Context) ([]domcatalog.Book, error)
	SearchBooks(ctx context.Context, query string) ([]domcatalog.Book, error)
	GetBook(ctx context.Context, id string) (domcatalog.Book, error)
	AddBook(ctx context.Context, in appcatalog.BookInput) (domcatalog.Book, error)
	UpdateBook(ctx context.Context, id string, in appcatalog.BookInput) (domcatalog.Book, error)
	RemoveBook(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (domcatalog.Book, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID string, lines []apporder.LineInput) (*domorder.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*domorder.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domorder.Status) (*domorder.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domorder.Order, error)
	GetUserOrders(ctx context.Context, userID string) ([]*domorder.Order, error)
	GetAllOrders(ctx context.Context) ([]*domorder.Order, error)
}

type PaymentService interface {
	ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal, method dompayment.Method) (dompayment.Payment, error)
	GetAllPayments(ctx context.Context) ([]dompayment.Payment, error)
	GetPaymentsByOrder(ctx context.Context, orderID string) ([]dompayment.Payment, error)
}

type Handler struct {
	catalog  CatalogService
	orders   OrderService
	payments PaymentService
	log      observability.Logger
	tel      observability.Observability
}

func NewHandler(catalog CatalogService, orders OrderService, payments PaymentService, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		catalog:  catalog,
		orders:   orders,
		payments: payments,
		log:      tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
	}
}

// Router wires Trace → request logger + metrics → access log → handler.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		h.withTrace,
		ObservabilityMiddleware(h.log, func(r *http.Request) string { return r.Header.Get(headerRequestID) }, h.tel),
		h.withAccessLog,
	)

	r.Get("/health", h.handleHealth)

	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.handleListBooks)
		r.Post("/", h.handleAddBook)
		r.Get("/{bookID}", h.handleGetBook)
		r.Put("/{bookID}", h.handleUpdateBook)
		r.Delete("/{bookID}", h.handleRemoveBook)
		r.Post("/{bookID}/stock", h.handleAdjustStock)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.handleListOrders)
		r.Post("/", h.handleCreateOrder)
		r.Get("/{orderID}", h.handleGetOrder)
		r.Post("/{orderID}/cancel", h.handleCancelOrder)
		r.Put("/{orderID}/status", h.handleUpdateOrderStatus)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.handleListPayments)
		r.Post("/", h.handleProcessPayment)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes,
// using the request-scoped logger injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routePattern(r)),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

var errEmptyBody = errors.New("request body is required")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domcatalog.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domuser.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domcatalog.ErrInsufficientStock),
		errors.Is(err, domcatalog.ErrConflict),
		errors.Is(err, domorder.ErrConflict),
		errors.Is(err, domorder.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, domcatalog.ErrInvalidField),
		errors.Is(err, domcatalog.ErrInvalidPrice),
		errors.Is(err, domcatalog.ErrInvalidStock),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrEmptyOrder),
		errors.Is(err, domorder.ErrInvalidStatus),
		errors.Is(err, dompayment.ErrInvalidMethod),
		errors.Is(err, dompayment.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logctx.FromOr(r.Context(), nil).Error("http_internal_error", observability.F("error", err))
	}
	writeError(w, status, err)
}

// routePattern returns the matched chi pattern, which keeps metric and span
// labels low-cardinality.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}
