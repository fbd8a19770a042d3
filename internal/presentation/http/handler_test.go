package httppresentation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/application/apptest"
	appcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/minishop-bookstore/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-bookstore/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/clock"
	domcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	domuser "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type directory struct{}

func (directory) GetUserByID(_ context.Context, id string) (domuser.User, error) {
	if id != "alice" {
		return domuser.User{}, domuser.ErrNotFound
	}
	return domuser.User{ID: id, Username: id}, nil
}

type server struct {
	handler http.Handler
	tel     *apptest.Telemetry
}

func newServer(t *testing.T) server {
	t.Helper()
	tel := apptest.NewTelemetry(t)
	clk := clock.NewFixed(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	books := memory.NewCatalogRepository([]domcatalog.Book{
		{ID: "B1", Title: "Go in Action", Author: "Kennedy", Genre: "Programming", Price: decimal.RequireFromString("10.00"), Stock: 5},
		{ID: "B2", Title: "Dune", Author: "Herbert", Genre: "SF", Price: decimal.RequireFromString("7.25"), Stock: 2},
	}, nil)
	catalog := appcatalog.NewService(books, &apptest.Sequence{Prefix: "BK"}, nil, tel)
	ledger := apporder.NewLedger(memory.NewOrderRepository(nil, nil), catalog, directory{},
		&apptest.Sequence{Prefix: "ORD-"}, clk, nil, tel)
	recorder := apppayment.NewRecorder(memory.NewPaymentRepository(nil, nil), ledger,
		&apptest.Sequence{Prefix: "PAY-"}, clk, nil, tel)
	return server{handler: NewHandler(catalog, ledger, recorder, tel).Router(), tel: tel}
}

func (s server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandler_CheckoutFlow(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/orders", `{"user_id":"alice","lines":[{"book_id":"B1","quantity":3}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[orderResponse](t, rec)
	assert.Equal(t, "ORD-1", order.ID)
	assert.Equal(t, "30.00", order.Total)
	assert.Equal(t, "/orders/ORD-1", rec.Header().Get("Location"))

	rec = s.do(t, http.MethodGet, "/books/B1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[bookResponse](t, rec).Stock)

	rec = s.do(t, http.MethodPost, "/payments", `{"order_id":"ORD-1","amount":"30.00","method":"credit_card"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pay := decode[paymentResponse](t, rec)
	assert.Equal(t, "30.00", pay.Amount)
	assert.Equal(t, "COMPLETED", string(pay.Status))

	rec = s.do(t, http.MethodGet, "/orders/ORD-1", "")
	assert.Equal(t, "PROCESSING", string(decode[orderResponse](t, rec).Status))

	rec = s.do(t, http.MethodPost, "/orders/ORD-1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", string(decode[orderResponse](t, rec).Status))

	rec = s.do(t, http.MethodGet, "/books/B1", "")
	assert.Equal(t, 5, decode[bookResponse](t, rec).Stock)

	rec = s.do(t, http.MethodGet, "/payments?order_id=ORD-1", "")
	assert.Len(t, decode[[]paymentResponse](t, rec), 1)
	rec = s.do(t, http.MethodGet, "/orders?user_id=alice", "")
	assert.Len(t, decode[[]orderResponse](t, rec), 1)
}

func TestHandler_ErrorMapping(t *testing.T) {
	s := newServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown book", http.MethodGet, "/books/nope", "", http.StatusNotFound},
		{"unknown order", http.MethodPost, "/orders/ORD-9/cancel", "", http.StatusNotFound},
		{"unknown user", http.MethodPost, "/orders", `{"user_id":"bob","lines":[{"book_id":"B1","quantity":1}]}`, http.StatusNotFound},
		{"missing book in order", http.MethodPost, "/orders", `{"user_id":"alice","lines":[{"book_id":"B1","quantity":1},{"book_id":"X","quantity":1}]}`, http.StatusNotFound},
		{"insufficient stock", http.MethodPost, "/orders", `{"user_id":"alice","lines":[{"book_id":"B2","quantity":3}]}`, http.StatusConflict},
		{"empty order", http.MethodPost, "/orders", `{"user_id":"alice","lines":[]}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/books", `{"title":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/books", `{"title":"x","isbn":"1"}`, http.StatusBadRequest},
		{"negative price", http.MethodPost, "/books", `{"title":"x","price":"-1"}`, http.StatusBadRequest},
		{"missing delta", http.MethodPost, "/books/B1/stock", `{}`, http.StatusBadRequest},
		{"oversell via stock", http.MethodPost, "/books/B1/stock", `{"delta":-6}`, http.StatusConflict},
		{"bad status", http.MethodPut, "/orders/ORD-1/status", `{"status":"SHIPPED"}`, http.StatusBadRequest},
		{"bad method", http.MethodPost, "/payments", `{"order_id":"ORD-1","amount":1,"method":"CASH"}`, http.StatusBadRequest},
		{"wrong verb", http.MethodPatch, "/books/B1", `{}`, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(t, http.MethodGet, "/books/B1", "")
	assert.Equal(t, 5, decode[bookResponse](t, rec).Stock)
	rec = s.do(t, http.MethodGet, "/books/B2", "")
	assert.Equal(t, 2, decode[bookResponse](t, rec).Stock)
}

func TestHandler_StatusTransitions(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated,
		s.do(t, http.MethodPost, "/orders", `{"user_id":"alice","lines":[{"book_id":"B2","quantity":1}]}`).Code)

	rec := s.do(t, http.MethodPut, "/orders/ORD-1/status", `{"status":"COMPLETED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, "/orders/ORD-1/status", `{"status":"processing"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPut, "/orders/ORD-1/status", `{"status":"COMPLETED"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/payments", `{"order_id":"ORD-1","amount":"7.25","method":"PAYPAL"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_BookCRUDAndSearch(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/books", `{"title":"The Hobbit","author":"Tolkien","genre":"Fantasy","price":12.5,"stock":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[bookResponse](t, rec)
	assert.Equal(t, "BK1", b.ID)
	assert.Equal(t, "12.50", b.Price)

	rec = s.do(t, http.MethodGet, "/books?q=TOLK", "")
	found := decode[[]bookResponse](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, "BK1", found[0].ID)

	rec = s.do(t, http.MethodPut, "/books/BK1", `{"title":"The Hobbit","author":"J.R.R. Tolkien","genre":"Fantasy","price":"13.00","stock":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[bookResponse](t, rec).Stock)

	rec = s.do(t, http.MethodPost, "/books/BK1/stock", `{"delta":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[bookResponse](t, rec).Stock)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/books/BK1", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/books/BK1", "").Code)

	rec = s.do(t, http.MethodGet, "/books", "")
	assert.Len(t, decode[[]bookResponse](t, rec), 2)
}

func TestHandler_RequestIDAndMetrics(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/books/B1", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))

	rec = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	s.do(t, http.MethodGet, "/books/nope", "")

	assert.Equal(t, 1.0, s.tel.Value(t, "http_requests_total", map[string]string{
		"method": "GET", "route": "/books/{bookID}", "status": "200",
	}))
	assert.Equal(t, 1.0, s.tel.Value(t, "http_requests_total", map[string]string{
		"method": "GET", "route": "/books/{bookID}", "status": "404",
	}))
	assert.Equal(t, 3.0, s.tel.Value(t, "http_request_duration_seconds", nil))
}
