package httppresentation

import (
	"errors"
	"net/http"

	appcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/application/catalog"
	domcatalog "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type bookRequest struct {
	Title  string          `json:"title"`
	Author string          `json:"author"`
	Genre  string          `json:"genre"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
}

func (b bookRequest) input() appcatalog.BookInput {
	return appcatalog.BookInput{Title: b.Title, Author: b.Author, Genre: b.Genre, Price: b.Price, Stock: b.Stock}
}

type bookResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	Price  string `json:"price"`
	Stock  int    `json:"stock"`
}

func toBookResponse(b domcatalog.Book) bookResponse {
	return bookResponse{
		ID:     b.ID,
		Title:  b.Title,
		Author: b.Author,
		Genre:  b.Genre,
		Price:  b.Price.StringFixed(2),
		Stock:  b.Stock,
	}
}

func toBookResponses(books []domcatalog.Book) []bookResponse {
	out := make([]bookResponse, len(books))
	for i, b := range books {
		out[i] = toBookResponse(b)
	}
	return out
}

type stockRequest struct {
	Delta *int `json:"delta"`
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	var (
		books []domcatalog.Book
		err   error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		books, err = h.catalog.SearchBooks(r.Context(), q)
	} else {
		books, err = h.catalog.ListBooks(r.Context())
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponses(books))
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.catalog.GetBook(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(b))
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	b, err := h.catalog.AddBook(r.Context(), req.input())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/books/"+b.ID)
	writeJSON(w, http.StatusCreated, toBookResponse(b))
}

func (h *Handler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	b, err := h.catalog.UpdateBook(r.Context(), chi.URLParam(r, "bookID"), req.input())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(b))
}

func (h *Handler) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.RemoveBook(r.Context(), chi.URLParam(r, "bookID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Delta == nil {
		writeError(w, http.StatusBadRequest, errors.New("delta is required"))
		return
	}
	b, err := h.catalog.AdjustStock(r.Context(), chi.URLParam(r, "bookID"), *req.Delta)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(b))
}
