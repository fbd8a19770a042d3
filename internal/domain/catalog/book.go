package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("catalog: book not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrInvalidPrice      = errors.New("catalog: price must be zero or greater with at most two decimals")
	ErrInvalidStock      = errors.New("catalog: stock must be zero or greater")
	ErrInvalidField      = errors.New("catalog: invalid field")
	ErrConflict          = errors.New("catalog: book already exists")
)

// Book is a catalog entry. Stock is only changed through AdjustStock.
type Book struct {
	ID     string
	Title  string
	Author string
	Genre  string
	Price  decimal.Decimal
	Stock  int
}

// Adjustment is a signed stock delta for one book.
type Adjustment struct {
	BookID string
	Delta  int
}

func NewBook(title, author, genre string, price decimal.Decimal, stock int) (Book, error) {
	b := Book{
		Title:  strings.TrimSpace(title),
		Author: strings.TrimSpace(author),
		Genre:  strings.TrimSpace(genre),
		Price:  price,
		Stock:  stock,
	}
	if err := b.Validate(); err != nil {
		return Book{}, err
	}
	return b, nil
}

// Validate checks the mutable fields. Text fields may not carry the record
// delimiters of the flat-file encoding.
func (b Book) Validate() error {
	if b.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidField)
	}
	for name, v := range map[string]string{"title": b.Title, "author": b.Author, "genre": b.Genre} {
		if strings.ContainsAny(v, ",;:\r\n") {
			return fmt.Errorf("%w: %s contains a reserved character", ErrInvalidField, name)
		}
	}
	if b.Price.IsNegative() || !b.Price.Equal(b.Price.Round(2)) {
		return ErrInvalidPrice
	}
	if b.Stock < 0 {
		return ErrInvalidStock
	}
	return nil
}

// AdjustStock applies a signed delta, refusing any change that would leave
// the stock negative.
func (b *Book) AdjustStock(delta int) error {
	if b.Stock+delta < 0 {
		return fmt.Errorf("%w: book %s has %d, requested %d", ErrInsufficientStock, b.ID, b.Stock, -delta)
	}
	b.Stock += delta
	return nil
}

// Matches reports whether query is a case-insensitive substring of the
// title, author or genre.
func (b Book) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(b.Title), q) ||
		strings.Contains(strings.ToLower(b.Author), q) ||
		strings.Contains(strings.ToLower(b.Genre), q)
}
