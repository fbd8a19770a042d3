package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/application"
	domain "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	domoutbox "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	catalogService = "catalog-service"

	useCaseList    = "catalog.list"
	useCaseSearch  = "catalog.search"
	useCaseGet     = "catalog.get"
	useCaseAdd     = "catalog.add"
	useCaseUpdate  = "catalog.update"
	useCaseRemove  = "catalog.remove"
	useCaseAdjust  = "catalog.adjust_stock"
	useCaseReserve = "catalog.reserve"
	useCaseRelease = "catalog.release"
)

type IDGenerator interface {
	NewID() string
}

// BookInput carries the mutable fields of a book.
type BookInput struct {
	Title  string
	Author string
	Genre  string
	Price  decimal.Decimal
	Stock  int
}

// Service is the catalog store. All stock changes are delegated to the
// repository's adjust operations.
type Service struct {
	repo        domain.Repository
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	ins         *application.Instrumentation

	adjustments observability.Counter // stock_adjustments_total{direction}
	stockLevel  observability.Gauge   // book_stock_level{book_id}
}

func NewService(
	repo domain.Repository,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Service {
	ins := application.NewInstrumentation(catalogService, tel)
	return &Service{
		repo:        repo,
		idGenerator: idGen,
		publisher:   publisher,
		ins:         ins,
		adjustments: ins.Metrics().Counter(observability.MStockAdjustments),
		stockLevel:  ins.Metrics().Gauge(observability.MBookStockLevel),
	}
}

// ListBooks returns a snapshot of the catalog in catalog order.
func (s *Service) ListBooks(ctx context.Context) (_ []domain.Book, err error) {
	ctx, call := s.ins.Start(ctx, useCaseList, "ListBooks")
	defer func() { call.End(err) }()

	books, err := s.repo.List(ctx)
	if err != nil {
		call.Fail("REPO_LIST_FAILED")
		return nil, err
	}
	call.Field("books", len(books))
	return books, nil
}

// SearchBooks returns every book whose title, author or genre contains the
// query, ignoring case, in catalog order.
func (s *Service) SearchBooks(ctx context.Context, query string) (_ []domain.Book, err error) {
	ctx, call := s.ins.Start(ctx, useCaseSearch, "SearchBooks", attribute.String("catalog.query", query))
	defer func() { call.End(err) }()

	books, err := s.repo.List(ctx)
	if err != nil {
		call.Fail("REPO_LIST_FAILED")
		return nil, err
	}
	matches := make([]domain.Book, 0, len(books))
	for _, b := range books {
		if b.Matches(query) {
			matches = append(matches, b)
		}
	}
	call.Field("matches", len(matches))
	return matches, nil
}

func (s *Service) GetBook(ctx context.Context, id string) (_ domain.Book, err error) {
	ctx, call := s.ins.Start(ctx, useCaseGet, "GetBook", attribute.String("book.id", id))
	defer func() { call.End(err) }()

	b, err := s.repo.Get(ctx, id)
	if err != nil {
		call.Fail(failStatus(err))
		return domain.Book{}, err
	}
	return b, nil
}

// AddBook validates the input, assigns a fresh identifier and appends the
// book to the catalog.
func (s *Service) AddBook(ctx context.Context, in BookInput) (_ domain.Book, err error) {
	ctx, call := s.ins.Start(ctx, useCaseAdd, "AddBook", attribute.String("book.title", in.Title))
	defer func() { call.End(err) }()

	b, err := domain.NewBook(in.Title, in.Author, in.Genre, in.Price, in.Stock)
	if err != nil {
		call.Fail("VALIDATION_FAILED")
		return domain.Book{}, err
	}
	b.ID = s.idGenerator.NewID()
	call.Field("book_id", b.ID)

	if err := s.repo.Insert(ctx, b); err != nil {
		call.Fail("REPO_INSERT_FAILED")
		return domain.Book{}, fmt.Errorf("catalog: add: %w", err)
	}
	s.stockLevel.Set(float64(b.Stock), observability.L("book_id", b.ID))
	return b, nil
}

// UpdateBook overwrites every mutable field of an existing book. A stock
// change is applied as an adjustment by the repository.
func (s *Service) UpdateBook(ctx context.Context, id string, in BookInput) (_ domain.Book, err error) {
	ctx, call := s.ins.Start(ctx, useCaseUpdate, "UpdateBook", attribute.String("book.id", id))
	defer func() { call.End(err) }()

	b, err := domain.NewBook(in.Title, in.Author, in.Genre, in.Price, in.Stock)
	if err != nil {
		call.Fail("VALIDATION_FAILED")
		return domain.Book{}, err
	}
	b.ID = id

	stored, delta, err := s.repo.Update(ctx, b)
	if err != nil {
		call.Fail(failStatus(err))
		return domain.Book{}, fmt.Errorf("catalog: update: %w", err)
	}
	if delta != 0 {
		s.stockChanged(call, stored, delta)
	}
	return stored, nil
}

func (s *Service) RemoveBook(ctx context.Context, id string) (err error) {
	ctx, call := s.ins.Start(ctx, useCaseRemove, "RemoveBook", attribute.String("book.id", id))
	defer func() { call.End(err) }()

	if err := s.repo.Delete(ctx, id); err != nil {
		call.Fail(failStatus(err))
		return err
	}
	s.stockLevel.Set(0, observability.L("book_id", id))
	return nil
}

// AdjustStock applies a signed delta to one book. The resulting stock may
// never be negative.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (_ domain.Book, err error) {
	ctx, call := s.ins.Start(ctx, useCaseAdjust, "AdjustStock",
		attribute.String("book.id", id),
		attribute.Int("stock.delta", delta),
	)
	defer func() { call.End(err) }()

	b, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		call.Fail(failStatus(err))
		return domain.Book{}, err
	}
	s.stockChanged(call, b, delta)
	return b, nil
}

// Reserve takes stock for every adjustment or for none of them. Quantities
// are positive; they are applied as negative deltas.
func (s *Service) Reserve(ctx context.Context, items []domain.Adjustment) ([]domain.Book, error) {
	return s.batch(ctx, useCaseReserve, "ReserveStock", items, -1)
}

// Release returns stock for every adjustment or for none of them.
func (s *Service) Release(ctx context.Context, items []domain.Adjustment) ([]domain.Book, error) {
	return s.batch(ctx, useCaseRelease, "ReleaseStock", items, 1)
}

func (s *Service) batch(ctx context.Context, useCase, span string, items []domain.Adjustment, sign int) (_ []domain.Book, err error) {
	ctx, call := s.ins.Start(ctx, useCase, span, attribute.Int("stock.lines", len(items)))
	defer func() { call.End(err) }()

	adjs := make([]domain.Adjustment, len(items))
	for i, it := range items {
		if it.Delta <= 0 {
			call.Fail("QUANTITY_INVALID")
			return nil, fmt.Errorf("%w: book %s quantity %d", domain.ErrInvalidStock, it.BookID, it.Delta)
		}
		adjs[i] = domain.Adjustment{BookID: it.BookID, Delta: sign * it.Delta}
	}

	books, err := s.repo.AdjustStockBatch(ctx, adjs)
	if err != nil {
		call.Fail(failStatus(err))
		return nil, err
	}
	for i, b := range books {
		s.stockChanged(call, b, adjs[i].Delta)
	}
	return books, nil
}

func (s *Service) stockChanged(call *application.Call, b domain.Book, delta int) {
	direction := "increase"
	if delta < 0 {
		direction = "decrease"
	}
	s.adjustments.Add(1, observability.L("direction", direction))
	s.stockLevel.Set(float64(b.Stock), observability.L("book_id", b.ID))
	call.Publish(s.publisher, domain.NewStockAdjustedEvent(b, delta))
}

func failStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "BOOK_NOT_FOUND"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidStock):
		return "VALIDATION_FAILED"
	default:
		return "REPO_FAILED"
	}
}
