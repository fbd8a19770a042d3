package flatfile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/filestore"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability/logctx"
)

const (
	componentFlatfile = "flatfile"
	peerDatafile      = "datafile"
)

// file wraps a line store with the external-call metrics every data file
// reports.
type file struct {
	lines    filestore.LineStore
	endpoint string
	log      observability.Logger
	extReq   observability.Counter
	extDur   observability.Histogram
}

func newFile(lines filestore.LineStore, name string, tel observability.Observability) file {
	if tel == nil {
		tel = observability.Nop()
	}
	if p, ok := lines.(interface{ Path() string }); ok && name == "" {
		name = filepath.Base(p.Path())
	}
	return file{
		lines:    lines,
		endpoint: name,
		log: tel.Logger().With(
			observability.F("component", componentFlatfile),
			observability.F("file", name),
		),
		extReq: tel.Metrics().Counter(observability.MExternalRequests),
		extDur: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

func (f file) read(ctx context.Context) ([]string, error) {
	return f.observe("read", func() ([]string, error) { return f.lines.ReadLines(ctx) })
}

func (f file) write(ctx context.Context, lines []string) error {
	_, err := f.observe("write", func() ([]string, error) { return nil, f.lines.WriteLines(ctx, lines) })
	return err
}

func (f file) observe(op string, call func() ([]string, error)) ([]string, error) {
	start := time.Now()
	lines, err := call()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	endpoint := f.endpoint + "." + op
	f.extReq.Add(1,
		observability.L("peer", peerDatafile),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	f.extDur.Observe(time.Since(start).Seconds(),
		observability.L("peer", peerDatafile),
		observability.L("endpoint", endpoint),
	)
	return lines, err
}

// BookFile persists the catalog.
type BookFile struct{ f file }

func NewBookFile(lines filestore.LineStore, tel observability.Observability) *BookFile {
	return &BookFile{f: newFile(lines, "", tel)}
}

func (b *BookFile) Load(ctx context.Context) ([]catalog.Book, error) {
	lines, err := b.f.read(ctx)
	if err != nil {
		return nil, err
	}
	books := make([]catalog.Book, 0, len(lines))
	for i, line := range lines {
		book, err := DecodeBook(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		books = append(books, book)
	}
	return books, nil
}

func (b *BookFile) Save(ctx context.Context, books []catalog.Book) error {
	lines := make([]string, 0, len(books))
	for _, book := range books {
		lines = append(lines, EncodeBook(book))
	}
	return b.f.write(ctx, lines)
}

// OrderFile persists the order ledger.
type OrderFile struct{ f file }

func NewOrderFile(lines filestore.LineStore, tel observability.Observability) *OrderFile {
	return &OrderFile{f: newFile(lines, "", tel)}
}

// Load decodes every order. Legacy line items whose book no longer exists
// are dropped with a warning; any other decoding problem fails the load.
func (o *OrderFile) Load(ctx context.Context, prices PriceLookup) ([]*order.Order, error) {
	lines, err := o.f.read(ctx)
	if err != nil {
		return nil, err
	}
	logger := logctx.FromOr(ctx, o.f.log)
	orders := make([]*order.Order, 0, len(lines))
	for i, line := range lines {
		ord, dropped, err := DecodeOrder(line, prices)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		for _, d := range dropped {
			logger.Warn("order_line_dropped",
				observability.F("order_id", ord.ID),
				observability.F("book_id", d.BookID),
				observability.F("quantity", d.Quantity),
				observability.F("error", d.Err.Error()),
			)
		}
		orders = append(orders, ord)
	}
	return orders, nil
}

func (o *OrderFile) Save(ctx context.Context, orders []*order.Order) error {
	lines := make([]string, 0, len(orders))
	for _, ord := range orders {
		lines = append(lines, EncodeOrder(ord))
	}
	return o.f.write(ctx, lines)
}

// PaymentFile persists payment records.
type PaymentFile struct{ f file }

func NewPaymentFile(lines filestore.LineStore, tel observability.Observability) *PaymentFile {
	return &PaymentFile{f: newFile(lines, "", tel)}
}

func (p *PaymentFile) Load(ctx context.Context) ([]payment.Payment, error) {
	lines, err := p.f.read(ctx)
	if err != nil {
		return nil, err
	}
	payments := make([]payment.Payment, 0, len(lines))
	for i, line := range lines {
		pay, err := DecodePayment(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		payments = append(payments, pay)
	}
	return payments, nil
}

func (p *PaymentFile) Save(ctx context.Context, payments []payment.Payment) error {
	lines := make([]string, 0, len(payments))
	for _, pay := range payments {
		lines = append(lines, EncodePayment(pay))
	}
	return p.f.write(ctx, lines)
}
