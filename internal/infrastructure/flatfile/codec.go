// Package flatfile encodes records as comma-delimited lines and keeps each
// record set in its own data file.
//
//	book:    id,title,author,genre,price,stock
//	order:   id,userId,total,createdAtMillis,status[;bookId:quantity:unitPrice]*
//	payment: id,orderId,amount,paidAtMillis,method,status
//	user:    id,username,password,email,address,isAdmin
//
// Fields are not escaped; the domain rejects text containing delimiters.
package flatfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/domain/user"
	"github.com/shopspring/decimal"
)

const (
	fieldSep = ","
	lineSep  = ";"
	itemSep  = ":"
)

var ErrMalformed = errors.New("flatfile: malformed record")

func malformed(kind, line, reason string) error {
	return fmt.Errorf("%w: %s %q: %s", ErrMalformed, kind, line, reason)
}

func EncodeBook(b catalog.Book) string {
	return strings.Join([]string{
		b.ID,
		b.Title,
		b.Author,
		b.Genre,
		b.Price.StringFixed(2),
		strconv.Itoa(b.Stock),
	}, fieldSep)
}

func DecodeBook(line string) (catalog.Book, error) {
	parts := strings.Split(line, fieldSep)
	if len(parts) != 6 {
		return catalog.Book{}, malformed("book", line, fmt.Sprintf("want 6 fields, got %d", len(parts)))
	}
	price, err := decimal.NewFromString(parts[4])
	if err != nil {
		return catalog.Book{}, malformed("book", line, "price: "+err.Error())
	}
	stock, err := strconv.Atoi(parts[5])
	if err != nil {
		return catalog.Book{}, malformed("book", line, "stock: "+err.Error())
	}
	b := catalog.Book{
		ID:     parts[0],
		Title:  parts[1],
		Author: parts[2],
		Genre:  parts[3],
		Price:  price,
		Stock:  stock,
	}
	if err := b.Validate(); err != nil {
		return catalog.Book{}, malformed("book", line, err.Error())
	}
	return b, nil
}

func EncodeOrder(o *order.Order) string {
	var sb strings.Builder
	sb.WriteString(strings.Join([]string{
		o.ID,
		o.UserID,
		o.Total.StringFixed(2),
		strconv.FormatInt(o.CreatedAt.UnixMilli(), 10),
		string(o.Status),
	}, fieldSep))
	for _, l := range o.Lines {
		sb.WriteString(lineSep)
		sb.WriteString(l.BookID)
		sb.WriteString(itemSep)
		sb.WriteString(strconv.Itoa(l.Quantity))
		sb.WriteString(itemSep)
		sb.WriteString(l.UnitPrice.StringFixed(2))
	}
	return sb.String()
}

// PriceLookup resolves the current catalog price of a book. It is consulted
// only for legacy lines that carry no unit price.
type PriceLookup func(bookID string) (decimal.Decimal, error)

// DroppedLine is a legacy line item whose book could not be priced.
type DroppedLine struct {
	BookID   string
	Quantity int
	Err      error
}

// DecodeOrder parses an order record. Legacy items of the form
// bookId:quantity are priced through prices; when the book is gone the item
// is dropped and reported instead of failing the record.
func DecodeOrder(line string, prices PriceLookup) (*order.Order, []DroppedLine, error) {
	parts := strings.Split(line, fieldSep)
	if len(parts) != 5 {
		return nil, nil, malformed("order", line, fmt.Sprintf("want 5 fields, got %d", len(parts)))
	}
	total, err := decimal.NewFromString(parts[2])
	if err != nil {
		return nil, nil, malformed("order", line, "total: "+err.Error())
	}
	millis, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, nil, malformed("order", line, "created at: "+err.Error())
	}

	segments := strings.Split(parts[4], lineSep)
	status, err := order.ParseStatus(segments[0])
	if err != nil {
		return nil, nil, malformed("order", line, err.Error())
	}

	o := &order.Order{
		ID:        parts[0],
		UserID:    parts[1],
		Total:     total,
		CreatedAt: time.UnixMilli(millis).UTC(),
		Status:    status,
	}

	var dropped []DroppedLine
	for _, seg := range segments[1:] {
		item := strings.Split(seg, itemSep)
		if len(item) != 2 && len(item) != 3 {
			return nil, nil, malformed("order", line, fmt.Sprintf("line item %q", seg))
		}
		qty, err := strconv.Atoi(item[1])
		if err != nil || qty <= 0 {
			return nil, nil, malformed("order", line, fmt.Sprintf("line item %q quantity", seg))
		}

		var price decimal.Decimal
		if len(item) == 3 {
			price, err = decimal.NewFromString(item[2])
			if err != nil || price.IsNegative() {
				return nil, nil, malformed("order", line, fmt.Sprintf("line item %q price", seg))
			}
		} else {
			if prices == nil {
				dropped = append(dropped, DroppedLine{BookID: item[0], Quantity: qty, Err: catalog.ErrNotFound})
				continue
			}
			price, err = prices(item[0])
			if err != nil {
				dropped = append(dropped, DroppedLine{BookID: item[0], Quantity: qty, Err: err})
				continue
			}
		}
		o.Lines = append(o.Lines, order.CartLine{BookID: item[0], Quantity: qty, UnitPrice: price})
	}
	return o, dropped, nil
}

func EncodePayment(p payment.Payment) string {
	return strings.Join([]string{
		p.ID,
		p.OrderID,
		p.Amount.StringFixed(2),
		strconv.FormatInt(p.PaidAt.UnixMilli(), 10),
		string(p.Method),
		string(p.Status),
	}, fieldSep)
}

func DecodePayment(line string) (payment.Payment, error) {
	parts := strings.Split(line, fieldSep)
	if len(parts) != 6 {
		return payment.Payment{}, malformed("payment", line, fmt.Sprintf("want 6 fields, got %d", len(parts)))
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return payment.Payment{}, malformed("payment", line, "amount: "+err.Error())
	}
	if err := payment.ValidateAmount(amount); err != nil {
		return payment.Payment{}, malformed("payment", line, err.Error())
	}
	millis, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return payment.Payment{}, malformed("payment", line, "paid at: "+err.Error())
	}
	method, err := payment.ParseMethod(parts[4])
	if err != nil {
		return payment.Payment{}, malformed("payment", line, err.Error())
	}
	status, err := payment.ParseStatus(parts[5])
	if err != nil {
		return payment.Payment{}, malformed("payment", line, err.Error())
	}
	return payment.Payment{
		ID:      parts[0],
		OrderID: parts[1],
		Amount:  amount,
		PaidAt:  time.UnixMilli(millis).UTC(),
		Method:  method,
		Status:  status,
	}, nil
}

// DecodeUser parses a user record and discards the password column.
func DecodeUser(line string) (user.User, error) {
	parts := strings.Split(line, fieldSep)
	if len(parts) != 6 {
		return user.User{}, malformed("user", line, fmt.Sprintf("want 6 fields, got %d", len(parts)))
	}
	admin, err := strconv.ParseBool(parts[5])
	if err != nil {
		return user.User{}, malformed("user", line, "isAdmin: "+err.Error())
	}
	return user.User{
		ID:       parts[0],
		Username: parts[1],
		Email:    parts[3],
		Address:  parts[4],
		Admin:    admin,
	}, nil
}
