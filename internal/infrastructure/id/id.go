// Package id issues short identifiers derived from random UUIDs.
package id

import "github.com/google/uuid"

const (
	// Length of the random part of every identifier.
	Length = 8

	OrderPrefix   = "ORD-"
	PaymentPrefix = "PAY-"
)

type UUIDGenerator struct {
	prefix string
}

// NewUUIDGenerator returns a generator for plain identifiers (books, users).
func NewUUIDGenerator() *UUIDGenerator { return &UUIDGenerator{} }

// NewOrderGenerator returns a generator for ORD- identifiers.
func NewOrderGenerator() *UUIDGenerator { return &UUIDGenerator{prefix: OrderPrefix} }

// NewPaymentGenerator returns a generator for PAY- identifiers.
func NewPaymentGenerator() *UUIDGenerator { return &UUIDGenerator{prefix: PaymentPrefix} }

// NewID returns the prefix followed by the first Length hex characters of a
// random UUID. Collisions are not retried.
func (g *UUIDGenerator) NewID() string {
	return g.prefix + uuid.NewString()[:Length]
}

