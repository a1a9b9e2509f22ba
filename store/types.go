// Package store is the in-memory model of a small shop, used as the source
// side of the demo mappings.
package store

import (
	"strings"
	"time"
)

// Customer places orders. Orders point back at their customer, so a loaded
// customer is a cyclic graph.
type Customer struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Address   *Address
	Orders    []*Order
	IsActive  bool
}

type Address struct {
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Order is a transaction made by a customer.
type Order struct {
	ID        int64
	Number    string
	Customer  *Customer
	Status    OrderStatus
	Items     []OrderItem
	OrderedAt time.Time
	// Payment is nil until the order is paid.
	Payment Payment
	Tags    map[string]string
}

// OrderItem snapshots the price of a product at the time of purchase.
// Prices are in cents.
type OrderItem struct {
	ID        int64
	SKU       string
	Quantity  int
	UnitPrice int64
}

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Payment is implemented by the supported payment methods.
type Payment interface {
	AmountCents() int64
}

type CardPayment struct {
	Last4 string
	Cents int64
}

func (p CardPayment) AmountCents() int64 { return p.Cents }

type TransferPayment struct {
	IBAN  string
	Cents int64
}

func (p *TransferPayment) AmountCents() int64 { return p.Cents }

// FullName joins first and last name.
func FullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// Total sums the line prices of an order.
func Total(o Order) int64 {
	var total int64
	for _, it := range o.Items {
		total += int64(it.Quantity) * it.UnitPrice
	}

	return total
}

// Sample returns a customer with two orders, the first one paid by card.
func Sample() *Customer {
	c := &Customer{
		ID:        7,
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   &Address{Street: "12 St James's Sq", City: "London", PostalCode: "SW1Y 4JH", Country: "UK"},
		IsActive:  true,
	}

	c.Orders = []*Order{
		{
			ID:        100,
			Number:    "A-100",
			Customer:  c,
			Status:    StatusPaid,
			Items:     []OrderItem{{ID: 1, SKU: "ENGINE", Quantity: 1, UnitPrice: 125000}, {ID: 2, SKU: "CARD", Quantity: 40, UnitPrice: 25}},
			OrderedAt: time.Date(1843, time.September, 1, 10, 0, 0, 0, time.UTC),
			Payment:   CardPayment{Last4: "1843", Cents: 126000},
			Tags:      map[string]string{"channel": "web"},
		},
		{
			ID:        101,
			Number:    "A-101",
			Customer:  c,
			Status:    StatusPending,
			Items:     []OrderItem{{ID: 3, SKU: "NOTES", Quantity: 2, UnitPrice: 900}},
			OrderedAt: time.Date(1843, time.October, 5, 9, 30, 0, 0, time.UTC),
		},
	}

	return c
}
