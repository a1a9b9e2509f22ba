// Package warehouse holds the transfer objects the fulfilment side works
// with, used as the target side of the demo mappings.
package warehouse

// Customer is the fulfilment view of a store customer.
type Customer struct {
	ID       uint64
	Email    string
	FullName string
	Address  *Address
	Orders   []*Order
}

type Address struct {
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Order is a shipment request. Customer points back at the owner.
type Order struct {
	ID          uint64
	OrderNumber string
	Customer    *Customer
	Status      string
	Items       []*OrderItem
	// OrderedAt is RFC 3339 text.
	OrderedAt   string
	TotalAmount int64
	Payment     Payment
	Tags        map[string]string
	// Warehouse is assigned by fulfilment and never sourced.
	Warehouse string
}

type OrderItem struct {
	ID        uint64
	SKU       string
	Quantity  uint32
	UnitPrice int64
}

// Payment is implemented by the payment transfer objects.
type Payment interface {
	Method() string
}

type CardPayment struct {
	Last4 string
	Cents int64
}

func (CardPayment) Method() string { return "card" }

type TransferPayment struct {
	IBAN  string
	Cents int64
}

func (TransferPayment) Method() string { return "transfer" }
