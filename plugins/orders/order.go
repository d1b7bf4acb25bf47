// Package orders is a sample business module: an Order root with LineItem
// children, a ShipOrder command and a read-only OrderSummaryList, persisted
// through the SQL scope of each portal operation.
package orders

import (
	"fmt"

	"bizcore/pkg/domain"
)

// Business type names.
const (
	TypeOrder        = "orders.Order"
	TypeLineItem     = "orders.LineItem"
	TypeShipOrder    = "orders.ShipOrder"
	TypeOrderSummary = "orders.OrderSummaryList"
)

// Order statuses.
const (
	StatusOpen    = "open"
	StatusShipped = "shipped"
)

// Order is an editable root with line items.
type Order struct {
	domain.Base
	Number   *domain.Field[string]
	Customer *domain.Field[string]
	Status   *domain.Field[string]
	Lines    *domain.List[*LineItem]
}

// NewOrder constructs an empty order.
func NewOrder() *Order {
	o := &Order{}
	o.Init(o, TypeOrder, func() domain.Object { return NewOrder() })
	o.Number = domain.NewField(&o.Base, "number", "")
	o.Customer = domain.NewField(&o.Base, "customer", "")
	o.Status = domain.NewField(&o.Base, "status", StatusOpen)
	o.Lines = domain.NewList(&o.Base, "lines", NewLineItem)
	o.AddRule(domain.Required(o.Number))
	o.AddRule(domain.Required(o.Customer))
	o.AddRule(domain.NewRule("orders.has_lines", func(domain.Object) domain.Result {
		if o.Lines.Len() > 0 {
			return domain.Result{}
		}
		return domain.Result{Violations: []domain.Violation{{
			Rule:     "orders.has_lines",
			Severity: domain.SeverityWarn,
			Message:  "order has no lines",
		}}}
	}))
	return o
}

// TotalCents sums the live lines.
func (o *Order) TotalCents() int64 {
	var total int64
	for _, line := range o.Lines.Items() {
		total += line.SubtotalCents()
	}
	return total
}

// LineItem is one order line. It exists only as a child of an Order.
type LineItem struct {
	domain.Base
	SKU       *domain.Field[string]
	Quantity  *domain.Field[int]
	UnitCents *domain.Field[int64]
}

// NewLineItem constructs an empty line.
func NewLineItem() *LineItem {
	l := &LineItem{}
	l.Init(l, TypeLineItem, func() domain.Object { return NewLineItem() })
	l.SKU = domain.NewField(&l.Base, "sku", "")
	l.Quantity = domain.NewField(&l.Base, "quantity", 1)
	l.UnitCents = domain.NewField(&l.Base, "unit_cents", int64(0))
	l.AddRule(domain.Required(l.SKU))
	l.AddRule(domain.NewRule("orders.quantity_positive", func(domain.Object) domain.Result {
		if q := l.Quantity.Get(); q <= 0 {
			return domain.Result{Violations: []domain.Violation{{
				Rule:     "orders.quantity_positive",
				Field:    "quantity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("quantity must be positive, got %d", q),
			}}}
		}
		return domain.Result{}
	}))
	return l
}

// SubtotalCents is quantity times unit price.
func (l *LineItem) SubtotalCents() int64 {
	return int64(l.Quantity.Get()) * l.UnitCents.Get()
}

// ShipOrder is a command that ships an open order.
type ShipOrder struct {
	domain.Base
	Number  *domain.Field[string]
	Shipped *domain.Field[bool]
	Lines   *domain.Field[int]
}

// NewShipOrder constructs the command for the order number.
func NewShipOrder(number string) *ShipOrder {
	c := &ShipOrder{}
	c.Init(c, TypeShipOrder, func() domain.Object { return NewShipOrder("") })
	c.Number = domain.NewField(&c.Base, "number", number)
	c.Shipped = domain.NewField(&c.Base, "shipped", false)
	c.Lines = domain.NewField(&c.Base, "lines", 0)
	return c
}

// OrderSummary is one row of the summary list.
type OrderSummary struct {
	Number     string `json:"number"`
	Customer   string `json:"customer"`
	Status     string `json:"status"`
	Lines      int    `json:"lines"`
	TotalCents int64  `json:"total_cents"`
}

// OrderSummaryList is a read-only report of orders.
type OrderSummaryList struct {
	domain.ReadOnlyList[OrderSummary]
}

// NewOrderSummaryList constructs an empty list.
func NewOrderSummaryList() *OrderSummaryList {
	l := &OrderSummaryList{}
	l.InitList(l, TypeOrderSummary, func() domain.Object { return NewOrderSummaryList() })
	return l
}

// ByNumber identifies one order.
type ByNumber struct {
	Number string `json:"number"`
}

// ByCustomer selects the orders of a customer. An empty customer selects all.
type ByCustomer struct {
	Customer string `json:"customer"`
}

// ForCustomer creates an order prefilled for a customer.
type ForCustomer struct {
	Customer string `json:"customer"`
}
