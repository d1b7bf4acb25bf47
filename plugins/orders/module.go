package orders

import (
	"errors"

	"bizcore/pkg/portal"
)

// Module installs the order types and handlers.
type Module struct{}

// New constructs the orders module.
func New() Module { return Module{} }

// Name returns the module identifier.
func (Module) Name() string { return "orders" }

// Version returns the module semantic version.
func (Module) Version() string { return "0.1.0" }

// Register declares the order types and their handlers.
func (Module) Register(reg *portal.Registry) error {
	orders, err := portal.Define(reg, TypeOrder, NewOrder)
	if err != nil {
		return err
	}
	lines, err := portal.Define(reg, TypeLineItem, NewLineItem)
	if err != nil {
		return err
	}
	ship, err := portal.Define(reg, TypeShipOrder, func() *ShipOrder { return NewShipOrder("") })
	if err != nil {
		return err
	}
	summaries, err := portal.Define(reg, TypeOrderSummary, NewOrderSummaryList)
	if err != nil {
		return err
	}
	return errors.Join(
		orders.Create(createOrder),
		portal.CreateWith(orders, createOrderFor),
		portal.FetchWith(orders, fetchOrder),
		orders.Insert(insertOrder),
		orders.Update(updateOrder),
		orders.DeleteSelf(deleteOrderSelf),
		portal.DeleteWith(orders, deleteOrder),
		lines.ChildInsert(insertLine),
		lines.ChildUpdate(updateLine),
		lines.ChildDelete(deleteLine),
		ship.Execute(shipOrder),
		portal.FetchWith(summaries, fetchSummaries),
	)
}
