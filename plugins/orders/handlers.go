package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bizcore/internal/dataaccess"
	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

var (
	// ErrNotFound reports an unknown order number.
	ErrNotFound = errors.New("orders: order not found")
	// ErrNotShippable reports a ship command for an order that is not open.
	ErrNotShippable = errors.New("orders: order not shippable")
)

// Schema returns the DDL for the module tables. It is valid for sqlite and
// postgres.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL UNIQUE,
			customer TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_lines (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			position INTEGER NOT NULL,
			sku TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_cents BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS order_lines_order_id ON order_lines(order_id)`,
	}
}

func scopeTx(ctx context.Context) (*dataaccess.Tx, error) {
	tx, ok := dataaccess.FromContext(ctx)
	if !ok {
		return nil, errors.New("orders: no data access scope")
	}
	return tx, nil
}

func createOrder(_ context.Context, _ *portal.Context, o *Order) error {
	o.Status.Set(StatusOpen)
	return nil
}

func createOrderFor(_ context.Context, _ *portal.Context, o *Order, c ForCustomer) error {
	o.Status.Set(StatusOpen)
	o.Customer.Set(c.Customer)
	return nil
}

func fetchOrder(ctx context.Context, _ *portal.Context, o *Order, c ByNumber) error {
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	var id, customer, status string
	err = tx.QueryRowContext(ctx, `SELECT id, customer, status FROM orders WHERE number = ?`, c.Number).Scan(&id, &customer, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %s: %w", c.Number, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("select order %s: %w", c.Number, err)
	}
	if err := o.LoadID(id); err != nil {
		return err
	}
	o.Number.Set(c.Number)
	o.Customer.Set(customer)
	o.Status.Set(status)

	rows, err := tx.QueryContext(ctx, `SELECT id, sku, quantity, unit_cents FROM order_lines WHERE order_id = ? ORDER BY position`, id)
	if err != nil {
		return fmt.Errorf("select lines of %s: %w", c.Number, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			lineID, sku string
			qty         int
			unit        int64
		)
		if err := rows.Scan(&lineID, &sku, &qty, &unit); err != nil {
			return fmt.Errorf("scan line: %w", err)
		}
		line := NewLineItem()
		if err := line.LoadID(lineID); err != nil {
			return err
		}
		line.SKU.Set(sku)
		line.Quantity.Set(qty)
		line.UnitCents.Set(unit)
		if err := o.Lines.Add(line); err != nil {
			return err
		}
	}
	return rows.Err()
}

func insertOrder(ctx context.Context, _ *portal.Context, o *Order) error {
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO orders (id, number, customer, status) VALUES (?, ?, ?, ?)`,
		o.ID(), o.Number.Get(), o.Customer.Get(), o.Status.Get())
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.Number.Get(), err)
	}
	return nil
}

func updateOrder(ctx context.Context, _ *portal.Context, o *Order) error {
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE orders SET number = ?, customer = ?, status = ? WHERE id = ?`,
		o.Number.Get(), o.Customer.Get(), o.Status.Get(), o.ID())
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.Number.Get(), err)
	}
	return requireRow(res, o.Number.Get())
}

func deleteOrderSelf(ctx context.Context, _ *portal.Context, o *Order) error {
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = ?`, o.ID()); err != nil {
		return fmt.Errorf("delete lines of %s: %w", o.Number.Get(), err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, o.ID())
	if err != nil {
		return fmt.Errorf("delete order %s: %w", o.Number.Get(), err)
	}
	return requireRow(res, o.Number.Get())
}

func deleteOrder(ctx context.Context, _ *portal.Context, c ByNumber) error {
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id IN (SELECT id FROM orders WHERE number = ?)`, c.Number); err != nil {
		return fmt.Errorf("delete lines of %s: %w", c.Number, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE number = ?`, c.Number)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", c.Number, err)
	}
	return requireRow(res, c.Number)
}

func parentOrder(parent domain.Object) (*Order, error) {
	o, ok := parent.(*Order)
	if !ok {
		return nil, fmt.Errorf("line parent is %T, not an order", parent)
	}
	return o, nil
}

func insertLine(ctx context.Context, _ *portal.Context, l *LineItem, parent domain.Object) error {
	o, err := parentOrder(parent)
	if err != nil {
		return err
	}
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO order_lines (id, order_id, position, sku, quantity, unit_cents) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID(), o.ID(), o.Lines.IndexOf(l), l.SKU.Get(), l.Quantity.Get(), l.UnitCents.Get())
	if err != nil {
		return fmt.Errorf("insert line %s: %w", l.SKU.Get(), err)
	}
	return nil
}

func updateLine(ctx context.Context, _ *portal.Context, l *LineItem, parent domain.Object) error {
	o, err := parentOrder(parent)
	if err != nil {
		return err
	}
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE order_lines SET position = ?, sku = ?, quantity = ?, unit_cents = ? WHERE id = ? AND order_id = ?`,
		o.Lines.IndexOf(l), l.SKU.Get(), l.Quantity.Get(), l.UnitCents.Get(), l.ID(), o.ID())
	if err != nil {
		return fmt.Errorf("update line %s: %w", l.SKU.Get(), err)
	}
	return requireRow(res, o.Number.Get())
}

func deleteLine(ctx context.Context, _ *portal.Context, l *LineItem, _ domain.Object) error {
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE id = ?`, l.ID()); err != nil {
		return fmt.Errorf("delete line %s: %w", l.SKU.Get(), err)
	}
	return nil
}

func shipOrder(ctx context.Context, pc *portal.Context, c *ShipOrder) error {
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	number := c.Number.Get()
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status = ? WHERE number = ? AND status = ?`, StatusShipped, number, StatusOpen)
	if err != nil {
		return fmt.Errorf("ship order %s: %w", number, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("ship order %s: %w", number, ErrNotShippable)
	}
	var lines int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_lines l JOIN orders o ON o.id = l.order_id WHERE o.number = ?`, number).Scan(&lines); err != nil {
		return fmt.Errorf("count lines of %s: %w", number, err)
	}
	c.Shipped.Set(true)
	c.Lines.Set(lines)
	pc.SetGlobal("orders.last_shipped", number)
	return nil
}

func fetchSummaries(ctx context.Context, _ *portal.Context, l *OrderSummaryList, c ByCustomer) error {
	tx, err := scopeTx(ctx)
	if err != nil {
		return err
	}
	rows, err := tx.QueryContext(ctx, `SELECT o.number, o.customer, o.status, COUNT(l.id), CAST(COALESCE(SUM(l.quantity * l.unit_cents), 0) AS BIGINT)
		FROM orders o LEFT JOIN order_lines l ON l.order_id = o.id
		WHERE ? = '' OR o.customer = ?
		GROUP BY o.number, o.customer, o.status
		ORDER BY o.number`, c.Customer, c.Customer)
	if err != nil {
		return fmt.Errorf("select summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []OrderSummary
	for rows.Next() {
		var s OrderSummary
		if err := rows.Scan(&s.Number, &s.Customer, &s.Status, &s.Lines, &s.TotalCents); err != nil {
			return fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return l.Load(out...)
}

func requireRow(res sql.Result, number string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", number, ErrNotFound)
	}
	return nil
}
