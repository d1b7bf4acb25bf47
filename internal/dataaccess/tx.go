package dataaccess

import (
	"context"
	"database/sql"
	"errors"

	"bizcore/pkg/portal"
)

// ErrNoDatabase is returned by Tx methods when the scope has no database.
var ErrNoDatabase = errors.New("dataaccess: scope has no database")

type txKey struct{}

// Tx is the transaction shared by every handler of one portal operation.
// Queries use ? placeholders and are rebound for the active driver.
type Tx struct {
	owner        *Manager
	tx           *sql.Tx
	driver       Driver
	op           portal.Operation
	typeName     string
	depth        int
	rollbackOnly bool
}

// FromContext returns the scope transaction carried by ctx.
func FromContext(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok && tx != nil
}

// Driver returns the backend of the transaction.
func (t *Tx) Driver() Driver { return t.driver }

// Operation returns the portal operation that opened the scope.
func (t *Tx) Operation() portal.Operation { return t.op }

// ExecContext runs a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if t.tx == nil {
		return nil, ErrNoDatabase
	}
	return t.tx.ExecContext(ctx, Rebind(t.driver, query), args...)
}

// QueryContext runs a query inside the transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if t.tx == nil {
		return nil, ErrNoDatabase
	}
	return t.tx.QueryContext(ctx, Rebind(t.driver, query), args...)
}

// QueryRowContext runs a single row query inside the transaction. Without a
// database the returned row reports ErrNoDatabase from Scan.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	if t.tx == nil {
		return errRow{err: ErrNoDatabase}
	}
	return t.tx.QueryRowContext(ctx, Rebind(t.driver, query), args...)
}

// Row is the subset of *sql.Row handlers scan from.
type Row interface {
	Scan(dest ...any) error
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// MarkRollback forces the outermost scope to roll back even if every handler
// succeeds.
func (t *Tx) MarkRollback() { t.rollbackOnly = true }

// Depth reports how many scopes currently share the transaction.
func (t *Tx) Depth() int { return t.depth }
