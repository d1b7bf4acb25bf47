// Package transport defines how a dispatched operation reaches the router. The
// local proxy calls it in process; package remote carries requests over HTTP.
package transport

import (
	"context"
	"fmt"

	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

// Proxy executes a data portal request somewhere. Implementations share one
// error taxonomy and return graphs of identical shape.
type Proxy interface {
	Execute(ctx context.Context, req portal.Request) (portal.Response, error)
}

// Router is the in-process request handler a proxy delegates to.
type Router interface {
	Route(ctx context.Context, req portal.Request) (portal.Response, error)
}

// Local calls the router in the caller's address space.
type Local struct {
	router    Router
	autoClone bool
}

var _ Proxy = (*Local)(nil)

// LocalOption configures a Local proxy.
type LocalOption func(*Local)

// WithAutoClone controls whether updates run against a clone of the caller's
// graph, leaving the original untouched when the update fails. Enabled by default.
func WithAutoClone(enabled bool) LocalOption {
	return func(l *Local) { l.autoClone = enabled }
}

// NewLocal constructs a local proxy.
func NewLocal(router Router, opts ...LocalOption) *Local {
	l := &Local{router: router, autoClone: true}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Execute implements Proxy.
func (l *Local) Execute(ctx context.Context, req portal.Request) (portal.Response, error) {
	if req.Operation == portal.OperationUpdate && l.autoClone && req.Object != nil {
		clone, err := domain.Clone(req.Object)
		if err != nil {
			return portal.Response{}, fmt.Errorf("update %s: %w", req.Type, err)
		}
		req.Object = clone
	}
	return l.router.Route(ctx, req)
}
