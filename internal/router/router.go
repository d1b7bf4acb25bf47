// Package router resolves data portal requests to the lifecycle handlers a type
// declares and runs them inside one resource scope.
package router

import (
	"context"
	"errors"
	"fmt"

	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

// Logger is the subset of slog-style logging used by the router.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Router maps {type, operation, criteria} to a registered handler.
type Router struct {
	registry       *portal.Registry
	resources      portal.Resources
	createFallback bool
	logger         Logger
}

// Option configures a Router.
type Option func(*Router)

// WithResources sets the scope provider wrapped around each operation.
func WithResources(res portal.Resources) Option {
	return func(r *Router) {
		if res != nil {
			r.resources = res
		}
	}
}

// WithCreateFallback controls whether a create request whose criteria no handler
// accepts falls back to the parameterless create handler. Enabled by default.
func WithCreateFallback(enabled bool) Option {
	return func(r *Router) { r.createFallback = enabled }
}

// WithLogger sets the router logger.
func WithLogger(logger Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a router over registry.
func New(registry *portal.Registry, opts ...Option) *Router {
	r := &Router{
		registry:       registry,
		resources:      portal.NoResources,
		createFallback: true,
		logger:         noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the router resolves against.
func (r *Router) Registry() *portal.Registry { return r.registry }

// Route runs req and returns the resulting graph. Handlers receive a copy of the
// request context; its global values are returned in the response.
func (r *Router) Route(ctx context.Context, req portal.Request) (portal.Response, error) {
	pc := req.Context.Clone()
	var (
		obj domain.Object
		err error
	)
	switch req.Operation {
	case portal.OperationCreate:
		obj, err = r.create(ctx, &pc, req)
	case portal.OperationFetch:
		obj, err = r.fetch(ctx, &pc, req)
	case portal.OperationUpdate:
		obj, err = r.update(ctx, &pc, req)
	case portal.OperationDelete:
		err = r.delete(ctx, &pc, req)
	case portal.OperationExecute:
		obj, err = r.execute(ctx, &pc, req)
	default:
		err = fmt.Errorf("unknown operation %q", req.Operation)
	}
	if err != nil {
		r.logger.Error("route failed", "operation", string(req.Operation), "type", req.Type, "error", err)
		return portal.Response{}, err
	}
	return portal.Response{Object: obj, Global: pc.Global}, nil
}

func (r *Router) create(ctx context.Context, pc *portal.Context, req portal.Request) (domain.Object, error) {
	obj, err := r.registry.New(req.Type)
	if err != nil {
		return nil, err
	}
	h, ok := r.registry.Match(req.Type, portal.KindCreate, req.Criteria)
	if !ok && req.Criteria != nil && r.createFallback {
		h, ok = r.registry.Match(req.Type, portal.KindCreate, nil)
		if ok {
			r.logger.Debug("create falls back to parameterless handler", "type", req.Type, "criteria", portal.CriteriaKey(req.Criteria))
		}
	}
	if !ok {
		return nil, noHandler(req, portal.KindCreate)
	}
	inv := portal.Invocation{Context: pc, Object: obj, Criteria: req.Criteria}
	if h.Criteria == "" {
		inv.Criteria = nil
	}
	err = r.scoped(ctx, req, func(ctx context.Context) error {
		return invoke(ctx, req.Operation, h, inv)
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (r *Router) fetch(ctx context.Context, pc *portal.Context, req portal.Request) (domain.Object, error) {
	obj, err := r.registry.New(req.Type)
	if err != nil {
		return nil, err
	}
	h, ok := r.registry.Match(req.Type, portal.KindFetch, req.Criteria)
	if !ok {
		return nil, noHandler(req, portal.KindFetch)
	}
	err = r.scoped(ctx, req, func(ctx context.Context) error {
		return invoke(ctx, req.Operation, h, portal.Invocation{Context: pc, Object: obj, Criteria: req.Criteria})
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (r *Router) delete(ctx context.Context, pc *portal.Context, req portal.Request) error {
	if !r.registry.Has(req.Type) {
		return portal.NoHandlerError{Type: req.Type}
	}
	h, ok := r.registry.Match(req.Type, portal.KindDelete, req.Criteria)
	if !ok {
		return noHandler(req, portal.KindDelete)
	}
	return r.scoped(ctx, req, func(ctx context.Context) error {
		return invoke(ctx, req.Operation, h, portal.Invocation{Context: pc, Criteria: req.Criteria})
	})
}

func (r *Router) execute(ctx context.Context, pc *portal.Context, req portal.Request) (domain.Object, error) {
	if req.Object == nil {
		return nil, fmt.Errorf("execute %s: command object is required", req.Type)
	}
	h, ok := r.registry.Match(req.Type, portal.KindExecute, nil)
	if !ok {
		return nil, noHandler(req, portal.KindExecute)
	}
	err := r.scoped(ctx, req, func(ctx context.Context) error {
		return invoke(ctx, req.Operation, h, portal.Invocation{Context: pc, Object: req.Object})
	})
	if err != nil {
		return nil, err
	}
	return req.Object, nil
}

// update persists a root graph. The root handler is chosen from the object state
// and the children are cascaded inside the same scope, so a failure anywhere
// rolls back the whole save.
func (r *Router) update(ctx context.Context, pc *portal.Context, req portal.Request) (domain.Object, error) {
	obj := req.Object
	if obj == nil {
		return nil, fmt.Errorf("update %s: object is required", req.Type)
	}
	b := obj.Core()
	if b.IsChild() {
		return nil, fmt.Errorf("update %s: %w", req.Type, portal.ErrChildDispatch)
	}
	if b.IsDeleted() && b.IsNew() {
		// never persisted; nothing to remove
		return obj, nil
	}

	kind := portal.KindUpdate
	switch {
	case b.IsDeleted():
		kind = portal.KindDeleteSelf
	case b.IsNew() && !req.ForceUpdate:
		kind = portal.KindInsert
	}
	h, ok := r.registry.Match(req.Type, kind, nil)
	if !ok {
		return nil, noHandler(req, kind)
	}

	err := r.scoped(ctx, req, func(ctx context.Context) error {
		if err := invoke(ctx, req.Operation, h, portal.Invocation{Context: pc, Object: obj}); err != nil {
			return err
		}
		if kind == portal.KindDeleteSelf {
			return nil
		}
		return domain.Cascade(ctx, obj, &cascade{router: r, pc: pc})
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (r *Router) scoped(ctx context.Context, req portal.Request, fn func(ctx context.Context) error) error {
	scopeCtx, scope, err := r.resources.Begin(ctx, req.Operation, req.Type)
	if err != nil {
		return fmt.Errorf("begin %s scope for %s: %w", req.Operation, req.Type, err)
	}
	runErr := fn(scopeCtx)
	if cerr := scope.Complete(runErr); cerr != nil {
		return errors.Join(runErr, fmt.Errorf("complete %s scope for %s: %w", req.Operation, req.Type, cerr))
	}
	return runErr
}

func invoke(ctx context.Context, op portal.Operation, h portal.Handler, inv portal.Invocation) error {
	if err := h.Invoke(ctx, inv); err != nil {
		return portal.HandlerError{Operation: op, Kind: h.Kind, Type: h.Type, Err: err}
	}
	return nil
}

func noHandler(req portal.Request, kind portal.HandlerKind) error {
	return portal.NoHandlerError{
		Operation: req.Operation,
		Kind:      kind,
		Type:      req.Type,
		Criteria:  portal.CriteriaKey(req.Criteria),
	}
}
