package router

import (
	"context"

	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

// cascade runs child handlers for domain.Cascade.
type cascade struct {
	router *Router
	pc     *portal.Context
}

var _ domain.CascadeVisitor = (*cascade)(nil)

func (c *cascade) DeleteChild(ctx context.Context, child, parent domain.Object) error {
	return c.run(ctx, portal.KindChildDelete, child, parent)
}

func (c *cascade) InsertChild(ctx context.Context, child, parent domain.Object) error {
	return c.run(ctx, portal.KindChildInsert, child, parent)
}

func (c *cascade) UpdateChild(ctx context.Context, child, parent domain.Object) error {
	return c.run(ctx, portal.KindChildUpdate, child, parent)
}

func (c *cascade) run(ctx context.Context, kind portal.HandlerKind, child, parent domain.Object) error {
	typeName := child.Core().TypeName()
	h, ok := c.router.registry.Match(typeName, kind, nil)
	if !ok {
		return portal.NoHandlerError{Operation: portal.OperationUpdate, Kind: kind, Type: typeName}
	}
	return invoke(ctx, portal.OperationUpdate, h, portal.Invocation{Context: c.pc, Object: child, Parent: parent})
}
