package domain

import (
	"context"
	"errors"
)

// ErrSkipChildren can be returned by a Walk visitor to skip the node's descendants.
var ErrSkipChildren = errors.New("skip children")

// Walk visits obj and its live descendants depth-first, in relation declaration
// order. parent is nil for obj itself.
func Walk(obj Object, fn func(node, parent Object) error) error {
	return walk(obj, nil, fn)
}

func walk(node, parent Object, fn func(node, parent Object) error) error {
	if err := fn(node, parent); err != nil {
		if errors.Is(err, ErrSkipChildren) {
			return nil
		}
		return err
	}
	for _, rel := range node.Core().relations {
		for _, child := range rel.live() {
			if err := walk(child, node, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// CascadeVisitor receives the child persistence steps of an update.
type CascadeVisitor interface {
	DeleteChild(ctx context.Context, child, parent Object) error
	InsertChild(ctx context.Context, child, parent Object) error
	UpdateChild(ctx context.Context, child, parent Object) error
}

// Cascade drives the persistence of parent's children. Removed persisted children
// are deleted first, then new children are inserted, then dirty existing children
// are updated. Each inserted or updated child cascades into its own children
// before the next sibling is visited. Removed children that were never persisted
// are skipped.
func Cascade(ctx context.Context, parent Object, v CascadeVisitor) error {
	pb := parent.Core()
	for _, rel := range pb.relations {
		for _, child := range rel.removed() {
			if child.Core().isNew {
				continue
			}
			if err := v.DeleteChild(ctx, child, parent); err != nil {
				return err
			}
		}
	}
	for _, rel := range pb.relations {
		for _, child := range rel.live() {
			if !child.Core().isNew {
				continue
			}
			if err := v.InsertChild(ctx, child, parent); err != nil {
				return err
			}
			if err := Cascade(ctx, child, v); err != nil {
				return err
			}
		}
	}
	for _, rel := range pb.relations {
		for _, child := range rel.live() {
			cb := child.Core()
			if cb.isNew || !cb.IsDirty() {
				continue
			}
			if cb.IsSelfDirty() {
				if err := v.UpdateChild(ctx, child, parent); err != nil {
					return err
				}
			}
			if err := Cascade(ctx, child, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// CompleteCreate marks a freshly created graph as new and clean.
func CompleteCreate(obj Object) {
	_ = Walk(obj, func(node, _ Object) error {
		node.Core().markNew()
		return nil
	})
}

// CompleteFetch marks a freshly fetched graph as persisted and clean.
func CompleteFetch(obj Object) {
	_ = Walk(obj, func(node, _ Object) error {
		node.Core().markOld()
		return nil
	})
}

// CompleteSave applies the outcome of a successful update. A deleted root becomes
// a new, detached object; otherwise the whole graph is marked persisted and clean
// and removed children are forgotten.
func CompleteSave(obj Object) {
	b := obj.Core()
	if b.isDeleted {
		_ = Walk(obj, func(node, _ Object) error {
			nb := node.Core()
			nb.markNew()
			for _, rel := range nb.relations {
				rel.clearRemoved()
			}
			return nil
		})
		detach(obj)
		return
	}
	_ = Walk(obj, func(node, _ Object) error {
		nb := node.Core()
		nb.markOld()
		for _, rel := range nb.relations {
			rel.clearRemoved()
		}
		return nil
	})
}
