package transport

import (
	"context"
	"errors"
	"testing"

	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

type note struct {
	domain.Base
	Text *domain.Field[string]
}

func newNote() *note {
	n := &note{}
	n.Init(n, "test.Note", func() domain.Object { return newNote() })
	n.Text = domain.NewField(&n.Base, "text", "")
	return n
}

type routerFunc func(ctx context.Context, req portal.Request) (portal.Response, error)

func (f routerFunc) Route(ctx context.Context, req portal.Request) (portal.Response, error) {
	return f(ctx, req)
}

func TestLocalUpdateRunsOnClone(t *testing.T) {
	original := newNote()
	original.Text.Set("draft")
	var seen domain.Object
	proxy := NewLocal(routerFunc(func(_ context.Context, req portal.Request) (portal.Response, error) {
		seen = req.Object
		req.Object.(*note).Text.Set("mutated")
		return portal.Response{}, errors.New("store down")
	}))
	_, err := proxy.Execute(context.Background(), portal.Request{Operation: portal.OperationUpdate, Type: "test.Note", Object: original})
	if err == nil {
		t.Fatalf("expected router error")
	}
	if seen == domain.Object(original) {
		t.Fatalf("router must receive a clone")
	}
	if original.Text.Get() != "draft" {
		t.Fatalf("failed update must leave the caller's object untouched")
	}
}

func TestLocalWithoutAutoClonePassesReference(t *testing.T) {
	original := newNote()
	var seen domain.Object
	proxy := NewLocal(routerFunc(func(_ context.Context, req portal.Request) (portal.Response, error) {
		seen = req.Object
		return portal.Response{Object: req.Object}, nil
	}), WithAutoClone(false))
	if _, err := proxy.Execute(context.Background(), portal.Request{Operation: portal.OperationUpdate, Type: "test.Note", Object: original}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if seen != domain.Object(original) {
		t.Fatalf("expected the original reference")
	}
}

func TestLocalCloneRejectsOpenEdits(t *testing.T) {
	original := newNote()
	_ = original.BeginEdit()
	proxy := NewLocal(routerFunc(func(context.Context, portal.Request) (portal.Response, error) {
		t.Fatalf("router must not run")
		return portal.Response{}, nil
	}))
	_, err := proxy.Execute(context.Background(), portal.Request{Operation: portal.OperationUpdate, Type: "test.Note", Object: original})
	if !errors.Is(err, domain.ErrEditInProgress) {
		t.Fatalf("expected ErrEditInProgress, got %v", err)
	}
}
