package domain

import (
	"context"
	"errors"
	"testing"
)

type recordingVisitor struct {
	calls []string
	fail  string
}

func (r *recordingVisitor) record(op string, child Object) error {
	call := op + ":" + child.Core().TypeName()
	if sku, ok := child.(*testLine); ok {
		call += ":" + sku.SKU.Get()
	}
	r.calls = append(r.calls, call)
	if call == r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recordingVisitor) DeleteChild(_ context.Context, child, _ Object) error {
	return r.record("delete", child)
}

func (r *recordingVisitor) InsertChild(_ context.Context, child, _ Object) error {
	return r.record("insert", child)
}

func (r *recordingVisitor) UpdateChild(_ context.Context, child, _ Object) error {
	return r.record("update", child)
}

func TestWalkVisitsDepthFirst(t *testing.T) {
	o := fetchedOrder()
	o.Lines.At(0).Parts.AddNew()
	var seen []string
	err := Walk(o, func(node, parent Object) error {
		seen = append(seen, node.Core().TypeName())
		if parent == nil && node != Object(o) {
			t.Fatalf("only the root has no parent")
		}
		return nil
	})
	mustNoError(t, "walk", err)
	want := []string{"test.Order", "test.Line", "test.Part", "test.Line"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestWalkSkipChildren(t *testing.T) {
	o := fetchedOrder()
	count := 0
	mustNoError(t, "walk", Walk(o, func(node, _ Object) error {
		count++
		return ErrSkipChildren
	}))
	if count != 1 {
		t.Fatalf("expected only the root to be visited, got %d", count)
	}
}

func TestCascadeOrdersDeletesInsertsUpdates(t *testing.T) {
	o := fetchedOrder()
	o.Lines.At(1).Qty.Set(5)
	o.Lines.RemoveAt(0)
	added := o.Lines.AddNew()
	added.SKU.Set("c")
	added.Parts.AddNew()

	v := &recordingVisitor{}
	mustNoError(t, "cascade", Cascade(context.Background(), o, v))
	want := []string{"delete:test.Line:a", "insert:test.Line:c", "insert:test.Part", "update:test.Line:b"}
	if len(v.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, v.calls)
	}
	for i := range want {
		if v.calls[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, v.calls)
		}
	}
}

func TestCascadeSkipsCleanAndDiscardedChildren(t *testing.T) {
	o := fetchedOrder()
	v := &recordingVisitor{}
	mustNoError(t, "cascade", Cascade(context.Background(), o, v))
	if len(v.calls) != 0 {
		t.Fatalf("expected no calls for a clean graph, got %v", v.calls)
	}
}

func TestCascadeRecursesIntoDirtyDescendantsOnly(t *testing.T) {
	o := fetchedOrder()
	o.Lines.At(0).Parts.AddNew()
	v := &recordingVisitor{}
	mustNoError(t, "cascade", Cascade(context.Background(), o, v))
	if len(v.calls) != 1 || v.calls[0] != "insert:test.Part" {
		t.Fatalf("expected only the part insert, got %v", v.calls)
	}
}

func TestCascadeStopsOnError(t *testing.T) {
	o := fetchedOrder()
	o.Lines.RemoveAt(0)
	o.Lines.AddNew().SKU.Set("c")
	v := &recordingVisitor{fail: "delete:test.Line:a"}
	if err := Cascade(context.Background(), o, v); err == nil {
		t.Fatalf("expected visitor error")
	}
	if len(v.calls) != 1 {
		t.Fatalf("cascade must stop at the first failure, got %v", v.calls)
	}
}

func TestCompleteSaveMarksGraphOld(t *testing.T) {
	o := newTestOrder()
	o.Customer.Set("acme")
	o.Lines.AddNew().SKU.Set("a")
	CompleteSave(o)
	if o.IsNew() || o.IsDirty() || o.Lines.At(0).IsNew() {
		t.Fatalf("saved graph must be old and clean")
	}
}

func TestCompleteSaveClearsDeletedChildren(t *testing.T) {
	o := fetchedOrder()
	o.Lines.RemoveAt(0)
	CompleteSave(o)
	if len(o.Lines.Deleted()) != 0 || o.IsDirty() {
		t.Fatalf("deleted children must be forgotten after save")
	}
}

func TestCompleteSaveOfDeletedRootDetaches(t *testing.T) {
	o := fetchedOrder()
	mustNoError(t, "delete", o.Delete())
	CompleteSave(o)
	if !o.IsNew() || o.IsDeleted() {
		t.Fatalf("deleted root must become new after save")
	}
	if o.Lines.At(0).Root() != Object(o) {
		t.Fatalf("children must stay attached to the detached root")
	}
}

func TestCompleteCreateClearsDirtyFields(t *testing.T) {
	o := newTestOrder()
	o.Customer.Set("default")
	CompleteCreate(o)
	if o.Customer.IsDirty() || !o.IsNew() {
		t.Fatalf("created object must be new with clean fields")
	}
}
