package domain

import "fmt"

// List is an ordered child collection. Items removed from it stay in a deleted
// set until the owning root is saved, so the data layer can delete them.
type List[T Object] struct {
	owner   *Base
	key     string
	items   []T
	deleted []T
	newItem func() T
}

type listFrame[T Object] struct {
	items   []T
	deleted []T
}

// NewList registers a child list on owner. newItem constructs the item type and
// is used by AddNew, Clone and Decode.
func NewList[T Object](owner *Base, name string, newItem func() T) *List[T] {
	l := &List[T]{owner: owner, key: name, newItem: newItem}
	owner.addRelation(l)
	return l
}

// Name returns the relation name.
func (l *List[T]) Name() string { return l.key }

// Len returns the number of visible items.
func (l *List[T]) Len() int { return len(l.items) }

// At returns the item at index i.
func (l *List[T]) At(i int) T { return l.items[i] }

// Items returns a copy of the visible items.
func (l *List[T]) Items() []T { return append([]T(nil), l.items...) }

// Deleted returns a copy of the removed items awaiting deletion.
func (l *List[T]) Deleted() []T { return append([]T(nil), l.deleted...) }

// Add attaches item as a child of the list owner.
func (l *List[T]) Add(item T) error {
	if err := attachChild(l.owner, item); err != nil {
		return fmt.Errorf("add to %s: %w", l.key, err)
	}
	l.items = append(l.items, item)
	l.owner.CheckRules()
	return nil
}

// AddNew constructs, attaches and returns a new item.
func (l *List[T]) AddNew() T {
	item := l.newItem()
	// a fresh item is never a child nor under edit, so attach cannot fail
	_ = l.Add(item)
	return item
}

// IndexOf returns the position of the item with the same identity, or -1.
func (l *List[T]) IndexOf(item T) int {
	for i, existing := range l.items {
		if sameIdentity(existing, item) {
			return i
		}
	}
	return -1
}

// Contains reports whether an item with the same identity is visible.
func (l *List[T]) Contains(item T) bool { return l.IndexOf(item) >= 0 }

// ContainsDeleted reports whether an item with the same identity awaits deletion.
func (l *List[T]) ContainsDeleted(item T) bool {
	for _, existing := range l.deleted {
		if sameIdentity(existing, item) {
			return true
		}
	}
	return false
}

// Remove takes the item with the same identity out of the list.
func (l *List[T]) Remove(item T) bool {
	idx := l.IndexOf(item)
	if idx < 0 {
		return false
	}
	_, _ = l.RemoveAt(idx)
	return true
}

// RemoveAt takes the item at index i out of the list. Persisted items move to the
// deleted set; new items are discarded.
func (l *List[T]) RemoveAt(i int) (T, error) {
	var zero T
	if i < 0 || i >= len(l.items) {
		return zero, fmt.Errorf("remove from %s: index %d out of range", l.key, i)
	}
	item := l.items[i]
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	item.Core().markDeleted()
	if !item.Core().isNew {
		l.deleted = append(l.deleted, item)
	}
	l.owner.CheckRules()
	return item, nil
}

// Clear removes every item.
func (l *List[T]) Clear() {
	for len(l.items) > 0 {
		_, _ = l.RemoveAt(len(l.items) - 1)
	}
}

func (l *List[T]) name() string      { return l.key }
func (l *List[T]) live() []Object    { return toObjects(l.items) }
func (l *List[T]) removed() []Object { return toObjects(l.deleted) }

func (l *List[T]) members() []Object {
	return append(toObjects(l.items), toObjects(l.deleted)...)
}

func (l *List[T]) isDirty() bool {
	if len(l.deleted) > 0 {
		return true
	}
	for _, item := range l.items {
		if item.Core().IsDirty() {
			return true
		}
	}
	return false
}

func (l *List[T]) snapshot() any {
	return listFrame[T]{
		items:   append([]T(nil), l.items...),
		deleted: append([]T(nil), l.deleted...),
	}
}

func (l *List[T]) restore(state any) {
	fr, ok := state.(listFrame[T])
	if !ok {
		return
	}
	l.items = fr.items
	l.deleted = fr.deleted
}

func (l *List[T]) clearRemoved() {
	for _, item := range l.deleted {
		ib := item.Core()
		if ib.arena != nil {
			ib.arena.release(ib.handle)
		}
	}
	l.deleted = nil
}

func (l *List[T]) cloneFrom(src relation) error {
	other, ok := src.(*List[T])
	if !ok {
		return fmt.Errorf("clone %s: %w", l.key, ErrTypeMismatch)
	}
	l.items, l.deleted = nil, nil
	for _, item := range other.items {
		c, err := cloneChild(l.owner, item)
		if err != nil {
			return err
		}
		l.items = append(l.items, c)
	}
	for _, item := range other.deleted {
		c, err := cloneChild(l.owner, item)
		if err != nil {
			return err
		}
		l.deleted = append(l.deleted, c)
	}
	return nil
}

func (l *List[T]) encode() (RelationDocument, error) {
	var doc RelationDocument
	for _, item := range l.items {
		d, err := encodeNode(item)
		if err != nil {
			return RelationDocument{}, err
		}
		doc.Items = append(doc.Items, d)
	}
	for _, item := range l.deleted {
		d, err := encodeNode(item)
		if err != nil {
			return RelationDocument{}, err
		}
		doc.Removed = append(doc.Removed, d)
	}
	return doc, nil
}

func (l *List[T]) decode(doc RelationDocument) error {
	l.items, l.deleted = nil, nil
	for _, d := range doc.Items {
		item, err := decodeChild(l.owner, d, l.newItem)
		if err != nil {
			return err
		}
		l.items = append(l.items, item)
	}
	for _, d := range doc.Removed {
		item, err := decodeChild(l.owner, d, l.newItem)
		if err != nil {
			return err
		}
		l.deleted = append(l.deleted, item)
	}
	return nil
}
