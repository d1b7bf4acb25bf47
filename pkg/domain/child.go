package domain

import "fmt"

// Child is a single-valued child slot. A persisted child replaced or cleared
// from the slot is kept for deletion on the next save.
type Child[T Object] struct {
	owner   *Base
	key     string
	value   T
	set     bool
	deleted []T
	newItem func() T
}

type childFrame[T Object] struct {
	value   T
	set     bool
	deleted []T
}

// NewChild registers a single child slot on owner.
func NewChild[T Object](owner *Base, name string, newItem func() T) *Child[T] {
	c := &Child[T]{owner: owner, key: name, newItem: newItem}
	owner.addRelation(c)
	return c
}

// Get returns the current child.
func (c *Child[T]) Get() (T, bool) { return c.value, c.set }

// Set attaches child, replacing any current child.
func (c *Child[T]) Set(child T) error {
	if err := attachChild(c.owner, child); err != nil {
		return fmt.Errorf("set %s: %w", c.key, err)
	}
	c.drop()
	c.value, c.set = child, true
	c.owner.CheckRules()
	return nil
}

// Clear empties the slot.
func (c *Child[T]) Clear() {
	c.drop()
	c.owner.CheckRules()
}

func (c *Child[T]) drop() {
	if !c.set {
		return
	}
	old := c.value
	old.Core().markDeleted()
	if !old.Core().isNew {
		c.deleted = append(c.deleted, old)
	}
	var zero T
	c.value, c.set = zero, false
}

func (c *Child[T]) name() string { return c.key }

func (c *Child[T]) live() []Object {
	if !c.set {
		return nil
	}
	return []Object{c.value}
}

func (c *Child[T]) removed() []Object { return toObjects(c.deleted) }

func (c *Child[T]) members() []Object { return append(c.live(), c.removed()...) }

func (c *Child[T]) isDirty() bool {
	if len(c.deleted) > 0 {
		return true
	}
	return c.set && c.value.Core().IsDirty()
}

func (c *Child[T]) snapshot() any {
	return childFrame[T]{value: c.value, set: c.set, deleted: append([]T(nil), c.deleted...)}
}

func (c *Child[T]) restore(state any) {
	fr, ok := state.(childFrame[T])
	if !ok {
		return
	}
	c.value, c.set, c.deleted = fr.value, fr.set, fr.deleted
}

func (c *Child[T]) clearRemoved() {
	for _, item := range c.deleted {
		ib := item.Core()
		if ib.arena != nil {
			ib.arena.release(ib.handle)
		}
	}
	c.deleted = nil
}

func (c *Child[T]) cloneFrom(src relation) error {
	other, ok := src.(*Child[T])
	if !ok {
		return fmt.Errorf("clone %s: %w", c.key, ErrTypeMismatch)
	}
	var zero T
	c.value, c.set, c.deleted = zero, false, nil
	if other.set {
		v, err := cloneChild(c.owner, other.value)
		if err != nil {
			return err
		}
		c.value, c.set = v, true
	}
	for _, item := range other.deleted {
		v, err := cloneChild(c.owner, item)
		if err != nil {
			return err
		}
		c.deleted = append(c.deleted, v)
	}
	return nil
}

func (c *Child[T]) encode() (RelationDocument, error) {
	var doc RelationDocument
	if c.set {
		d, err := encodeNode(c.value)
		if err != nil {
			return RelationDocument{}, err
		}
		doc.Items = []*Document{d}
	}
	for _, item := range c.deleted {
		d, err := encodeNode(item)
		if err != nil {
			return RelationDocument{}, err
		}
		doc.Removed = append(doc.Removed, d)
	}
	return doc, nil
}

func (c *Child[T]) decode(doc RelationDocument) error {
	var zero T
	c.value, c.set, c.deleted = zero, false, nil
	if len(doc.Items) > 1 {
		return fmt.Errorf("decode %s: %d items for a single child", c.key, len(doc.Items))
	}
	for _, d := range doc.Items {
		v, err := decodeChild(c.owner, d, c.newItem)
		if err != nil {
			return err
		}
		c.value, c.set = v, true
	}
	for _, d := range doc.Removed {
		v, err := decodeChild(c.owner, d, c.newItem)
		if err != nil {
			return err
		}
		c.deleted = append(c.deleted, v)
	}
	return nil
}
