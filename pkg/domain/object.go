// Package domain defines the business object runtime: per-object state tracking,
// tracked fields, n-level undo, child objects and lists, graph traversal and the
// graph document codec used for cloning and remote transport.
package domain

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Object is implemented by every business object. Types embed Base to satisfy it.
type Object interface {
	Core() *Base
}

// Identifier lets an object supply its own equality key for list membership.
type Identifier interface {
	IdentityKey() any
}

// Factory constructs a fresh instance of a business type.
type Factory func() Object

// Base carries the state, fields, rules, relationships and undo stack of a
// business object. The zero value is not usable; call Init from the constructor.
type Base struct {
	self     Object
	typeName string
	factory  Factory
	id       string

	isNew     bool
	isDeleted bool
	isChild   bool
	busy      atomic.Bool

	fields    []tracked
	relations []relation
	rules     []Rule
	broken    []Violation
	frames    []frame

	arena  *Arena
	handle Handle
}

// Init wires the embedding object into its Base. self must be the object
// embedding b and factory must return a new zero instance of the same type.
func (b *Base) Init(self Object, typeName string, factory Factory) {
	b.self = self
	b.typeName = typeName
	b.factory = factory
	b.id = uuid.NewString()
	b.isNew = true
	newArena(self)
}

// Core returns b, letting any type embedding Base satisfy Object.
func (b *Base) Core() *Base { return b }

// TypeName returns the registered business type name.
func (b *Base) TypeName() string { return b.typeName }

// ID returns the generated object identifier.
func (b *Base) ID() string { return b.id }

// LoadID replaces the generated identifier with a stored one. Fetch handlers
// call it while the object is still new; it fails afterwards.
func (b *Base) LoadID(id string) error {
	if !b.isNew {
		return fmt.Errorf("load id of %s: %w", b.typeName, ErrReadOnly)
	}
	if id == "" {
		return fmt.Errorf("load id of %s: empty id", b.typeName)
	}
	b.id = id
	return nil
}

// Identity returns the equality key used for list membership: the object's
// IdentityKey when it implements Identifier, otherwise its generated ID.
func (b *Base) Identity() any {
	if ider, ok := b.self.(Identifier); ok {
		return ider.IdentityKey()
	}
	return b.id
}

// IsNew reports whether the object has not yet been persisted.
func (b *Base) IsNew() bool { return b.isNew }

// IsDeleted reports whether the object is marked for deletion.
func (b *Base) IsDeleted() bool { return b.isDeleted }

// IsChild reports whether the object is owned by a parent.
func (b *Base) IsChild() bool { return b.isChild }

// IsBusy reports whether an operation is in flight for the object.
func (b *Base) IsBusy() bool { return b.busy.Load() }

// IsSelfDirty reports whether the object itself, ignoring children, has changes.
func (b *Base) IsSelfDirty() bool {
	if b.isNew || b.isDeleted {
		return true
	}
	for _, f := range b.fields {
		if f.dirty() {
			return true
		}
	}
	return false
}

// IsDirty reports whether the object or any descendant has unsaved changes.
func (b *Base) IsDirty() bool {
	if b.IsSelfDirty() {
		return true
	}
	for _, rel := range b.relations {
		if rel.isDirty() {
			return true
		}
	}
	return false
}

// IsSelfValid reports whether the object has no blocking broken rules.
func (b *Base) IsSelfValid() bool {
	return !Result{Violations: b.broken}.HasBlocking()
}

// IsValid reports whether the object and its live descendants are valid.
func (b *Base) IsValid() bool {
	if !b.IsSelfValid() {
		return false
	}
	for _, rel := range b.relations {
		for _, child := range rel.live() {
			if !child.Core().IsValid() {
				return false
			}
		}
	}
	return true
}

// IsSavable reports whether the object is dirty, valid and idle.
func (b *Base) IsSavable() bool {
	return b.IsDirty() && b.IsValid() && !b.IsBusy()
}

// Parent returns the logical parent of a child object.
func (b *Base) Parent() (Object, bool) {
	if b.arena == nil {
		return nil, false
	}
	return b.arena.Parent(b.handle)
}

// Root walks parent handles up to the root of the graph.
func (b *Base) Root() Object {
	current := b.self
	for {
		parent, ok := current.Core().Parent()
		if !ok {
			return current
		}
		current = parent
	}
}

// Delete marks a root object for deletion; the next Update dispatch removes it.
func (b *Base) Delete() error {
	if b.isChild {
		return ErrChildDelete
	}
	b.markDeleted()
	return nil
}

// field returns the tracked field registered under name.
func (b *Base) field(name string) (tracked, bool) {
	for _, f := range b.fields {
		if f.name() == name {
			return f, true
		}
	}
	return nil, false
}

func (b *Base) relation(name string) (relation, bool) {
	for _, rel := range b.relations {
		if rel.name() == name {
			return rel, true
		}
	}
	return nil, false
}

func (b *Base) register(f tracked) {
	b.fields = append(b.fields, f)
}

func (b *Base) addRelation(rel relation) {
	b.relations = append(b.relations, rel)
}

func (b *Base) fieldChanged() {
	b.CheckRules()
}

// privileged transitions; reachable only through the graph walker.

func (b *Base) markNew() {
	b.isNew = true
	b.isDeleted = false
	b.markClean()
}

func (b *Base) markOld() {
	b.isNew = false
	b.isDeleted = false
	b.markClean()
}

func (b *Base) markDeleted() {
	b.isDeleted = true
}

func (b *Base) markAsChild() {
	b.isChild = true
}

func (b *Base) markClean() {
	for _, f := range b.fields {
		f.markClean()
	}
}

// MarkBusy flags obj as having an operation in flight. It reports false when an
// operation is already running; otherwise release clears the flag.
func MarkBusy(obj Object) (release func(), ok bool) {
	b := obj.Core()
	if !b.busy.CompareAndSwap(false, true) {
		return func() {}, false
	}
	return func() { b.busy.Store(false) }, true
}
