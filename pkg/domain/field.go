package domain

import (
	"encoding/json"
	"fmt"
)

type fieldState struct {
	value any
	dirty bool
}

// tracked is the contract between Base and its registered fields.
type tracked interface {
	name() string
	dirty() bool
	markClean()
	snapshot() fieldState
	restore(fieldState)
	encode() (FieldDocument, error)
	decode(FieldDocument) error
}

// Field is a tracked property. Setting a different value marks the property, and
// therefore its owner, dirty and re-runs the owner's rules.
type Field[T comparable] struct {
	owner   *Base
	key     string
	value   T
	changed bool
}

// NewField registers a tracked field on owner with an initial value.
func NewField[T comparable](owner *Base, name string, initial T) *Field[T] {
	f := &Field[T]{owner: owner, key: name, value: initial}
	owner.register(f)
	return f
}

// Name returns the field name.
func (f *Field[T]) Name() string { return f.key }

// Get returns the current value.
func (f *Field[T]) Get() T { return f.value }

// Set assigns v. Assigning the current value is a no-op.
func (f *Field[T]) Set(v T) {
	if f.value == v {
		return
	}
	f.value = v
	f.changed = true
	f.owner.fieldChanged()
}

// IsDirty reports whether the field changed since the object was last marked clean.
func (f *Field[T]) IsDirty() bool { return f.changed }

func (f *Field[T]) name() string { return f.key }
func (f *Field[T]) dirty() bool  { return f.changed }
func (f *Field[T]) markClean()   { f.changed = false }

func (f *Field[T]) snapshot() fieldState {
	return fieldState{value: f.value, dirty: f.changed}
}

func (f *Field[T]) restore(st fieldState) {
	v, _ := st.value.(T)
	f.value = v
	f.changed = st.dirty
}

func (f *Field[T]) encode() (FieldDocument, error) {
	raw, err := json.Marshal(f.value)
	if err != nil {
		return FieldDocument{}, fmt.Errorf("encode field %s: %w", f.key, err)
	}
	return FieldDocument{Value: raw, Dirty: f.changed}, nil
}

func (f *Field[T]) decode(doc FieldDocument) error {
	var v T
	if len(doc.Value) > 0 {
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			return fmt.Errorf("decode field %s: %w", f.key, err)
		}
	}
	f.value = v
	f.changed = doc.Dirty
	return nil
}
