package domain

import (
	"encoding/json"
	"fmt"
)

// ReadOnlyList is a fetch-only collection of plain values, such as name/value
// lookups or report rows. It can be loaded only while new and has no
// tracked changes once fetched.
// Embed it and call InitList from the constructor.
type ReadOnlyList[T any] struct {
	Base
	rows *rowSet[T]
}

// InitList wires the embedding list into its Base.
func (l *ReadOnlyList[T]) InitList(self Object, typeName string, factory Factory) {
	l.Init(self, typeName, factory)
	l.rows = &rowSet[T]{key: "rows"}
	l.register(l.rows)
}

// Load appends rows. It fails once the list has been fetched.
func (l *ReadOnlyList[T]) Load(rows ...T) error {
	if !l.isNew {
		return fmt.Errorf("load %s: %w", l.typeName, ErrReadOnly)
	}
	l.rows.items = append(l.rows.items, rows...)
	return nil
}

// Len returns the number of rows.
func (l *ReadOnlyList[T]) Len() int { return len(l.rows.items) }

// At returns the row at index i.
func (l *ReadOnlyList[T]) At(i int) T { return l.rows.items[i] }

// Items returns a copy of the rows.
func (l *ReadOnlyList[T]) Items() []T { return append([]T(nil), l.rows.items...) }

// NameValue is one entry of a name/value lookup list.
type NameValue[K comparable, V any] struct {
	Key   K `json:"key"`
	Value V `json:"value"`
}

// Lookup returns the value stored for key in a name/value list.
func Lookup[K comparable, V any](l *ReadOnlyList[NameValue[K, V]], key K) (V, bool) {
	for _, row := range l.rows.items {
		if row.Key == key {
			return row.Value, true
		}
	}
	var zero V
	return zero, false
}

type rowSet[T any] struct {
	key   string
	items []T
}

func (r *rowSet[T]) name() string { return r.key }
func (r *rowSet[T]) dirty() bool  { return false }
func (r *rowSet[T]) markClean()   {}

func (r *rowSet[T]) snapshot() fieldState {
	return fieldState{value: append([]T(nil), r.items...)}
}

func (r *rowSet[T]) restore(st fieldState) {
	if v, ok := st.value.([]T); ok {
		r.items = append([]T(nil), v...)
	}
}

func (r *rowSet[T]) encode() (FieldDocument, error) {
	raw, err := json.Marshal(r.items)
	if err != nil {
		return FieldDocument{}, fmt.Errorf("encode rows: %w", err)
	}
	return FieldDocument{Value: raw}, nil
}

func (r *rowSet[T]) decode(doc FieldDocument) error {
	var items []T
	if len(doc.Value) > 0 {
		if err := json.Unmarshal(doc.Value, &items); err != nil {
			return fmt.Errorf("decode rows: %w", err)
		}
	}
	r.items = items
	return nil
}
