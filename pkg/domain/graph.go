package domain

import (
	"encoding/json"
	"fmt"
)

// Document is the serialized form of one object and its descendants. It carries
// everything needed to rebuild an equivalent graph: state flags, field values
// with their dirty bits, broken rules and child relations.
type Document struct {
	Type      string                      `json:"type"`
	ID        string                      `json:"id"`
	New       bool                        `json:"new"`
	Deleted   bool                        `json:"deleted"`
	Child     bool                        `json:"child"`
	Fields    map[string]FieldDocument    `json:"fields,omitempty"`
	Broken    []Violation                 `json:"broken,omitempty"`
	Relations map[string]RelationDocument `json:"relations,omitempty"`
}

// FieldDocument is one serialized field.
type FieldDocument struct {
	Value json.RawMessage `json:"value,omitempty"`
	Dirty bool            `json:"dirty,omitempty"`
}

// RelationDocument holds the live and removed children of one relation.
type RelationDocument struct {
	Items   []*Document `json:"items,omitempty"`
	Removed []*Document `json:"removed,omitempty"`
}

// Encode serializes obj and its descendants. Objects with open edit
// transactions cannot be encoded.
func Encode(obj Object) (*Document, error) {
	if obj.Core().EditLevel() > 0 {
		return nil, fmt.Errorf("encode %s: %w", obj.Core().typeName, ErrEditInProgress)
	}
	return encodeNode(obj)
}

func encodeNode(obj Object) (*Document, error) {
	b := obj.Core()
	doc := &Document{
		Type:    b.typeName,
		ID:      b.id,
		New:     b.isNew,
		Deleted: b.isDeleted,
		Child:   b.isChild,
		Broken:  append([]Violation(nil), b.broken...),
	}
	if len(b.fields) > 0 {
		doc.Fields = make(map[string]FieldDocument, len(b.fields))
	}
	for _, f := range b.fields {
		fd, err := f.encode()
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", b.typeName, err)
		}
		doc.Fields[f.name()] = fd
	}
	if len(b.relations) > 0 {
		doc.Relations = make(map[string]RelationDocument, len(b.relations))
	}
	for _, rel := range b.relations {
		rd, err := rel.encode()
		if err != nil {
			return nil, err
		}
		doc.Relations[rel.name()] = rd
	}
	return doc, nil
}

// Decode rebuilds a graph from doc. factory constructs the root type.
func Decode(doc *Document, factory Factory) (Object, error) {
	if doc == nil {
		return nil, fmt.Errorf("decode: nil document")
	}
	obj := factory()
	if err := decodeInto(obj, doc); err != nil {
		return nil, err
	}
	return obj, nil
}

// DecodeInto overwrites obj with the state carried by doc.
func DecodeInto(obj Object, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("decode: nil document")
	}
	return decodeInto(obj, doc)
}

func decodeInto(obj Object, doc *Document) error {
	b := obj.Core()
	if b.typeName != doc.Type {
		return fmt.Errorf("decode %q into %q: %w", doc.Type, b.typeName, ErrTypeMismatch)
	}
	b.id = doc.ID
	b.isNew = doc.New
	b.isDeleted = doc.Deleted
	b.isChild = doc.Child
	b.broken = append([]Violation(nil), doc.Broken...)
	b.frames = nil
	for name, fd := range doc.Fields {
		f, ok := b.field(name)
		if !ok {
			return fmt.Errorf("decode %s: unknown field %q", b.typeName, name)
		}
		if err := f.decode(fd); err != nil {
			return fmt.Errorf("decode %s: %w", b.typeName, err)
		}
	}
	for name, rd := range doc.Relations {
		rel, ok := b.relation(name)
		if !ok {
			return fmt.Errorf("decode %s: unknown relation %q", b.typeName, name)
		}
		if err := rel.decode(rd); err != nil {
			return err
		}
	}
	return nil
}

func decodeChild[T Object](owner *Base, doc *Document, newItem func() T) (T, error) {
	item := newItem()
	if err := decodeInto(item, doc); err != nil {
		var zero T
		return zero, err
	}
	adopt(item, owner)
	return item, nil
}
