package domain

import "fmt"

// Clone returns a deep copy of obj. The copy has identical values, state flags,
// dirty bits and broken rules, shares nothing mutable with obj, and lives in an
// arena of its own. Objects with open edit transactions cannot be cloned.
func Clone[T Object](obj T) (T, error) {
	var zero T
	if obj.Core().EditLevel() > 0 {
		return zero, fmt.Errorf("clone %s: %w", obj.Core().typeName, ErrEditInProgress)
	}
	c, err := cloneNode(obj)
	if err != nil {
		return zero, err
	}
	out, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("clone %s: factory returned %T: %w", obj.Core().typeName, c, ErrTypeMismatch)
	}
	return out, nil
}

func cloneNode(src Object) (Object, error) {
	sb := src.Core()
	if sb.factory == nil {
		return nil, fmt.Errorf("clone %s: no factory registered", sb.typeName)
	}
	dst := sb.factory()
	db := dst.Core()
	db.id = sb.id
	db.isNew = sb.isNew
	db.isDeleted = sb.isDeleted
	db.isChild = sb.isChild
	db.broken = append([]Violation(nil), sb.broken...)
	for _, f := range sb.fields {
		df, ok := db.field(f.name())
		if !ok {
			return nil, fmt.Errorf("clone %s: field %q missing on copy", sb.typeName, f.name())
		}
		df.restore(f.snapshot())
	}
	for _, rel := range sb.relations {
		drel, ok := db.relation(rel.name())
		if !ok {
			return nil, fmt.Errorf("clone %s: relation %q missing on copy", sb.typeName, rel.name())
		}
		if err := drel.cloneFrom(rel); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func cloneChild[T Object](owner *Base, src T) (T, error) {
	var zero T
	c, err := cloneNode(src)
	if err != nil {
		return zero, err
	}
	out, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("clone %s: %w", src.Core().typeName, ErrTypeMismatch)
	}
	adopt(out, owner)
	return out, nil
}
