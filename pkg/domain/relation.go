package domain

// relation is a declared parent/child relationship: a single child slot or a list.
type relation interface {
	name() string
	// live returns the visible children.
	live() []Object
	// removed returns children taken out of the relation that still await deletion.
	removed() []Object
	// members returns live and removed children.
	members() []Object
	isDirty() bool
	snapshot() any
	restore(any)
	clearRemoved()
	cloneFrom(src relation) error
	encode() (RelationDocument, error)
	decode(RelationDocument) error
}

func toObjects[T Object](items []T) []Object {
	out := make([]Object, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func sameIdentity(a, b Object) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Core().Identity() == b.Core().Identity()
}

// attachChild marks child as owned by owner and aligns its edit level with the owner.
func attachChild(owner *Base, child Object) error {
	cb := child.Core()
	if cb.isChild {
		return ErrAlreadyChild
	}
	if cb.EditLevel() > 0 {
		return ErrEditInProgress
	}
	cb.markAsChild()
	adopt(child, owner)
	for cb.EditLevel() < owner.EditLevel() {
		if err := cb.copyState(cb.EditLevel() + 1); err != nil {
			return err
		}
	}
	return nil
}
