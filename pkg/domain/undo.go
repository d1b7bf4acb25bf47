package domain

// frame is one level of saved state on the undo stack.
type frame struct {
	isNew     bool
	isDeleted bool
	fields    []fieldState
	broken    []Violation
	relations []any
}

// EditLevel returns the number of open edit transactions.
func (b *Base) EditLevel() int { return len(b.frames) }

// BeginEdit pushes a snapshot of the object and its children onto the undo stack.
func (b *Base) BeginEdit() error {
	return b.copyState(b.EditLevel() + 1)
}

// CancelEdit restores the most recent snapshot. On a root without open edits it
// does nothing. On a child it fails when it would close a transaction opened by
// the parent.
func (b *Base) CancelEdit() error {
	if b.EditLevel() == 0 && !b.isChild {
		return nil
	}
	parentLevel, ok := b.parentEditLevel()
	if !ok {
		return EditLevelError{Type: b.typeName, Op: "undo", Level: b.EditLevel(), ParentLevel: parentLevel}
	}
	return b.undo(parentLevel)
}

// ApplyEdit discards the most recent snapshot, keeping current values. On a root
// without open edits it does nothing.
func (b *Base) ApplyEdit() error {
	if b.EditLevel() == 0 && !b.isChild {
		return nil
	}
	parentLevel, ok := b.parentEditLevel()
	if !ok {
		return EditLevelError{Type: b.typeName, Op: "accept", Level: b.EditLevel(), ParentLevel: parentLevel}
	}
	return b.accept(parentLevel)
}

// parentEditLevel returns the level a child must stay above. A child detached
// from its parent has no valid level and reports false.
func (b *Base) parentEditLevel() (int, bool) {
	if parent, ok := b.Parent(); ok {
		return parent.Core().EditLevel(), true
	}
	if b.isChild {
		return 0, false
	}
	return b.EditLevel() - 1, true
}

func (b *Base) copyState(parentLevel int) error {
	if b.EditLevel()+1 > parentLevel {
		return EditLevelError{Type: b.typeName, Op: "copy state", Level: b.EditLevel(), ParentLevel: parentLevel}
	}
	fr := frame{
		isNew:     b.isNew,
		isDeleted: b.isDeleted,
		broken:    append([]Violation(nil), b.broken...),
	}
	for _, f := range b.fields {
		fr.fields = append(fr.fields, f.snapshot())
	}
	for _, rel := range b.relations {
		fr.relations = append(fr.relations, rel.snapshot())
	}
	b.frames = append(b.frames, fr)

	level := b.EditLevel()
	for _, rel := range b.relations {
		for _, child := range rel.members() {
			if err := child.Core().copyState(level); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Base) undo(parentLevel int) error {
	if b.EditLevel() == 0 {
		if b.isChild {
			return EditLevelError{Type: b.typeName, Op: "undo", Level: 0, ParentLevel: parentLevel}
		}
		return nil
	}
	if b.EditLevel()-1 < parentLevel {
		return EditLevelError{Type: b.typeName, Op: "undo", Level: b.EditLevel(), ParentLevel: parentLevel}
	}
	fr := b.frames[len(b.frames)-1]
	b.frames = b.frames[:len(b.frames)-1]

	b.isNew, b.isDeleted = fr.isNew, fr.isDeleted
	for i, f := range b.fields {
		if i < len(fr.fields) {
			f.restore(fr.fields[i])
		}
	}
	b.broken = fr.broken
	for i, rel := range b.relations {
		if i < len(fr.relations) {
			rel.restore(fr.relations[i])
		}
	}

	level := b.EditLevel()
	for _, rel := range b.relations {
		for _, child := range rel.members() {
			if err := child.Core().undo(level); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Base) accept(parentLevel int) error {
	if b.EditLevel() == 0 {
		if b.isChild {
			return EditLevelError{Type: b.typeName, Op: "accept", Level: 0, ParentLevel: parentLevel}
		}
		return nil
	}
	if b.EditLevel()-1 < parentLevel {
		return EditLevelError{Type: b.typeName, Op: "accept", Level: b.EditLevel(), ParentLevel: parentLevel}
	}
	b.frames = b.frames[:len(b.frames)-1]

	level := b.EditLevel()
	for _, rel := range b.relations {
		for _, child := range rel.members() {
			if err := child.Core().accept(level); err != nil {
				return err
			}
		}
	}
	return nil
}
