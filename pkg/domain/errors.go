package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEditLevelMismatch reports nested edit transactions closed out of order.
	ErrEditLevelMismatch = errors.New("edit level mismatch")
	// ErrEditInProgress is returned when an operation needs an object with no open edits.
	ErrEditInProgress = errors.New("object has open edit transactions")
	// ErrChildDelete is returned when Delete is called on a child object.
	ErrChildDelete = errors.New("child objects are deleted by removing them from their parent")
	// ErrAlreadyChild is returned when an object already owned by a parent is attached again.
	ErrAlreadyChild = errors.New("object already belongs to a parent")
	// ErrTypeMismatch is returned when a graph document does not match the target type.
	ErrTypeMismatch = errors.New("graph document type mismatch")
)

// EditLevelError describes the offending undo transition.
type EditLevelError struct {
	Type        string
	Op          string
	Level       int
	ParentLevel int
}

func (e EditLevelError) Error() string {
	return fmt.Sprintf("%s: %s at edit level %d (parent level %d)", ErrEditLevelMismatch, e.Op, e.Level, e.ParentLevel)
}

// Is reports whether target is ErrEditLevelMismatch.
func (e EditLevelError) Is(target error) bool { return target == ErrEditLevelMismatch }

// ErrReadOnly is returned when a read-only list is modified after it was loaded.
var ErrReadOnly = errors.New("read-only list cannot be modified after loading")
