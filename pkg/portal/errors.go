package portal

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrUnauthorized  = errors.New("not authorized")
	ErrNoHandler     = errors.New("no matching handler")
	ErrHandler       = errors.New("handler failed")
	ErrTransport     = errors.New("transport failure")
	ErrBusy          = errors.New("object is busy")
	ErrChildDispatch = errors.New("child objects cannot be dispatched directly")
	ErrNotSavable    = errors.New("object is not savable")
)

// AuthorizationError is returned when the authorizer denies an operation. No
// handler runs.
type AuthorizationError struct {
	Operation Operation
	Type      string
	Principal string
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("%s: %s on %s for %q", ErrUnauthorized, e.Operation, e.Type, e.Principal)
}

// Is reports whether target is ErrUnauthorized.
func (e AuthorizationError) Is(target error) bool { return target == ErrUnauthorized }

// NoHandlerError is returned when a type declares no handler for the requested
// kind and criteria shape, or when the type is not registered.
type NoHandlerError struct {
	Operation Operation
	Kind      HandlerKind
	Type      string
	Criteria  string
}

func (e NoHandlerError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s: type %s is not registered", ErrNoHandler, e.Type)
	}
	crit := e.Criteria
	if crit == "" {
		crit = "none"
	}
	return fmt.Sprintf("%s: %s %s for %s (criteria %s)", ErrNoHandler, e.Operation, e.Kind, e.Type, crit)
}

// Is reports whether target is ErrNoHandler.
func (e NoHandlerError) Is(target error) bool { return target == ErrNoHandler }

// HandlerError wraps an error raised by a handler, tagged with where it ran.
type HandlerError struct {
	Operation Operation
	Kind      HandlerKind
	Type      string
	Err       error
}

func (e HandlerError) Error() string {
	return fmt.Sprintf("%s %s on %s: %v", e.Operation, e.Kind, e.Type, e.Err)
}

// Unwrap returns the handler's error.
func (e HandlerError) Unwrap() error { return e.Err }

// Is reports whether target is ErrHandler.
func (e HandlerError) Is(target error) bool { return target == ErrHandler }

// TransportError reports a network or serialization fault of a remote proxy. The
// handler may or may not have run.
type TransportError struct {
	Operation Operation
	Type      string
	Err       error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("%s: %s on %s: %v", ErrTransport, e.Operation, e.Type, e.Err)
}

// Unwrap returns the underlying fault.
func (e TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (e TransportError) Is(target error) bool { return target == ErrTransport }

// BusyError is returned when an operation is already in flight for the object.
type BusyError struct {
	Type string
	ID   string
}

func (e BusyError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrBusy, e.Type, e.ID)
}

// Is reports whether target is ErrBusy.
func (e BusyError) Is(target error) bool { return target == ErrBusy }
