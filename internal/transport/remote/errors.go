package remote

import (
	"errors"

	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

// Error kinds carried in ErrorEnvelope.Kind.
const (
	KindUnauthorized   = "unauthorized"
	KindNoHandler      = "no_handler"
	KindHandler        = "handler"
	KindEditLevel      = "edit_level"
	KindEditInProgress = "edit_in_progress"
	KindBusy           = "busy"
	KindChildDispatch  = "child_dispatch"
	KindNotSavable     = "not_savable"
	KindTransport      = "transport"
	KindInternal       = "internal"
)

// EncodeError maps err onto the wire taxonomy.
func EncodeError(err error) *ErrorEnvelope {
	if err == nil {
		return nil
	}
	env := &ErrorEnvelope{Kind: KindInternal, Message: err.Error()}

	var (
		handler   portal.HandlerError
		authz     portal.AuthorizationError
		noHandler portal.NoHandlerError
		level     domain.EditLevelError
		busy      portal.BusyError
		transport portal.TransportError
	)
	switch {
	case errors.As(err, &handler):
		env.Kind = KindHandler
		env.Operation, env.Handler, env.Type = handler.Operation, handler.Kind, handler.Type
		if handler.Err != nil {
			env.Message = handler.Err.Error()
		}
	case errors.As(err, &authz):
		env.Kind = KindUnauthorized
		env.Operation, env.Type, env.Principal = authz.Operation, authz.Type, authz.Principal
	case errors.As(err, &noHandler):
		env.Kind = KindNoHandler
		env.Operation, env.Handler, env.Type, env.Criteria = noHandler.Operation, noHandler.Kind, noHandler.Type, noHandler.Criteria
	case errors.As(err, &level):
		env.Kind = KindEditLevel
		env.Type, env.Step = level.Type, level.Op
		env.Level, env.ParentLevel = level.Level, level.ParentLevel
	case errors.As(err, &busy):
		env.Kind = KindBusy
		env.Type, env.ObjectID = busy.Type, busy.ID
	case errors.As(err, &transport):
		env.Kind = KindTransport
		env.Operation, env.Type = transport.Operation, transport.Type
		if transport.Err != nil {
			env.Message = transport.Err.Error()
		}
	case errors.Is(err, portal.ErrChildDispatch):
		env.Kind = KindChildDispatch
	case errors.Is(err, portal.ErrNotSavable):
		env.Kind = KindNotSavable
	case errors.Is(err, domain.ErrEditInProgress):
		env.Kind = KindEditInProgress
	}
	return env
}

// DecodeError rebuilds the typed error described by env.
func DecodeError(env *ErrorEnvelope) error {
	if env == nil {
		return nil
	}
	switch env.Kind {
	case KindHandler:
		return portal.HandlerError{Operation: env.Operation, Kind: env.Handler, Type: env.Type, Err: errors.New(env.Message)}
	case KindUnauthorized:
		return portal.AuthorizationError{Operation: env.Operation, Type: env.Type, Principal: env.Principal}
	case KindNoHandler:
		return portal.NoHandlerError{Operation: env.Operation, Kind: env.Handler, Type: env.Type, Criteria: env.Criteria}
	case KindEditLevel:
		return domain.EditLevelError{Type: env.Type, Op: env.Step, Level: env.Level, ParentLevel: env.ParentLevel}
	case KindBusy:
		return portal.BusyError{Type: env.Type, ID: env.ObjectID}
	case KindTransport:
		return portal.TransportError{Operation: env.Operation, Type: env.Type, Err: errors.New(env.Message)}
	case KindChildDispatch:
		return remoteError{msg: env.Message, target: portal.ErrChildDispatch}
	case KindNotSavable:
		return remoteError{msg: env.Message, target: portal.ErrNotSavable}
	case KindEditInProgress:
		return remoteError{msg: env.Message, target: domain.ErrEditInProgress}
	default:
		return errors.New(env.Message)
	}
}

// remoteError keeps the far side's message while matching the local sentinel.
type remoteError struct {
	msg    string
	target error
}

func (e remoteError) Error() string { return e.msg }
func (e remoteError) Unwrap() error { return e.target }
