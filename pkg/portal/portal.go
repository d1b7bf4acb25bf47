// Package portal defines the data portal vocabulary shared by callers, handlers
// and transports: operations, handler kinds, requests, the explicit dispatch
// context, the per-type handler registry and the error taxonomy.
package portal

import "bizcore/pkg/domain"

// Operation is a data portal operation kind.
type Operation string

// Supported data portal operations.
const (
	OperationCreate  Operation = "create"
	OperationFetch   Operation = "fetch"
	OperationUpdate  Operation = "update"
	OperationDelete  Operation = "delete"
	OperationExecute Operation = "execute"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OperationCreate, OperationFetch, OperationUpdate, OperationDelete, OperationExecute:
		return true
	default:
		return false
	}
}

// HandlerKind names the lifecycle step a handler implements.
type HandlerKind string

// Handler kinds. Update dispatches resolve to insert, update or delete_self from
// the object state; child kinds run only inside a root's update cascade.
const (
	KindCreate      HandlerKind = "create"
	KindFetch       HandlerKind = "fetch"
	KindInsert      HandlerKind = "insert"
	KindUpdate      HandlerKind = "update"
	KindDeleteSelf  HandlerKind = "delete_self"
	KindDelete      HandlerKind = "delete"
	KindExecute     HandlerKind = "execute"
	KindChildInsert HandlerKind = "child_insert"
	KindChildUpdate HandlerKind = "child_update"
	KindChildDelete HandlerKind = "child_delete"
)

// Request is one data portal operation.
type Request struct {
	Operation Operation
	Type      string
	// Criteria identifies the data for create, fetch and delete. It may be nil.
	Criteria any
	// Object is the root graph for update or the command for execute.
	Object domain.Object
	Context Context
	// ForceUpdate routes a new object to the update handler instead of insert.
	ForceUpdate bool
}

// Response carries the resulting graph and the global context values as left by
// the handler.
type Response struct {
	Object domain.Object
	Global map[string]string
}
