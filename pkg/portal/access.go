package portal

import "context"

// Authorizer is the yes/no capability check consulted before every dispatch.
type Authorizer interface {
	CanPerform(op Operation, typeName string, principal Principal) bool
}

// AuthorizerFunc adapts a function into an Authorizer.
type AuthorizerFunc func(op Operation, typeName string, principal Principal) bool

// CanPerform calls f.
func (f AuthorizerFunc) CanPerform(op Operation, typeName string, principal Principal) bool {
	return f(op, typeName, principal)
}

// AllowAll permits every operation.
var AllowAll Authorizer = AuthorizerFunc(func(Operation, string, Principal) bool { return true })

// RoleAuthorizer grants operations by role. Types without an entry are open to
// every principal; listed operations require one of the roles.
type RoleAuthorizer map[string]map[Operation][]string

// CanPerform implements Authorizer.
func (r RoleAuthorizer) CanPerform(op Operation, typeName string, principal Principal) bool {
	ops, ok := r[typeName]
	if !ok {
		return true
	}
	roles, ok := ops[op]
	if !ok {
		return true
	}
	for _, role := range roles {
		if principal.IsInRole(role) {
			return true
		}
	}
	return false
}

// Scope is a resource acquisition covering one operation, including its whole
// update cascade. Complete is called exactly once with the operation outcome and
// commits on nil or rolls back otherwise.
type Scope interface {
	Complete(err error) error
}

// Resources opens operation scopes. Handlers find the scope's resources through
// the returned context.
type Resources interface {
	Begin(ctx context.Context, op Operation, typeName string) (context.Context, Scope, error)
}

// NoResources opens scopes that hold nothing.
var NoResources Resources = noResources{}

type noResources struct{}

func (noResources) Begin(ctx context.Context, _ Operation, _ string) (context.Context, Scope, error) {
	return ctx, noScope{}, nil
}

type noScope struct{}

func (noScope) Complete(error) error { return nil }
