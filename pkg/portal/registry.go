package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"bizcore/pkg/domain"
)

// Invocation carries the arguments of one handler call.
type Invocation struct {
	Context  *Context
	Object   domain.Object
	Criteria any
	// Parent is set for child handlers.
	Parent domain.Object
}

// Handler is a registered lifecycle handler and the criteria shape it accepts.
// Criteria is empty for handlers that take none.
type Handler struct {
	Kind     HandlerKind
	Type     string
	Criteria string
	invoke   func(ctx context.Context, inv Invocation) error
}

// Invoke runs the handler.
func (h Handler) Invoke(ctx context.Context, inv Invocation) error {
	return h.invoke(ctx, inv)
}

// ObjectFunc handles an operation on a root object or command.
type ObjectFunc[T domain.Object] func(ctx context.Context, pc *Context, obj T) error

// CriteriaFunc handles create or fetch with criteria of type C.
type CriteriaFunc[T domain.Object, C any] func(ctx context.Context, pc *Context, obj T, crit C) error

// DeleteFunc handles a criteria based delete.
type DeleteFunc[C any] func(ctx context.Context, pc *Context, crit C) error

// ChildFunc handles a child persistence step inside an update cascade.
type ChildFunc[T domain.Object] func(ctx context.Context, pc *Context, child T, parent domain.Object) error

type typeEntry struct {
	name     string
	factory  domain.Factory
	handlers map[HandlerKind][]Handler
}

// Registry maps business types to their factories and lifecycle handlers. Handlers
// are matched by kind and exact criteria type, resolved when they are registered.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]*typeEntry
	criteria map[string]func(json.RawMessage) (any, error)
	modules  map[string]ModuleInfo
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:    make(map[string]*typeEntry),
		criteria: make(map[string]func(json.RawMessage) (any, error)),
		modules:  make(map[string]ModuleInfo),
	}
}

// UnresolvedCriteria stands in for a criteria value whose type no handler
// declares. It keeps the original key, so matching fails the same way it would
// for the original value.
type UnresolvedCriteria struct {
	Key string
	Raw json.RawMessage
}

// CriteriaKey returns the registry key of a criteria value, or "" for nil.
func CriteriaKey(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case UnresolvedCriteria:
		return c.Key
	case *UnresolvedCriteria:
		if c == nil {
			return ""
		}
		return c.Key
	}
	return typeKey(reflect.TypeOf(v))
}

func typeKey(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// Type is the typed handle used to declare handlers for one business type.
type Type[T domain.Object] struct {
	reg  *Registry
	name string
}

// Define registers a business type with its constructor.
func Define[T domain.Object](r *Registry, name string, newFn func() T) (*Type[T], error) {
	if name == "" {
		return nil, fmt.Errorf("type name cannot be empty")
	}
	if newFn == nil {
		return nil, fmt.Errorf("type %s requires a constructor", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return nil, fmt.Errorf("type %s already registered", name)
	}
	r.types[name] = &typeEntry{
		name:     name,
		factory:  func() domain.Object { return newFn() },
		handlers: make(map[HandlerKind][]Handler),
	}
	return &Type[T]{reg: r, name: name}, nil
}

// Name returns the registered type name.
func (t *Type[T]) Name() string { return t.name }

// Create declares the parameterless create handler.
func (t *Type[T]) Create(fn ObjectFunc[T]) error { return t.addObject(KindCreate, fn) }

// Fetch declares a fetch handler that takes no criteria.
func (t *Type[T]) Fetch(fn ObjectFunc[T]) error { return t.addObject(KindFetch, fn) }

// Insert declares the handler persisting a new root.
func (t *Type[T]) Insert(fn ObjectFunc[T]) error { return t.addObject(KindInsert, fn) }

// Update declares the handler persisting an existing root.
func (t *Type[T]) Update(fn ObjectFunc[T]) error { return t.addObject(KindUpdate, fn) }

// DeleteSelf declares the handler deleting a root marked for deletion.
func (t *Type[T]) DeleteSelf(fn ObjectFunc[T]) error { return t.addObject(KindDeleteSelf, fn) }

// Execute declares the handler running a command object.
func (t *Type[T]) Execute(fn ObjectFunc[T]) error { return t.addObject(KindExecute, fn) }

// ChildInsert declares the handler inserting a new child.
func (t *Type[T]) ChildInsert(fn ChildFunc[T]) error { return t.addChild(KindChildInsert, fn) }

// ChildUpdate declares the handler updating a changed child.
func (t *Type[T]) ChildUpdate(fn ChildFunc[T]) error { return t.addChild(KindChildUpdate, fn) }

// ChildDelete declares the handler deleting a removed child.
func (t *Type[T]) ChildDelete(fn ChildFunc[T]) error { return t.addChild(KindChildDelete, fn) }

// CreateWith declares a create handler taking criteria of type C.
func CreateWith[T domain.Object, C any](t *Type[T], fn CriteriaFunc[T, C]) error {
	return addCriteria(t, KindCreate, fn)
}

// FetchWith declares a fetch handler taking criteria of type C.
func FetchWith[T domain.Object, C any](t *Type[T], fn CriteriaFunc[T, C]) error {
	return addCriteria(t, KindFetch, fn)
}

// DeleteWith declares a delete handler taking criteria of type C.
func DeleteWith[T domain.Object, C any](t *Type[T], fn DeleteFunc[C]) error {
	if fn == nil {
		return fmt.Errorf("%s %s handler cannot be nil", t.name, KindDelete)
	}
	key := typeKey(reflect.TypeFor[C]())
	invoke := func(ctx context.Context, inv Invocation) error {
		crit, ok := inv.Criteria.(C)
		if !ok {
			return criteriaMismatch(t.name, key, inv.Criteria)
		}
		return fn(ctx, inv.Context, crit)
	}
	t.reg.addCriteriaDecoder(key, decodeCriteria[C])
	return t.reg.add(t.name, Handler{Kind: KindDelete, Type: t.name, Criteria: key, invoke: invoke})
}

func (t *Type[T]) addObject(kind HandlerKind, fn ObjectFunc[T]) error {
	if fn == nil {
		return fmt.Errorf("%s %s handler cannot be nil", t.name, kind)
	}
	invoke := func(ctx context.Context, inv Invocation) error {
		obj, ok := inv.Object.(T)
		if !ok {
			return objectMismatch(t.name, inv.Object)
		}
		return fn(ctx, inv.Context, obj)
	}
	return t.reg.add(t.name, Handler{Kind: kind, Type: t.name, invoke: invoke})
}

func (t *Type[T]) addChild(kind HandlerKind, fn ChildFunc[T]) error {
	if fn == nil {
		return fmt.Errorf("%s %s handler cannot be nil", t.name, kind)
	}
	invoke := func(ctx context.Context, inv Invocation) error {
		child, ok := inv.Object.(T)
		if !ok {
			return objectMismatch(t.name, inv.Object)
		}
		return fn(ctx, inv.Context, child, inv.Parent)
	}
	return t.reg.add(t.name, Handler{Kind: kind, Type: t.name, invoke: invoke})
}

func addCriteria[T domain.Object, C any](t *Type[T], kind HandlerKind, fn CriteriaFunc[T, C]) error {
	if fn == nil {
		return fmt.Errorf("%s %s handler cannot be nil", t.name, kind)
	}
	key := typeKey(reflect.TypeFor[C]())
	invoke := func(ctx context.Context, inv Invocation) error {
		obj, ok := inv.Object.(T)
		if !ok {
			return objectMismatch(t.name, inv.Object)
		}
		crit, ok := inv.Criteria.(C)
		if !ok {
			return criteriaMismatch(t.name, key, inv.Criteria)
		}
		return fn(ctx, inv.Context, obj, crit)
	}
	t.reg.addCriteriaDecoder(key, decodeCriteria[C])
	return t.reg.add(t.name, Handler{Kind: kind, Type: t.name, Criteria: key, invoke: invoke})
}

func decodeCriteria[C any](raw json.RawMessage) (any, error) {
	var crit C
	if err := json.Unmarshal(raw, &crit); err != nil {
		return nil, err
	}
	return crit, nil
}

func objectMismatch(typeName string, got domain.Object) error {
	return fmt.Errorf("%s handler received %T: %w", typeName, got, domain.ErrTypeMismatch)
}

func criteriaMismatch(typeName, want string, got any) error {
	return fmt.Errorf("%s handler expects criteria %s, got %T: %w", typeName, want, got, domain.ErrTypeMismatch)
}

func (r *Registry) add(typeName string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.types[typeName]
	if !ok {
		return fmt.Errorf("type %s is not registered", typeName)
	}
	for _, existing := range entry.handlers[h.Kind] {
		if existing.Criteria == h.Criteria {
			return fmt.Errorf("%s %s handler for criteria %q already registered", typeName, h.Kind, h.Criteria)
		}
	}
	entry.handlers[h.Kind] = append(entry.handlers[h.Kind], h)
	return nil
}

func (r *Registry) addCriteriaDecoder(key string, fn func(json.RawMessage) (any, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.criteria[key] = fn
}

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[typeName]
	return ok
}

// New constructs a fresh instance of typeName.
func (r *Registry) New(typeName string) (domain.Object, error) {
	factory, err := r.Factory(typeName)
	if err != nil {
		return nil, err
	}
	return factory(), nil
}

// Factory returns the constructor registered for typeName.
func (r *Registry) Factory(typeName string) (domain.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.types[typeName]
	if !ok {
		return nil, NoHandlerError{Type: typeName}
	}
	return entry.factory, nil
}

// Handlers returns the handlers declared for typeName and kind, in registration order.
func (r *Registry) Handlers(typeName string, kind HandlerKind) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.types[typeName]
	if !ok {
		return nil
	}
	out := make([]Handler, len(entry.handlers[kind]))
	copy(out, entry.handlers[kind])
	return out
}

// Match returns the handler whose criteria type is exactly that of criteria. A
// nil criteria matches the parameterless handler.
func (r *Registry) Match(typeName string, kind HandlerKind, criteria any) (Handler, bool) {
	key := CriteriaKey(criteria)
	for _, h := range r.Handlers(typeName, kind) {
		if h.Criteria == key {
			return h, true
		}
	}
	return Handler{}, false
}

// DecodeCriteria rebuilds a criteria value from its key and JSON form. A key no
// handler declares decodes to UnresolvedCriteria.
func (r *Registry) DecodeCriteria(key string, raw json.RawMessage) (any, error) {
	if key == "" {
		return nil, nil
	}
	r.mu.RLock()
	decode, ok := r.criteria[key]
	r.mu.RUnlock()
	if !ok {
		return UnresolvedCriteria{Key: key, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	crit, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode criteria %s: %w", key, err)
	}
	return crit, nil
}

// Types returns the registered type names sorted alphabetically.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
