// Package dispatch implements the data portal dispatcher: authorization, the
// per-object busy guard, delegation to a transport proxy and the post-processing
// of result graphs, in blocking and callback forms.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bizcore/internal/transport"
	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

// Phase is a step of the per-request state machine.
type Phase string

// Request phases, in order. Every request ends in Succeeded or Failed.
const (
	PhaseRequested   Phase = "requested"
	PhaseAuthorizing Phase = "authorizing"
	PhaseExecuting   Phase = "executing"
	PhaseCompleting  Phase = "completing"
	PhaseSucceeded   Phase = "succeeded"
	PhaseFailed      Phase = "failed"
)

// Dispatcher runs portal requests through a transport proxy.
type Dispatcher struct {
	proxy      transport.Proxy
	authorizer portal.Authorizer
	logger     Logger
	metrics    MetricsRecorder
	tracer     Tracer
	audit      AuditRecorder
	clock      Clock
	inflight   sync.WaitGroup
}

// New constructs a dispatcher delegating to proxy.
func New(proxy transport.Proxy, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		proxy:      proxy,
		authorizer: portal.AllowAll,
		logger:     noopLogger{},
		metrics:    noopMetrics{},
		tracer:     noopTracer{},
		audit:      noopAudit{},
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SaveOptions tunes Save.
type SaveOptions struct {
	// ForceUpdate routes a new object to the update handler instead of insert.
	ForceUpdate bool
}

// Dispatch runs req to completion and returns the post-processed response.
func (d *Dispatcher) Dispatch(ctx context.Context, req portal.Request) (portal.Response, error) {
	req, err := prepare(req)
	if err != nil {
		return portal.Response{}, err
	}
	release, err := acquire(req)
	if err != nil {
		return portal.Response{}, err
	}
	defer release()
	return d.run(ctx, req)
}

// Create constructs a new root of typeName.
func (d *Dispatcher) Create(ctx context.Context, pc *portal.Context, typeName string, criteria any) (domain.Object, error) {
	return d.object(ctx, pc, portal.Request{Operation: portal.OperationCreate, Type: typeName, Criteria: criteria})
}

// Fetch loads a root of typeName identified by criteria.
func (d *Dispatcher) Fetch(ctx context.Context, pc *portal.Context, typeName string, criteria any) (domain.Object, error) {
	return d.object(ctx, pc, portal.Request{Operation: portal.OperationFetch, Type: typeName, Criteria: criteria})
}

// Update persists obj according to its state and returns the resulting graph.
// Callers must continue with the returned object.
func (d *Dispatcher) Update(ctx context.Context, pc *portal.Context, obj domain.Object) (domain.Object, error) {
	if obj == nil {
		return nil, fmt.Errorf("update: object is required")
	}
	return d.object(ctx, pc, portal.Request{Operation: portal.OperationUpdate, Object: obj})
}

// Save checks that obj can be saved and updates it. An object without changes is
// returned as is.
func (d *Dispatcher) Save(ctx context.Context, pc *portal.Context, obj domain.Object, opts SaveOptions) (domain.Object, error) {
	if err := checkSavable(obj); err != nil {
		return nil, err
	}
	if !obj.Core().IsDirty() {
		return obj, nil
	}
	return d.object(ctx, pc, portal.Request{Operation: portal.OperationUpdate, Object: obj, ForceUpdate: opts.ForceUpdate})
}

// Delete removes the data identified by criteria.
func (d *Dispatcher) Delete(ctx context.Context, pc *portal.Context, typeName string, criteria any) error {
	_, err := d.object(ctx, pc, portal.Request{Operation: portal.OperationDelete, Type: typeName, Criteria: criteria})
	return err
}

// Execute runs a command object and returns it as left by the handler.
func (d *Dispatcher) Execute(ctx context.Context, pc *portal.Context, cmd domain.Object) (domain.Object, error) {
	if cmd == nil {
		return nil, fmt.Errorf("execute: command is required")
	}
	return d.object(ctx, pc, portal.Request{Operation: portal.OperationExecute, Object: cmd})
}

func (d *Dispatcher) object(ctx context.Context, pc *portal.Context, req portal.Request) (domain.Object, error) {
	if pc != nil {
		req.Context = *pc
	}
	resp, err := d.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	if pc != nil {
		pc.Global = resp.Global
	}
	return resp.Object, nil
}

func (d *Dispatcher) run(ctx context.Context, req portal.Request) (resp portal.Response, err error) {
	started := d.clock.Now()
	op := "portal." + string(req.Operation)
	ctx, span := d.tracer.Start(ctx, op)
	defer func() {
		if err != nil {
			resp = portal.Response{}
		}
		d.finish(ctx, span, op, req, err, started)
	}()

	d.enter(PhaseRequested, req)
	d.enter(PhaseAuthorizing, req)
	if !d.authorizer.CanPerform(req.Operation, req.Type, req.Context.Principal) {
		return portal.Response{}, portal.AuthorizationError{Operation: req.Operation, Type: req.Type, Principal: req.Context.Principal.Name}
	}

	d.enter(PhaseExecuting, req)
	resp, err = d.proxy.Execute(ctx, req)
	if err != nil {
		return portal.Response{}, err
	}

	d.enter(PhaseCompleting, req)
	complete(req.Operation, resp.Object)
	return resp, nil
}

func (d *Dispatcher) enter(phase Phase, req portal.Request) {
	d.logger.Debug("portal phase", "phase", string(phase), "operation", string(req.Operation), "type", req.Type)
}

func (d *Dispatcher) finish(ctx context.Context, span TraceSpan, op string, req portal.Request, err error, started time.Time) {
	duration := d.clock.Now().Sub(started)
	entry := AuditEntry{
		Operation: req.Operation,
		Type:      req.Type,
		Principal: req.Context.Principal.Name,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: started,
	}
	if req.Object != nil {
		entry.ObjectID = req.Object.Core().ID()
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		d.logger.Error("portal request failed", "phase", string(PhaseFailed), "operation", string(req.Operation), "type", req.Type, "error", err)
	} else {
		d.logger.Debug("portal request completed", "phase", string(PhaseSucceeded), "operation", string(req.Operation), "type", req.Type, "duration", duration)
	}
	span.End(err)
	d.metrics.Observe(ctx, op, err == nil, duration)
	d.audit.Record(ctx, entry)
}

// complete applies graph post-processing for the finished operation.
func complete(op portal.Operation, obj domain.Object) {
	if obj == nil {
		return
	}
	switch op {
	case portal.OperationCreate:
		domain.CompleteCreate(obj)
	case portal.OperationFetch:
		domain.CompleteFetch(obj)
	case portal.OperationUpdate:
		domain.CompleteSave(obj)
	}
}

// prepare validates req and fills the type from the object when absent.
func prepare(req portal.Request) (portal.Request, error) {
	if !req.Operation.Valid() {
		return req, fmt.Errorf("unknown operation %q", req.Operation)
	}
	switch req.Operation {
	case portal.OperationUpdate, portal.OperationExecute:
		if req.Object == nil {
			return req, fmt.Errorf("%s: object is required", req.Operation)
		}
		if req.Type == "" {
			req.Type = req.Object.Core().TypeName()
		}
	}
	if req.Type == "" {
		return req, fmt.Errorf("%s: type is required", req.Operation)
	}
	if req.Operation == portal.OperationUpdate {
		b := req.Object.Core()
		if b.IsChild() {
			return req, fmt.Errorf("update %s: %w", req.Type, portal.ErrChildDispatch)
		}
		if b.EditLevel() > 0 {
			return req, fmt.Errorf("update %s: %w", req.Type, domain.ErrEditInProgress)
		}
	}
	return req, nil
}

// acquire marks the request object busy for the duration of the dispatch.
func acquire(req portal.Request) (func(), error) {
	if req.Object == nil {
		return func() {}, nil
	}
	release, ok := domain.MarkBusy(req.Object)
	if !ok {
		return nil, portal.BusyError{Type: req.Type, ID: req.Object.Core().ID()}
	}
	return release, nil
}

func checkSavable(obj domain.Object) error {
	if obj == nil {
		return fmt.Errorf("save: object is required")
	}
	b := obj.Core()
	switch {
	case b.IsChild():
		return fmt.Errorf("save %s: %w", b.TypeName(), portal.ErrChildDispatch)
	case b.EditLevel() > 0:
		return fmt.Errorf("save %s: %w", b.TypeName(), domain.ErrEditInProgress)
	case b.IsBusy():
		return portal.BusyError{Type: b.TypeName(), ID: b.ID()}
	case !b.IsValid():
		return fmt.Errorf("save %s: %w: %d broken rules", b.TypeName(), portal.ErrNotSavable, len(b.BrokenRules()))
	}
	return nil
}
