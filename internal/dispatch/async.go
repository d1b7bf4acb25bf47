package dispatch

import (
	"context"

	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

// Result is delivered to a Callback. Object and Err are never both set.
type Result struct {
	Object domain.Object
	Err    error
	// UserState is the correlation token passed to Begin.
	UserState any
	Global    map[string]string
}

// Callback receives the outcome of a non-blocking dispatch.
type Callback func(Result)

// Begin dispatches req without blocking. cb runs exactly once on another
// goroutine. The request object stays busy until just before cb runs, so a
// second Begin on the same object is rejected with a BusyError through its
// callback.
func (d *Dispatcher) Begin(ctx context.Context, req portal.Request, userState any, cb Callback) {
	req, err := prepare(req)
	var release func()
	if err == nil {
		release, err = acquire(req)
	}
	if err != nil {
		d.later(cb, Result{Err: err, UserState: userState})
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		resp, err := d.run(ctx, req)
		release()
		res := Result{UserState: userState}
		if err != nil {
			res.Err = err
		} else {
			res.Object = resp.Object
			res.Global = resp.Global
		}
		if cb != nil {
			cb(res)
		}
	}()
}

// BeginSave is the non-blocking form of Save.
func (d *Dispatcher) BeginSave(ctx context.Context, pc portal.Context, obj domain.Object, opts SaveOptions, userState any, cb Callback) {
	if err := checkSavable(obj); err != nil {
		d.later(cb, Result{Err: err, UserState: userState})
		return
	}
	if !obj.Core().IsDirty() {
		d.later(cb, Result{Object: obj, UserState: userState})
		return
	}
	req := portal.Request{Operation: portal.OperationUpdate, Object: obj, Context: pc, ForceUpdate: opts.ForceUpdate}
	d.Begin(ctx, req, userState, cb)
}

// Wait blocks until every callback started by Begin has returned.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) later(cb Callback, res Result) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if cb != nil {
			cb(res)
		}
	}()
}
