package dispatch

import "bizcore/pkg/portal"

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAuthorizer sets the capability check consulted before every dispatch.
func WithAuthorizer(auth portal.Authorizer) Option {
	return func(d *Dispatcher) {
		if auth != nil {
			d.authorizer = auth
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if rec != nil {
			d.metrics = rec
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(d *Dispatcher) {
		if rec != nil {
			d.audit = rec
		}
	}
}

// WithClock sets the clock used for durations and audit timestamps.
func WithClock(clock Clock) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}
