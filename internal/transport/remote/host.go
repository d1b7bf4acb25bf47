package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"bizcore/internal/transport"
	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

const defaultMaxBody = 8 << 20

// Logger is the subset of slog-style logging used by the host.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Host serves remote portal requests by rebuilding them and handing them to a
// router. Portal errors are returned in the envelope with status 200; malformed
// requests get a transport error with a 4xx status.
type Host struct {
	router   transport.Router
	registry *portal.Registry
	sealer   *Sealer
	logger   Logger
	maxBody  int64
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostSealer opens and seals context blobs with s.
func WithHostSealer(s *Sealer) HostOption {
	return func(h *Host) { h.sealer = s }
}

// WithHostLogger sets the host logger.
func WithHostLogger(logger Logger) HostOption {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxBodyBytes limits the accepted request size.
func WithMaxBodyBytes(n int64) HostOption {
	return func(h *Host) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// NewHost constructs a host in front of router. registry rebuilds criteria and graphs.
func NewHost(router transport.Router, registry *portal.Registry, opts ...HostOption) *Host {
	h := &Host{router: router, registry: registry, logger: noopLogger{}, maxBody: defaultMaxBody}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.reject(w, http.StatusMethodNotAllowed, "", "", fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	var env RequestEnvelope
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		h.reject(w, http.StatusRequestEntityTooLarge, "", "", err)
		return
	}
	if err := json.Unmarshal(body, &env); err != nil {
		h.reject(w, http.StatusBadRequest, "", "", fmt.Errorf("decode request: %w", err))
		return
	}
	req, err := h.decodeRequest(env)
	if err != nil {
		h.reject(w, http.StatusBadRequest, env.Operation, env.Type, err)
		return
	}

	h.logger.Debug("remote request", "operation", string(req.Operation), "type", req.Type)
	resp, err := h.router.Route(r.Context(), req)
	if err != nil {
		h.logger.Error("remote request failed", "operation", string(req.Operation), "type", req.Type, "error", err)
		h.write(w, http.StatusOK, ResponseEnvelope{Error: EncodeError(err)})
		return
	}
	out, err := h.encodeResponse(req, resp)
	if err != nil {
		h.write(w, http.StatusOK, ResponseEnvelope{Error: EncodeError(portal.TransportError{Operation: req.Operation, Type: req.Type, Err: err})})
		return
	}
	h.write(w, http.StatusOK, out)
}

func (h *Host) decodeRequest(env RequestEnvelope) (portal.Request, error) {
	if !env.Operation.Valid() {
		return portal.Request{}, fmt.Errorf("unknown operation %q", env.Operation)
	}
	req := portal.Request{Operation: env.Operation, Type: env.Type, ForceUpdate: env.ForceUpdate}

	raw, err := h.sealer.Open(env.Context, associatedData(env.Operation, env.Type))
	if err != nil {
		return portal.Request{}, fmt.Errorf("open context: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req.Context); err != nil {
			return portal.Request{}, fmt.Errorf("decode context: %w", err)
		}
	}
	if env.Criteria != nil {
		req.Criteria, err = h.registry.DecodeCriteria(env.Criteria.Key, env.Criteria.Value)
		if err != nil {
			return portal.Request{}, err
		}
	}
	if env.Graph != nil {
		factory, err := h.registry.Factory(env.Graph.Type)
		if err != nil {
			return portal.Request{}, err
		}
		req.Object, err = domain.Decode(env.Graph, factory)
		if err != nil {
			return portal.Request{}, err
		}
	}
	return req, nil
}

func (h *Host) encodeResponse(req portal.Request, resp portal.Response) (ResponseEnvelope, error) {
	var out ResponseEnvelope
	if resp.Object != nil {
		doc, err := domain.Encode(resp.Object)
		if err != nil {
			return ResponseEnvelope{}, err
		}
		out.Graph = doc
	}
	if len(resp.Global) > 0 {
		raw, err := json.Marshal(resp.Global)
		if err != nil {
			return ResponseEnvelope{}, fmt.Errorf("marshal global context: %w", err)
		}
		out.Global, err = h.sealer.Seal(raw, associatedData(req.Operation, req.Type))
		if err != nil {
			return ResponseEnvelope{}, fmt.Errorf("seal global context: %w", err)
		}
	}
	return out, nil
}

func (h *Host) reject(w http.ResponseWriter, status int, op portal.Operation, typeName string, err error) {
	var noHandler portal.NoHandlerError
	if errors.As(err, &noHandler) {
		h.write(w, http.StatusOK, ResponseEnvelope{Error: EncodeError(err)})
		return
	}
	h.logger.Error("remote request rejected", "status", status, "error", err)
	h.write(w, status, ResponseEnvelope{Error: EncodeError(portal.TransportError{Operation: op, Type: typeName, Err: err})})
}

func (h *Host) write(w http.ResponseWriter, status int, out ResponseEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(out)
}
