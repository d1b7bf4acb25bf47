package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bizcore/internal/transport"
	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

const defaultTimeout = 30 * time.Second

// Client is the remote proxy. It serializes requests, posts them to a Host and
// rebuilds the resulting graph through the local registry.
type Client struct {
	endpoint string
	registry *portal.Registry
	http     *http.Client
	sealer   *Sealer
}

var _ transport.Proxy = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for round trips.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSealer seals context blobs with s. Host and client must share the key.
func WithSealer(s *Sealer) ClientOption {
	return func(c *Client) { c.sealer = s }
}

// NewClient constructs a remote proxy posting to endpoint.
func NewClient(endpoint string, registry *portal.Registry, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		registry: registry,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute implements transport.Proxy.
func (c *Client) Execute(ctx context.Context, req portal.Request) (portal.Response, error) {
	fail := func(err error) (portal.Response, error) {
		return portal.Response{}, portal.TransportError{Operation: req.Operation, Type: req.Type, Err: err}
	}

	env, err := c.encodeRequest(req)
	if err != nil {
		return fail(err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fail(fmt.Errorf("marshal request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fail(fmt.Errorf("read response: %w", err))
	}

	var out ResponseEnvelope
	if err := json.Unmarshal(payload, &out); err != nil {
		return fail(fmt.Errorf("status %d: decode response: %w", httpResp.StatusCode, err))
	}
	if out.Error != nil {
		return portal.Response{}, DecodeError(out.Error)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("unexpected status %d", httpResp.StatusCode))
	}
	return c.decodeResponse(req, out)
}

func (c *Client) encodeRequest(req portal.Request) (RequestEnvelope, error) {
	env := RequestEnvelope{Operation: req.Operation, Type: req.Type, ForceUpdate: req.ForceUpdate}
	if req.Criteria != nil {
		raw, err := json.Marshal(req.Criteria)
		if err != nil {
			return RequestEnvelope{}, fmt.Errorf("marshal criteria: %w", err)
		}
		env.Criteria = &CriteriaEnvelope{Key: portal.CriteriaKey(req.Criteria), Value: raw}
	}
	if req.Object != nil {
		doc, err := domain.Encode(req.Object)
		if err != nil {
			return RequestEnvelope{}, err
		}
		env.Graph = doc
	}
	pc, err := json.Marshal(req.Context)
	if err != nil {
		return RequestEnvelope{}, fmt.Errorf("marshal context: %w", err)
	}
	env.Context, err = c.sealer.Seal(pc, associatedData(req.Operation, req.Type))
	if err != nil {
		return RequestEnvelope{}, fmt.Errorf("seal context: %w", err)
	}
	return env, nil
}

func (c *Client) decodeResponse(req portal.Request, out ResponseEnvelope) (portal.Response, error) {
	var resp portal.Response
	if len(out.Global) > 0 {
		raw, err := c.sealer.Open(out.Global, associatedData(req.Operation, req.Type))
		if err != nil {
			return portal.Response{}, portal.TransportError{Operation: req.Operation, Type: req.Type, Err: fmt.Errorf("open global context: %w", err)}
		}
		if err := json.Unmarshal(raw, &resp.Global); err != nil {
			return portal.Response{}, portal.TransportError{Operation: req.Operation, Type: req.Type, Err: fmt.Errorf("decode global context: %w", err)}
		}
	}
	if out.Graph == nil {
		return resp, nil
	}
	factory, err := c.registry.Factory(out.Graph.Type)
	if err != nil {
		return portal.Response{}, portal.TransportError{Operation: req.Operation, Type: req.Type, Err: err}
	}
	obj, err := domain.Decode(out.Graph, factory)
	if err != nil {
		return portal.Response{}, portal.TransportError{Operation: req.Operation, Type: req.Type, Err: fmt.Errorf("decode graph: %w", err)}
	}
	resp.Object = obj
	return resp, nil
}
