package aios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aios-hq/aios-go/pkg/httpclient"
)

const (
	pathAgentsRun  = "/api/agents/run"
	pathAgents     = "/api/agents"
	pathWorkflows  = "/api/workflows"
	pathHealth     = "/health"
	contentTypeKey = "Content-Type"
	authKey        = "Authorization"
	jsonMediaType  = "application/json"
)

var errEmptyBody = errors.New("empty response body")

// Client calls the AIOS core service. The base URL and token are immutable
// after construction and the transport is shared by every call.
type Client struct {
	baseURL   string
	token     string
	transport httpclient.Client
}

// Option customizes a Client at construction time.
type Option func(*clientOptions)

type clientOptions struct {
	transport httpclient.Client
	timeout   time.Duration
}

// WithTransport replaces the default resty transport.
func WithTransport(t httpclient.Client) Option {
	return func(o *clientOptions) { o.transport = t }
}

// WithTimeout sets a transport-level timeout on the default transport.
// It has no effect when WithTransport is also given.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// New stores baseURL and token verbatim and creates the transport. An empty
// token means no Authorization header is sent. baseURL is not validated.
func New(baseURL, token string, opts ...Option) *Client {
	var o clientOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.transport == nil {
		o.transport = httpclient.NewRestyClient(o.timeout)
	}
	return &Client{
		baseURL:   baseURL,
		token:     token,
		transport: o.transport,
	}
}

// BaseURL returns the base URL the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// RunAgent submits a task to the named agent and returns the decoded JSON
// response, whatever its HTTP status.
func (c *Client) RunAgent(ctx context.Context, params AgentRunParams) (any, error) {
	return c.post(ctx, "run agent", pathAgentsRun, params)
}

// ListAgents returns the agents known to the service.
func (c *Client) ListAgents(ctx context.Context) (any, error) {
	return c.get(ctx, "list agents", pathAgents)
}

// ListWorkflows returns the workflows known to the service.
func (c *Client) ListWorkflows(ctx context.Context) (any, error) {
	return c.get(ctx, "list workflows", pathWorkflows)
}

// ExecuteWorkflow starts the workflow with the given id. An empty input sends
// an empty object.
func (c *Client) ExecuteWorkflow(ctx context.Context, id string, input map[string]any) (any, error) {
	payload := map[string]any{}
	if len(input) > 0 {
		payload["input"] = input
	}
	path := fmt.Sprintf("%s/%s/execute", pathWorkflows, url.PathEscape(id))
	return c.post(ctx, "execute workflow", path, payload)
}

// Health returns the service health document.
func (c *Client) Health(ctx context.Context) (any, error) {
	return c.get(ctx, "health", pathHealth)
}

func (c *Client) get(ctx context.Context, op, path string) (any, error) {
	target := c.baseURL + path
	resp, err := c.transport.Get(ctx, target, c.headers(false))
	if err != nil {
		return nil, &HTTPError{Op: op, Method: http.MethodGet, URL: target, Err: err}
	}
	return decode(op, http.MethodGet, target, resp)
}

func (c *Client) post(ctx context.Context, op, path string, payload any) (any, error) {
	target := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &HTTPError{Op: op, Method: http.MethodPost, URL: target, Err: fmt.Errorf("encode request: %w", err)}
	}
	resp, err := c.transport.Post(ctx, target, c.headers(true), body)
	if err != nil {
		return nil, &HTTPError{Op: op, Method: http.MethodPost, URL: target, Err: err}
	}
	return decode(op, http.MethodPost, target, resp)
}

func (c *Client) headers(withBody bool) map[string]string {
	h := make(map[string]string, 2)
	if withBody {
		h[contentTypeKey] = jsonMediaType
	}
	if c.token != "" {
		h[authKey] = "Bearer " + c.token
	}
	return h
}

func decode(op, method, target string, resp httpclient.Response) (any, error) {
	if resp == nil {
		return nil, &HTTPError{Op: op, Method: method, URL: target, Err: errEmptyBody}
	}
	var out any
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &HTTPError{Op: op, Method: method, URL: target, Err: fmt.Errorf("decode response (status %d): %w", resp.StatusCode(), err)}
	}
	return out, nil
}
