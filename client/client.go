// Package client is the single call surface pages use to reach the backend.
// It decorates requests with the right bearer token, classifies failures,
// and owns the login, logout and refresh flows.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/apierrors"
	"github.com/upb/jaffa-explorer/session"
)

const (
	defaultBaseURL = "http://localhost:8000/api/"
	defaultTimeout = 30 * time.Second

	// RequestIDHeader carries a per-call id for backend log correlation.
	RequestIDHeader = "X-Request-ID"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Precedence session.Precedence
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    Metrics
	Now        func() time.Time
}

// Client issues backend requests on behalf of whichever role is signed in.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      session.Store
	precedence session.Precedence
	logger     *zap.Logger
	metrics    Metrics
	now        func() time.Time
}

// New creates a client over store.
func New(store session.Store, opts Options) (*Client, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}

	raw := opts.BaseURL
	if raw == "" {
		raw = defaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", opts.BaseURL)
	}

	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if len(opts.Precedence) == 0 {
		opts.Precedence = session.DefaultPrecedence
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		store:      store,
		precedence: opts.Precedence,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}, nil
}

// Store returns the session store the client reads and writes.
func (c *Client) Store() session.Store {
	return c.store
}

// Precedence returns the role order used for unpinned requests.
func (c *Client) Precedence() session.Precedence {
	return c.precedence
}

// BaseURL returns the backend origin requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Request describes one backend call.
type Request struct {
	Method string
	// Path is relative to the base URL, e.g. "posts/" or "profile/visitor/".
	Path  string
	Query url.Values
	// Body is JSON-encoded unless Form is set.
	Body any
	// Form sends multipart/form-data; used when a file field is present.
	Form *Form
	// Pin attaches this role's token instead of resolving by precedence.
	Pin session.Role
	// Anonymous sends no Authorization header.
	Anonymous bool
	Header    http.Header
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Role whose token was attached, RoleNone if none.
	Role session.Role
}

// Decode unmarshals the body into out. An empty body leaves out untouched.
func (r *Response) Decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do sends req with the token chosen by precedence (or req.Pin) and decodes
// a 2xx body into out. Non-2xx replies and transport failures come back as
// *apierrors.Error. Do never modifies the session store.
func (c *Client) Do(ctx context.Context, req *Request, out any) (*Response, error) {
	cred, err := c.credentialFor(ctx, req)
	if err != nil {
		return nil, err
	}

	role := session.RoleNone
	if cred != nil {
		role = cred.Role
	}

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if cred != nil {
		httpReq.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	start := c.now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(httpReq.Method, role, 0, c.now().Sub(start))
		c.logger.Debug("backend request failed",
			zap.String("method", httpReq.Method),
			zap.String("path", req.Path),
			zap.String("role", role.String()),
			zap.Error(err),
		)
		return nil, apierrors.NetworkOrServer(0, nil, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	duration := c.now().Sub(start)
	c.metrics.ObserveRequest(httpReq.Method, role, httpResp.StatusCode, duration)
	c.logger.Debug("backend request",
		zap.String("method", httpReq.Method),
		zap.String("path", req.Path),
		zap.String("role", role.String()),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", duration),
		zap.String("request_id", httpReq.Header.Get(RequestIDHeader)),
	)
	if err != nil {
		return nil, apierrors.NetworkOrServer(httpResp.StatusCode, nil, fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		apiErr := apierrors.FromResponse(httpResp.StatusCode, body)
		if apiErr.Type == apierrors.TypeSessionExpired {
			apiErr.Role = role
			apiErr.LoginPath = role.LoginPath()
		}
		return nil, apiErr
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Role:       role,
	}
	if err := resp.Decode(out); err != nil {
		return resp, apierrors.NetworkOrServer(httpResp.StatusCode, nil, err)
	}
	return resp, nil
}

// credentialFor picks the token to attach, or nil for none.
func (c *Client) credentialFor(ctx context.Context, req *Request) (*session.Credential, error) {
	if req.Anonymous {
		return nil, nil
	}
	if req.Pin.Valid() {
		cred, err := c.store.Get(ctx, req.Pin)
		if errors.Is(err, session.ErrCredentialNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s credential: %w", req.Pin, err)
		}
		if cred.AccessToken == "" {
			return nil, nil
		}
		return cred, nil
	}
	_, cred, err := session.Resolve(ctx, c.store, c.precedence)
	if err != nil {
		return nil, err
	}
	return cred, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.resolve(req.Path, req.Query)

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		data, ct, err := req.Form.encode()
		if err != nil {
			return nil, err
		}
		body, contentType = bytes.NewReader(data), ct
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return httpReq, nil
}

// resolve joins a relative path onto the base URL. Escapes already present in
// path are kept.
func (c *Client) resolve(path string, query url.Values) string {
	path = strings.TrimPrefix(path, "/")
	ref, err := url.Parse(path)
	if err != nil || ref.IsAbs() || ref.Host != "" {
		ref = &url.URL{Path: path}
	}
	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
