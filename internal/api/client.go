// Package api is the HTTP client for the chat backend's REST surface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/matheus3301/chatline/internal/apierr"
	"go.uber.org/zap"
)

// Sort orders for message listings.
const (
	SortDesc = "desc"
	SortAsc  = "asc"
)

// Client talks to the backend on behalf of one authenticated user.
type Client struct {
	baseURL  *url.URL
	token    string
	http     *http.Client
	validate *validator.Validate
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL: u,
		token:   token,
		// No client timeout: a stalled request lasts until ctx is done.
		http:     &http.Client{},
		validate: validator.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

// do sends req and decodes a 2xx JSON body into out, validating its shape.
func (c *Client) do(ctx context.Context, req request, out any) error {
	u := *c.baseURL
	// req.path segments are already escaped.
	u.RawPath = c.baseURL.EscapedPath() + req.path
	u.Path, _ = url.PathUnescape(u.RawPath)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), req.body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", req.op, ctx.Err())
		}
		return &apierr.NetworkError{Op: req.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("api request",
		zap.String("op", req.op),
		zap.String("method", req.method),
		zap.String("path", u.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", req.op, ctx.Err())
		}
		return &apierr.NetworkError{Op: req.op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apierr.ServerError{Op: req.op, Status: resp.StatusCode, Detail: errorDetail(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apierr.ServerError{Op: req.op, Status: apierr.StatusMalformed, Detail: err.Error()}
	}
	if err := c.check(out); err != nil {
		return &apierr.ServerError{Op: req.op, Status: apierr.StatusMalformed, Detail: err.Error()}
	}
	return nil
}

// check validates decoded responses; slices are validated element-wise.
func (c *Client) check(out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() == reflect.Slice {
		return c.validate.Var(v.Interface(), "dive")
	}
	return c.validate.Struct(v.Interface())
}

func errorDetail(body []byte) string {
	var e struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Detail != "" {
			return e.Detail
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func cursorQuery(cursor string) url.Values {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return q
}
