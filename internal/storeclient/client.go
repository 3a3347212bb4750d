// Package storeclient implements store.Store against a lobby server's store
// endpoints.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lobbysync/internal/store"

	"github.com/gorilla/websocket"
)

var ErrBadBaseURL = errors.New("invalid_base_url")

const (
	defaultTimeout         = 10 * time.Second
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

type Client struct {
	base            *url.URL
	http            *http.Client
	dialer          *websocket.Dialer
	initialInterval time.Duration
	maxInterval     time.Duration
	onResume        func(path string)
}

var _ store.Store = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBackoff sets the reconnect backoff bounds for subscriptions.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.initialInterval = initial
		}
		if max > 0 {
			c.maxInterval = max
		}
	}
}

// WithOnResume registers fn to run each time a dropped subscription has
// reconnected, before the new connection's first frame is delivered.
func WithOnResume(fn func(path string)) Option {
	return func(c *Client) { c.onResume = fn }
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadBaseURL, baseURL)
	}
	c := &Client{
		base:            u,
		http:            &http.Client{Timeout: defaultTimeout},
		dialer:          websocket.DefaultDialer,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Read(ctx context.Context, path string) (any, bool, error) {
	var out struct {
		Exists bool `json:"exists"`
		Value  any  `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/store/value", url.Values{"path": {path}}, nil, &out); err != nil {
		return nil, false, err
	}
	return out.Value, out.Exists, nil
}

func (c *Client) Write(ctx context.Context, path string, value any) error {
	return c.do(ctx, http.MethodPut, "/api/store/value", url.Values{"path": {path}}, value, nil)
}

func (c *Client) Update(ctx context.Context, path string, patch map[string]any) error {
	if patch == nil {
		patch = map[string]any{}
	}
	return c.do(ctx, http.MethodPatch, "/api/store/value", url.Values{"path": {path}}, patch, nil)
}

func (c *Client) Remove(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, "/api/store/value", url.Values{"path": {path}}, nil, nil)
}

func (c *Client) Push(ctx context.Context, path string) (string, error) {
	var out struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/store/push", url.Values{"path": {path}}, nil, &out); err != nil {
		return "", err
	}
	return out.Key, nil
}

func (c *Client) Query(ctx context.Context, path string, q store.Query) ([]store.Child, error) {
	params := url.Values{"path": {path}}
	if q.OrderByChild != "" {
		params.Set("order_by", q.OrderByChild)
	}
	if q.EqualTo != nil {
		raw, err := json.Marshal(q.EqualTo)
		if err != nil {
			return nil, err
		}
		params.Set("equal_to", string(raw))
	}
	if q.LimitToLast > 0 {
		params.Set("limit_to_last", strconv.Itoa(q.LimitToLast))
	}
	var out struct {
		Items []store.Child `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/store/query", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) endpoint(scheme, route string, params url.Values) string {
	u := *c.base
	if scheme != "" {
		u.Scheme = scheme
	}
	u.Path = strings.TrimRight(u.Path, "/") + route
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, route string, params url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil || method == http.MethodPut {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint("", route, params), reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return responseError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", store.ErrUnavailable, err)
	}
	return nil
}

// responseError maps an error response to the store error it stands for.
func responseError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	switch {
	case body.Error == "invalid_path":
		return store.ErrInvalidPath
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d %s", store.ErrUnavailable, resp.StatusCode, body.Error)
	case body.Error != "":
		return fmt.Errorf("store request: %s", body.Error)
	default:
		return fmt.Errorf("store request: status %d", resp.StatusCode)
	}
}
