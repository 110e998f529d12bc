// Package remote is the HTTP client for the backend draft store, the single
// source of truth for cross-device resume.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filing-assistant/internal/model"
)

var (
	// ErrNotFound is returned by Get when the draft does not exist.
	ErrNotFound = eris.New("remote: draft not found")
	// ErrClosed is returned when the server refuses to modify a submitted draft.
	ErrClosed = eris.New("remote: draft is closed")
)

// UnavailableError is any failure that is not a definite server answer:
// network errors, timeouts and non-2xx statuses alike.
type UnavailableError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("remote: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithBreaker installs a circuit breaker in front of every call.
func WithBreaker(b *Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// Client talks to the remote draft store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *Breaker
}

// NewClient creates a Client for the store at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createResponse struct {
	DraftID string `json:"draft_id"`
}

// Create stores a new draft and returns the id the server assigned.
func (c *Client) Create(ctx context.Context, snap *model.DraftSnapshot) (string, error) {
	var out createResponse
	if err := c.do(ctx, "create", http.MethodPost, "/v1/drafts", snap, &out); err != nil {
		return "", err
	}
	if out.DraftID == "" {
		return "", &UnavailableError{Op: "create", Err: eris.New("response carries no draft_id")}
	}
	return out.DraftID, nil
}

// Update replaces the stored draft.
func (c *Client) Update(ctx context.Context, id string, snap *model.DraftSnapshot) error {
	return c.do(ctx, "update", http.MethodPut, "/v1/drafts/"+url.PathEscape(id), snap, nil)
}

// Get fetches a draft.
func (c *Client) Get(ctx context.Context, id string) (*model.DraftSnapshot, error) {
	var snap model.DraftSnapshot
	if err := c.do(ctx, "get", http.MethodGet, "/v1/drafts/"+url.PathEscape(id), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return &UnavailableError{Op: op, Err: err}
		}
	}
	err := c.roundTrip(ctx, op, method, path, in, out)
	if c.breaker != nil {
		c.breaker.Record(err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return eris.Wrapf(err, "remote: %s: marshal", op)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrapf(err, "remote: %s: create request", op)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &UnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrClosed
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &UnavailableError{Op: op, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UnavailableError{Op: op, Err: eris.Wrap(err, "decode response")}
	}
	return nil
}
