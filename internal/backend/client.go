// Package backend is the single gateway to the external backend service.
//
// The service is Supabase-compatible: authentication lives under /auth/v1 (GoTrue)
// and tables under /rest/v1 (PostgREST). A *Client is one configured handle: it owns
// at most one signed-in session, notifies listeners when that session changes, and
// exposes generic query/insert/update primitives over the table API.
//
// The handle is a pass-through. It never retries, batches, or caches; those concerns
// belong to the service on the other side.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/scorecast/internal/apperror"
)

// DefaultTimeout bounds a single round trip when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// Client is a configured handle to the backend service.
type Client struct {
	baseURL *url.URL
	key     string
	http    *http.Client
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	session   *Session
	source    oauth2.TokenSource
	listeners []listener
	nextID    uint64
}

// Option customises a Client built by Connect.
type Option func(*Client)

// WithHTTPClient makes the handle use hc for every request.
// Handles created for different browsers typically share one http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now when computing token expiry from expires_in.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Connect validates the service URL and public key and returns a handle.
//
// It fails with an apperror.ErrConfiguration error when either value is missing,
// so the application can refuse to start. No network call is made.
func Connect(rawURL, key string, opts ...Option) (*Client, error) {
	rawURL = strings.TrimSpace(rawURL)
	key = strings.TrimSpace(key)

	if rawURL == "" {
		return nil, apperror.Configuration("url", "backend: service URL is required")
	}
	if key == "" {
		return nil, apperror.Configuration("key", "backend: service key is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperror.Configuration("url", fmt.Sprintf("backend: service URL %q must be an absolute http(s) URL", rawURL))
	}

	c := &Client{
		baseURL: u,
		key:     key,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// remoteError is the union of the error bodies the auth and table APIs send back.
type remoteError struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
}

func (e remoteError) message(status int) string {
	for _, m := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if m != "" {
			return m
		}
	}
	return http.StatusText(status)
}

// newRequest builds a request against path (relative to the service root) and
// attaches the public key. body is JSON-encoded when non-nil.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("backend: encoding %s %s body: %w", method, path, err)
		}
		r = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("backend: building %s %s: %w", method, path, err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send performs req and decodes a 2xx JSON body into dest (when non-nil).
//
// A non-2xx answer is returned as *remoteFailure so callers can classify it
// as an auth or a query error.
func (c *Client) send(req *http.Request, dest any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	c.logger.Debug("backend request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body remoteError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &body)
		return &remoteFailure{status: resp.StatusCode, message: body.message(resp.StatusCode)}
	}

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("backend: decoding %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// remoteFailure is a non-2xx response before it is classified.
type remoteFailure struct {
	status  int
	message string
}

func (f *remoteFailure) Error() string {
	return fmt.Sprintf("backend: remote status %d: %s", f.status, f.message)
}

// asAuthError turns a failure from an auth endpoint into an apperror.ErrAuth.
// Transport failures keep their cause so callers can tell them apart.
func asAuthError(op string, err error) error {
	var rf *remoteFailure
	if errors.As(err, &rf) {
		return apperror.Auth(rf.status, rf.message)
	}
	if errors.Is(err, apperror.ErrAuth) {
		return err
	}
	return &apperror.AppError{
		Err:     fmt.Errorf("%w: %s: %w", apperror.ErrAuth, op, err),
		Message: err.Error(),
	}
}

// asQueryError is asAuthError for the table API.
func asQueryError(op string, err error) error {
	var rf *remoteFailure
	if errors.As(err, &rf) {
		return apperror.Query(rf.status, rf.message)
	}
	if errors.Is(err, apperror.ErrQuery) {
		return err
	}
	return &apperror.AppError{
		Err:     fmt.Errorf("%w: %s: %w", apperror.ErrQuery, op, err),
		Message: apperror.MessageOf(err),
	}
}
