// Package api is the HTTP client for the mail-assistant REST API.
package api

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

	"github.com/agusx1211/mailflow/internal/buildinfo"
	"github.com/agusx1211/mailflow/internal/debug"
)

// DefaultTimeout bounds a single request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

var (
	// ErrSessionExpired means the stored token no longer identifies a user.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrNotAuthenticated means no token is available.
	ErrNotAuthenticated = errors.New("not logged in")
)

// Client talks to one API base URL with an optional bearer token.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string

	// OnSessionExpired runs when the backend rejects the session on users/me.
	OnSessionExpired func()
}

// New returns a client for baseURL.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Token:      strings.TrimSpace(token),
	}
}

// Error is a non-2xx API response.
type Error struct {
	Status int
	Detail string
	// Fields is set when the backend returned a validation error list.
	Fields []FieldError
}

// FieldError is one entry of a validation error list.
type FieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
	}
	if len(e.Fields) > 0 {
		msgs := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			msgs = append(msgs, f.Msg)
		}
		return fmt.Sprintf("api error %d: %s", e.Status, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// UserMessage is the text shown to end users.
func (e *Error) UserMessage() string {
	if e.Detail == "" {
		return "Something went wrong."
	}
	return e.Detail
}

// StatusOf returns the HTTP status of an *Error in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// UserMessage renders any error for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSessionExpired) {
		return ErrSessionExpired.Error()
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return err.Error()
}

type request struct {
	method string
	path   string
	query  url.Values
	body   io.Reader
	ctype  string
	out    any
	ok     []int
}

func (c *Client) jsonRequest(method, path string, in, out any, ok ...int) (request, error) {
	req := request{method: method, path: path, out: out, ok: ok}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return req, fmt.Errorf("encoding request: %w", err)
		}
		req.body = bytes.NewReader(data)
		req.ctype = "application/json"
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, ok ...int) error {
	req, err := c.jsonRequest(method, path, in, out, ok...)
	if err != nil {
		return err
	}
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, r request) error {
	if c == nil {
		return errors.New("api client is nil")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	reqURL := c.BaseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, reqURL, r.body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if r.ctype != "" {
		httpReq.Header.Set("Content-Type", r.ctype)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", buildinfo.Current().UserAgent())
	if token := strings.TrimSpace(c.Token); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		debug.LogKV("api", "request failed", "method", r.method, "path", r.path, "error", err)
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()
	debug.LogKV("api", "request",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	ok := r.ok
	if len(ok) == 0 {
		ok = []int{http.StatusOK}
	}
	for _, status := range ok {
		if resp.StatusCode != status {
			continue
		}
		if r.out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
			return fmt.Errorf("decoding %s response: %w", r.path, err)
		}
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return decodeError(resp.StatusCode, body)
}

// decodeError understands {"detail": "..."} and {"detail": [{"msg": ...}]}.
func decodeError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		if status >= 500 || len(body) == 0 {
			return apiErr
		}
		apiErr.Detail = strings.TrimSpace(string(body))
		return apiErr
	}
	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}
	var fields []FieldError
	if err := json.Unmarshal(envelope.Detail, &fields); err == nil {
		apiErr.Fields = fields
	}
	return apiErr
}
