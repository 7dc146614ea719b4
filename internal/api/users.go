package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

func pageQuery(skip, limit int) url.Values {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// CurrentUser returns the user the token belongs to. A 403 or 404 means the
// session is no longer valid: OnSessionExpired runs and the error wraps
// ErrSessionExpired.
func (c *Client) CurrentUser(ctx context.Context) (protocol.UserPublic, error) {
	var u protocol.UserPublic
	err := c.doJSON(ctx, http.MethodGet, protocol.UserMePath(), nil, &u)
	if err != nil {
		return protocol.UserPublic{}, c.sessionError(err)
	}
	return u, nil
}

func (c *Client) sessionError(err error) error {
	switch StatusOf(err) {
	case http.StatusForbidden, http.StatusNotFound:
		if c.OnSessionExpired != nil {
			c.OnSessionExpired()
		}
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return err
}

// UpdateMe changes the caller's own profile.
func (c *Client) UpdateMe(ctx context.Context, in protocol.UserUpdateMe) (protocol.UserPublic, error) {
	var u protocol.UserPublic
	err := c.doJSON(ctx, http.MethodPatch, protocol.UserMePath(), in, &u)
	return u, err
}

// UpdatePassword changes the caller's password.
func (c *Client) UpdatePassword(ctx context.Context, in protocol.UpdatePassword) error {
	return c.doJSON(ctx, http.MethodPatch, protocol.UserMePath()+"/password", in, &protocol.Message{})
}

// DeleteMe removes the caller's account.
func (c *Client) DeleteMe(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, protocol.UserMePath(), nil, &protocol.Message{})
}

// Signup registers a new account without authentication.
func (c *Client) Signup(ctx context.Context, in protocol.UserRegister) (protocol.UserPublic, error) {
	var u protocol.UserPublic
	err := c.doJSON(ctx, http.MethodPost, protocol.SignupPath(), in, &u)
	return u, err
}

// ListUsers returns one page of users. Superuser only.
func (c *Client) ListUsers(ctx context.Context, skip, limit int) (protocol.UsersPublic, error) {
	var out protocol.UsersPublic
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   protocol.UsersPath(),
		query:  pageQuery(skip, limit),
		out:    &out,
	})
	return out, err
}

// CreateUser adds a user. Superuser only.
func (c *Client) CreateUser(ctx context.Context, in protocol.UserCreate) (protocol.UserPublic, error) {
	var u protocol.UserPublic
	err := c.doJSON(ctx, http.MethodPost, protocol.UsersPath(), in, &u)
	return u, err
}

// GetUser fetches one user by id.
func (c *Client) GetUser(ctx context.Context, id string) (protocol.UserPublic, error) {
	var u protocol.UserPublic
	err := c.doJSON(ctx, http.MethodGet, protocol.UserPath(id), nil, &u)
	return u, err
}

// UpdateUser patches a user. Superuser only.
func (c *Client) UpdateUser(ctx context.Context, id string, in protocol.UserUpdate) (protocol.UserPublic, error) {
	var u protocol.UserPublic
	err := c.doJSON(ctx, http.MethodPatch, protocol.UserPath(id), in, &u)
	return u, err
}

// DeleteUser removes a user. Superuser only.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, protocol.UserPath(id), nil, &protocol.Message{})
}
