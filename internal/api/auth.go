package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

// Login exchanges credentials for an access token using the OAuth2 password
// form. On success the token is also stored on the client.
func (c *Client) Login(ctx context.Context, username, password string) (protocol.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)

	var tok protocol.Token
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   protocol.LoginPath(),
		body:   strings.NewReader(form.Encode()),
		ctype:  "application/x-www-form-urlencoded",
		out:    &tok,
	})
	if err != nil {
		return protocol.Token{}, err
	}
	if tok.AccessToken == "" {
		return protocol.Token{}, errors.New("login: backend returned an empty token")
	}
	c.Token = tok.AccessToken
	return tok, nil
}

// TestToken asks the backend to validate the current token.
func (c *Client) TestToken(ctx context.Context) (protocol.UserPublic, error) {
	var u protocol.UserPublic
	err := c.doJSON(ctx, http.MethodPost, protocol.TestTokenPath(), nil, &u)
	return u, err
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// ok is false when the token is malformed or carries no expiry.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}

// CheckToken reports ErrNotAuthenticated for an empty token and
// ErrSessionExpired for one whose exp claim has passed. Tokens without a
// readable expiry are left for the backend to judge.
func CheckToken(token string, now time.Time) error {
	if strings.TrimSpace(token) == "" {
		return ErrNotAuthenticated
	}
	if exp, ok := TokenExpiry(token); ok && !now.Before(exp) {
		return fmt.Errorf("%w (token expired %s)", ErrSessionExpired, exp.Local().Format(time.DateTime))
	}
	return nil
}
