package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the lifetime of an access token.
const TokenTTL = 8 * 24 * time.Hour

var errBadCredentials = errors.New("invalid credentials")

func (srv *Server) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), srv.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// issueToken signs an HS256 access token whose subject is the user ID.
func (srv *Server) issueToken(userID string) (string, error) {
	issued := srv.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(srv.secret)
}

func (srv *Server) parseToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return srv.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(srv.now))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// authenticate resolves the bearer token to an active user, writing the
// error response itself when that fails.
func (srv *Server) authenticate(w http.ResponseWriter, r *http.Request) (User, bool) {
	raw, ok := bearerToken(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return User{}, false
	}
	userID, err := srv.parseToken(raw)
	if err != nil {
		writeDetail(w, http.StatusForbidden, "Could not validate credentials")
		return User{}, false
	}
	u, err := srv.store.UserByID(r.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "User not found")
		return User{}, false
	}
	if err != nil {
		writeInternal(w, err)
		return User{}, false
	}
	if !u.IsActive {
		writeDetail(w, http.StatusBadRequest, "Inactive user")
		return User{}, false
	}
	return u, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, tok, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		tok = strings.TrimSpace(tok)
		return tok, tok != ""
	}
	return "", false
}

// authed wraps a handler that needs the calling user.
func (srv *Server) authed(next func(User, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := srv.authenticate(w, r)
		if !ok {
			return
		}
		next(u, w, r)
	}
}

// superuser wraps a handler restricted to administrators.
func (srv *Server) superuser(next func(User, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return srv.authed(func(u User, w http.ResponseWriter, r *http.Request) {
		if !u.IsSuperuser {
			writeDetail(w, http.StatusForbidden, "The user doesn't have enough privileges")
			return
		}
		next(u, w, r)
	})
}

// login checks credentials and returns the matching user.
func (srv *Server) login(ctx context.Context, email, password string) (User, error) {
	u, err := srv.store.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, errBadCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !verifyPassword(u.HashedPassword, password) {
		return User{}, errBadCredentials
	}
	return u, nil
}

// seedSuperuser creates the first administrator when the user table has
// none and credentials were configured.
func (srv *Server) seedSuperuser(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil
	}
	if _, err := srv.store.UserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := srv.hashPassword(password)
	if err != nil {
		return err
	}
	u := &User{Email: email, HashedPassword: hash, FullName: "Administrator", IsActive: true, IsSuperuser: true}
	if err := srv.store.CreateUser(ctx, u); err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("seeding superuser: %w", err)
	}
	return nil
}
