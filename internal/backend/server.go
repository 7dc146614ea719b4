// Package backend is a self-contained development server for the mail
// assistant API: user and item CRUD, token login and a simulated agent
// workflow, stored in SQLite.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/agusx1211/mailflow/internal/debug"
	"github.com/agusx1211/mailflow/pkg/protocol"
)

// Options configures the development backend.
type Options struct {
	Host string
	// Port 0 binds a free port; negative uses 8000.
	Port   int
	DBPath string
	// Secret signs access tokens. Tokens do not survive a restart when it
	// is left empty and a random one is generated.
	Secret string

	AdminEmail    string
	AdminPassword string

	// SignupAccessPassword, when set, must accompany self-registrations.
	SignupAccessPassword string

	// Speed divides the simulated stage durations.
	Speed float64

	// PasswordCost overrides the bcrypt cost. Zero uses bcrypt.DefaultCost.
	PasswordCost int
}

// Server hosts the REST API and the run stream.
type Server struct {
	store      *Store
	engine     *engine
	hub        *hub
	httpServer *http.Server
	host       string
	port       int

	secret         []byte
	bcryptCost     int
	accessPassword string
	now            func() time.Time
}

// New opens the database, seeds the administrator and builds the handler
// tree. Call Start to listen.
func New(opts Options) (*Server, error) {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port < 0 {
		port = 8000
	}

	store, err := OpenStore(opts.DBPath)
	if err != nil {
		return nil, err
	}
	if n, err := store.FailUnfinishedRuns(context.Background(), shutdownMessage); err != nil {
		store.Close()
		return nil, err
	} else if n > 0 {
		debug.LogKV("backend", "marked interrupted runs as failed", "count", n)
	}

	secret := []byte(opts.Secret)
	if len(secret) == 0 {
		secret = []byte(randomSecret())
	}
	cost := opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	h := newHub()
	srv := &Server{
		store:          store,
		hub:            h,
		engine:         newEngine(store, h, opts.Speed),
		host:           host,
		port:           port,
		secret:         secret,
		bcryptCost:     cost,
		accessPassword: opts.SignupAccessPassword,
		now:            time.Now,
	}
	if err := srv.seedSuperuser(context.Background(), opts.AdminEmail, opts.AdminPassword); err != nil {
		store.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	srv.setupRoutes(mux)
	srv.httpServer = &http.Server{
		Addr:              srv.Addr(),
		Handler:           corsMiddleware(logMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, nil
}

// Handler exposes the full middleware chain, mainly for tests.
func (srv *Server) Handler() http.Handler {
	return srv.httpServer.Handler
}

// Start listens in the background and returns once the port is bound.
func (srv *Server) Start() error {
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return err
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		srv.port = tcpAddr.Port
		srv.httpServer.Addr = srv.Addr()
	}
	go func() {
		if err := srv.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.LogKV("backend", "server stopped with error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests, fails in-flight runs and closes the
// database.
func (srv *Server) Shutdown(ctx context.Context) error {
	var httpErr error
	if srv.httpServer != nil {
		httpErr = srv.httpServer.Shutdown(ctx)
	}
	srv.engine.stop()
	return errors.Join(httpErr, srv.store.Close())
}

// Addr returns the bound host:port address.
func (srv *Server) Addr() string {
	return net.JoinHostPort(srv.host, strconv.Itoa(srv.port))
}

// Port is the bound port once Start returned.
func (srv *Server) Port() int { return srv.port }

// URL is the base URL clients should use.
func (srv *Server) URL() string {
	host := srv.host
	if host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(srv.port)))
}

func (srv *Server) setupRoutes(mux *http.ServeMux) {
	p := protocol.APIPrefix

	mux.HandleFunc("POST "+p+"/login/access-token", srv.handleLogin)
	mux.HandleFunc("POST "+p+"/login/test-token", srv.authed(srv.handleTestToken))

	mux.HandleFunc("GET "+p+"/users/me", srv.authed(srv.handleReadMe))
	mux.HandleFunc("PATCH "+p+"/users/me", srv.authed(srv.handleUpdateMe))
	mux.HandleFunc("DELETE "+p+"/users/me", srv.authed(srv.handleDeleteMe))
	mux.HandleFunc("PATCH "+p+"/users/me/password", srv.authed(srv.handleUpdatePassword))
	mux.HandleFunc("POST "+p+"/users/signup", srv.handleSignup)
	mux.HandleFunc("GET "+p+"/users/{$}", srv.superuser(srv.handleListUsers))
	mux.HandleFunc("POST "+p+"/users/{$}", srv.superuser(srv.handleCreateUser))
	mux.HandleFunc("GET "+p+"/users/{id}", srv.authed(srv.handleReadUser))
	mux.HandleFunc("PATCH "+p+"/users/{id}", srv.superuser(srv.handleUpdateUser))
	mux.HandleFunc("DELETE "+p+"/users/{id}", srv.superuser(srv.handleDeleteUser))

	mux.HandleFunc("GET "+p+"/items/{$}", srv.authed(srv.handleListItems))
	mux.HandleFunc("POST "+p+"/items/{$}", srv.authed(srv.handleCreateItem))
	mux.HandleFunc("GET "+p+"/items/{id}", srv.authed(srv.handleReadItem))
	mux.HandleFunc("PUT "+p+"/items/{id}", srv.authed(srv.handleUpdateItem))
	mux.HandleFunc("DELETE "+p+"/items/{id}", srv.authed(srv.handleDeleteItem))

	mux.HandleFunc("GET "+p+"/agent/langgraph", srv.handleStartAgent)
	mux.HandleFunc("GET "+p+"/agent/{id}", srv.handleAgentStatus)
	mux.HandleFunc("GET "+p+"/agent/{id}/stream", srv.handleAgentStream)

	mux.HandleFunc("GET "+p+"/utils/health-check/{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, true)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
}
