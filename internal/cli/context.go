package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agusx1211/mailflow/internal/admin"
	"github.com/agusx1211/mailflow/internal/agentrun"
	"github.com/agusx1211/mailflow/internal/api"
	"github.com/agusx1211/mailflow/internal/appstate"
	"github.com/agusx1211/mailflow/internal/config"
	"github.com/agusx1211/mailflow/internal/debug"
	"github.com/agusx1211/mailflow/internal/mail"
)

// cacheMaxAge bounds how long a command reuses a fetched list.
const cacheMaxAge = 30 * time.Second

// appContext is what most commands need: the effective configuration, the
// stored session and a client bound to both.
type appContext struct {
	cfg     *config.GlobalConfig
	session *config.Session
	client  *api.Client
	cache   *appstate.Cache
}

// loadAppContext reads config and session. The session's API URL wins over
// the configured one so a login keeps pointing at the backend it came from,
// unless MAILFLOW_API_URL is set explicitly.
func loadAppContext() (*appContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	sess, err := config.LoadSession()
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	baseURL := cfg.APIURL
	if sess.APIURL != "" && !envSet(config.EnvAPIURL) {
		baseURL = sess.APIURL
	}
	client := api.New(baseURL, sess.AccessToken, cfg.RequestTimeout())
	client.OnSessionExpired = func() {
		debug.Log("cli", "session rejected by backend, clearing stored token")
		if err := config.ClearSession(); err != nil {
			debug.LogKV("cli", "clearing session failed", "error", err)
		}
	}
	return &appContext{
		cfg:     cfg,
		session: sess,
		client:  client,
		cache:   appstate.New(cacheMaxAge),
	}, nil
}

// requireLogin fails early when there is no usable token.
func (a *appContext) requireLogin() error {
	return api.CheckToken(a.session.AccessToken, time.Now())
}

func (a *appContext) users() *admin.Users {
	return admin.NewUsers(a.client, a.cache)
}

func (a *appContext) items() *admin.Items {
	return admin.NewItems(a.client, a.cache)
}

func (a *appContext) pollOptions() agentrun.Options {
	return agentrun.Options{
		PollInterval:    a.cfg.PollInterval(),
		MaxPollDuration: a.cfg.MaxPollDuration(),
		MaxPollFailures: a.cfg.MaxPollFailures,
	}
}

// mailSource builds the inbox the TUI shows.
func (a *appContext) mailSource() (mail.Source, error) {
	switch strings.ToLower(a.cfg.MailSource) {
	case "", config.SourceSample:
		return mail.SampleSource{}, nil
	case config.SourceIMAP:
		src, err := mail.NewIMAPSource(a.cfg.IMAP)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown mail_source %q (expected %s or %s)", a.cfg.MailSource, config.SourceSample, config.SourceIMAP)
	}
}

func envSet(key string) bool {
	return strings.TrimSpace(os.Getenv(key)) != ""
}
