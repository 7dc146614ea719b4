package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides read by Load.
const (
	EnvAPIURL          = "MAILFLOW_API_URL"
	EnvToken           = "MAILFLOW_TOKEN"
	EnvPollIntervalMS  = "MAILFLOW_POLL_INTERVAL_MS"
	EnvMailSource      = "MAILFLOW_MAIL_SOURCE"
	EnvIMAPServer      = "MAILFLOW_IMAP_SERVER"
	EnvIMAPUsername    = "MAILFLOW_IMAP_USERNAME"
	EnvIMAPPassword    = "MAILFLOW_IMAP_PASSWORD"
	EnvIMAPMailbox     = "MAILFLOW_IMAP_MAILBOX"
	EnvRequestTimeout  = "MAILFLOW_REQUEST_TIMEOUT"
	EnvMaxPollFailures = "MAILFLOW_MAX_POLL_FAILURES"
)

// LoadDotEnv loads KEY=VALUE pairs from path (default ".env") into the
// process environment without overriding variables already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *GlobalConfig) {
	setString(&cfg.APIURL, EnvAPIURL)
	setString(&cfg.MailSource, EnvMailSource)
	setString(&cfg.IMAP.Server, EnvIMAPServer)
	setString(&cfg.IMAP.Username, EnvIMAPUsername)
	setString(&cfg.IMAP.Password, EnvIMAPPassword)
	setString(&cfg.IMAP.Mailbox, EnvIMAPMailbox)
	setInt(&cfg.PollIntervalMS, EnvPollIntervalMS)
	setInt(&cfg.RequestTimeoutSeconds, EnvRequestTimeout)
	setInt(&cfg.MaxPollFailures, EnvMaxPollFailures)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
