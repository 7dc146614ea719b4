package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/agusx1211/mailflow/internal/mail"
)

// EnvHome overrides the ~/.mailflow directory.
const EnvHome = "MAILFLOW_HOME"

// Mail source kinds.
const (
	SourceSample = "sample"
	SourceIMAP   = "imap"
)

// Defaults applied by Load for unset fields.
const (
	DefaultAPIURL          = "http://localhost:8000"
	DefaultPollIntervalMS  = 1000
	DefaultMaxPollMinutes  = 10
	DefaultMaxPollFailures = 5
	DefaultRequestTimeout  = 30
)

// GlobalConfig holds user-level preferences stored in ~/.mailflow/config.json.
type GlobalConfig struct {
	APIURL                string          `json:"api_url,omitempty"`
	PollIntervalMS        int             `json:"poll_interval_ms,omitempty"`
	MaxPollMinutes        int             `json:"max_poll_minutes,omitempty"`
	MaxPollFailures       int             `json:"max_poll_failures,omitempty"`
	RequestTimeoutSeconds int             `json:"request_timeout_seconds,omitempty"`
	MailSource            string          `json:"mail_source,omitempty"`
	IMAP                  mail.IMAPConfig `json:"imap"`
}

// PollInterval is the configured agent-run poll interval.
func (c *GlobalConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// MaxPollDuration is the wall-clock budget for polling one run.
func (c *GlobalConfig) MaxPollDuration() time.Duration {
	return time.Duration(c.MaxPollMinutes) * time.Minute
}

// RequestTimeout bounds a single API request.
func (c *GlobalConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *GlobalConfig) applyDefaults() {
	if strings.TrimSpace(c.APIURL) == "" {
		c.APIURL = DefaultAPIURL
	}
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = DefaultPollIntervalMS
	}
	if c.MaxPollMinutes <= 0 {
		c.MaxPollMinutes = DefaultMaxPollMinutes
	}
	if c.MaxPollFailures == 0 {
		c.MaxPollFailures = DefaultMaxPollFailures
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeout
	}
	if c.MailSource == "" {
		c.MailSource = SourceSample
	}
}

// Dir returns the mailflow config directory (~/.mailflow or $MAILFLOW_HOME),
// creating it if needed.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvHome)); dir != "" {
		os.MkdirAll(dir, 0755)
		return dir
	}
	home, err := homedir.Dir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".mailflow")
	os.MkdirAll(dir, 0755)
	return dir
}

// Path returns the full path to config.json.
func Path() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads config.json, returning defaults if the file is absent, then
// applies environment overrides.
func Load() (*GlobalConfig, error) {
	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads config.json without environment overrides. This is what
// `config set` edits so env values never leak into the file.
func LoadFile() (*GlobalConfig, error) {
	return loadFile()
}

func loadFile() (*GlobalConfig, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to config.json. The file may contain an IMAP password,
// so it is only readable by the owner.
func Save(cfg *GlobalConfig) error {
	if cfg == nil {
		cfg = &GlobalConfig{}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(Path(), data, 0600)
}
