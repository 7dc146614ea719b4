package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type field struct {
	get func(*GlobalConfig) string
	set func(*GlobalConfig, string) error
}

func intField(ptr func(*GlobalConfig) *int) field {
	return field{
		get: func(c *GlobalConfig) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *GlobalConfig, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected an integer, got %q", v)
			}
			*ptr(c) = n
			return nil
		},
	}
}

func stringField(ptr func(*GlobalConfig) *string) field {
	return field{
		get: func(c *GlobalConfig) string { return *ptr(c) },
		set: func(c *GlobalConfig, v string) error { *ptr(c) = v; return nil },
	}
}

var fields = map[string]field{
	"api_url":                 stringField(func(c *GlobalConfig) *string { return &c.APIURL }),
	"poll_interval_ms":        intField(func(c *GlobalConfig) *int { return &c.PollIntervalMS }),
	"max_poll_minutes":        intField(func(c *GlobalConfig) *int { return &c.MaxPollMinutes }),
	"max_poll_failures":       intField(func(c *GlobalConfig) *int { return &c.MaxPollFailures }),
	"request_timeout_seconds": intField(func(c *GlobalConfig) *int { return &c.RequestTimeoutSeconds }),
	"imap.server":             stringField(func(c *GlobalConfig) *string { return &c.IMAP.Server }),
	"imap.port":               intField(func(c *GlobalConfig) *int { return &c.IMAP.Port }),
	"imap.username":           stringField(func(c *GlobalConfig) *string { return &c.IMAP.Username }),
	"imap.password":           stringField(func(c *GlobalConfig) *string { return &c.IMAP.Password }),
	"imap.mailbox":            stringField(func(c *GlobalConfig) *string { return &c.IMAP.Mailbox }),
	"imap.limit":              intField(func(c *GlobalConfig) *int { return &c.IMAP.Limit }),
	"mail_source": {
		get: func(c *GlobalConfig) string { return c.MailSource },
		set: func(c *GlobalConfig, v string) error {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != SourceSample && v != SourceIMAP {
				return fmt.Errorf("mail_source must be %q or %q", SourceSample, SourceIMAP)
			}
			c.MailSource = v
			return nil
		},
	},
	"imap.use_ssl": {
		get: func(c *GlobalConfig) string { return strconv.FormatBool(c.IMAP.UseSSL) },
		set: func(c *GlobalConfig, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", v)
			}
			c.IMAP.UseSSL = b
			return nil
		},
	},
}

// Keys lists the settable keys in order.
func Keys() []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the value of key. Secrets are masked.
func (c *GlobalConfig) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	v := f.get(c)
	if key == "imap.password" && v != "" {
		return "********", nil
	}
	return v, nil
}

// Set parses and assigns value to key.
func (c *GlobalConfig) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := f.set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
