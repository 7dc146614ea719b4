package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Session is the stored login.
type Session struct {
	APIURL      string    `json:"api_url"`
	AccessToken string    `json:"access_token"`
	Email       string    `json:"email,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

func sessionPath() string {
	return filepath.Join(Dir(), "session.json")
}

// LoadSession returns the stored session, or an empty one when none exists.
// MAILFLOW_TOKEN takes precedence over the file.
func LoadSession() (*Session, error) {
	if tok := strings.TrimSpace(os.Getenv(EnvToken)); tok != "" {
		return &Session{AccessToken: tok}, nil
	}
	data, err := os.ReadFile(sessionPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Session{}, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSession stores s with owner-only permissions.
func SaveSession(s *Session) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sessionPath(), data, 0600)
}

// ClearSession forgets the stored login.
func ClearSession() error {
	err := os.Remove(sessionPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
