// Package admin implements the user and item administration flows on top of
// the API client: form validation, pagination and cache invalidation.
package admin

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)
	namePattern  = regexp.MustCompile(`^[A-Za-z\s\x{00C0}-\x{017F}]{1,30}$`)
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// MinFullNameLength applies where a full name is mandatory.
const MinFullNameLength = 3

// ValidationErrors maps form field names to messages.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func checkEmail(v ValidationErrors, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		v["email"] = "Email is required"
	case !emailPattern.MatchString(email):
		v["email"] = "Invalid email address"
	}
}

// checkName validates a full name. required enforces presence and the
// minimum length; optional names are only checked against the pattern.
func checkName(v ValidationErrors, name string, required bool) {
	if name == "" {
		if required {
			v["full_name"] = "Full name is required"
		}
		return
	}
	if required && utf8.RuneCountInString(name) < MinFullNameLength {
		v["full_name"] = "Full name must be at least 3 characters"
		return
	}
	if !namePattern.MatchString(name) {
		v["full_name"] = "Invalid name"
	}
}

func checkPassword(v ValidationErrors, field, password string, required bool) {
	if password == "" {
		if required {
			v[field] = "Password is required"
		}
		return
	}
	if len(password) < MinPasswordLength {
		v[field] = "Password must be at least 8 characters"
	}
}

func checkConfirm(v ValidationErrors, password, confirm string) {
	if password == "" && confirm == "" {
		return
	}
	if confirm == "" {
		v["confirm_password"] = "Please confirm your password"
		return
	}
	if confirm != password {
		v["confirm_password"] = "The passwords do not match"
	}
}
