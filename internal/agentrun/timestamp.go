package agentrun

import (
	"strings"
	"time"
)

// ParseBackendTime parses a backend timestamp. Values without a zone
// designator are UTC; the backend stores naive UTC datetimes. ok is false
// when the value cannot be parsed, in which case the zero time is returned.
func ParseBackendTime(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if !hasZone(raw) {
		raw += "Z"
	}
	// Some backends separate date and time with a space.
	if len(raw) > 10 && raw[10] == ' ' {
		raw = raw[:10] + "T" + raw[11:]
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

func hasZone(raw string) bool {
	if strings.HasSuffix(raw, "Z") {
		return true
	}
	// Only look past the date so the date's own dashes don't count.
	idx := strings.IndexAny(raw, "Tt ")
	if idx < 0 {
		return false
	}
	clock := raw[idx+1:]
	return strings.ContainsAny(clock, "+-")
}
