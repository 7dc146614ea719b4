// Package mail provides the inbox the assistant works on: the Mail record,
// the Source interface and its built-in sample and IMAP implementations.
package mail

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// PreviewLength is the number of runes kept for list previews.
const PreviewLength = 140

// Attachment describes a file attached to a mail.
type Attachment struct {
	Name string
	Size string
	Type string
}

// Mail is one inbox entry.
type Mail struct {
	ID          string
	Subject     string
	Sender      string
	SenderEmail string
	Preview     string
	Body        string
	Date        time.Time
	Read        bool
	Starred     bool
	Important   bool
	Labels      []string
	Attachments []Attachment
}

// Source lists the mails shown in the inbox.
type Source interface {
	List(ctx context.Context) ([]Mail, error)
}

// Filter returns the mails whose subject, sender or body contain query,
// ignoring case. An empty query returns mails unchanged.
func Filter(mails []Mail, query string) []Mail {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return mails
	}
	var out []Mail
	for _, m := range mails {
		if strings.Contains(strings.ToLower(m.Subject), q) ||
			strings.Contains(strings.ToLower(m.Sender), q) ||
			strings.Contains(strings.ToLower(m.SenderEmail), q) ||
			strings.Contains(strings.ToLower(m.Body), q) {
			out = append(out, m)
		}
	}
	return out
}

// SortNewest orders mails by date, newest first.
func SortNewest(mails []Mail) {
	sort.SliceStable(mails, func(i, j int) bool {
		return mails[i].Date.After(mails[j].Date)
	})
}

// Find returns the mail with the given id.
func Find(mails []Mail, id string) (Mail, bool) {
	for _, m := range mails {
		if m.ID == id {
			return m, true
		}
	}
	return Mail{}, false
}

// MakePreview collapses whitespace in body and cuts it to PreviewLength runes.
func MakePreview(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(flat) <= PreviewLength {
		return flat
	}
	runes := []rune(flat)
	return string(runes[:PreviewLength]) + "..."
}

// FormatSize renders a byte count the way attachment sizes are displayed.
func FormatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
