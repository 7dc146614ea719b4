package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
)

func TestSampleSourceNewestFirst(t *testing.T) {
	mails, err := SampleSource{}.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mails) != 8 {
		t.Fatalf("len = %d, want 8", len(mails))
	}
	for i := 1; i < len(mails); i++ {
		if mails[i].Date.After(mails[i-1].Date) {
			t.Fatalf("mail %s is newer than %s", mails[i].ID, mails[i-1].ID)
		}
	}
	if mails[0].ID != "1" {
		t.Fatalf("first mail = %s, want 1", mails[0].ID)
	}

	// Callers may mutate the result without affecting later lists.
	mails[0].Labels[0] = "changed"
	again, _ := SampleSource{}.List(context.Background())
	if again[0].Labels[0] == "changed" {
		t.Fatal("List leaked shared label slice")
	}
}

func TestFilter(t *testing.T) {
	mails, _ := SampleSource{}.List(context.Background())
	tests := []struct {
		query string
		want  int
	}{
		{"", len(mails)},
		{"WIDERSPRUCH", 1},
		{"weber", 1},
		{"versichertennummer", 8},
		{"no such text", 0},
	}
	for _, tt := range tests {
		if got := len(Filter(mails, tt.query)); got != tt.want {
			t.Errorf("Filter(%q) = %d mails, want %d", tt.query, got, tt.want)
		}
	}
}

func TestMakePreview(t *testing.T) {
	short := "Hallo\n\n  Welt"
	if got := MakePreview(short); got != "Hallo Welt" {
		t.Fatalf("MakePreview(short) = %q", got)
	}
	long := strings.Repeat("ä", PreviewLength+10)
	got := MakePreview(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != PreviewLength+3 {
		t.Fatalf("MakePreview(long) has %d runes", len([]rune(got)))
	}
}

const multipartRaw = "From: Anna Müller <anna@example.de>\r\n" +
	"Subject: =?UTF-8?Q?Kosten=C3=BCbernahme?=\r\n" +
	"Date: Mon, 15 Jan 2024 09:30:00 +0100\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>html body</p>\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain body\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"bericht.pdf\"\r\n" +
	"\r\n" +
	"0123456789\r\n" +
	"--XYZ--\r\n"

func TestParseMessagePrefersPlainText(t *testing.T) {
	m := parseMessage([]byte(multipartRaw), nil)
	if m.Subject != "Kostenübernahme" {
		t.Fatalf("subject = %q", m.Subject)
	}
	if m.Sender != "Anna Müller" || m.SenderEmail != "anna@example.de" {
		t.Fatalf("sender = %q <%s>", m.Sender, m.SenderEmail)
	}
	if m.Body != "plain body" {
		t.Fatalf("body = %q", m.Body)
	}
	if len(m.Attachments) != 1 || m.Attachments[0].Name != "bericht.pdf" || m.Attachments[0].Type != "PDF" {
		t.Fatalf("attachments = %+v", m.Attachments)
	}
	want := time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)
	if !m.Date.Equal(want) {
		t.Fatalf("date = %v, want %v", m.Date, want)
	}
}

func TestParseMessageEnvelopeFallback(t *testing.T) {
	env := &imap.Envelope{
		Subject: "Envelope subject",
		Date:    time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
		From:    []*imap.Address{{PersonalName: "Klaus", MailboxName: "k", HostName: "example.de"}},
	}
	m := parseMessage(nil, env)
	if m.Subject != "Envelope subject" || m.SenderEmail != "k@example.de" || m.Sender != "Klaus" {
		t.Fatalf("got %+v", m)
	}
}

func TestApplyFlags(t *testing.T) {
	var m Mail
	applyFlags(&m, []string{imap.SeenFlag, imap.FlaggedFlag, "$Important", imap.RecentFlag, "Rechnung"})
	if !m.Read || !m.Starred || !m.Important {
		t.Fatalf("flags not applied: %+v", m)
	}
	if len(m.Labels) != 1 || m.Labels[0] != "Rechnung" {
		t.Fatalf("labels = %v", m.Labels)
	}
}

func TestNewIMAPSourceDefaults(t *testing.T) {
	if _, err := NewIMAPSource(IMAPConfig{}); err == nil {
		t.Fatal("expected error for missing server")
	}
	s, err := NewIMAPSource(IMAPConfig{Server: "imap.example.de", Username: "u", UseSSL: true})
	if err != nil {
		t.Fatalf("NewIMAPSource: %v", err)
	}
	if s.cfg.Port != 993 || s.cfg.Mailbox != "INBOX" || s.cfg.Limit != defaultLimit {
		t.Fatalf("defaults = %+v", s.cfg)
	}
}
