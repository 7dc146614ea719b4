package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"github.com/agusx1211/mailflow/internal/debug"
)

func init() {
	// Decode RFC 2047 headers in non-UTF-8 charsets on the ENVELOPE path too.
	if message.CharsetReader != nil {
		imap.CharsetReader = message.CharsetReader
	}
}

// IMAPConfig locates the mailbox an IMAPSource reads.
type IMAPConfig struct {
	Server   string `json:"server,omitempty"`
	Port     int    `json:"port,omitempty"`
	UseSSL   bool   `json:"use_ssl"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Mailbox  string `json:"mailbox,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

const (
	defaultMailbox = "INBOX"
	defaultLimit   = 50
	imapTimeout    = 25 * time.Second
)

// IMAPSource lists the newest messages of an IMAP mailbox. The mailbox is
// opened read-only and bodies are fetched with PEEK, so listing never marks
// anything as seen.
type IMAPSource struct {
	cfg IMAPConfig
}

// NewIMAPSource validates cfg and fills in defaults.
func NewIMAPSource(cfg IMAPConfig) (*IMAPSource, error) {
	cfg.Server = strings.TrimSpace(cfg.Server)
	if cfg.Server == "" {
		return nil, errors.New("imap: server is required")
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("imap: username is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 143
		if cfg.UseSSL {
			cfg.Port = 993
		}
	}
	if strings.TrimSpace(cfg.Mailbox) == "" {
		cfg.Mailbox = defaultMailbox
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	return &IMAPSource{cfg: cfg}, nil
}

// List fetches the newest Limit messages, newest first.
func (s *IMAPSource) List(ctx context.Context) ([]Mail, error) {
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Terminate()
		case <-done:
		}
	}()

	status, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("imap select %s: %w", s.cfg.Mailbox, err)
	}
	if status.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if status.Messages > uint32(s.cfg.Limit) {
		from = status.Messages - uint32(s.cfg.Limit) + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, status.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, section.FetchItem()}

	msgCh := make(chan *imap.Message, 16)
	fetchErr := make(chan error, 1)
	go func() {
		fetchErr <- c.Fetch(seqset, items, msgCh)
	}()

	var out []Mail
	for msg := range msgCh {
		if msg == nil {
			continue
		}
		var raw []byte
		if r := msg.GetBody(section); r != nil {
			raw, _ = io.ReadAll(r)
		}
		m := parseMessage(raw, msg.Envelope)
		m.ID = strconv.FormatUint(uint64(msg.Uid), 10)
		applyFlags(&m, msg.Flags)
		out = append(out, m)
	}
	if err := <-fetchErr; err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	debug.LogKV("mail", "imap listed", "mailbox", s.cfg.Mailbox, "count", len(out))
	SortNewest(out)
	return out, nil
}

func (s *IMAPSource) connect() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	var (
		c   *client.Client
		err error
	)
	if s.cfg.UseSSL {
		c, err = client.DialTLS(addr, &tls.Config{ServerName: s.cfg.Server})
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	c.Timeout = imapTimeout

	if err := c.Login(strings.TrimSpace(s.cfg.Username), s.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	debug.LogKV("mail", "imap connected", "addr", addr, "user", s.cfg.Username)
	return c, nil
}

// parseMessage builds a Mail from the raw RFC 5322 body, falling back to the
// IMAP envelope for any header the body does not yield.
func parseMessage(raw []byte, env *imap.Envelope) Mail {
	var m Mail
	if len(raw) > 0 {
		if r, err := gomail.CreateReader(bytes.NewReader(raw)); err == nil {
			m.Subject, _ = r.Header.Subject()
			if list, err := r.Header.AddressList("From"); err == nil && len(list) > 0 {
				m.SenderEmail = strings.TrimSpace(list[0].Address)
				m.Sender = strings.TrimSpace(list[0].Name)
			}
			m.Date, _ = r.Header.Date()
			m.Body, m.Attachments = readParts(r)
		} else {
			m.Body = bodyFallback(raw)
		}
	}

	if env != nil {
		if strings.TrimSpace(m.Subject) == "" {
			m.Subject = env.Subject
		}
		if m.SenderEmail == "" && len(env.From) > 0 && env.From[0] != nil {
			m.SenderEmail = env.From[0].Address()
			if m.Sender == "" {
				m.Sender = env.From[0].PersonalName
			}
		}
		if m.Date.IsZero() {
			m.Date = env.Date
		}
	}

	m.Subject = strings.TrimSpace(m.Subject)
	if m.Subject == "" {
		m.Subject = "(kein Betreff)"
	}
	if m.Sender == "" {
		m.Sender = m.SenderEmail
	}
	m.Body = strings.TrimSpace(m.Body)
	m.Preview = MakePreview(m.Body)
	return m
}

// readParts returns the preferred text body (text/plain over text/html) and
// the attachment list.
func readParts(r *gomail.Reader) (string, []Attachment) {
	var (
		plain, html string
		attachments []Attachment
	)
	for {
		part, err := r.NextPart()
		if err != nil {
			break
		}
		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			ct, _, _ := h.ContentType()
			b, _ := io.ReadAll(part.Body)
			text := strings.TrimSpace(string(b))
			if text == "" {
				continue
			}
			switch strings.ToLower(ct) {
			case "text/html":
				if html == "" {
					html = text
				}
			default:
				if plain == "" {
					plain = text
				}
			}
		case *gomail.AttachmentHeader:
			name, _ := h.Filename()
			ct, _, _ := h.ContentType()
			n, _ := io.Copy(io.Discard, part.Body)
			attachments = append(attachments, Attachment{
				Name: name,
				Size: FormatSize(n),
				Type: attachmentType(name, ct),
			})
		}
	}
	if plain != "" {
		return plain, attachments
	}
	return html, attachments
}

func attachmentType(name, contentType string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return strings.ToUpper(name[i+1:])
	}
	if i := strings.IndexByte(contentType, '/'); i >= 0 {
		return strings.ToUpper(contentType[i+1:])
	}
	return "FILE"
}

func bodyFallback(raw []byte) string {
	text := string(raw)
	if idx := strings.Index(text, "\r\n\r\n"); idx >= 0 {
		return text[idx+4:]
	}
	if idx := strings.Index(text, "\n\n"); idx >= 0 {
		return text[idx+2:]
	}
	return text
}

func applyFlags(m *Mail, flags []string) {
	for _, f := range flags {
		switch {
		case f == imap.SeenFlag:
			m.Read = true
		case f == imap.FlaggedFlag:
			m.Starred = true
		case strings.EqualFold(f, "$Important"):
			m.Important = true
		case strings.HasPrefix(f, "\\") || strings.HasPrefix(f, "$"):
		default:
			m.Labels = append(m.Labels, f)
		}
	}
}
