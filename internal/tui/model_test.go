package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/agusx1211/mailflow/internal/agentrun"
	"github.com/agusx1211/mailflow/internal/mail"
	"github.com/agusx1211/mailflow/pkg/protocol"
)

type fakeRunAPI struct {
	mu      sync.Mutex
	started []string
}

func (f *fakeRunAPI) StartAgentRun(_ context.Context, subject, body, sender string) (protocol.AgentRunResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, subject)
	return protocol.AgentRunResponse{RunID: "run-1", Message: "started"}, nil
}

func (f *fakeRunAPI) GetAgentRun(context.Context, string) (protocol.AgentStatusResponse, error) {
	return protocol.AgentStatusResponse{
		Status: protocol.RunCompleted,
		Steps: []protocol.AgentStep{
			{ID: "s1", Type: "master_agent", Text: "Thema: widerspruch", Status: "completed", CreatedAt: "2024-03-01T10:00:00.000000"},
			{ID: "s2", Type: "expert_widerspruch", Text: "Fristen geprüft", Status: "completed", CreatedAt: "2024-03-01T10:00:02.000000"},
			{ID: "s3", Type: "email_drafter", Text: "Entwurf erstellt", Status: "completed", CreatedAt: "2024-03-01T10:00:04.000000"},
		},
		DraftSubject: "Re: Widerspruch",
		DraftBody:    "Guten Tag Frau Berg,\n\nwir haben Ihren Widerspruch erhalten.",
	}, nil
}

type staticSource []mail.Mail

func (s staticSource) List(context.Context) ([]mail.Mail, error) { return s, nil }

func testMails() []mail.Mail {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return []mail.Mail{
		{ID: "1", Subject: "Widerspruch gegen Bescheid", Sender: "Anna Berg", SenderEmail: "anna@example.com", Body: "Ich lege Widerspruch ein.", Date: base, Labels: []string{"Widerspruch"}},
		{ID: "2", Subject: "Frage zum Krankengeld", Sender: "Tom Weber", SenderEmail: "tom@example.com", Body: "Wann wird Krankengeld gezahlt?", Date: base.Add(-time.Hour), Starred: true},
		{ID: "3", Subject: "Terminanfrage", Sender: "Lena Koch", SenderEmail: "lena@example.com", Body: "Ich brauche einen Termin.", Date: base.Add(-2 * time.Hour), Read: true},
	}
}

func newTestModel(t *testing.T) (Model, *agentrun.Controller, *fakeRunAPI) {
	t.Helper()
	api := &fakeRunAPI{}
	ctrl := agentrun.NewController(api, agentrun.Options{
		PollInterval:    time.Millisecond,
		MaxPollDuration: time.Minute,
		MaxPollFailures: 3,
	})
	t.Cleanup(ctrl.Close)

	mails := testMails()
	m := NewModel(context.Background(), staticSource(mails), ctrl)
	m.SetSize(160, 40)
	m = update(t, m, MailsLoadedMsg{Mails: mails})
	return m, ctrl, api
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return out
}

func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func waitForState(t *testing.T, ctrl *agentrun.Controller, cond func(agentrun.State) bool) agentrun.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := ctrl.Snapshot(); cond(st) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state condition not reached, last state: %+v", ctrl.Snapshot())
	return agentrun.State{}
}

func TestNavigateAndOpenMail(t *testing.T) {
	m, ctrl, _ := newTestModel(t)

	m, _ = press(t, m, runes("j"))
	if m.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.cursor)
	}
	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("j"))
	if m.cursor != 2 {
		t.Fatalf("cursor = %d, want clamped to 2", m.cursor)
	}
	m, _ = press(t, m, runes("k"))

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.openID != "2" {
		t.Fatalf("openID = %q, want 2", m.openID)
	}
	if mm, _ := mail.Find(m.mails, "2"); !mm.Read {
		t.Fatalf("opened mail not marked read")
	}
	st := ctrl.Snapshot()
	if st.Mail == nil || st.Mail.ID != "2" {
		t.Fatalf("controller mail = %+v, want 2", st.Mail)
	}
	if st.ViewMode != agentrun.ViewIdle {
		t.Fatalf("ViewMode = %q, want idle", st.ViewMode)
	}

	view := ansi.Strip(m.View())
	for _, want := range []string{"Frage zum Krankengeld", "Wann wird Krankengeld gezahlt?", "Assistent aktivieren (a)"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestFilterNarrowsAndClears(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, _ = press(t, m, runes("/"))
	if m.focus != focusFilter {
		t.Fatalf("focus = %v, want filter", m.focus)
	}
	m, _ = press(t, m, runes("kranken"))
	if len(m.visible) != 1 || m.visible[0].ID != "2" {
		t.Fatalf("visible = %+v, want only mail 2", m.visible)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != focusList || m.query != "kranken" {
		t.Fatalf("after enter focus=%v query=%q", m.focus, m.query)
	}
	if len(m.visible) != 1 {
		t.Fatalf("filter not kept after enter")
	}

	m, _ = press(t, m, runes("/"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.query != "" || len(m.visible) != 3 {
		t.Fatalf("esc should clear the filter, query=%q visible=%d", m.query, len(m.visible))
	}
}

func TestFilterWithoutMatches(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = press(t, m, runes("/"))
	m, _ = press(t, m, runes("zzz"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if len(m.visible) != 0 || m.cursor != 0 {
		t.Fatalf("visible=%d cursor=%d", len(m.visible), m.cursor)
	}
	if !strings.Contains(ansi.Strip(m.View()), "Keine Treffer") {
		t.Fatalf("expected empty-result hint")
	}
	// Opening with an empty list is a no-op.
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.openID != "" {
		t.Fatalf("openID = %q, want empty", m.openID)
	}
}

func startAndComplete(t *testing.T, m Model, ctrl *agentrun.Controller) Model {
	t.Helper()
	m, cmd := press(t, m, runes("a"))
	if cmd == nil {
		t.Fatal("expected start command")
	}
	if m.openID != "1" {
		t.Fatalf("start should open the mail under the cursor, openID=%q", m.openID)
	}
	m = update(t, m, cmd())
	st := waitForState(t, ctrl, agentrun.State.TemplateReady)
	return update(t, m, RunStateMsg{State: st})
}

func TestStartAgentShowsTimeline(t *testing.T) {
	m, ctrl, api := newTestModel(t)
	m = startAndComplete(t, m, ctrl)

	if len(api.started) != 1 || api.started[0] != "Widerspruch gegen Bescheid" {
		t.Fatalf("started = %v", api.started)
	}
	if m.state.ViewMode != agentrun.ViewRunning {
		t.Fatalf("ViewMode = %q, want running", m.state.ViewMode)
	}
	view := ansi.Strip(m.View())
	for _, want := range []string{"Master Agent", "E-Mail Verfasser", "t: Vorlage anzeigen"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTemplateReviewCommit(t *testing.T) {
	m, ctrl, _ := newTestModel(t)
	m = startAndComplete(t, m, ctrl)

	m, _ = press(t, m, runes("t"))
	if m.focus != focusBody {
		t.Fatalf("focus = %v, want body", m.focus)
	}
	if m.state.ViewMode != agentrun.ViewTemplateReview {
		t.Fatalf("ViewMode = %q, want templateReview", m.state.ViewMode)
	}
	if m.subject.Value() != "Re: Widerspruch" {
		t.Fatalf("subject = %q", m.subject.Value())
	}

	m, _ = press(t, m, runes("!"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.focus != focusList {
		t.Fatalf("focus after save = %v", m.focus)
	}
	st := ctrl.Snapshot()
	if st.ViewMode != agentrun.ViewRunning {
		t.Fatalf("ViewMode after save = %q", st.ViewMode)
	}
	if !strings.HasSuffix(st.Template.Body, "!") {
		t.Fatalf("committed body = %q, want edit kept", st.Template.Body)
	}
	if st.Draft.Body == st.Template.Body {
		t.Fatalf("draft must stay untouched")
	}
}

func TestTemplateReviewEscapeDiscards(t *testing.T) {
	m, ctrl, _ := newTestModel(t)
	m = startAndComplete(t, m, ctrl)

	m, _ = press(t, m, runes("t"))
	m, _ = press(t, m, runes("xyz"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	st := ctrl.Snapshot()
	if st.ViewMode != agentrun.ViewRunning {
		t.Fatalf("ViewMode = %q, want running", st.ViewMode)
	}
	if st.Template.Body != st.Draft.Body {
		t.Fatalf("escape kept edits: %q", st.Template.Body)
	}
	if m.focus != focusList {
		t.Fatalf("focus = %v", m.focus)
	}
}

func TestTemplateCopy(t *testing.T) {
	m, ctrl, _ := newTestModel(t)
	var copied string
	m.copyFn = func(s string) error {
		copied = s
		return nil
	}
	m = startAndComplete(t, m, ctrl)
	m, _ = press(t, m, runes("t"))

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	if cmd == nil {
		t.Fatal("expected copy command")
	}
	m = update(t, m, cmd())
	want := "Re: Widerspruch\n\nGuten Tag Frau Berg,\n\nwir haben Ihren Widerspruch erhalten."
	if copied != want {
		t.Fatalf("copied = %q, want %q", copied, want)
	}
	if m.notice != "Vorlage in die Zwischenablage kopiert" {
		t.Fatalf("notice = %q", m.notice)
	}

	m.copyFn = func(string) error { return errors.New("no clipboard") }
	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	m = update(t, m, cmd())
	if !strings.Contains(m.notice, "no clipboard") {
		t.Fatalf("notice = %q", m.notice)
	}
}

func TestTemplateNotReady(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = press(t, m, runes("t"))
	if m.notice != "Noch kein Antwortentwurf verfügbar" {
		t.Fatalf("notice = %q", m.notice)
	}
	if m.focus != focusList {
		t.Fatalf("focus = %v", m.focus)
	}
}

func TestStartWithoutMails(t *testing.T) {
	api := &fakeRunAPI{}
	ctrl := agentrun.NewController(api, agentrun.Options{})
	t.Cleanup(ctrl.Close)
	m := NewModel(context.Background(), staticSource(nil), ctrl)
	m.SetSize(120, 30)
	m = update(t, m, MailsLoadedMsg{})

	m, cmd := press(t, m, runes("a"))
	if cmd != nil {
		t.Fatal("no command expected without a mail")
	}
	if m.notice != "Keine E-Mail ausgewählt" {
		t.Fatalf("notice = %q", m.notice)
	}
}

func TestLoadErrorRendered(t *testing.T) {
	api := &fakeRunAPI{}
	ctrl := agentrun.NewController(api, agentrun.Options{})
	t.Cleanup(ctrl.Close)
	m := NewModel(context.Background(), staticSource(nil), ctrl)
	m.SetSize(120, 30)
	m = update(t, m, MailsLoadedMsg{Err: errors.New("imap down")})

	view := ansi.Strip(m.View())
	if !strings.Contains(view, "Posteingang nicht verfügbar") || !strings.Contains(view, "imap down") {
		t.Fatalf("view missing load error:\n%s", view)
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, cmd := press(t, m, runes("q"))
	if cmd == nil || !m.quitting {
		t.Fatalf("q should quit")
	}
	if m.View() != "" {
		t.Fatalf("view after quit should be empty")
	}
}

func TestUpdatesClosed(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = update(t, m, RunUpdatesClosedMsg{})
	if !m.closed {
		t.Fatal("closed flag not set")
	}
}
