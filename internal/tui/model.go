// Package tui is the interactive mail triage view: inbox, mail detail and
// the assistant panel that follows an agent run.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agusx1211/mailflow/internal/agentrun"
	"github.com/agusx1211/mailflow/internal/debug"
	"github.com/agusx1211/mailflow/internal/mail"
	"github.com/agusx1211/mailflow/internal/theme"
)

const listPanelOuterWidth = 46

type paneFocus int

const (
	focusList paneFocus = iota
	focusFilter
	focusSubject
	focusBody
)

// Model is the bubbletea model for the triage view.
type Model struct {
	width  int
	height int
	keys   KeyMap

	source mail.Source
	ctrl   *agentrun.Controller
	ctx    context.Context
	copyFn func(string) error

	mails    []mail.Mail
	visible  []mail.Mail
	cursor   int
	openID   string
	loading  bool
	loadErr  error
	query    string
	notice   string
	state    agentrun.State
	focus    paneFocus
	closed   bool
	quitting bool

	filter  textinput.Model
	subject textinput.Model
	editor  textarea.Model
	body    viewport.Model
	spinner spinner.Model
}

// NewModel builds the triage model around an existing controller. The
// caller keeps ownership of ctrl and closes it after the program exits.
func NewModel(ctx context.Context, source mail.Source, ctrl *agentrun.Controller) Model {
	filter := newStyledTextInput()
	filter.Placeholder = "Betreff, Absender oder Inhalt"
	subject := newStyledTextInput()
	subject.Prompt = ""
	subject.CharLimit = 255
	editor := textarea.New()
	editor.Prompt = ""
	editor.ShowLineNumbers = false
	editor.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorYellow)

	return Model{
		keys:    DefaultKeyMap(),
		source:  source,
		ctrl:    ctrl,
		ctx:     ctx,
		copyFn:  clipboard.WriteAll,
		loading: true,
		state:   agentrun.State{ViewMode: agentrun.ViewIdle},
		filter:  filter,
		subject: subject,
		editor:  editor,
		body:    viewport.New(0, 0),
		spinner: sp,
	}
}

func newStyledTextInput() textinput.Model {
	input := textinput.New()
	input.Prompt = "> "
	input.PromptStyle = lipgloss.NewStyle().Foreground(theme.ColorMauve)
	input.TextStyle = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorText)
	input.PlaceholderStyle = lipgloss.NewStyle().Foreground(theme.ColorOverlay0)
	input.Cursor.Style = lipgloss.NewStyle().Foreground(theme.ColorMauve)
	return input
}

// SetSize sets the terminal dimensions so the first render is sized.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.layout()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadMails(),
		waitForEvent(m.ctrl.Updates()),
		m.spinner.Tick,
		tea.SetWindowTitle("mailflow"),
	)
}

func (m Model) loadMails() tea.Cmd {
	src, ctx := m.source, m.ctx
	return func() tea.Msg {
		mails, err := src.List(ctx)
		return MailsLoadedMsg{Mails: mails, Err: err}
	}
}

func (m Model) startRun(mm mail.Mail) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		err := ctrl.StartRun(ctx, mm)
		return RunStartedMsg{MailID: mm.ID, Err: err}
	}
}

func (m Model) copyTemplate(text string) tea.Cmd {
	copyFn := m.copyFn
	return func() tea.Msg {
		return ClipboardMsg{Err: copyFn(text)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case MailsLoadedMsg:
		m.loading = false
		m.loadErr = msg.Err
		if msg.Err != nil {
			debug.LogKV("tui", "mail source failed", "error", msg.Err)
			return m, nil
		}
		m.mails = msg.Mails
		m.applyFilter()
		return m, nil

	case RunStateMsg:
		m.state = msg.State
		return m, waitForEvent(m.ctrl.Updates())

	case RunUpdatesClosedMsg:
		m.closed = true
		return m, nil

	case RunStartedMsg:
		if msg.Err != nil && !errors.Is(msg.Err, agentrun.ErrClosed) {
			m.notice = "Assistent konnte nicht gestartet werden: " + msg.Err.Error()
		}
		return m, nil

	case ClipboardMsg:
		if msg.Err != nil {
			m.notice = "Kopieren fehlgeschlagen: " + msg.Err.Error()
		} else {
			m.notice = "Vorlage in die Zwischenablage kopiert"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	switch m.focus {
	case focusFilter:
		return m.handleFilterKey(msg)
	case focusSubject, focusBody:
		return m.handleTemplateKey(msg)
	}

	m.notice = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Enter):
		m.openSelected()
	case key.Matches(msg, m.keys.Filter):
		m.focus = focusFilter
		m.filter.SetValue(m.query)
		m.filter.CursorEnd()
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.StartAgent):
		mm, ok := m.targetMail()
		if !ok {
			m.notice = "Keine E-Mail ausgewählt"
			return m, nil
		}
		if mm.ID != m.openID {
			m.open(mm)
		}
		return m, m.startRun(mm)
	case key.Matches(msg, m.keys.Template):
		return m.enterTemplateReview()
	case key.Matches(msg, m.keys.PageUp):
		m.body.SetYOffset(m.body.YOffset - maxInt(m.body.Height/2, 1))
	case key.Matches(msg, m.keys.PageDown):
		m.body.SetYOffset(m.body.YOffset + maxInt(m.body.Height/2, 1))
	}
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		m.query = m.filter.Value()
		m.focus = focusList
		m.filter.Blur()
		m.applyFilter()
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.query = ""
		m.filter.SetValue("")
		m.focus = focusList
		m.filter.Blur()
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.query = m.filter.Value()
	m.applyFilter()
	return m, cmd
}

func (m Model) enterTemplateReview() (tea.Model, tea.Cmd) {
	if err := m.ctrl.RequestTemplateReview(); err != nil {
		if errors.Is(err, agentrun.ErrTemplateNotReady) {
			m.notice = "Noch kein Antwortentwurf verfügbar"
		}
		return m, nil
	}
	m.state = m.ctrl.Snapshot()
	m.subject.SetValue(m.state.Template.Subject)
	m.subject.CursorEnd()
	m.editor.SetValue(m.state.Template.Body)
	m.focus = focusBody
	m.layout()
	return m, m.editor.Focus()
}

func (m Model) handleTemplateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.ctrl.BackToWorkflow()
		m.state = m.ctrl.Snapshot()
		m.leaveTemplate()
		return m, nil
	case key.Matches(msg, m.keys.Save):
		if err := m.ctrl.CommitTemplateEdits(m.subject.Value(), m.editor.Value()); err != nil {
			m.notice = err.Error()
			m.leaveTemplate()
			return m, nil
		}
		m.state = m.ctrl.Snapshot()
		m.notice = "Vorlage gespeichert"
		m.leaveTemplate()
		return m, nil
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyTemplate(m.subject.Value() + "\n\n" + m.editor.Value())
	case key.Matches(msg, m.keys.NextField):
		if m.focus == focusBody {
			m.focus = focusSubject
			m.editor.Blur()
			return m, m.subject.Focus()
		}
		m.focus = focusBody
		m.subject.Blur()
		return m, m.editor.Focus()
	}

	var cmd tea.Cmd
	if m.focus == focusSubject {
		m.subject, cmd = m.subject.Update(msg)
	} else {
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

func (m *Model) leaveTemplate() {
	m.focus = focusList
	m.subject.Blur()
	m.editor.Blur()
}

func (m *Model) applyFilter() {
	m.visible = mail.Filter(m.mails, m.query)
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) moveCursor(delta int) {
	if len(m.visible) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
}

// targetMail is the open mail, or the one under the cursor.
func (m Model) targetMail() (mail.Mail, bool) {
	if m.openID != "" {
		if mm, ok := mail.Find(m.mails, m.openID); ok {
			return mm, true
		}
	}
	if m.cursor >= 0 && m.cursor < len(m.visible) {
		return m.visible[m.cursor], true
	}
	return mail.Mail{}, false
}

func (m *Model) openSelected() {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return
	}
	m.open(m.visible[m.cursor])
}

// open shows mm in the detail pane and makes it the controller's subject.
// Opening a mail marks it read locally.
func (m *Model) open(mm mail.Mail) {
	for i := range m.mails {
		if m.mails[i].ID == mm.ID {
			m.mails[i].Read = true
		}
	}
	for i := range m.visible {
		if m.visible[i].ID == mm.ID {
			m.visible[i].Read = true
		}
	}
	m.openID = mm.ID
	m.ctrl.SelectMail(mm)
	m.state = m.ctrl.Snapshot()
	m.body.SetContent(wrapBody(mm.Body, m.body.Width))
	m.body.GotoTop()
}

// layout sizes the embedded components from the terminal size.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	_, detailW, assistW := m.columnWidths()
	panelH := m.height - 2
	m.body.Width = maxInt(detailW-4, 10)
	m.body.Height = maxInt(panelH-8, 3)
	if mm, ok := mail.Find(m.mails, m.openID); ok {
		m.body.SetContent(wrapBody(mm.Body, m.body.Width))
	}
	m.subject.Width = maxInt(assistW-6, 10)
	m.editor.SetWidth(maxInt(assistW-4, 10))
	m.editor.SetHeight(maxInt(panelH/2-4, 3))
	m.filter.Width = maxInt(listPanelOuterWidth-8, 10)
}

func (m Model) columnWidths() (list, detail, assistant int) {
	list = listPanelOuterWidth
	rest := m.width - list
	if rest < 40 {
		return m.width, 0, 0
	}
	detail = rest / 2
	assistant = rest - detail
	return list, detail, assistant
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// stepTime renders a step timestamp in local time.
func stepTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04:05")
}
