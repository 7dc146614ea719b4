package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/agusx1211/mailflow/internal/agentrun"
	"github.com/agusx1211/mailflow/internal/mail"
)

// MailsLoadedMsg carries the inbox once the mail source answered.
type MailsLoadedMsg struct {
	Mails []mail.Mail
	Err   error
}

// RunStateMsg is a controller snapshot.
type RunStateMsg struct {
	State agentrun.State
}

// RunUpdatesClosedMsg signals the controller was closed.
type RunUpdatesClosedMsg struct{}

// RunStartedMsg reports the outcome of a start request.
type RunStartedMsg struct {
	MailID string
	Err    error
}

// ClipboardMsg reports the outcome of copying the template.
type ClipboardMsg struct {
	Err error
}

// waitForEvent returns a Cmd that waits for the next controller snapshot.
func waitForEvent(ch <-chan agentrun.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return RunUpdatesClosedMsg{}
		}
		return RunStateMsg{State: st}
	}
}
