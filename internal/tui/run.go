package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agusx1211/mailflow/internal/agentrun"
	"github.com/agusx1211/mailflow/internal/debug"
	"github.com/agusx1211/mailflow/internal/mail"
)

// Config wires the triage view to its collaborators.
type Config struct {
	Source  mail.Source
	API     agentrun.RunAPI
	Options agentrun.Options
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, cfg Config) error {
	ctrl := agentrun.NewController(cfg.API, cfg.Options)
	defer ctrl.Close()

	m := NewModel(ctx, cfg.Source, ctrl)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil {
		debug.LogKV("tui", "program exited", "error", err)
	}
	return err
}
