package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/agusx1211/mailflow/internal/agentrun"
	"github.com/agusx1211/mailflow/internal/theme"
)

func (m Model) renderAssistant(outerW, outerH int) string {
	innerW := maxInt(outerW-4, 10)
	innerH := maxInt(outerH-2, 1)

	var lines []string
	switch m.state.ViewMode {
	case agentrun.ViewTemplateReview:
		lines = m.renderTemplateReview(innerW, innerH)
	case agentrun.ViewRunning:
		lines = m.renderTimeline(innerW)
	default:
		lines = m.renderIdle(innerW)
	}
	if len(lines) > innerH {
		lines = lines[len(lines)-innerH:]
	}

	focused := m.focus == focusSubject || m.focus == focusBody
	return m.panel(focused).Width(outerW - 2).Height(innerH).MaxHeight(outerH).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderIdle(width int) []string {
	lines := []string{sectionTitleStyle.Render("KI-Assistent"), ""}
	if m.state.Mail == nil {
		return append(lines, dimStyle.Render("Öffnen Sie eine E-Mail, um den Assistenten zu nutzen."))
	}
	lines = append(lines,
		valueStyle.Render(ansi.Truncate(m.state.Mail.Subject, width, "…")),
		"",
	)
	if m.state.Starting {
		return append(lines, m.spinner.View()+" Assistent wird gestartet...")
	}
	lines = append(lines, hintStyle.Render("Assistent aktivieren (a)"))
	if m.state.LastErr != nil {
		lines = append(lines, "", errorStyle.Render(ansi.Truncate(m.state.LastErr.Error(), width, "…")))
	}
	return lines
}

func (m Model) renderTimeline(width int) []string {
	st := m.state
	title := sectionTitleStyle.Render("KI-Assistent")
	status := lipgloss.NewStyle().Foreground(theme.RunStatusColor(string(st.Status))).Render(string(st.Status))
	if st.Status == agentrun.StatusNone {
		status = dimStyle.Render("wartet")
	}
	lines := []string{title + "  " + status, ""}

	for _, s := range st.Timeline.Steps {
		indicator := theme.StepStatusIndicator(string(s.Status))
		name := lipgloss.NewStyle().Foreground(theme.StepStatusColor(string(s.Status))).Render(s.Name)
		head := fmt.Sprintf("%s %s %s", indicator, s.Icon, name)
		if ts := stepTime(s.CreatedAt); ts != "" {
			head += " " + dimStyle.Render(ts)
		}
		if s.Status == agentrun.StepActive && st.Polling {
			head += " " + m.spinner.View()
		}
		lines = append(lines, ansi.Truncate(head, width, "…"))

		detail := s.Text
		if detail == "" {
			detail = s.Message
		}
		if detail != "" {
			for _, l := range strings.Split(wrapBody(detail, width-2), "\n") {
				lines = append(lines, "  "+dimStyle.Render(l))
			}
		}
	}

	if st.Timeline.Dropped > 0 {
		lines = append(lines, "", dimStyle.Render(fmt.Sprintf("%d unbekannte Schritte ausgeblendet", st.Timeline.Dropped)))
	}
	if st.Status == agentrun.StatusError && st.StatusMessage != "" {
		lines = append(lines, "", errorStyle.Render(ansi.Truncate(st.StatusMessage, width, "…")))
	}
	if st.LastErr != nil {
		lines = append(lines, "", errorStyle.Render(ansi.Truncate(st.LastErr.Error(), width, "…")))
	}
	if st.TemplateReady() {
		lines = append(lines, "", hintStyle.Render("t: Vorlage anzeigen"))
	}
	return lines
}

func (m Model) renderTemplateReview(width, height int) []string {
	lines := []string{
		sectionTitleStyle.Render("Antwortvorlage"),
		"",
		labelStyle.Render("Betreff"),
		m.subject.View(),
		"",
		labelStyle.Render("Text"),
		m.editor.View(),
	}

	previewRows := height - len(lines) - 4
	if previewRows > 2 {
		lines = append(lines, "", dimStyle.Render("Vorschau"))
		preview := renderMarkdown(m.editor.Value(), width)
		pl := strings.Split(preview, "\n")
		if len(pl) > previewRows {
			pl = pl[:previewRows]
		}
		lines = append(lines, pl...)
	}
	lines = append(lines, "", hintStyle.Render("ctrl+s speichern  ctrl+y kopieren  esc zurück"))
	return lines
}

// renderMarkdown renders md for the template preview, falling back to plain
// wrapped text when glamour fails.
func renderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		if out, err := r.Render(md); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return wrapBody(md, width)
}
