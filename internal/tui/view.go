package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/agusx1211/mailflow/internal/mail"
)

// --- View rendering ---

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height < 3 {
		return "Loading..."
	}

	panelHeight := m.height - 2
	listW, detailW, assistW := m.columnWidths()

	var panels string
	if detailW == 0 {
		// Narrow terminal: inbox only.
		panels = m.renderList(listW, panelHeight)
	} else {
		panels = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderList(listW, panelHeight),
			m.renderDetail(detailW, panelHeight),
			m.renderAssistant(assistW, panelHeight),
		)
	}
	return m.renderHeader() + "\n" + panels + "\n" + m.renderStatusBar()
}

func (m Model) renderHeader() string {
	title := " mailflow — Posteingang "
	if n := unreadCount(m.mails); n > 0 {
		title = fmt.Sprintf(" mailflow — Posteingang (%d ungelesen) ", n)
	}
	return headerStyle.Width(m.width).MaxWidth(m.width).Render(title)
}

func (m Model) renderStatusBar() string {
	var parts []string
	switch m.focus {
	case focusFilter:
		parts = append(parts, shortcut("enter", "apply"), shortcut("esc", "clear"))
	case focusSubject, focusBody:
		parts = append(parts,
			shortcut("tab", "field"),
			shortcut("ctrl+s", "save"),
			shortcut("ctrl+y", "copy"),
			shortcut("esc", "back"))
	default:
		parts = append(parts,
			shortcut("j/k", "move"),
			shortcut("enter", "open"),
			shortcut("a", "assistant"),
			shortcut("/", "filter"),
			shortcut("q", "quit"))
		if m.state.TemplateReady() {
			parts = append(parts, shortcut("t", "template"))
		}
	}
	if m.query != "" {
		parts = append(parts, statusValueStyle.Render(fmt.Sprintf("filter=%q", m.query)))
	}
	if m.notice != "" {
		parts = append(parts, statusValueStyle.Render(m.notice))
	}
	line := strings.Join(parts, statusValueStyle.Render("  "))
	return statusBarStyle.Width(m.width).MaxWidth(m.width).Render(line)
}

func shortcut(k, desc string) string {
	return statusKeyStyle.Render(k) + statusValueStyle.Render(" "+desc)
}

func (m Model) panel(focused bool) lipgloss.Style {
	if focused {
		return focusedPanelStyle
	}
	return panelStyle
}

func (m Model) renderList(outerW, outerH int) string {
	innerW := maxInt(outerW-4, 10)
	innerH := maxInt(outerH-2, 1)

	var lines []string
	if m.focus == focusFilter {
		lines = append(lines, m.filter.View(), "")
	}

	switch {
	case m.loading:
		lines = append(lines, m.spinner.View()+" E-Mails werden geladen...")
	case m.loadErr != nil:
		lines = append(lines, errorStyle.Render("Posteingang nicht verfügbar"), dimStyle.Render(m.loadErr.Error()))
	case len(m.visible) == 0 && m.query != "":
		lines = append(lines, dimStyle.Render("Keine Treffer"))
	case len(m.visible) == 0:
		lines = append(lines, dimStyle.Render("Keine E-Mails"))
	}

	cursorLine := -1
	for i, mm := range m.visible {
		if i == m.cursor {
			cursorLine = len(lines)
		}
		lines = append(lines, m.renderListEntry(mm, i == m.cursor, innerW)...)
	}
	lines = scrollWindow(lines, cursorLine, innerH)

	return m.panel(m.focus == focusList || m.focus == focusFilter).
		Width(outerW - 2).
		Height(innerH).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderListEntry(mm mail.Mail, selected bool, width int) []string {
	prefix := "  "
	sender := valueStyle
	if !mm.Read {
		sender = unreadStyle
	}
	if selected {
		prefix = "> "
		sender = selectedStyle
	}

	markers := ""
	if !mm.Read {
		markers += unreadStyle.Render("●")
	}
	if mm.Starred {
		markers += starStyle.Render("★")
	}
	if mm.Important {
		markers += importantStyle.Render("!")
	}
	date := dimStyle.Render(mm.Date.Local().Format("02.01. 15:04"))

	head := prefix + sender.Render(mm.Sender)
	if markers != "" {
		head += " " + markers
	}
	gap := width - ansi.StringWidth(head) - ansi.StringWidth(date)
	if gap < 1 {
		head = ansi.Truncate(head, width-ansi.StringWidth(date)-2, "…")
		gap = 1
	}
	out := []string{
		head + strings.Repeat(" ", gap) + date,
		"  " + ansi.Truncate(valueStyle.Render(mm.Subject), width-2, "…"),
	}
	if mm.Preview != "" {
		out = append(out, "  "+ansi.Truncate(dimStyle.Render(mm.Preview), width-2, "…"))
	}
	if len(mm.Labels) > 0 || len(mm.Attachments) > 0 {
		var chips []string
		for _, l := range mm.Labels {
			chips = append(chips, chipStyle.Render(l))
		}
		if n := len(mm.Attachments); n > 0 {
			chips = append(chips, dimStyle.Render(fmt.Sprintf("📎%d", n)))
		}
		out = append(out, "  "+ansi.Truncate(strings.Join(chips, " "), width-2, "…"))
	}
	return append(out, "")
}

func (m Model) renderDetail(outerW, outerH int) string {
	innerW := maxInt(outerW-4, 10)
	innerH := maxInt(outerH-2, 1)

	mm, ok := mail.Find(m.mails, m.openID)
	if !ok {
		return panelStyle.Width(outerW - 2).Height(innerH).
			Render(dimStyle.Render("Wählen Sie eine E-Mail aus, um sie anzuzeigen."))
	}

	lines := []string{
		sectionTitleStyle.Render(ansi.Truncate(mm.Subject, innerW, "…")),
		labelStyle.Render("Von") + valueStyle.Render(ansi.Truncate(fmt.Sprintf("%s <%s>", mm.Sender, mm.SenderEmail), innerW-9, "…")),
		labelStyle.Render("Datum") + valueStyle.Render(mm.Date.Local().Format("02.01.2006 15:04")),
	}
	if len(mm.Attachments) > 0 {
		var names []string
		for _, a := range mm.Attachments {
			names = append(names, fmt.Sprintf("%s (%s)", a.Name, a.Size))
		}
		lines = append(lines, labelStyle.Render("Anhänge")+dimStyle.Render(ansi.Truncate(strings.Join(names, ", "), innerW-9, "…")))
	}
	lines = append(lines, dimStyle.Render(strings.Repeat("─", innerW)))
	lines = append(lines, m.body.View())

	return panelStyle.Width(outerW - 2).Height(innerH).MaxHeight(outerH).
		Render(strings.Join(lines, "\n"))
}

// scrollWindow keeps cursorLine visible within height lines.
func scrollWindow(lines []string, cursorLine, height int) []string {
	if len(lines) <= height {
		return lines
	}
	start := 0
	if cursorLine >= height-3 {
		start = cursorLine - height + 4
	}
	if start+height > len(lines) {
		start = len(lines) - height
	}
	if start < 0 {
		start = 0
	}
	return lines[start : start+height]
}

func wrapBody(body string, width int) string {
	if width <= 0 {
		return body
	}
	return lipgloss.NewStyle().Width(width).Render(body)
}

func unreadCount(mails []mail.Mail) int {
	n := 0
	for _, mm := range mails {
		if !mm.Read {
			n++
		}
	}
	return n
}
