package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/agusx1211/mailflow/internal/admin"
	"github.com/agusx1211/mailflow/internal/api"
	"github.com/agusx1211/mailflow/internal/theme"
)

// printHeader prints a formatted section header.
func printHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", cyan(title))
	fmt.Fprintln(w, dim(strings.Repeat("-", len(title)+2)))
}

// printField prints a labeled field.
func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", bold(fmt.Sprintf("%-16s", label+":")), value)
}

// statusColor picks the color for a run or step status.
func statusColor(status string) *color.Color {
	switch strings.ToLower(status) {
	case "completed", "done":
		return color.New(color.FgGreen)
	case "running", "active":
		return color.New(color.FgYellow)
	case "error", "failed":
		return color.New(color.FgRed)
	case "pending":
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgWhite)
	}
}

// statusBadge returns a colored status badge.
func statusBadge(status string) string {
	return statusColor(status).Sprintf("[%s]", status)
}

func yesNo(v bool) string {
	if v {
		return green("yes")
	}
	return dim("no")
}

// printTable renders rows with rounded borders.
func printTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, dim("  (none)"))
		return
	}
	headerStyle := lipgloss.NewStyle().
		Foreground(theme.ColorMauve).
		Bold(true).
		Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(theme.ColorSubtext0)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorSurface1)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return cellStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

// printPager prints the page footer of a paginated list.
func printPager(w io.Writer, number, count, rows int) {
	p := admin.Page[struct{}]{Number: number, Count: count, Rows: make([]struct{}, rows)}
	line := fmt.Sprintf("page %d of %d (%d total)", p.Number, p.TotalPages(), p.Count)
	var hints []string
	if p.HasPrev() {
		hints = append(hints, fmt.Sprintf("--page %d", p.Number-1))
	}
	if p.HasNext() {
		hints = append(hints, fmt.Sprintf("--page %d", p.Number+1))
	}
	if len(hints) > 0 {
		line += "  " + strings.Join(hints, " | ")
	}
	fmt.Fprintln(w, dim(line))
}

// truncate shortens s to maxLen runes, adding "..." if needed.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// firstLine returns the first line of a multi-line string.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// errorText renders err for the final "Error:" line. Form errors list each
// field on its own line.
func errorText(err error) string {
	var verr admin.ValidationErrors
	if errors.As(err, &verr) {
		fields := make([]string, 0, len(verr))
		for f := range verr {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		lines := []string{"invalid input"}
		for _, f := range fields {
			lines = append(lines, fmt.Sprintf("  %s: %s", f, verr[f]))
		}
		return strings.Join(lines, "\n")
	}
	return api.UserMessage(err)
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, api.ErrSessionExpired), errors.Is(err, api.ErrNotAuthenticated):
		return "Run 'mailflow login' to sign in."
	case api.StatusOf(err) == 403:
		return "Your account lacks the privileges for this command."
	}
	return ""
}
