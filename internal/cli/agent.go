package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/agentrun"
	"github.com/agusx1211/mailflow/internal/debug"
	"github.com/agusx1211/mailflow/internal/mail"
	"github.com/agusx1211/mailflow/internal/theme"
	"github.com/agusx1211/mailflow/pkg/protocol"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Start and follow agent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var agentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start an agent run for a mail",
	Long: `Start the agent workflow for one mail and print the run id.

With --wait the run is polled until it completes or fails, printing each
step as it changes, and the drafted reply is printed at the end.`,
	Args: cobra.NoArgs,
	RunE: runAgentStart,
}

var agentStatusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the timeline and draft of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentStatus,
}

var agentWatchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Follow a run over the live stream",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentWatch,
}

func init() {
	agentStartCmd.Flags().String("subject", "", "Mail subject (required)")
	agentStartCmd.Flags().String("body", "", "Mail body (required, '-' reads stdin)")
	agentStartCmd.Flags().String("sender", "", "Sender address")
	agentStartCmd.Flags().Bool("wait", false, "Poll until the run finishes and print the draft")
	agentStartCmd.Flags().Bool("copy", false, "Copy the draft to the clipboard (with --wait)")
	_ = agentStartCmd.MarkFlagRequired("subject")
	_ = agentStartCmd.MarkFlagRequired("body")

	agentStatusCmd.Flags().Bool("copy", false, "Copy the draft to the clipboard")

	agentCmd.AddCommand(agentStartCmd, agentStatusCmd, agentWatchCmd)
	rootCmd.AddCommand(agentCmd)
}

// clipboardWrite is swapped in tests.
var clipboardWrite = clipboard.WriteAll

func runAgentStart(cmd *cobra.Command, args []string) error {
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	subject, _ := cmd.Flags().GetString("subject")
	body, _ := cmd.Flags().GetString("body")
	sender, _ := cmd.Flags().GetString("sender")
	wait, _ := cmd.Flags().GetBool("wait")
	copyDraft, _ := cmd.Flags().GetBool("copy")

	if body == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading body from stdin: %w", err)
		}
		body = string(data)
	}
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		return errors.New("--subject and --body must not be empty")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()

	if !wait {
		resp, err := app.client.StartAgentRun(ctx, subject, body, sender)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp.RunID)
		return nil
	}

	ctrl := agentrun.NewController(app.client, app.pollOptions())
	defer ctrl.Close()

	m := mail.Mail{ID: "cli", Subject: subject, Body: body, SenderEmail: sender}
	if err := ctrl.StartRun(ctx, m); err != nil {
		return err
	}
	st, err := followController(ctx, out, ctrl)
	if err != nil {
		return err
	}
	if st.Status == agentrun.StatusError {
		return fmt.Errorf("agent run %s failed: %s", st.RunID, orDefault(st.StatusMessage, "unknown error"))
	}
	printDraft(out, st.Draft.Subject, st.Draft.Body)
	if copyDraft {
		return copyToClipboard(out, st.Draft.Subject, st.Draft.Body)
	}
	return nil
}

// followController prints timeline transitions until the run is terminal or
// polling gave up.
func followController(ctx context.Context, w io.Writer, ctrl *agentrun.Controller) (agentrun.State, error) {
	tracker := newStepTracker()
	st := ctrl.Snapshot()
	if st.RunID != "" {
		fmt.Fprintf(w, "%s %s\n", dim("run"), st.RunID)
	}
	tracker.print(w, st.Timeline)

	for {
		if st.Status.Terminal() {
			return st, nil
		}
		if !st.Polling && !st.Starting && st.LastErr != nil {
			return st, st.LastErr
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case next, ok := <-ctrl.Updates():
			if !ok {
				return st, agentrun.ErrClosed
			}
			st = next
			tracker.print(w, st.Timeline)
			if st.LastErr != nil && st.Polling {
				fmt.Fprintf(w, "  %s\n", yellow(st.LastErr.Error()))
			}
		}
	}
}

func runAgentStatus(cmd *cobra.Command, args []string) error {
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	doc, err := app.client.GetAgentRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printRunDocument(out, args[0], doc)

	if copyDraft, _ := cmd.Flags().GetBool("copy"); copyDraft {
		if doc.DraftBody == "" {
			return errors.New("the run has no draft yet")
		}
		return copyToClipboard(out, doc.DraftSubject, doc.DraftBody)
	}
	return nil
}

func runAgentWatch(cmd *cobra.Command, args []string) error {
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	tracker := newStepTracker()
	var last protocol.AgentStatusResponse
	err = app.client.StreamAgentRun(ctx, args[0], func(doc protocol.AgentStatusResponse) error {
		debug.LogKV("cli", "stream update", "run", args[0], "status", doc.Status, "steps", len(doc.Steps))
		tracker.print(out, agentrun.Project(doc, time.Time{}))
		last = doc
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", bold("Status:"), statusBadge(last.Status))
	if last.Status == protocol.RunError {
		return fmt.Errorf("agent run %s failed: %s", args[0], orDefault(last.StatusMessage, "unknown error"))
	}
	printDraft(out, last.DraftSubject, last.DraftBody)
	return nil
}

func printRunDocument(w io.Writer, runID string, doc protocol.AgentStatusResponse) {
	tl := agentrun.Project(doc, time.Time{})
	printHeader(w, "Run "+runID)
	printField(w, "Status", statusBadge(doc.Status))
	if doc.StatusMessage != "" {
		printField(w, "Message", doc.StatusMessage)
	}
	fmt.Fprintln(w)
	for _, s := range tl.Steps {
		fmt.Fprintln(w, stepLine(s))
	}
	if tl.Dropped > 0 {
		fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("%d unrecognized step(s) hidden", tl.Dropped)))
	}
	printDraft(w, doc.DraftSubject, doc.DraftBody)
}

func stepLine(s agentrun.Step) string {
	line := fmt.Sprintf("  %s %s %s", theme.StepStatusIndicator(string(s.Status)), s.Icon, bold(s.Name))
	if !s.CreatedAt.IsZero() {
		line += " " + dim(s.CreatedAt.Local().Format("15:04:05"))
	}
	if s.Text != "" {
		line += "\n      " + firstLine(s.Text)
	}
	return line
}

// stepTracker prints each step once per status it reaches.
type stepTracker struct {
	seen map[string]agentrun.StepStatus
}

func newStepTracker() *stepTracker {
	return &stepTracker{seen: make(map[string]agentrun.StepStatus)}
}

func (t *stepTracker) print(w io.Writer, tl agentrun.Timeline) {
	for _, s := range tl.Steps {
		key := s.ID
		if key == "" {
			key = string(s.Type)
		}
		if prev, ok := t.seen[key]; ok && prev == s.Status {
			continue
		}
		t.seen[key] = s.Status
		fmt.Fprintln(w, stepLine(s))
	}
}

func printDraft(w io.Writer, subject, body string) {
	if body == "" {
		return
	}
	printHeader(w, "Draft")
	printField(w, "Subject", subject)
	fmt.Fprintln(w)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		if rendered, err := glamour.Render(body, "dark"); err == nil {
			fmt.Fprint(w, rendered)
			return
		}
	}
	fmt.Fprintln(w, body)
}

func copyToClipboard(w io.Writer, subject, body string) error {
	if err := clipboardWrite(subject + "\n\n" + body); err != nil {
		return fmt.Errorf("copying to clipboard: %w", err)
	}
	fmt.Fprintf(w, "%s Draft copied to the clipboard\n", green("✓"))
	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
