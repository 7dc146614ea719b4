package cli

import (
	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/debug"
	"github.com/agusx1211/mailflow/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive triage view",
	Long: `Opens the full-screen inbox with the mail detail and the reply assistant.

The inbox comes from the configured mail_source (sample or imap). Agent
runs go to the configured backend.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	src, err := app.mailSource()
	if err != nil {
		return err
	}
	debug.LogKV("cli", "launching tui", "api", app.client.BaseURL, "mail_source", app.cfg.MailSource)
	return tui.Run(cmd.Context(), tui.Config{
		Source:  src,
		API:     app.client,
		Options: app.pollOptions(),
	})
}
