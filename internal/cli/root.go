// Package cli implements the mailflow command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/buildinfo"
	"github.com/agusx1211/mailflow/internal/config"
	"github.com/agusx1211/mailflow/internal/debug"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	dim     = color.New(color.Faint).SprintFunc()
	cyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	red     = color.New(color.FgRed).SprintFunc()
	boldRed = color.New(color.Bold, color.FgRed).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "mailflow",
	Short: "Mail triage with an AI reply assistant",
	Long: bold(`
  ┌┬┐┌─┐┬┬  ┌─┐┬  ┌─┐┬ ┬
  │││├─┤││  ├┤ │  │ ││││
  ┴ ┴┴ ┴┴┴─┘└  ┴─┘└─┘└┴┘`) + `

  ` + cyan("Mail triage with an AI reply assistant") + ` ` + buildinfo.Current().Version + `

  Read customer mails, let the agent workflow route them to an expert
  and review the drafted reply before sending it yourself.

` + bold("Getting Started:") + `
  mailflow serve                         Run the local development backend
  mailflow login --email admin@example.com
  mailflow                               Launch the interactive triage view
  mailflow agent start --subject "..." --body "..." --wait

` + bold("Configuration:") + `
  ~/.mailflow/config.json (override the directory with MAILFLOW_HOME)
  A .env file in the working directory is read on start.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if isatty.IsTerminal(os.Stdout.Fd()) {
			return runTUI(cmd, args)
		}
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.mailflow/debug/")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return fmt.Errorf("loading .env: %w", err)
		}

		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init("")
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s logging to %s\n", dim("[debug]"), logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "mailflow starting",
			"version", bi.Version,
			"commit", bi.CommitHash,
			"build_date", bi.BuildDate,
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%s %s\n", boldRed("Error:"), red(errorText(err)))
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, dim(hint))
		}
		debug.Close()
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
