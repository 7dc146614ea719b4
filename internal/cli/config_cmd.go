package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg"},
	Short:   "Manage mailflow configuration",
	Long: `Manage ~/.mailflow/config.json.

Use subcommands like:
  mailflow config show
  mailflow config set api_url http://localhost:8000
  mailflow config set mail_source imap`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print every setting with its effective value, environment overrides
and defaults included. Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	out := cmd.OutOrStdout()
	printHeader(out, "Configuration")
	printField(out, "File", config.Path())
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(config.Keys()))
	for _, k := range config.Keys() {
		v, err := cfg.Get(k)
		if err != nil {
			return err
		}
		if v == "" {
			v = dim("(unset)")
		}
		rows = append(rows, []string{k, v})
	}
	printTable(out, []string{"KEY", "VALUE"}, rows)

	sess, err := config.LoadSession()
	if err == nil && sess.AccessToken != "" {
		who := sess.Email
		if who == "" {
			who = "token from environment"
		}
		printField(out, "Logged in", who)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	shown, _ := cfg.Get(args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", green("✓"), args[0], shown)
	return nil
}
