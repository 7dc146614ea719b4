package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Current().String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
