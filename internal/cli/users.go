package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/admin"
)

var usersCmd = &cobra.Command{
	Use:     "users",
	Aliases: []string{"user"},
	Short:   "Administer user accounts (superuser only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var usersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	Args:    cobra.NoArgs,
	RunE:    runUsersList,
}

var usersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersShow,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Args:  cobra.NoArgs,
	RunE:  runUsersCreate,
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a user",
	Long: `Update a user. Fields whose flags are not given keep their current value.
Leaving --password out keeps the stored password.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersUpdate,
}

var usersDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a user and their items",
	Args:    cobra.ExactArgs(1),
	RunE:    runUsersDelete,
}

func init() {
	usersListCmd.Flags().Int("page", 1, "Page number")

	usersCreateCmd.Flags().String("email", "", "Email (required)")
	usersCreateCmd.Flags().String("name", "", "Full name (required)")
	usersCreateCmd.Flags().String("password", "", "Password, at least 8 characters (required)")
	usersCreateCmd.Flags().Bool("superuser", false, "Grant superuser rights")
	usersCreateCmd.Flags().Bool("active", true, "Account is active")

	usersUpdateCmd.Flags().String("email", "", "New email")
	usersUpdateCmd.Flags().String("name", "", "New full name")
	usersUpdateCmd.Flags().String("password", "", "New password")
	usersUpdateCmd.Flags().Bool("superuser", false, "Superuser rights")
	usersUpdateCmd.Flags().Bool("active", true, "Account is active")

	usersCmd.AddCommand(usersListCmd, usersShowCmd, usersCreateCmd, usersUpdateCmd, usersDeleteCmd)
	rootCmd.AddCommand(usersCmd)
}

func loggedInApp() (*appContext, error) {
	app, err := loadAppContext()
	if err != nil {
		return nil, err
	}
	if err := app.requireLogin(); err != nil {
		return nil, err
	}
	return app, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("page")
	page, err := app.users().List(cmd.Context(), n)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(page.Rows))
	for _, u := range page.Rows {
		rows = append(rows, []string{
			u.ID,
			u.Email,
			truncate(u.FullName, 30),
			yesNo(u.IsActive),
			yesNo(u.IsSuperuser),
		})
	}
	out := cmd.OutOrStdout()
	printTable(out, []string{"ID", "EMAIL", "NAME", "ACTIVE", "SUPERUSER"}, rows)
	printPager(out, page.Number, page.Count, len(page.Rows))
	return nil
}

func runUsersShow(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	u, err := app.users().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printUser(cmd.OutOrStdout(), u)
	return nil
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	f := admin.UserForm{}
	f.Email, _ = cmd.Flags().GetString("email")
	f.FullName, _ = cmd.Flags().GetString("name")
	f.Password, _ = cmd.Flags().GetString("password")
	f.ConfirmPassword = f.Password
	f.IsSuperuser, _ = cmd.Flags().GetBool("superuser")
	f.IsActive, _ = cmd.Flags().GetBool("active")

	u, err := app.users().Create(cmd.Context(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s User %s created (id %s)\n", green("✓"), bold(u.Email), u.ID)
	return nil
}

func runUsersUpdate(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	id := args[0]
	cur, err := app.users().Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	f := admin.UserForm{
		Email:       cur.Email,
		FullName:    cur.FullName,
		IsActive:    cur.IsActive,
		IsSuperuser: cur.IsSuperuser,
	}
	flags := cmd.Flags()
	if flags.Changed("email") {
		f.Email, _ = flags.GetString("email")
	}
	if flags.Changed("name") {
		f.FullName, _ = flags.GetString("name")
	}
	if flags.Changed("password") {
		f.Password, _ = flags.GetString("password")
		f.ConfirmPassword = f.Password
	}
	if flags.Changed("superuser") {
		f.IsSuperuser, _ = flags.GetBool("superuser")
	}
	if flags.Changed("active") {
		f.IsActive, _ = flags.GetBool("active")
	}

	u, err := app.users().Update(cmd.Context(), id, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s User %s updated\n", green("✓"), bold(u.Email))
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	if err := app.users().Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s User %s deleted\n", green("✓"), args[0])
	return nil
}
