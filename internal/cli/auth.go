package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/admin"
	"github.com/agusx1211/mailflow/internal/api"
	"github.com/agusx1211/mailflow/internal/config"
	"github.com/agusx1211/mailflow/pkg/protocol"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the access token",
	Long: `Exchange email and password for an access token. The token is stored in
~/.mailflow/session.json and used by every other command.

The password is read from stdin when --password is not given.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearSession(); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Register a new account",
	Args:  cobra.NoArgs,
	RunE:  runSignup,
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Manage your own account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var meUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change your email or full name",
	Args:  cobra.NoArgs,
	RunE:  runMeUpdate,
}

var mePasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change your password",
	Args:  cobra.NoArgs,
	RunE:  runMePassword,
}

var meDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete your account",
	Args:  cobra.NoArgs,
	RunE:  runMeDelete,
}

func init() {
	loginCmd.Flags().StringP("email", "e", "", "Account email (required)")
	loginCmd.Flags().StringP("password", "p", "", "Account password (read from stdin when omitted)")
	loginCmd.Flags().String("api-url", "", "Backend base URL (defaults to the configured api_url)")
	_ = loginCmd.MarkFlagRequired("email")

	signupCmd.Flags().StringP("email", "e", "", "Account email (required)")
	signupCmd.Flags().String("name", "", "Full name (required)")
	signupCmd.Flags().StringP("password", "p", "", "Password, at least 8 characters (required)")
	signupCmd.Flags().String("access-password", "", "Access password of the deployment (required)")
	_ = signupCmd.MarkFlagRequired("email")

	meUpdateCmd.Flags().String("email", "", "New email")
	meUpdateCmd.Flags().String("name", "", "New full name")
	mePasswordCmd.Flags().String("current", "", "Current password (required)")
	mePasswordCmd.Flags().String("new", "", "New password (required)")
	meDeleteCmd.Flags().Bool("yes", false, "Confirm the deletion")

	meCmd.AddCommand(meUpdateCmd, mePasswordCmd, meDeleteCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, signupCmd, meCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	apiURL, _ := cmd.Flags().GetString("api-url")

	if password == "" {
		pw, err := promptLine(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
		if err != nil {
			return err
		}
		password = pw
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = cfg.APIURL
	}
	client := api.New(apiURL, "", cfg.RequestTimeout())

	tok, err := client.Login(cmd.Context(), strings.TrimSpace(email), password)
	if err != nil {
		if api.StatusOf(err) == 400 {
			return fmt.Errorf("login failed: %s", api.UserMessage(err))
		}
		return err
	}
	me, err := client.CurrentUser(cmd.Context())
	if err != nil {
		return err
	}
	if err := config.SaveSession(&config.Session{
		APIURL:      client.BaseURL,
		AccessToken: tok.AccessToken,
		Email:       me.Email,
	}); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Logged in as %s\n", green("✓"), bold(me.Email))
	if exp, ok := api.TokenExpiry(tok.AccessToken); ok {
		fmt.Fprintf(out, "  %s\n", dim("token valid until "+exp.Local().Format("2006-01-02 15:04")))
	}
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	if err := app.requireLogin(); err != nil {
		return err
	}
	me, err := app.users().Me(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printUser(out, me)
	printField(out, "Backend", app.client.BaseURL)
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")
	access, _ := cmd.Flags().GetString("access-password")

	form := admin.SignupForm{
		Email:           email,
		FullName:        name,
		Password:        password,
		ConfirmPassword: password,
		AccessPassword:  access,
	}
	u, err := app.users().Signup(cmd.Context(), form)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Account %s created. Run 'mailflow login --email %s' to sign in.\n",
		green("✓"), bold(u.Email), u.Email)
	return nil
}

func runMeUpdate(cmd *cobra.Command, args []string) error {
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	if err := app.requireLogin(); err != nil {
		return err
	}
	me, err := app.users().Me(cmd.Context())
	if err != nil {
		return err
	}
	form := admin.ProfileForm{Email: me.Email, FullName: me.FullName}
	if cmd.Flags().Changed("email") {
		form.Email, _ = cmd.Flags().GetString("email")
	}
	if cmd.Flags().Changed("name") {
		form.FullName, _ = cmd.Flags().GetString("name")
	}
	u, err := app.users().UpdateMe(cmd.Context(), form)
	if err != nil {
		return err
	}
	if u.Email != app.session.Email && app.session.AccessToken != "" {
		app.session.Email = u.Email
		if err := config.SaveSession(app.session); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Profile updated.\n", green("✓"))
	printUser(cmd.OutOrStdout(), u)
	return nil
}

func runMePassword(cmd *cobra.Command, args []string) error {
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	if err := app.requireLogin(); err != nil {
		return err
	}
	current, _ := cmd.Flags().GetString("current")
	next, _ := cmd.Flags().GetString("new")
	form := admin.PasswordForm{Current: current, New: next, ConfirmPassword: next}
	if err := app.users().ChangePassword(cmd.Context(), form); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Password updated.\n", green("✓"))
	return nil
}

func runMeDelete(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("refusing to delete your account without --yes")
	}
	app, err := loadAppContext()
	if err != nil {
		return err
	}
	if err := app.requireLogin(); err != nil {
		return err
	}
	if err := app.users().DeleteMe(cmd.Context()); err != nil {
		return err
	}
	if err := config.ClearSession(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Account deleted.\n", green("✓"))
	return nil
}

func printUser(w io.Writer, u protocol.UserPublic) {
	printHeader(w, "User "+u.Email)
	printField(w, "ID", u.ID)
	printField(w, "Email", u.Email)
	if u.FullName != "" {
		printField(w, "Full name", u.FullName)
	}
	printField(w, "Active", yesNo(u.IsActive))
	printField(w, "Superuser", yesNo(u.IsSuperuser))
}

// promptLine writes prompt to w and reads one line from r.
func promptLine(r io.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
