package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/mdns"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/backend"
	"github.com/agusx1211/mailflow/internal/config"
	"github.com/agusx1211/mailflow/internal/debug"
)

const mdnsServiceType = "_mailflow._tcp"

// Environment fallbacks for serve flags.
const (
	envServeSecret         = "MAILFLOW_SECRET"
	envServeAdminEmail     = "MAILFLOW_ADMIN_EMAIL"
	envServeAdminPassword  = "MAILFLOW_ADMIN_PASSWORD"
	envServeAccessPassword = "MAILFLOW_ACCESS_PASSWORD"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local development backend",
	Long: `Serve the mail assistant API backed by a local SQLite database.

The agent workflow is simulated: every run walks the master agent, one
topic expert and the mail drafter, then completes with a reply draft.
Runs still in progress when the server stops are marked as failed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().IntP("port", "p", 8000, "Port to listen on (0 picks a free port)")
	serveCmd.Flags().String("db", "", "SQLite database path (default ~/.mailflow/backend.db)")
	serveCmd.Flags().String("secret", "", "Token signing secret (random when empty, env "+envServeSecret+")")
	serveCmd.Flags().String("admin-email", "admin@example.com", "Email of the seeded superuser (env "+envServeAdminEmail+")")
	serveCmd.Flags().String("admin-password", "", "Password of the seeded superuser (env "+envServeAdminPassword+")")
	serveCmd.Flags().String("access-password", "", "Require this access password for signups (env "+envServeAccessPassword+")")
	serveCmd.Flags().Float64("speed", 1, "Speed factor for the simulated agent stages")
	serveCmd.Flags().Bool("mdns", false, "Advertise the backend on the local network via mDNS/Bonjour")
	serveCmd.Flags().Bool("qr", false, "Print a QR code of the backend URL")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	dbPath, _ := cmd.Flags().GetString("db")
	speed, _ := cmd.Flags().GetFloat64("speed")
	enableMDNS, _ := cmd.Flags().GetBool("mdns")
	printQR, _ := cmd.Flags().GetBool("qr")

	if speed <= 0 {
		return fmt.Errorf("--speed must be positive, got %v", speed)
	}
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join(config.Dir(), "backend.db")
	}

	opts := backend.Options{
		Host:                 host,
		Port:                 port,
		DBPath:               dbPath,
		Secret:               flagOrEnv(cmd, "secret", envServeSecret),
		AdminEmail:           flagOrEnv(cmd, "admin-email", envServeAdminEmail),
		AdminPassword:        flagOrEnv(cmd, "admin-password", envServeAdminPassword),
		SignupAccessPassword: flagOrEnv(cmd, "access-password", envServeAccessPassword),
		Speed:                speed,
	}
	if opts.AdminPassword == "" {
		opts.AdminEmail = ""
	}

	srv, err := backend.New(opts)
	if err != nil {
		return fmt.Errorf("opening backend: %w", err)
	}
	if err := srv.Start(); err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			fmt.Fprintf(os.Stderr, "Port %d is already in use.\n", port)
			fmt.Fprintf(os.Stderr, "Try: mailflow serve --port %d\n", port+1)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return fmt.Errorf("starting backend: %w", err)
	}

	url := srv.URL()
	out := cmd.OutOrStdout()
	// OSC 8 hyperlink for terminals that support it.
	fmt.Fprintf(out, "\033]8;;%s\033\\%s\033]8;;\033\\\n", url, url)
	fmt.Fprintf(out, "%s %s\n", dim("database:"), dbPath)
	if opts.AdminEmail != "" {
		fmt.Fprintf(out, "%s %s\n", dim("superuser:"), opts.AdminEmail)
	}
	if opts.SignupAccessPassword != "" {
		fmt.Fprintln(out, dim("Signups require the access password."))
	}
	if printQR {
		if err := printQRCode(out, url); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to render QR code: %v\n", err)
		}
	}

	if enableMDNS {
		server, err := startMDNSService(srv.Port(), url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to start mDNS advertisement: %v\n", err)
		} else {
			fmt.Fprintf(out, "%s %s\n", dim("advertising"), mdnsServiceType)
			defer server.Shutdown()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	debug.Log("cli", "serve: shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down backend: %w", err)
	}
	fmt.Fprintln(out, "Backend stopped.")
	return nil
}

func flagOrEnv(cmd *cobra.Command, flag, env string) string {
	v, _ := cmd.Flags().GetString(flag)
	if cmd.Flags().Changed(flag) {
		return v
	}
	if e := strings.TrimSpace(os.Getenv(env)); e != "" {
		return e
	}
	return v
}

func startMDNSService(port int, url string) (*mdns.Server, error) {
	if port <= 0 {
		return nil, fmt.Errorf("invalid port for mDNS advertisement: %d", port)
	}
	instance := "mailflow"
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		instance = "mailflow-" + strings.Split(hostname, ".")[0]
	}
	txtRecords := []string{
		fmt.Sprintf("url=%s", url),
	}
	service, err := mdns.NewMDNSService(instance, mdnsServiceType, "local", "", port, nil, txtRecords)
	if err != nil {
		return nil, err
	}
	return mdns.NewServer(&mdns.Config{
		Zone: service,
	})
}

func printQRCode(w io.Writer, url string) error {
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, code.ToString(false))
	return err
}
