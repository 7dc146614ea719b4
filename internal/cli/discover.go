package cli

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/config"
	"github.com/agusx1211/mailflow/internal/debug"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find mailflow backends on the local network",
	Long: `Look up backends started with 'mailflow serve --mdns'.

With --save the first backend found becomes the configured api_url.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().Duration("timeout", 3*time.Second, "How long to listen for answers")
	discoverCmd.Flags().Bool("save", false, "Store the first backend found as api_url")
	rootCmd.AddCommand(discoverCmd)
}

type discoveredBackend struct {
	Name string
	URL  string
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	save, _ := cmd.Flags().GetBool("save")
	out := cmd.OutOrStdout()

	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan []discoveredBackend)
	go func() {
		seen := make(map[string]bool)
		var found []discoveredBackend
		for e := range entries {
			b := backendFromEntry(e)
			if b.URL == "" || seen[b.URL] {
				continue
			}
			seen[b.URL] = true
			found = append(found, b)
		}
		done <- found
	}()

	params := mdns.DefaultParams(mdnsServiceType)
	params.Entries = entries
	params.Timeout = timeout
	err := mdns.Query(params)
	close(entries)
	found := <-done
	if err != nil {
		return fmt.Errorf("mDNS lookup: %w", err)
	}

	if len(found) == 0 {
		fmt.Fprintln(out, dim("No backends found."))
		return nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })

	rows := make([][]string, 0, len(found))
	for _, b := range found {
		rows = append(rows, []string{b.Name, b.URL})
	}
	printTable(out, []string{"NAME", "URL"}, rows)

	if !save {
		return nil
	}
	cfg, err := config.LoadFile()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Set("api_url", found[0].URL); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(out, "%s api_url set to %s\n", green("✓"), found[0].URL)
	return nil
}

// backendFromEntry prefers the advertised url TXT record. A loopback URL is
// rewritten to the address the answer came from.
func backendFromEntry(e *mdns.ServiceEntry) discoveredBackend {
	name := strings.TrimSuffix(e.Name, "."+mdnsServiceType+".local.")
	addr := ""
	if e.AddrV4 != nil {
		addr = e.AddrV4.String()
	} else if e.AddrV6 != nil {
		addr = e.AddrV6.String()
	}

	var advertised string
	for _, field := range e.InfoFields {
		if v, ok := strings.CutPrefix(field, "url="); ok {
			advertised = v
		}
	}
	debug.LogKV("cli", "mdns answer", "name", e.Name, "addr", addr, "port", e.Port, "url", advertised)

	if advertised != "" {
		u, err := url.Parse(advertised)
		if err == nil && !isLoopbackHost(u.Hostname()) {
			return discoveredBackend{Name: name, URL: advertised}
		}
		if err == nil && addr != "" {
			u.Host = net.JoinHostPort(addr, u.Port())
			return discoveredBackend{Name: name, URL: u.String()}
		}
	}
	if addr == "" || e.Port == 0 {
		return discoveredBackend{Name: name}
	}
	return discoveredBackend{Name: name, URL: "http://" + net.JoinHostPort(addr, strconv.Itoa(e.Port))}
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
