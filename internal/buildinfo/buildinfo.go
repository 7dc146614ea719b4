package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Linker-overridable build metadata:
//
//	go build -ldflags "-X github.com/agusx1211/mailflow/internal/buildinfo.Version=v0.2.0"
var (
	Version    = "0.1.0"
	CommitHash = ""
	BuildDate  = ""
)

// Info is normalized build metadata for display.
type Info struct {
	Version    string
	CommitHash string
	BuildDate  string
}

// Current returns build metadata from linker overrides, falling back to the
// VCS settings embedded by the Go toolchain.
func Current() Info {
	info := Info{
		Version:    strings.TrimSpace(Version),
		CommitHash: strings.TrimSpace(CommitHash),
		BuildDate:  strings.TrimSpace(BuildDate),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if (info.Version == "" || info.Version == "0.1.0") && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		settings := make(map[string]string, len(bi.Settings))
		for _, s := range bi.Settings {
			settings[s.Key] = strings.TrimSpace(s.Value)
		}
		if info.CommitHash == "" {
			info.CommitHash = settings["vcs.revision"]
			if info.CommitHash != "" && strings.EqualFold(settings["vcs.modified"], "true") {
				info.CommitHash += "-dirty"
			}
		}
		if info.BuildDate == "" {
			info.BuildDate = settings["vcs.time"]
		}
	}

	if parsed, err := time.Parse(time.RFC3339, info.BuildDate); err == nil {
		info.BuildDate = parsed.UTC().Format("2006-01-02 15:04:05 UTC")
	}
	info.Version = orUnknown(info.Version)
	info.CommitHash = orUnknown(info.CommitHash)
	info.BuildDate = orUnknown(info.BuildDate)
	return info
}

// String renders the one-line form printed by `mailflow version`.
func (i Info) String() string {
	commit := i.CommitHash
	if len(commit) > 12 && !strings.HasSuffix(commit, "-dirty") {
		commit = commit[:12]
	}
	return fmt.Sprintf("mailflow %s (commit %s, built %s)", i.Version, commit, i.BuildDate)
}

// UserAgent is sent with every API request.
func (i Info) UserAgent() string {
	return "mailflow/" + i.Version
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
