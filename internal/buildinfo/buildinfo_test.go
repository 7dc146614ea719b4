package buildinfo

import (
	"strings"
	"testing"
)

func withOverrides(t *testing.T, version, commit, date string) {
	t.Helper()
	oldVersion, oldCommit, oldDate := Version, CommitHash, BuildDate
	t.Cleanup(func() {
		Version, CommitHash, BuildDate = oldVersion, oldCommit, oldDate
	})
	Version, CommitHash, BuildDate = version, commit, date
}

func TestCurrentUsesOverrides(t *testing.T) {
	withOverrides(t, "v1.2.3", "abc1234", "2026-02-12T10:11:12Z")

	info := Current()
	if info.Version != "v1.2.3" {
		t.Fatalf("version = %q, want %q", info.Version, "v1.2.3")
	}
	if info.CommitHash != "abc1234" {
		t.Fatalf("commit hash = %q, want %q", info.CommitHash, "abc1234")
	}
	if info.BuildDate != "2026-02-12 10:11:12 UTC" {
		t.Fatalf("build date = %q, want %q", info.BuildDate, "2026-02-12 10:11:12 UTC")
	}
	if got := info.UserAgent(); got != "mailflow/v1.2.3" {
		t.Fatalf("UserAgent() = %q", got)
	}
}

func TestCurrentPopulatesUnknowns(t *testing.T) {
	withOverrides(t, "", "", "")

	info := Current()
	if info.Version == "" || info.CommitHash == "" || info.BuildDate == "" {
		t.Fatalf("expected no empty fields, got %+v", info)
	}
}

func TestStringShortensCommit(t *testing.T) {
	info := Info{Version: "v1", CommitHash: "0123456789abcdef0123", BuildDate: "today"}
	got := info.String()
	if !strings.Contains(got, "commit 0123456789ab,") {
		t.Fatalf("String() = %q, want shortened commit", got)
	}
}
