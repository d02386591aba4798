package version

import (
	"strings"
	"testing"
)

func saveAndRestore() func() {
	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	return func() {
		Version = origVersion
		GitCommit = origCommit
		BuildTime = origBuildTime
	}
}

func TestGet_Defaults(t *testing.T) {
	defer saveAndRestore()()
	Version = "dev"
	GitCommit = ""
	BuildTime = ""

	info := Get()
	if info == nil {
		t.Fatal("expected non-nil Info")
	}
	if info.Version != "dev" {
		t.Errorf("expected dev version, got %s", info.Version)
	}
	if info.IsRelease {
		t.Error("dev builds must not read as releases")
	}
}

func TestGet_LdflagsWin(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.3"
	GitCommit = "abc1234"
	BuildTime = "2026-08-01T10:00:00Z"

	info := Get()
	if info.Version != "1.2.3" {
		t.Errorf("expected 1.2.3, got %s", info.Version)
	}
	if info.GitCommit != "abc1234" {
		t.Errorf("expected abc1234, got %s", info.GitCommit)
	}
	if !info.IsRelease {
		t.Error("tagged version should read as release")
	}
	if info.BuildDate.IsZero() {
		t.Error("expected parsed build date")
	}
}

func TestShort(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.3"
	GitCommit = "abc1234"
	BuildTime = ""

	s := Short()
	if !strings.HasPrefix(s, "1.2.3-abc1234") {
		t.Errorf("unexpected short version %q", s)
	}
}
