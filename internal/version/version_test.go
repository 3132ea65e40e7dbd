package version

import (
	"testing"

	"github.com/fatih/color"
)

func override(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	Version, GitCommit, BuildDate = v, commit, date
	t.Cleanup(func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
	})
}

func plain(t *testing.T) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })
}

func TestDefaultVersion(t *testing.T) {
	if Version == "" {
		t.Fatal("Version should have a default value")
	}
}

func TestString(t *testing.T) {
	plain(t)
	tests := []struct {
		version, commit, date string
		want                  string
	}{
		{"0.1.0-dev", "", "", "hbind 0.1.0-dev"},
		{"1.2.3", "1234567890abcdef1234", "", "hbind 1.2.3 (1234567890ab)"},
		{"1.2.3-rc.1", "abc123", "2026-01-15", "hbind 1.2.3-rc.1 (abc123) built 2026-01-15"},
		{"nightly", "", "", "hbind nightly"},
	}
	for _, tt := range tests {
		override(t, tt.version, tt.commit, tt.date)
		if got := String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestColoredKeepsText(t *testing.T) {
	override(t, "2.0.1-beta", "", "")
	orig := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = orig })
	got := Colored()
	if got == Version {
		t.Fatalf("no highlighting in %q", got)
	}
	color.NoColor = true
	if got := Colored(); got != "2.0.1-beta" {
		t.Fatalf("plain Colored() = %q", got)
	}
}
