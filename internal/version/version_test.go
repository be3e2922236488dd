package version

import (
	"encoding/json"
	"testing"

	"github.com/fatih/color"
)

func withoutColor(t *testing.T) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })
}

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
	if got := Current().Version; got != Version {
		t.Errorf("Current().Version = %q, want %q", got, Version)
	}
}

func TestColored(t *testing.T) {
	withoutColor(t)
	tests := []string{
		"0.1.0",
		"0.1.0-dev",
		"1.2.3-rc.1+build.123",
		"not-a-version",
		"1.2",
	}
	for _, v := range tests {
		if got := Colored(v); got != v {
			t.Errorf("Colored(%q) without color = %q", v, got)
		}
	}
}

func TestPretty(t *testing.T) {
	withoutColor(t)
	info := Info{Version: "1.2.3", GitCommit: "abc123", GitMessage: "fix labels", BuildDate: "2024-01-15"}
	want := "jitkit 1.2.3\ncommit: abc123 (fix labels)\nbuilt:  2024-01-15"
	if got := info.Pretty(); got != want {
		t.Errorf("Pretty() = %q, want %q", got, want)
	}
	if got := (Info{Version: "0.1.0"}).Pretty(); got != "jitkit 0.1.0" {
		t.Errorf("Pretty() without build info = %q", got)
	}
}

func TestJSON(t *testing.T) {
	out, err := Info{Version: "1.0.0", BuildDate: "2024-01-15"}.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var back map[string]string
	if err := json.Unmarshal([]byte(out), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["version"] != "1.0.0" || back["build_date"] != "2024-01-15" {
		t.Fatalf("round trip = %v", back)
	}
	if _, ok := back["git_commit"]; ok {
		t.Fatalf("empty git_commit should be omitted: %s", out)
	}
}
