package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jitkit/internal/trace"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	tgt, err := cfg.TargetLayout()
	if err != nil {
		t.Fatalf("TargetLayout: %v", err)
	}
	if tgt.PtrSize != 8 {
		t.Fatalf("default pointer size = %d, want 8", tgt.PtrSize)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatalf("TraceConfig: %v", err)
	}
	if tc.Level != trace.LevelOff {
		t.Fatalf("default trace level = %v, want off", tc.Level)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[target]
triple = "i386-linux-gnu"

[trace]
level = "detail"
format = "ndjson"

[engine]
max_steps = 1000

[natives]
disabled = ["rand", "srand"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("Path = %q, want %q", cfg.Path, path)
	}
	tgt, err := cfg.TargetLayout()
	if err != nil {
		t.Fatalf("TargetLayout: %v", err)
	}
	if tgt.PtrSize != 4 {
		t.Fatalf("pointer size = %d, want 4", tgt.PtrSize)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatalf("TraceConfig: %v", err)
	}
	if tc.Level != trace.LevelDetail || tc.Format != trace.FormatNDJSON {
		t.Fatalf("trace config = %+v", tc)
	}
	// untouched keys keep their defaults
	if tc.Mode != trace.ModeStream || tc.RingSize != 4096 {
		t.Fatalf("defaults lost: %+v", tc)
	}
	if cfg.Engine.MaxSteps != 1000 || cfg.Engine.MaxDepth != 0 {
		t.Fatalf("engine = %+v", cfg.Engine)
	}
	if len(cfg.Natives.Disabled) != 2 || cfg.Natives.Disabled[1] != "srand" {
		t.Fatalf("natives = %v", cfg.Natives.Disabled)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[target\n", "failed to parse TOML"},
		{"unknown key", "[target]\narch = \"arm\"\n", "unknown keys: target.arch"},
		{"empty triple", "[target]\ntriple = \" \"\n", "[target].triple is empty"},
		{"bad triple", "[target]\ntriple = \"riscv\"\n", "unsupported target"},
		{"bad level", "[trace]\nlevel = \"loud\"\n", "[trace].level"},
		{"bad mode", "[trace]\nmode = \"file\"\n", "[trace].mode"},
		{"negative steps", "[engine]\nmax_steps = -1\n", "max_steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("Find = %q, want %q", got, want)
	}

	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Path != want {
		t.Fatalf("Discover path = %q, want %q", cfg.Path, want)
	}
}
