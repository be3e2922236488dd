package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--color", "off"}, args...))
	err := root.Execute()
	return out.String(), err
}

// tempConfig writes a jitkit.toml whose cache lives under a temporary dir.
func tempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jitkit.toml")
	body := fmt.Sprintf("[cache]\ndir = %q\n", filepath.Join(dir, "cache"))
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunDemo(t *testing.T) {
	out, err := execute(t, "run", "gcd", "1071", "462")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "gcd(1071, 462) = 21") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRunUsesExampleArguments(t *testing.T) {
	for _, name := range demoNames() {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, "run", name)
			if err != nil {
				t.Fatalf("run %s: %v", name, err)
			}
			if out == "" {
				t.Fatalf("run %s printed nothing", name)
			}
		})
	}
}

func TestRunParallel(t *testing.T) {
	out, err := execute(t, "run", "--parallel", "2", "gcd", "12,18", "30,45")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"gcd(12,18) = 6", "gcd(30,45) = 15"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	if _, err := execute(t, "run", "gcd", "1"); err == nil {
		t.Fatal("expected an argument count error")
	}
	if _, err := execute(t, "run", "gcd", "x", "2"); err == nil {
		t.Fatal("expected a parse error")
	}
	if _, err := execute(t, "run", "nope"); err == nil {
		t.Fatal("expected an unknown demo error")
	}
}

func TestDemosListsEveryDemo(t *testing.T) {
	out, err := execute(t, "demos")
	if err != nil {
		t.Fatalf("demos: %v", err)
	}
	for _, name := range demoNames() {
		if !strings.Contains(out, name) {
			t.Fatalf("demo %s missing from %q", name, out)
		}
	}
}

func TestDump(t *testing.T) {
	out, err := execute(t, "dump", "abs")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out, "fn abs") || !strings.Contains(out, "[compiled]") {
		t.Fatalf("unexpected listing %q", out)
	}

	out, err = execute(t, "dump", "--llvm", "hello")
	if err != nil {
		t.Fatalf("dump --llvm: %v", err)
	}
	for _, want := range []string{"define", "@hello", "declare i32 @printf(...)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestNatives(t *testing.T) {
	out, err := execute(t, "natives")
	if err != nil {
		t.Fatalf("natives: %v", err)
	}
	if !strings.Contains(out, "printf") || !strings.Contains(out, "VARIADIC") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cfg := tempConfig(t)
	out, err := execute(t, "--config", cfg, "cache", "put", "gcd", "fact")
	if err != nil {
		t.Fatalf("cache put: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two keys, got %q", out)
	}
	gcdKey := strings.Fields(lines[0])[0]

	out, err = execute(t, "--config", cfg, "cache", "ls")
	if err != nil {
		t.Fatalf("cache ls: %v", err)
	}
	if !strings.Contains(out, "fact") || !strings.Contains(out, "gcd") {
		t.Fatalf("unexpected listing %q", out)
	}

	out, err = execute(t, "--config", cfg, "cache", "get", gcdKey, "30", "45")
	if err != nil {
		t.Fatalf("cache get by key: %v", err)
	}
	if !strings.Contains(out, "= 15") {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = execute(t, "--config", cfg, "cache", "get", "fact")
	if err != nil {
		t.Fatalf("cache get by label: %v", err)
	}
	if !strings.Contains(out, "= 3628800") {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := execute(t, "--config", cfg, "cache", "drop"); err != nil {
		t.Fatalf("cache drop: %v", err)
	}
	if _, err := execute(t, "--config", cfg, "cache", "get", "fact"); err == nil {
		t.Fatal("expected a miss after drop")
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got["version"] == "" {
		t.Fatalf("version missing in %q", out)
	}

	if _, err := execute(t, "version", "--format", "xml"); err == nil {
		t.Fatal("expected an unsupported format error")
	}
}

func TestBadColorMode(t *testing.T) {
	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"--color", "rainbow", "demos"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an invalid color error")
	}
}

func TestTraceStream(t *testing.T) {
	out, err := execute(t, "--trace", "-", "--trace-level", "detail", "run", "gcd", "12", "18")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"→ run", "← compile (ok)", "gcd(12, 18) = 6"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestTraceRingIsDumpedAtExit(t *testing.T) {
	out, err := execute(t, "--trace-level", "phase", "--trace-mode", "ring", "--trace-ring-size", "2", "run", "abs")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "older events dropped") || !strings.Contains(out, "← run (ok)") {
		t.Fatalf("unexpected ring dump:\n%s", out)
	}
}

func TestRunTimingsAndProfiles(t *testing.T) {
	dir := t.TempDir()
	heap := filepath.Join(dir, "heap.pprof")
	out, err := execute(t, "--mem-profile", heap, "run", "--timings", "sum", "10")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"sum(10) = 55", "build ", "call ", "total "} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if _, err := os.Stat(heap); err != nil {
		t.Fatalf("heap profile not written: %v", err)
	}
}
