package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHeapProfileWrittenOnStop(t *testing.T) {
	heap := filepath.Join(t.TempDir(), "heap.pprof")
	s, err := Start(Options{Heap: heap})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Active() {
		t.Fatalf("session with a heap path must be active")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if st, err := os.Stat(heap); err != nil || st.Size() == 0 {
		t.Fatalf("heap profile missing: %v", err)
	}
}

func TestCPUProfile(t *testing.T) {
	cpu := filepath.Join(t.TempDir(), "cpu.pprof")
	s, err := Start(Options{CPU: cpu})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := os.Stat(cpu); err != nil {
		t.Fatalf("cpu profile missing: %v", err)
	}
}

func TestBadPathFails(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "cpu.pprof")
	if _, err := Start(Options{CPU: bad}); err == nil {
		t.Fatalf("expected an error for %s", bad)
	}
}

func TestEmptySessionIsInactive(t *testing.T) {
	s, err := Start(Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Active() {
		t.Fatalf("no outputs requested")
	}
	var nilSession *Session
	if nilSession.Active() || nilSession.Stop() != nil {
		t.Fatalf("nil session must be inert")
	}
}
