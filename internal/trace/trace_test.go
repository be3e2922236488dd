package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevelScopeFiltering(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeRuntime, false},
		{LevelError, ScopeRuntime, false},
		{LevelPhase, ScopeContext, true},
		{LevelPhase, ScopeFunction, false},
		{LevelDetail, ScopeFunction, true},
		{LevelDetail, ScopeInsn, false},
		{LevelDebug, ScopeInsn, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.scope); got != tc.want {
			t.Fatalf("%s.ShouldEmit(%s) = %v, want %v", tc.level, tc.scope, got, tc.want)
		}
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatText)

	span := Begin(tr, ScopeFunction, "compile", 0)
	span.WithExtra("func", "f0").End("ok")
	Point(tr, ScopeInsn, "insn:add", "", span.ID())

	out := buf.String()
	if !strings.Contains(out, "→ compile") || !strings.Contains(out, "← compile (ok) {func=f0}") {
		t.Fatalf("unexpected trace output:\n%s", out)
	}
	if strings.Contains(out, "insn:add") {
		t.Fatalf("insn events must be filtered at detail level:\n%s", out)
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatNDJSON)
	Point(tr, ScopeContext, "build_start", "ctx", 0)

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("invalid ndjson %q: %v", buf.String(), err)
	}
	if decoded["name"] != "build_start" || decoded["scope"] != "context" {
		t.Fatalf("unexpected event %v", decoded)
	}
}

func TestRingTracerKeepsLastEvents(t *testing.T) {
	tr := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(tr, ScopeInsn, name, "", 0)
	}
	events := tr.Snapshot()
	if len(events) != 2 || events[0].Name != "b" || events[1].Name != "c" {
		t.Fatalf("unexpected snapshot %+v", events)
	}
	if tr.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", tr.Dropped())
	}

	var buf bytes.Buffer
	if err := tr.Dump(&buf, FormatAuto); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if strings.Contains(buf.String(), "• a") || !strings.Contains(buf.String(), "• c") {
		t.Fatalf("unexpected dump:\n%s", buf.String())
	}
}

func TestRingOf(t *testing.T) {
	ring := NewRingTracer(4, LevelPhase)
	both := Tee(LevelPhase, NewStreamTracer(&bytes.Buffer{}, LevelPhase, FormatText), ring)
	if RingOf(both) != ring || RingOf(ring) != ring {
		t.Fatalf("ring not found")
	}
	if RingOf(Nop) != nil {
		t.Fatalf("nop tracer has no ring")
	}
}

func TestSpanEndErr(t *testing.T) {
	ring := NewRingTracer(8, LevelDetail)
	Begin(ring, ScopeFunction, "compile", 0).EndErr(nil)
	Begin(ring, ScopeFunction, "compile", 0).EndErr(errors.New("boom"))
	events := ring.Snapshot()
	if len(events) != 4 {
		t.Fatalf("want 4 events, got %d", len(events))
	}
	if events[1].Detail != "ok" || events[3].Detail != "error: boom" {
		t.Fatalf("unexpected details %q %q", events[1].Detail, events[3].Detail)
	}
	if events[0].SpanID != events[1].SpanID || events[0].SpanID == events[2].SpanID {
		t.Fatalf("span ids do not pair begin and end")
	}
}

func TestFilteredSpanIsInert(t *testing.T) {
	ring := NewRingTracer(8, LevelPhase)
	s := Begin(ring, ScopeInsn, "insn:add", 0)
	if s.ID() != 0 || s.WithExtra("k", "v").End("") != 0 {
		t.Fatalf("filtered span must be inert")
	}
	if len(ring.Snapshot()) != 0 {
		t.Fatalf("filtered span emitted events")
	}
}

func TestHeartbeat(t *testing.T) {
	ring := NewRingTracer(64, LevelPhase)
	h := StartHeartbeat(context.Background(), ring, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for len(ring.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	events := ring.Snapshot()
	if len(events) == 0 || events[0].Kind != KindHeartbeat {
		t.Fatalf("no heartbeat recorded: %+v", events)
	}
	if StartHeartbeat(context.Background(), Nop, time.Millisecond) != nil {
		t.Fatalf("heartbeat on a disabled tracer must be nil")
	}
}

func TestTeeFansOut(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRingTracer(8, LevelPhase)
	both := Tee(LevelPhase, NewStreamTracer(&buf, LevelPhase, FormatText), ring)
	Begin(both, ScopeRuntime, "runtime", 0).End("")
	if len(ring.Snapshot()) != 2 || buf.Len() == 0 {
		t.Fatalf("events must reach every tracer")
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.Enabled() {
		t.Fatalf("off level must produce a disabled tracer")
	}
	if FromContext(WithTracer(context.Background(), tr)) != tr {
		t.Fatalf("context round trip lost the tracer")
	}
}

func TestNewBothWritesAndKeeps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	tr, err := New(Config{Level: LevelPhase, Mode: ModeBoth, OutputPath: path, RingSize: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Point(tr, ScopeContext, "build_start", "", 0)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ring := RingOf(tr)
	if ring == nil || len(ring.Snapshot()) != 1 {
		t.Fatalf("mode both must keep events in a ring")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &decoded); err != nil {
		t.Fatalf(".ndjson output must pick ndjson, got %q: %v", data, err)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []StorageMode{ModeStream, ModeRing, ModeBoth} {
		got, err := ParseMode(strings.ToUpper(m.String()))
		if err != nil || got != m {
			t.Fatalf("ParseMode(%s) = %v, %v", m, got, err)
		}
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Fatalf("expected an error for an unknown mode")
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
	}{
		{"", FormatAuto},
		{"auto", FormatAuto},
		{" Text ", FormatText},
		{"json", FormatNDJSON},
		{"NDJSON", FormatNDJSON},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("ParseFormat(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("ParseFormat(xml) should fail")
	}
	if Format(9).String() != "unknown" {
		t.Fatalf("out of range format should print unknown")
	}
}

func TestTextIndentsChildEvents(t *testing.T) {
	ev := &Event{Seq: 3, Kind: KindPoint, Scope: ScopeInsn, Name: "ret", ParentID: 1,
		Extra: map[string]string{"b": "2", "a": "1"}}
	got := string(FormatEvent(ev, FormatText))
	want := "#3      insn       • ret {a=1, b=2}\n"
	if got != want {
		t.Fatalf("FormatEvent = %q, want %q", got, want)
	}
}
