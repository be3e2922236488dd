package observ

import (
	"strings"
	"testing"
	"time"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestTimerPhases(t *testing.T) {
	tm := &Timer{now: fakeClock(2 * time.Millisecond)}
	endBuild := tm.Start("build")
	endBuild("3 insns")
	tm.Start("call")("")

	phases := tm.Phases()
	if len(phases) != 2 || phases[0].Name != "build" || phases[1].Name != "call" {
		t.Fatalf("unexpected phases %+v", phases)
	}
	if phases[0].Dur != 2*time.Millisecond || tm.Total() != 4*time.Millisecond {
		t.Fatalf("unexpected durations %+v total %s", phases, tm.Total())
	}

	r := tm.Report()
	if r.TotalMS != 4 || r.Phases[0].Note != "3 insns" {
		t.Fatalf("unexpected report %+v", r)
	}

	s := tm.Summary()
	if !strings.Contains(s, "build       2.000 ms  3 insns") || !strings.Contains(s, "total       4.000 ms") {
		t.Fatalf("unexpected summary:\n%s", s)
	}
}

func TestEmptyTimer(t *testing.T) {
	tm := NewTimer()
	if tm.Total() != 0 || len(tm.Report().Phases) != 0 {
		t.Fatalf("empty timer must report nothing")
	}
}
