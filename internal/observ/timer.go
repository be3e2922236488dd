// Package observ measures the phases of one demo invocation.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase is one measured step.
type Phase struct {
	Name string
	Dur  time.Duration
	Note string
}

// Timer collects phases in the order they finish.
type Timer struct {
	now    func() time.Time
	phases []Phase
}

// NewTimer returns an empty timer.
func NewTimer() *Timer { return &Timer{now: time.Now} }

// Start begins a phase; calling the returned func ends it with a note.
func (t *Timer) Start(name string) func(note string) {
	begin := t.now()
	return func(note string) {
		t.phases = append(t.phases, Phase{Name: name, Dur: t.now().Sub(begin), Note: note})
	}
}

// Phases returns the finished phases.
func (t *Timer) Phases() []Phase { return t.phases }

// Total sums every finished phase.
func (t *Timer) Total() time.Duration {
	var total time.Duration
	for _, p := range t.phases {
		total += p.Dur
	}
	return total
}

// PhaseReport is the serialised form of a Phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report is the serialised form of a Timer.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report converts the phases to milliseconds.
func (t *Timer) Report() Report {
	r := Report{TotalMS: millis(t.Total()), Phases: make([]PhaseReport, len(t.phases))}
	for i, p := range t.phases {
		r.Phases[i] = PhaseReport{Name: p.Name, DurationMS: millis(p.Dur), Note: p.Note}
	}
	return r
}

// Summary renders one line per phase followed by the total.
func (t *Timer) Summary() string {
	var sb strings.Builder
	for _, p := range t.phases {
		fmt.Fprintf(&sb, "%-8s %8.3f ms", p.Name, millis(p.Dur))
		if p.Note != "" {
			sb.WriteString("  " + p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%-8s %8.3f ms\n", "total", millis(t.Total()))
	return sb.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
