package trace

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

// NextSeq numbers events in emission order across every tracer.
func NextSeq() uint64 { return seqCounter.Add(1) }

func nextSpanID() uint64 { return spanCounter.Add(1) }

// goid parses the current goroutine id out of the stack header
// "goroutine 7 [running]:". Concurrent CallMany spans are told apart by it.
func goid() uint64 {
	var buf [40]byte
	header := string(buf[:runtime.Stack(buf[:], false)])
	header = strings.TrimPrefix(header, "goroutine ")
	if i := strings.IndexByte(header, ' '); i > 0 {
		if id, err := strconv.ParseUint(header[:i], 10, 64); err == nil {
			return id
		}
	}
	return 0
}

// Span is one timed operation. A span begun on a disabled tracer, or at a
// scope the level filters out, is inert: every method is a no-op.
type Span struct {
	tracer Tracer
	id     uint64
	parent uint64
	gid    uint64
	scope  Scope
	name   string
	start  time.Time
	extra  map[string]string
}

func (s *Span) live() bool {
	return s != nil && s.tracer != nil && s.id != 0
}

// Begin emits the opening event of a span under parent (0 for a root span).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{}
	}
	s := &Span{
		tracer: t,
		id:     nextSpanID(),
		parent: parent,
		gid:    goid(),
		scope:  scope,
		name:   name,
		start:  time.Now(),
	}
	t.Emit(s.event(KindSpanBegin, s.start, ""))
	return s
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	ev := &Event{
		Time:     at,
		Seq:      NextSeq(),
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
	}
	if kind == KindSpanEnd {
		ev.Extra = s.extra
	}
	return ev
}

// WithExtra attaches key=value to the closing event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// End emits the closing event and reports how long the span ran.
func (s *Span) End(detail string) time.Duration {
	if !s.live() {
		return 0
	}
	now := time.Now()
	s.tracer.Emit(s.event(KindSpanEnd, now, detail))
	return now.Sub(s.start)
}

// EndErr closes the span with "ok" or with the error text.
func (s *Span) EndErr(err error) time.Duration {
	if err != nil {
		return s.End("error: " + err.Error())
	}
	return s.End("ok")
}

// ID is the span id, 0 for an inert span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: parent,
		GID:      goid(),
		Name:     name,
		Detail:   detail,
	})
}
