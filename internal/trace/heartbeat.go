package trace

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Heartbeat emits a liveness event at a fixed interval. Heartbeats without
// matching span ends point at a function spinning in the interpreter.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartHeartbeat starts beating until ctx is done or Stop is called. It
// returns nil when t is disabled or interval is not positive; Stop on nil
// is a no-op.
func StartHeartbeat(ctx context.Context, t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Heartbeat{cancel: cancel, done: make(chan struct{})}
	go h.beat(ctx, t, interval)
	return h
}

func (h *Heartbeat) beat(ctx context.Context, t Tracer, interval time.Duration) {
	defer close(h.done)
	tick := time.NewTicker(interval)
	defer tick.Stop()
	start := time.Now()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			t.Emit(&Event{
				Time:   now,
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeRuntime,
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d up=%s goroutines=%d", n, now.Sub(start).Round(time.Millisecond), runtime.NumGoroutine()),
			})
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
	<-h.done
}
