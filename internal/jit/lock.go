package jit

import "sync/atomic"

// BuildLock admits at most one building Context per Runtime. The engine keeps
// a single compilation cursor, so every Context of a Runtime shares it.
type BuildLock struct {
	current atomic.Pointer[Context]
}

func (l *BuildLock) acquire(c *Context) bool {
	return l.current.CompareAndSwap(nil, c)
}

func (l *BuildLock) release(c *Context) bool {
	return l.current.CompareAndSwap(c, nil)
}

// Holder returns the Context currently building, or nil.
func (l *BuildLock) Holder() *Context {
	return l.current.Load()
}

// Held reports whether some Context is building.
func (l *BuildLock) Held() bool {
	return l.current.Load() != nil
}
