package jit

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"jitkit/internal/engine"
	"jitkit/internal/trace"
)

// Context owns Functions. It is Idle until BuildStart, Building until the
// returned Build ends, and Destroyed after Destroy.
type Context struct {
	rt  *Runtime
	id  engine.ContextID
	uid uuid.UUID

	mu        sync.Mutex
	build     *Build
	destroyed bool
	funcs     []*Function
}

// NewContext creates an idle Context.
func (r *Runtime) NewContext() *Context {
	c := &Context{
		rt:  r,
		id:  r.eng.CreateContext(),
		uid: uuid.New(),
	}
	trace.Point(r.tracer, trace.ScopeContext, "context_create", c.uid.String(), 0)
	return c
}

// ID returns the identity used in traces.
func (c *Context) ID() uuid.UUID {
	return c.uid
}

// Runtime returns the owning runtime.
func (c *Context) Runtime() *Runtime {
	return c.rt
}

func (c *Context) String() string {
	return fmt.Sprintf("context %s", c.uid)
}

// Building reports whether the context holds the build lock.
func (c *Context) Building() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.build != nil
}

// Destroyed reports whether Destroy has run.
func (c *Context) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// Functions lists the functions created in the context.
func (c *Context) Functions() []*Function {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Function(nil), c.funcs...)
}

// BuildStart acquires the build lock and returns the capability token for
// build-scoped operations.
func (c *Context) BuildStart() (*Build, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, errorf(KindBuildLock, "build_start", "%s is destroyed", c)
	}
	if !c.rt.lock.acquire(c) {
		if c.build != nil {
			return nil, errorf(KindBuildLock, "build_start", "%s is already building", c)
		}
		if holder := c.rt.lock.Holder(); holder != nil {
			return nil, errorf(KindBuildLock, "build_start", "%s is building", holder)
		}
		return nil, errorf(KindBuildLock, "build_start", "another context is building")
	}
	if err := c.rt.eng.BuildStart(c.id); err != nil {
		c.rt.lock.release(c)
		return nil, fromEngine("build_start", err)
	}
	b := &Build{ctx: c}
	b.span = trace.Begin(c.rt.tracer, trace.ScopeContext, "build", 0).WithExtra("context", c.uid.String())
	c.build = b
	return b, nil
}

// BuildEnd ends the build in progress.
func (c *Context) BuildEnd() error {
	c.mu.Lock()
	b := c.build
	c.mu.Unlock()
	if b == nil {
		return errorf(KindBuildLock, "build_end", "%s is not building", c)
	}
	return b.End()
}

// Build runs body while holding the build lock. The lock is released on
// every exit path, a panicking body included.
func (c *Context) Build(body func(*Build) error) (err error) {
	b, err := c.BuildStart()
	if err != nil {
		return err
	}
	defer func() {
		if endErr := b.End(); err == nil && !c.Destroyed() {
			err = endErr
		}
	}()
	return body(b)
}

// BuildFunction builds and compiles one function in its own build.
func (c *Context) BuildFunction(params []Type, ret Type, body func(*Function) error) (*Function, error) {
	var fn *Function
	err := c.Build(func(b *Build) error {
		var err error
		fn, err = b.Function(params, ret, body)
		return err
	})
	return fn, err
}

// Destroy releases the context and its functions, ending a build in
// progress. Destroying twice is a no-op.
func (c *Context) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil
	}
	if b := c.build; b != nil {
		b.ended = true
		b.span.End("destroyed")
		c.build = nil
		c.rt.lock.release(c)
	}
	c.destroyed = true
	trace.Point(c.rt.tracer, trace.ScopeContext, "context_destroy", c.uid.String(), 0)
	return fromEngine("destroy", c.rt.eng.DestroyContext(c.id))
}

// Build is the capability token of one build of a Context.
type Build struct {
	ctx   *Context
	span  *trace.Span
	ended bool // guarded by ctx.mu
}

// Context returns the building context.
func (b *Build) Context() *Context {
	return b.ctx
}

// Active reports whether the build still holds the lock.
func (b *Build) Active() bool {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	return !b.ended
}

func (b *Build) check(op string) error {
	if !b.Active() {
		return errorf(KindBuildLock, op, "build of %s has ended", b.ctx)
	}
	return nil
}

// End releases the build lock.
func (b *Build) End() error {
	c := b.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.ended {
		return errorf(KindBuildLock, "build_end", "build of %s has already ended", c)
	}
	b.ended = true
	c.build = nil
	err := c.rt.eng.BuildEnd(c.id)
	c.rt.lock.release(c)
	b.span.End("")
	return fromEngine("build_end", err)
}

// Function creates a function with the given parameter and return types. When
// body is non-nil it is run on the new function, which is then compiled.
func (b *Build) Function(params []Type, ret Type, body func(*Function) error) (*Function, error) {
	sig, err := b.ctx.rt.Signature(params, ret, ABICdecl)
	if err != nil {
		return nil, err
	}
	fn, err := b.NewFunction("", sig)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return fn, nil
	}
	if err := body(fn); err != nil {
		return fn, err
	}
	return fn, fn.Compile()
}

// NewFunction creates an empty named function bound to sig.
func (b *Build) NewFunction(name string, sig Type) (*Function, error) {
	if err := b.check("function"); err != nil {
		return nil, err
	}
	if sig.Kind() != TypeSignature {
		return nil, errorf(KindType, "function", "%s is not a signature", sig)
	}
	id, err := b.ctx.rt.eng.CreateFunction(b.ctx.id, sig.handle, name)
	if err != nil {
		return nil, fromEngine("function", err)
	}
	return b.ctx.adopt(id, sig, false)
}

// LoadImage recreates a previously exported function in this build.
func (b *Build) LoadImage(img *engine.Image) (*Function, error) {
	if err := b.check("load_image"); err != nil {
		return nil, err
	}
	id, err := b.ctx.rt.eng.ImportImage(b.ctx.id, img)
	if err != nil {
		return nil, fromEngine("load_image", err)
	}
	sig, err := b.ctx.rt.eng.SignatureOf(id)
	if err != nil {
		return nil, fromEngine("load_image", err)
	}
	st, err := b.ctx.rt.WrapType(sig)
	if err != nil {
		return nil, err
	}
	return b.ctx.adopt(id, st, true)
}

func (c *Context) adopt(id engine.FuncID, sig Type, compiled bool) (*Function, error) {
	fn, err := newFunction(c, id, sig)
	if err != nil {
		return nil, err
	}
	fn.compiled = compiled
	c.mu.Lock()
	c.funcs = append(c.funcs, fn)
	c.mu.Unlock()
	return fn, nil
}
