// Package jit is a typed IR builder over the code generation engine.
//
// A Runtime owns one engine, its BuildLock and its native registry. Contexts
// take turns building: while a Context holds the lock it creates Functions,
// and each Function turns builder calls (arithmetic, memory access,
// structured control flow) into engine instructions, one call at a time.
// Compiled Functions can be called from any goroutine.
//
// Construction is single-threaded: types, values and instructions must be
// created from one goroutine at a time.
package jit

import (
	"io"
	"math/rand/v2"
	"os"
	"sync"

	"jitkit/internal/engine"
	"jitkit/internal/layout"
	"jitkit/internal/trace"
)

type options struct {
	stdout   io.Writer
	tracer   trace.Tracer
	target   layout.Target
	maxSteps int64
	maxDepth int
	disabled []string
	seed     uint64
}

// Option configures a Runtime.
type Option func(*options)

// WithStdout redirects the output of the print natives.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithTracer attaches a tracer to the runtime and its engine.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithTarget selects the engine target.
func WithTarget(t layout.Target) Option {
	return func(o *options) { o.target = t }
}

// WithMaxSteps bounds the instructions executed per call. 0 is unlimited.
func WithMaxSteps(n int64) Option {
	return func(o *options) { o.maxSteps = n }
}

// WithMaxDepth bounds nested calls of compiled code.
func WithMaxDepth(n int) Option {
	return func(o *options) { o.maxDepth = n }
}

// WithoutNatives removes natives from the default registry.
func WithoutNatives(names ...string) Option {
	return func(o *options) { o.disabled = append(o.disabled, names...) }
}

// WithSeed seeds the rand native.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// Runtime owns an engine and everything that shares its build cursor.
type Runtime struct {
	eng     *engine.Engine
	lock    BuildLock
	natives *NativeRegistry
	tracer  trace.Tracer

	outMu  sync.Mutex
	stdout io.Writer

	randMu sync.Mutex
	rng    *rand.Rand
}

// New creates a Runtime with the default native registry.
func New(opts ...Option) *Runtime {
	o := options{stdout: os.Stdout, seed: 1}
	for _, opt := range opts {
		opt(&o)
	}
	tracer := trace.Or(o.tracer)
	r := &Runtime{
		eng: engine.New(engine.Options{
			Target:   o.target,
			MaxSteps: o.maxSteps,
			MaxDepth: o.maxDepth,
			Tracer:   tracer,
		}),
		tracer: tracer,
		stdout: o.stdout,
		rng:    rand.New(rand.NewPCG(o.seed, o.seed)), //nolint:gosec // G404: rand native, not crypto.
	}
	r.natives = newNativeRegistry(r)
	registerLibc(r)
	for _, name := range o.disabled {
		r.natives.Remove(name)
	}
	trace.Point(tracer, trace.ScopeRuntime, "runtime_new", r.eng.Target().Triple, 0)
	return r
}

// Engine exposes the underlying code generation engine.
func (r *Runtime) Engine() *engine.Engine {
	return r.eng
}

// Lock returns the runtime's build lock.
func (r *Runtime) Lock() *BuildLock {
	return &r.lock
}

// Current returns the Context holding the build lock, or nil.
func (r *Runtime) Current() *Context {
	return r.lock.Holder()
}

// Natives returns the native function registry.
func (r *Runtime) Natives() *NativeRegistry {
	return r.natives
}

// Tracer returns the runtime's tracer.
func (r *Runtime) Tracer() trace.Tracer {
	return r.tracer
}

// Stdout returns the writer the print natives use.
func (r *Runtime) Stdout() io.Writer {
	return r.stdout
}

func (r *Runtime) seed(s uint64) {
	r.randMu.Lock()
	r.rng = rand.New(rand.NewPCG(s, s)) //nolint:gosec // G404: rand native, not crypto.
	r.randMu.Unlock()
}

func (r *Runtime) write(p []byte) (int, error) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	return r.stdout.Write(p)
}
