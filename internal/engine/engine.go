// Package engine is the code generation engine under the IR builder: it owns
// the type table, keeps one instruction stream per function, validates and
// "compiles" those streams, and executes them with an interpreter over a
// handle-segmented memory.
//
// Every handle handed out by the engine is a small integer. Zero is never a
// valid handle.
package engine

import (
	"fmt"
	"sync"

	"fortio.org/safecast"

	"jitkit/internal/layout"
	"jitkit/internal/trace"
	"jitkit/internal/types"
)

// ContextID identifies an engine context.
type ContextID uint32

// FuncID identifies a function inside the engine.
type FuncID uint32

// ValueID identifies a value inside one function.
type ValueID uint32

// LabelID identifies a label inside one function.
type LabelID uint32

const (
	NoContextID ContextID = 0
	NoFuncID    FuncID    = 0
	NoValueID   ValueID   = 0
	NoLabelID   LabelID   = 0
)

// Options configures an Engine.
type Options struct {
	Target   layout.Target
	MaxSteps int64 // per Apply; 0 means unlimited
	MaxDepth int   // nested calls; 0 means 1024
	Tracer   trace.Tracer
}

type contextState struct {
	id        ContextID
	funcs     []FuncID
	destroyed bool
}

// Engine is a single code generation engine. Building is single-cursor: at
// most one context may be building at a time. Compiled functions may be
// applied from any goroutine.
type Engine struct {
	Types  *types.Interner
	Layout *layout.LayoutEngine

	opts   Options
	tracer trace.Tracer
	mem    *Memory

	mu       sync.RWMutex
	contexts []*contextState
	funcs    []*Func
	building ContextID
	natives  map[string]NativeFunc
}

// New creates an engine for the target in opts.
func New(opts Options) *Engine {
	if opts.Target.PtrSize == 0 {
		opts.Target = layout.X86_64LinuxGNU()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1024
	}
	in := types.NewInterner()
	return &Engine{
		Types:    in,
		Layout:   layout.New(opts.Target, in),
		opts:     opts,
		tracer:   trace.Or(opts.Tracer),
		mem:      NewMemory(opts.Target.PtrSize),
		contexts: []*contextState{nil},
		funcs:    []*Func{nil},
		natives:  make(map[string]NativeFunc, 16),
	}
}

// Target returns the engine's target description.
func (e *Engine) Target() layout.Target {
	return e.opts.Target
}

// Memory returns the address space used by compiled code.
func (e *Engine) Memory() *Memory {
	return e.mem
}

// CreateContext allocates a fresh context.
func (e *Engine) CreateContext() ContextID {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := safecast.Conv[uint32](len(e.contexts))
	if err != nil {
		panic(fmt.Errorf("context table overflow: %w", err))
	}
	id := ContextID(n)
	e.contexts = append(e.contexts, &contextState{id: id})
	return id
}

func (e *Engine) context(id ContextID) (*contextState, error) {
	if id == NoContextID || int(id) >= len(e.contexts) {
		return nil, errorf(CodeUnknownContext, "unknown context %d", id)
	}
	c := e.contexts[id]
	if c == nil || c.destroyed {
		return nil, errorf(CodeUnknownContext, "context %d is destroyed", id)
	}
	return c, nil
}

// DestroyContext releases a context and every function it owns. A build in
// progress on the context is ended.
func (e *Engine) DestroyContext(id ContextID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.context(id)
	if err != nil {
		return err
	}
	if e.building == id {
		e.building = NoContextID
	}
	for _, fid := range c.funcs {
		if f := e.funcs[fid]; f != nil {
			f.destroyed = true
		}
	}
	c.destroyed = true
	return nil
}

// BuildStart moves the engine cursor onto ctx.
func (e *Engine) BuildStart(ctx ContextID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.context(ctx); err != nil {
		return err
	}
	if e.building != NoContextID {
		return errorf(CodeBuildState, "context %d is already building", e.building)
	}
	e.building = ctx
	return nil
}

// BuildEnd releases the cursor held by ctx.
func (e *Engine) BuildEnd(ctx ContextID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.building != ctx {
		return errorf(CodeBuildState, "context %d is not building", ctx)
	}
	e.building = NoContextID
	return nil
}

// Building returns the context that currently holds the cursor.
func (e *Engine) Building() ContextID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.building
}

// CreateFunction creates an empty function bound to sig inside ctx. ctx must
// be building.
func (e *Engine) CreateFunction(ctx ContextID, sig types.TypeID, name string) (FuncID, error) {
	info, ok := e.Types.SignatureInfo(sig)
	if !ok {
		return NoFuncID, errorf(CodeTypeMismatch, "type %s is not a signature", e.Types.String(sig))
	}
	retRep, err := e.RepOf(info.Result)
	if err != nil {
		return NoFuncID, err
	}
	if retRep.Class == ClassStruct {
		return NoFuncID, errorf(CodeUnsupported, "struct return types are not supported")
	}
	paramReps := make([]Rep, len(info.Params))
	for i, p := range info.Params {
		r, err := e.RepOf(p)
		if err != nil {
			return NoFuncID, err
		}
		if r.Class == ClassStruct || r.Class == ClassVoid {
			return NoFuncID, errorf(CodeUnsupported, "parameter %d of type %s is not supported", i, e.Types.String(p))
		}
		paramReps[i] = r
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.context(ctx)
	if err != nil {
		return NoFuncID, err
	}
	if e.building != ctx {
		return NoFuncID, errorf(CodeBuildState, "context %d is not building", ctx)
	}
	n, convErr := safecast.Conv[uint32](len(e.funcs))
	if convErr != nil {
		panic(fmt.Errorf("function table overflow: %w", convErr))
	}
	id := FuncID(n)
	if name == "" {
		name = fmt.Sprintf("f%d", id)
	}
	f := newFunc(id, ctx, name, sig, retRep)
	e.funcs = append(e.funcs, f)
	c.funcs = append(c.funcs, id)

	for i, p := range info.Params {
		v := f.addValue(valueInfo{Type: p, rep: paramReps[i], Kind: ValueParam, Param: i})
		f.params = append(f.params, v)
	}
	trace.Point(e.tracer, trace.ScopeFunction, "create_function", name+" "+e.Types.String(sig), 0)
	return id, nil
}

// Func resolves a function handle.
func (e *Engine) Func(id FuncID) (*Func, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.funcLocked(id)
}

func (e *Engine) funcLocked(id FuncID) (*Func, error) {
	if id == NoFuncID || int(id) >= len(e.funcs) || e.funcs[id] == nil {
		return nil, errorf(CodeUnknownFunction, "unknown function %d", id)
	}
	f := e.funcs[id]
	if f.destroyed {
		return nil, f.errorf(CodeUnknownFunction, "function belongs to a destroyed context")
	}
	return f, nil
}

// builder resolves a function that is about to receive instructions.
func (e *Engine) builder(id FuncID) (*Func, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, err := e.funcLocked(id)
	if err != nil {
		return nil, err
	}
	if f.compiled {
		return nil, f.errorf(CodeCompiled, "function is already compiled")
	}
	if e.building != f.Ctx {
		return nil, f.errorf(CodeBuildState, "context %d is not building", f.Ctx)
	}
	return f, nil
}

// SignatureOf returns the signature a function was created with.
func (e *Engine) SignatureOf(id FuncID) (types.TypeID, error) {
	f, err := e.Func(id)
	if err != nil {
		return types.NoTypeID, err
	}
	return f.Sig, nil
}

// IsCompiled reports whether the function has been compiled.
func (e *Engine) IsCompiled(id FuncID) bool {
	f, err := e.Func(id)
	return err == nil && f.compiled
}
