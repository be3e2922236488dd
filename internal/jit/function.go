package jit

import (
	"io"

	"jitkit/internal/engine"
	"jitkit/internal/trace"
)

// Function is one function under construction or compiled. Builder calls
// that produce Values do not return errors: the first failure is kept as the
// function's error, reported by Err and returned by Compile.
type Function struct {
	ctx *Context
	rt  *Runtime
	id  engine.FuncID
	sig Type
	ret Type

	params    []Type
	paramReps []engine.Rep
	retRep    engine.Rep

	err      error
	breaks   []*Label
	compiled bool
}

func newFunction(c *Context, id engine.FuncID, sig Type) (*Function, error) {
	r := c.rt
	fn := &Function{ctx: c, rt: r, id: id, sig: sig, ret: sig.Return(), params: sig.Params()}
	fn.paramReps = make([]engine.Rep, len(fn.params))
	for i, p := range fn.params {
		rep, err := r.eng.RepOf(p.handle)
		if err != nil {
			return nil, fromEngine("function", err)
		}
		fn.paramReps[i] = rep
	}
	rep, err := r.eng.RepOf(fn.ret.handle)
	if err != nil {
		return nil, fromEngine("function", err)
	}
	fn.retRep = rep
	return fn, nil
}

// ID returns the engine handle.
func (f *Function) ID() engine.FuncID { return f.id }

// Context returns the owning context.
func (f *Function) Context() *Context { return f.ctx }

// Runtime returns the owning runtime.
func (f *Function) Runtime() *Runtime { return f.rt }

// Signature returns the function's signature type.
func (f *Function) Signature() Type { return f.sig }

// ReturnType returns the declared return type.
func (f *Function) ReturnType() Type { return f.ret }

// ParamCount is the number of declared parameters.
func (f *Function) ParamCount() int { return len(f.params) }

// Name returns the engine-side name of the function.
func (f *Function) Name() string {
	if ef, err := f.rt.eng.Func(f.id); err == nil {
		return ef.Name
	}
	return ""
}

// Compiled reports whether Compile has succeeded.
func (f *Function) Compiled() bool { return f.compiled }

// Err returns the first builder failure, if any.
func (f *Function) Err() error { return f.err }

// fail records err as the function's error unless one is already recorded.
func (f *Function) fail(err error) error {
	if err != nil && f.err == nil {
		f.err = err
		trace.Point(f.rt.tracer, trace.ScopeFunction, "builder_error", err.Error(), 0)
	}
	return err
}

// Arg returns parameter index.
func (f *Function) Arg(index int) (Value, error) {
	if index < 0 || index >= len(f.params) {
		return Value{}, errorf(KindInstruction, "arg", "index %d out of range [0, %d)", index, len(f.params))
	}
	h, err := f.rt.eng.ValueParam(f.id, index)
	if err != nil {
		return Value{}, fromEngine("arg", err)
	}
	return f.WrapValue(h)
}

// Args returns every parameter in order.
func (f *Function) Args() []Value {
	out := make([]Value, len(f.params))
	for i := range f.params {
		v, err := f.Arg(i)
		if err != nil {
			f.fail(err)
		}
		out[i] = v
	}
	return out
}

// Return emits a return of v, converted to the declared return type.
// Go literals are accepted and become constants of the return type.
func (f *Function) Return(v any) {
	val, ok := f.operand("return", v, f.ret)
	if !ok {
		return
	}
	f.fail(fromEngine("return", f.rt.eng.InsnReturn(f.id, val.handle)))
}

// ReturnVoid emits a return from a void function.
func (f *Function) ReturnVoid() {
	f.fail(fromEngine("return", f.rt.eng.InsnReturn(f.id, engine.NoValueID)))
}

// Compile finishes the function. A non-void function whose end can be
// reached without a return is rejected.
func (f *Function) Compile() error {
	if f.err != nil {
		return f.err
	}
	if f.compiled {
		return nil
	}
	span := trace.Begin(f.rt.tracer, trace.ScopeFunction, "compile", 0).WithExtra("func", f.Name())
	err := f.finish()
	span.EndErr(err)
	return err
}

func (f *Function) finish() error {
	reachable, err := f.rt.eng.InsnDefaultReturn(f.id)
	if err != nil {
		return f.fail(fromEngine("compile", err))
	}
	if reachable && f.ret.Kind() != TypeVoid {
		return f.fail(errorf(KindCompile, "compile", "%s can reach its end without returning %s", f.Name(), f.ret))
	}
	if err := f.rt.eng.Compile(f.id); err != nil {
		return f.fail(fromEngine("compile", err))
	}
	f.compiled = true
	return nil
}

// Dump writes the engine listing of the function.
func (f *Function) Dump(w io.Writer) error {
	return fromEngine("dump", f.rt.eng.Dump(w, f.id, engine.DumpOptions{Values: true}))
}

// Image exports the compiled function.
func (f *Function) Image() (*engine.Image, error) {
	if !f.compiled {
		return nil, errorf(KindCompile, "image", "%s is not compiled", f.Name())
	}
	img, err := f.rt.eng.ExportImage(f.id)
	return img, fromEngine("image", err)
}
