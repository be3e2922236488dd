package engine

import (
	"sort"

	"jitkit/internal/types"
)

// NativeFunc is a host implementation of an externally described function.
// It receives canonical argument bits and returns the canonical result bits.
type NativeFunc func(call *NativeCall) (uint64, error)

// NativeCall is one invocation of a native function.
type NativeCall struct {
	Name string
	Args []uint64
	Reps []Rep
	Ret  Rep
	Mem  *Memory
}

// Int returns argument i as a signed integer.
func (c *NativeCall) Int(i int) int64 {
	if c.Reps[i].Class == ClassFloat {
		return int64(BitsFloat(c.Reps[i], c.Args[i]))
	}
	return asInt64(c.Args[i])
}

// Uint returns argument i as an unsigned integer.
func (c *NativeCall) Uint(i int) uint64 {
	if c.Reps[i].Class == ClassFloat {
		return uint64(BitsFloat(c.Reps[i], c.Args[i]))
	}
	return c.Args[i]
}

// Float returns argument i as a float64.
func (c *NativeCall) Float(i int) float64 {
	switch c.Reps[i].Class {
	case ClassFloat:
		return BitsFloat(c.Reps[i], c.Args[i])
	case ClassInt:
		return float64(asInt64(c.Args[i]))
	default:
		return float64(c.Args[i])
	}
}

// String reads argument i as a NUL-terminated string.
func (c *NativeCall) String(i int) (string, error) {
	return c.Mem.ReadCString(c.Args[i])
}

// ReturnInt encodes n as the call's result.
func (c *NativeCall) ReturnInt(n int64) uint64 {
	if c.Ret.Class == ClassFloat {
		return FloatBits(c.Ret, float64(n))
	}
	return Normalize(c.Ret, asUint64(n))
}

// ReturnFloat encodes f as the call's result.
func (c *NativeCall) ReturnFloat(f float64) uint64 {
	if c.Ret.Class != ClassFloat {
		return Normalize(c.Ret, asUint64(int64(f)))
	}
	return FloatBits(c.Ret, f)
}

// RegisterNative binds name to a host implementation.
func (e *Engine) RegisterNative(name string, fn NativeFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.natives[name] = fn
}

// UnregisterNative removes a native binding.
func (e *Engine) UnregisterNative(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.natives, name)
}

// Natives lists the registered native names in order.
func (e *Engine) Natives() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.natives))
	for n := range e.natives {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) native(name string) (NativeFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.natives[name]
	return fn, ok
}

// InsnCallNative calls the native bound to name through sig. sig must be the
// exact call-site signature: variadic callers extend it first.
func (e *Engine) InsnCallNative(fn FuncID, name string, sig types.TypeID, args []ValueID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	info, ok := e.Types.SignatureInfo(sig)
	if !ok {
		return NoValueID, f.errorf(CodeTypeMismatch, "type %s is not a signature", e.Types.String(sig))
	}
	if info.Variadic() {
		return NoValueID, f.errorf(CodeUnsupported, "call site of %s needs a concrete signature", name)
	}
	cargs, err := e.callArgs(f, info, args)
	if err != nil {
		return NoValueID, err
	}
	ret, err := e.RepOf(info.Result)
	if err != nil {
		return NoValueID, err
	}
	dst, err := e.callResult(f, info.Result)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: OpCallNative, Dest: dst, Args: cargs, Native: name, Type: sig, rep: ret})
	return dst, nil
}
