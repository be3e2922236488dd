package jit

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"jitkit/internal/engine"
	"jitkit/internal/trace"
	"jitkit/internal/types"
)

// Call runs the compiled function with Go arguments and converts the result
// back: int64 for signed integers, uint64 for unsigned integers and
// pointers, float64 for floats, bool for bool and nil for void. Strings are
// accepted for stringz parameters and live until the call returns.
//
// Call is safe for concurrent use once the function is compiled.
func (f *Function) Call(args ...any) (any, error) {
	if !f.compiled {
		return nil, errorf(KindCompile, "call", "%s is not compiled", f.Name())
	}
	if len(args) != len(f.params) {
		return nil, errorf(KindArgument, "call", "%s expects %d arguments, got %d", f.Name(), len(f.params), len(args))
	}
	mem := f.rt.eng.Memory()
	bits := make([]uint64, len(args))
	var temps []uint64
	defer func() {
		for _, a := range temps {
			_ = mem.Free(a)
		}
	}()
	for i, a := range args {
		if s, ok := a.(string); ok && f.params[i].Kind() == TypePointer {
			addr, err := mem.WriteCString(s)
			if err != nil {
				return nil, fromEngine("call", err)
			}
			temps = append(temps, addr)
			bits[i] = addr
			continue
		}
		b, err := marshalArg(f.paramReps[i], a)
		if err != nil {
			return nil, &Error{Kind: KindArgument, Op: "call", Msg: fmt.Sprintf("argument %d of %s", i, f.Name()), Err: err}
		}
		bits[i] = b
	}
	res, err := f.rt.eng.Apply(f.id, bits)
	if err != nil {
		return nil, fromEngine("call", err)
	}
	return unmarshalResult(f.retRep, f.ret.Kind() == TypeBool, res), nil
}

func marshalArg(r engine.Rep, a any) (uint64, error) {
	switch r.Class {
	case engine.ClassFloat:
		x, ok := toFloat(a)
		if !ok {
			return 0, fmt.Errorf("cannot pass %T as float", a)
		}
		return engine.FloatBits(r, x), nil
	case engine.ClassInt, engine.ClassUint, engine.ClassPointer:
		switch v := a.(type) {
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		case int:
			return engine.Normalize(r, uint64(v)), nil //nolint:gosec // G115: two's complement bits.
		case int8:
			return engine.Normalize(r, uint64(v)), nil //nolint:gosec // G115: two's complement bits.
		case int16:
			return engine.Normalize(r, uint64(v)), nil //nolint:gosec // G115: two's complement bits.
		case int32:
			return engine.Normalize(r, uint64(v)), nil //nolint:gosec // G115: two's complement bits.
		case int64:
			return engine.Normalize(r, uint64(v)), nil //nolint:gosec // G115: two's complement bits.
		case uint:
			return engine.Normalize(r, uint64(v)), nil
		case uint8:
			return engine.Normalize(r, uint64(v)), nil
		case uint16:
			return engine.Normalize(r, uint64(v)), nil
		case uint32:
			return engine.Normalize(r, uint64(v)), nil
		case uint64:
			return engine.Normalize(r, v), nil
		case uintptr:
			return engine.Normalize(r, uint64(v)), nil
		case float32, float64:
			x, _ := toFloat(v)
			if x != math.Trunc(x) {
				return 0, fmt.Errorf("cannot pass %v as an integer", x)
			}
			return engine.Normalize(r, uint64(int64(x))), nil //nolint:gosec // G115: two's complement bits.
		default:
			return 0, fmt.Errorf("cannot pass %T as an integer", a)
		}
	default:
		return 0, &Error{Kind: KindUnsupportedType, Op: "call", Msg: fmt.Sprintf("%s parameters cannot be passed from Go", r.Class)}
	}
}

func unmarshalResult(r engine.Rep, isBool bool, bits uint64) any {
	switch {
	case r.Class == engine.ClassVoid:
		return nil
	case isBool:
		return bits != 0
	case r.Class == engine.ClassInt:
		return int64(bits) //nolint:gosec // G115: sign-extended register.
	case r.Class == engine.ClassFloat:
		return engine.BitsFloat(r, bits)
	default:
		return bits
	}
}

// CallMany runs the function once per argument set, at most limit calls at
// a time. Results keep the order of argSets. The first failure cancels the
// calls not yet started.
func (f *Function) CallMany(ctx context.Context, argSets [][]any, limit int) ([]any, error) {
	span := trace.Begin(f.rt.tracer, trace.ScopeFunction, "call_many", trace.ParentFrom(ctx)).
		WithExtra("func", f.Name()).
		WithExtra("sets", strconv.Itoa(len(argSets)))

	out := make([]any, len(argSets))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, args := range argSets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := f.Call(args...)
			if err != nil {
				return fmt.Errorf("call %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	err := g.Wait()
	span.EndErr(err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CallOther emits a call of callee, which may be f itself. Arguments are
// converted to the callee's parameter types.
func (f *Function) CallOther(callee *Function, args ...any) Value {
	const op = "call"
	if callee == nil || callee.rt != f.rt {
		f.fail(errorf(KindInstruction, op, "callee belongs to another runtime"))
		return Value{}
	}
	if len(args) != len(callee.params) {
		f.fail(errorf(KindArgument, op, "%s expects %d arguments, got %d", callee.Name(), len(callee.params), len(args)))
		return Value{}
	}
	hs := make([]engine.ValueID, len(args))
	for i, a := range args {
		v, ok := f.operand(op, a, callee.params[i])
		if !ok {
			return Value{}
		}
		hs[i] = v.handle
	}
	h, err := f.rt.eng.InsnCall(f.id, callee.id, hs)
	return f.wrap(op, h, err)
}

// CallNative emits a call of a registered native. Trailing arguments of a
// variadic native are typed by their Go kind: integers as int32, floats as
// float64 and strings as stringz.
func (f *Function) CallNative(name string, args ...any) Value {
	const op = "call_native"
	n, ok := f.rt.natives.Lookup(name)
	if !ok {
		f.fail(errorf(KindInstruction, op, "unknown native %q", name))
		return Value{}
	}
	fixed := len(n.Params)
	if len(args) < fixed || (!n.Variadic && len(args) != fixed) {
		f.fail(errorf(KindArgument, op, "%s expects %d arguments, got %d", name, fixed, len(args)))
		return Value{}
	}
	hs := make([]engine.ValueID, len(args))
	for i := 0; i < fixed; i++ {
		v, ok := f.nativeArg(op, args[i], n.Params[i])
		if !ok {
			return Value{}
		}
		hs[i] = v.handle
	}
	sig := n.sig.handle
	if n.Variadic {
		extra := make([]engine.ValueID, 0, len(args)-fixed)
		for _, a := range args[fixed:] {
			v, ok := f.varArg(op, a)
			if !ok {
				return Value{}
			}
			hs[len(extra)+fixed] = v.handle
			extra = append(extra, v.handle)
		}
		ext, ok := f.rt.eng.Types.ExtendSignature(sig, f.valueTypes(op, extra))
		if !ok {
			f.fail(errorf(KindType, op, "%s has no signature", name))
			return Value{}
		}
		sig = ext
	}
	h, err := f.rt.eng.InsnCallNative(f.id, name, sig, hs)
	return f.wrap(op, h, err)
}

func (f *Function) valueTypes(op string, hs []engine.ValueID) []types.TypeID {
	out := make([]types.TypeID, len(hs))
	for i, h := range hs {
		ty, err := f.rt.eng.ValueType(f.id, h)
		if err != nil {
			f.fail(fromEngine(op, err))
		}
		out[i] = ty
	}
	return out
}

func (f *Function) nativeArg(op string, a any, t Type) (Value, bool) {
	if s, ok := a.(string); ok && t.Kind() == TypePointer {
		v := f.Stringz(s)
		return v, v.Valid()
	}
	return f.operand(op, a, t)
}

func (f *Function) varArg(op string, a any) (Value, bool) {
	switch x := a.(type) {
	case Value:
		return f.operand(op, x, x.typ)
	case string:
		v := f.Stringz(x)
		return v, v.Valid()
	case float32, float64:
		return f.operand(op, x, f.rt.Float64())
	default:
		return f.operand(op, x, f.rt.Int32())
	}
}
