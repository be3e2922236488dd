package jit

import (
	"jitkit/internal/engine"
)

// Arithmetic, bitwise and comparison operators. Each emits exactly one
// engine instruction (plus any operand conversion the engine inserts) and
// returns a fresh temporary. The other operand may be a Value or a Go
// literal, which becomes a constant of the receiver's type.

func (v Value) binary(name string, op engine.Op, other any) Value {
	if !v.check(name) {
		return Value{}
	}
	o, ok := v.fn.operand(name, other, v.typ)
	if !ok {
		return Value{}
	}
	h, err := v.fn.rt.eng.InsnBinary(v.fn.id, op, v.handle, o.handle)
	return v.fn.wrap(name, h, err)
}

func (v Value) compare(name string, op engine.Op, other any) Value {
	if !v.check(name) {
		return Value{}
	}
	o, ok := v.fn.operand(name, other, v.typ)
	if !ok {
		return Value{}
	}
	h, err := v.fn.rt.eng.InsnCompare(v.fn.id, op, v.handle, o.handle)
	return v.fn.wrap(name, h, err)
}

func (v Value) unary(name string, op engine.Op) Value {
	if !v.check(name) {
		return Value{}
	}
	h, err := v.fn.rt.eng.InsnUnary(v.fn.id, op, v.handle)
	return v.fn.wrap(name, h, err)
}

func (v Value) Add(o any) Value { return v.binary("add", engine.OpAdd, o) }
func (v Value) Sub(o any) Value { return v.binary("sub", engine.OpSub, o) }
func (v Value) Mul(o any) Value { return v.binary("mul", engine.OpMul, o) }
func (v Value) Div(o any) Value { return v.binary("div", engine.OpDiv, o) }
func (v Value) Rem(o any) Value { return v.binary("rem", engine.OpRem, o) }
func (v Value) Pow(o any) Value { return v.binary("pow", engine.OpPow, o) }
func (v Value) And(o any) Value { return v.binary("and", engine.OpAnd, o) }
func (v Value) Or(o any) Value  { return v.binary("or", engine.OpOr, o) }
func (v Value) Xor(o any) Value { return v.binary("xor", engine.OpXor, o) }
func (v Value) Shl(o any) Value { return v.binary("shl", engine.OpShl, o) }
func (v Value) Shr(o any) Value { return v.binary("shr", engine.OpShr, o) }

// Not is the bitwise complement.
func (v Value) Not() Value { return v.unary("not", engine.OpNot) }

// Neg is the arithmetic negation.
func (v Value) Neg() Value { return v.unary("neg", engine.OpNeg) }

func (v Value) Lt(o any) Value { return v.compare("lt", engine.OpLt, o) }
func (v Value) Le(o any) Value { return v.compare("le", engine.OpLe, o) }
func (v Value) Gt(o any) Value { return v.compare("gt", engine.OpGt, o) }
func (v Value) Ge(o any) Value { return v.compare("ge", engine.OpGe, o) }
func (v Value) Eq(o any) Value { return v.compare("eq", engine.OpEq, o) }
func (v Value) Ne(o any) Value { return v.compare("ne", engine.OpNe, o) }

// Logical operators work on the 0/1 normalization of their operands and
// produce bools.

// LogicalNot is true when v is zero.
func (v Value) LogicalNot() Value { return v.ToNotBool() }

// LogicalAnd is true when both v and o are non-zero.
func (v Value) LogicalAnd(o any) Value { return v.logical("logical_and", engine.OpAnd, o) }

// LogicalOr is true when v or o is non-zero.
func (v Value) LogicalOr(o any) Value { return v.logical("logical_or", engine.OpOr, o) }

// LogicalXor is true when exactly one of v and o is non-zero.
func (v Value) LogicalXor(o any) Value { return v.logical("logical_xor", engine.OpXor, o) }

func (v Value) logical(name string, op engine.Op, other any) Value {
	if !v.check(name) {
		return Value{}
	}
	o, ok := v.fn.operand(name, other, v.fn.rt.Bool())
	if !ok {
		return Value{}
	}
	return v.ToBool().binary(name, op, o.ToBool()).ToBool()
}

// MathOp names a floating point intrinsic.
type MathOp = engine.MathOp

const (
	MathAcos  = engine.MathAcos
	MathAsin  = engine.MathAsin
	MathAtan  = engine.MathAtan
	MathAtan2 = engine.MathAtan2
	MathCeil  = engine.MathCeil
	MathCos   = engine.MathCos
	MathCosh  = engine.MathCosh
	MathExp   = engine.MathExp
	MathFloor = engine.MathFloor
	MathLog   = engine.MathLog
	MathLog10 = engine.MathLog10
	MathRint  = engine.MathRint
	MathRound = engine.MathRound
	MathSin   = engine.MathSin
	MathSinh  = engine.MathSinh
	MathSqrt  = engine.MathSqrt
	MathTan   = engine.MathTan
	MathTanh  = engine.MathTanh
)

// Math applies a floating point intrinsic. Integer operands are converted to
// float64; literals become float64 constants.
func (f *Function) Math(op MathOp, args ...any) Value {
	name := op.String()
	hs := make([]engine.ValueID, len(args))
	for i, a := range args {
		v, ok := f.operand(name, a, f.rt.Float64())
		if !ok {
			return Value{}
		}
		hs[i] = v.handle
	}
	h, err := f.rt.eng.InsnMath(f.id, op, hs)
	return f.wrap(name, h, err)
}
