package engine

import (
	"math"
)

func boolBits(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// evalBinary computes a op b in rep r. Operands are already canonical in r.
func evalBinary(op Op, r Rep, a, b uint64) (uint64, error) {
	switch r.Class {
	case ClassFloat:
		x, y := BitsFloat(r, a), BitsFloat(r, b)
		var z float64
		switch op {
		case OpAdd:
			z = x + y
		case OpSub:
			z = x - y
		case OpMul:
			z = x * y
		case OpDiv:
			z = x / y
		case OpRem:
			z = math.Mod(x, y)
		case OpPow:
			z = math.Pow(x, y)
		default:
			return 0, errorf(CodeUnsupported, "%s on float", op)
		}
		if r.Size == 4 {
			z = float64(float32(z))
		}
		return FloatBits(r, z), nil

	case ClassInt:
		x, y := asInt64(a), asInt64(b)
		var z int64
		switch op {
		case OpAdd:
			z = x + y
		case OpSub:
			z = x - y
		case OpMul:
			z = x * y
		case OpDiv:
			if y == 0 {
				return 0, errorf(CodeDivideByZero, "integer division by zero")
			}
			z = x / y
		case OpRem:
			if y == 0 {
				return 0, errorf(CodeDivideByZero, "integer division by zero")
			}
			z = x % y
		case OpPow:
			z = powInt(x, y)
		case OpAnd:
			z = x & y
		case OpOr:
			z = x | y
		case OpXor:
			z = x ^ y
		case OpShl:
			z = x << shiftCount(b, r)
		case OpShr:
			z = x >> shiftCount(b, r)
		default:
			return 0, errorf(CodeUnsupported, "%s on int", op)
		}
		return Normalize(r, asUint64(z)), nil

	default: // ClassUint, ClassPointer
		var z uint64
		switch op {
		case OpAdd:
			z = a + b
		case OpSub:
			z = a - b
		case OpMul:
			z = a * b
		case OpDiv:
			if b == 0 {
				return 0, errorf(CodeDivideByZero, "integer division by zero")
			}
			z = a / b
		case OpRem:
			if b == 0 {
				return 0, errorf(CodeDivideByZero, "integer division by zero")
			}
			z = a % b
		case OpPow:
			z = powUint(a, b)
		case OpAnd:
			z = a & b
		case OpOr:
			z = a | b
		case OpXor:
			z = a ^ b
		case OpShl:
			z = a << shiftCount(b, r)
		case OpShr:
			z = a >> shiftCount(b, r)
		default:
			return 0, errorf(CodeUnsupported, "%s on uint", op)
		}
		return Normalize(r, z), nil
	}
}

// shiftCount masks the count to the operand width, the way x86 shifts do.
func shiftCount(b uint64, r Rep) uint {
	return uint(b & uint64(r.Bits()-1)) //nolint:gosec // G115: masked below 64.
}

func powInt(x, y int64) int64 {
	if y < 0 {
		switch x {
		case 1:
			return 1
		case -1:
			if y%2 == 0 {
				return 1
			}
			return -1
		default:
			return 0
		}
	}
	return asInt64(powUint(asUint64(x), asUint64(y)))
}

func powUint(x, y uint64) uint64 {
	result := uint64(1)
	for y > 0 {
		if y&1 == 1 {
			result *= x
		}
		x *= x
		y >>= 1
	}
	return result
}

func evalUnary(op Op, r Rep, a uint64) uint64 {
	if r.Class == ClassFloat {
		// only neg reaches here for floats
		return FloatBits(r, -BitsFloat(r, a))
	}
	switch op {
	case OpNeg:
		return Normalize(r, -a)
	default:
		return Normalize(r, ^a)
	}
}

func evalCompare(op Op, r Rep, a, b uint64) uint64 {
	var cmp int
	switch r.Class {
	case ClassFloat:
		x, y := BitsFloat(r, a), BitsFloat(r, b)
		if math.IsNaN(x) || math.IsNaN(y) {
			return boolBits(op == OpNe)
		}
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	case ClassInt:
		x, y := asInt64(a), asInt64(b)
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	default:
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	}
	switch op {
	case OpLt:
		return boolBits(cmp < 0)
	case OpLe:
		return boolBits(cmp <= 0)
	case OpGt:
		return boolBits(cmp > 0)
	case OpGe:
		return boolBits(cmp >= 0)
	case OpEq:
		return boolBits(cmp == 0)
	default:
		return boolBits(cmp != 0)
	}
}

// truthy reports whether a canonical scalar is non-zero.
func truthy(r Rep, a uint64) bool {
	if r.Class == ClassFloat {
		return BitsFloat(r, a) != 0
	}
	return a != 0
}

// convertBits converts a canonical scalar between reps. Narrowing truncates,
// widening sign- or zero-extends by the source class.
func convertBits(from, to Rep, a uint64) uint64 {
	switch {
	case from.Class == ClassFloat && to.Class == ClassFloat:
		return FloatBits(to, BitsFloat(from, a))
	case from.Class == ClassFloat:
		f := BitsFloat(from, a)
		if to.Class == ClassInt || f < 0 {
			return Normalize(to, asUint64(int64(f)))
		}
		return Normalize(to, uint64(f))
	case to.Class == ClassFloat:
		if from.Class == ClassInt {
			return FloatBits(to, float64(asInt64(a)))
		}
		return FloatBits(to, float64(a))
	default:
		return Normalize(to, a)
	}
}

func evalMath(op MathOp, r Rep, args []uint64) uint64 {
	x := BitsFloat(r, args[0])
	var z float64
	switch op {
	case MathAcos:
		z = math.Acos(x)
	case MathAsin:
		z = math.Asin(x)
	case MathAtan:
		z = math.Atan(x)
	case MathAtan2:
		z = math.Atan2(x, BitsFloat(r, args[1]))
	case MathCeil:
		z = math.Ceil(x)
	case MathCos:
		z = math.Cos(x)
	case MathCosh:
		z = math.Cosh(x)
	case MathExp:
		z = math.Exp(x)
	case MathFloor:
		z = math.Floor(x)
	case MathLog:
		z = math.Log(x)
	case MathLog10:
		z = math.Log10(x)
	case MathRint:
		z = math.RoundToEven(x)
	case MathRound:
		z = math.Round(x)
	case MathSin:
		z = math.Sin(x)
	case MathSinh:
		z = math.Sinh(x)
	case MathSqrt:
		z = math.Sqrt(x)
	case MathTan:
		z = math.Tan(x)
	case MathTanh:
		z = math.Tanh(x)
	}
	return FloatBits(r, z)
}
