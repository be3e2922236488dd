package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	"jitkit/internal/types"
)

// Class is the machine-level category of a value.
type Class uint8

const (
	ClassVoid Class = iota
	ClassInt
	ClassUint
	ClassFloat
	ClassPointer
	ClassStruct
)

func (c Class) String() string {
	switch c {
	case ClassVoid:
		return "void"
	case ClassInt:
		return "int"
	case ClassUint:
		return "uint"
	case ClassFloat:
		return "float"
	case ClassPointer:
		return "ptr"
	case ClassStruct:
		return "struct"
	default:
		return fmt.Sprintf("Class(%d)", c)
	}
}

// Rep is the runtime representation of a type: its class and storage size.
// The interpreter only ever looks at Reps, never at the type table, so
// compiled functions can run concurrently with further type creation.
type Rep struct {
	Class Class
	Size  int
}

// Scalar reports whether values of the rep live in a single register.
func (r Rep) Scalar() bool {
	return r.Class != ClassVoid && r.Class != ClassStruct
}

// Bits is the storage width in bits.
func (r Rep) Bits() int {
	return r.Size * 8
}

// RepOf resolves the representation of a type on the engine's target.
func (e *Engine) RepOf(ty types.TypeID) (Rep, error) {
	under := e.Types.Underlying(ty)
	tt, ok := e.Types.Lookup(under)
	if !ok {
		return Rep{}, errorf(CodeUnknownType, "unknown type#%d", ty)
	}
	size, err := e.Layout.SizeOf(under)
	if err != nil {
		return Rep{}, &EngineError{Code: CodeUnsupported, Message: err.Error(), Err: err}
	}
	switch tt.Kind {
	case types.KindVoid:
		return Rep{Class: ClassVoid}, nil
	case types.KindInt:
		return Rep{Class: ClassInt, Size: size}, nil
	case types.KindUint:
		return Rep{Class: ClassUint, Size: size}, nil
	case types.KindFloat:
		return Rep{Class: ClassFloat, Size: size}, nil
	case types.KindPointer, types.KindSignature:
		return Rep{Class: ClassPointer, Size: size}, nil
	case types.KindStruct:
		return Rep{Class: ClassStruct, Size: size}, nil
	default:
		return Rep{}, errorf(CodeUnsupported, "type %s has no runtime representation", e.Types.String(ty))
	}
}

// Normalize brings raw bits into the canonical register form of r: integers
// are truncated to their width and sign- or zero-extended, float32 keeps only
// its low 32 bits.
func Normalize(r Rep, bits uint64) uint64 {
	switch r.Class {
	case ClassInt:
		return signExtend(bits, r.Bits())
	case ClassUint, ClassPointer:
		return bits & maskForWidth(r.Bits())
	case ClassFloat:
		if r.Size == 4 {
			return bits & 0xFFFF_FFFF
		}
		return bits
	default:
		return bits
	}
}

func maskForWidth(bits int) uint64 {
	if bits <= 0 || bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

func signExtend(v uint64, bits int) uint64 {
	if bits <= 0 || bits >= 64 {
		return v
	}
	v &= maskForWidth(bits)
	sign := uint64(1) << uint(bits-1)
	if v&sign != 0 {
		v |= ^maskForWidth(bits)
	}
	return v
}

func asUint64(v int64) uint64 {
	return uint64(v) //nolint:gosec // G115: intentional bit-pattern reinterpretation for unsigned ops.
}

func asInt64(v uint64) int64 {
	return int64(v) //nolint:gosec // G115: intentional bit-pattern reinterpretation for fixed-width ints.
}

// FloatBits encodes f in the canonical form of a float rep.
func FloatBits(r Rep, f float64) uint64 {
	if r.Size == 4 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

// BitsFloat decodes a canonical float register.
func BitsFloat(r Rep, bits uint64) float64 {
	if r.Size == 4 {
		return float64(math.Float32frombits(uint32(bits))) //nolint:gosec // G115: low half holds the float32 bits.
	}
	return math.Float64frombits(bits)
}

// encodeScalar writes the canonical bits of a scalar into dst (little endian).
func encodeScalar(r Rep, bits uint64, dst []byte) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], bits)
	copy(dst[:r.Size], buf[:r.Size])
}

// decodeScalar reads a scalar of rep r from src.
func decodeScalar(r Rep, src []byte) uint64 {
	var buf [8]byte
	copy(buf[:r.Size], src[:r.Size])
	return Normalize(r, binary.LittleEndian.Uint64(buf[:]))
}
