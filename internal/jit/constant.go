package jit

import (
	"fmt"

	"fortio.org/safecast"

	"jitkit/internal/engine"
)

// The engine creates integer constants through two slots: a native int for
// 8, 16 and 32-bit types and for intn/uintn, and a 64-bit slot for 64-bit
// types. Unsigned values above the signed range of the type's storage width
// are handed over as their signed reinterpretation and read back through the
// inverse, so every representable value survives the round trip.

// encodeUnsigned reinterprets u as a signed value of the given width.
func encodeUnsigned(u uint64, width int) int64 {
	if width >= 64 {
		return int64(u) //nolint:gosec // G115: two's complement reinterpretation.
	}
	if u > uint64(1)<<(width-1)-1 {
		return int64(u) - int64(1)<<width //nolint:gosec // G115: u fits in width bits.
	}
	return int64(u) //nolint:gosec // G115: below the signed maximum.
}

// decodeUnsigned inverts encodeUnsigned.
func decodeUnsigned(s int64, width int) uint64 {
	u := uint64(s) //nolint:gosec // G115: two's complement reinterpretation.
	if width >= 64 {
		return u
	}
	return u & (uint64(1)<<width - 1)
}

// intType reports whether t takes integer constants.
func intType(t Type) bool {
	return t.Kind() == TypeBool || t.IsInteger() || t.Kind() == TypePointer
}

// checkSigned verifies that n fits a signed integer of width bits.
func checkSigned(n int64, width int) error {
	var err error
	switch width {
	case 8:
		_, err = safecast.Conv[int8](n)
	case 16:
		_, err = safecast.Conv[int16](n)
	case 32:
		_, err = safecast.Conv[int32](n)
	}
	return err
}

// checkUnsigned verifies that u fits an unsigned integer of width bits.
func checkUnsigned(u uint64, width int) error {
	var err error
	switch width {
	case 8:
		_, err = safecast.Conv[uint8](u)
	case 16:
		_, err = safecast.Conv[uint16](u)
	case 32:
		_, err = safecast.Conv[uint32](u)
	}
	return err
}

func (f *Function) constSlot(op string, t Type, bits int64) Value {
	var (
		h   engine.ValueID
		err error
	)
	if t.Width() == 64 && !t.IsNative() {
		h, err = f.rt.eng.ConstLong(f.id, t.handle, bits)
	} else {
		var n int
		if n, err = safecast.Conv[int](bits); err == nil {
			h, err = f.rt.eng.ConstNint(f.id, t.handle, n)
		}
	}
	return f.wrap(op, h, err)
}

// ConstInt creates an integer constant of type t from a signed literal.
func (f *Function) ConstInt(t Type, n int64) Value {
	const op = "const"
	if !intType(t) {
		f.fail(errorf(KindType, op, "cannot create an integer constant of type %s", t))
		return Value{}
	}
	width := t.Width()
	if t.IsUnsigned() || t.Kind() == TypePointer {
		if n < 0 {
			f.fail(errorf(KindType, op, "%d is out of range for %s", n, t))
			return Value{}
		}
		return f.ConstUint(t, uint64(n))
	}
	if err := checkSigned(n, width); err != nil {
		f.fail(&Error{Kind: KindType, Op: op, Msg: fmt.Sprintf("%d is out of range for %s", n, t), Err: err})
		return Value{}
	}
	return f.constSlot(op, t, n)
}

// ConstUint creates an integer constant of type t from an unsigned literal.
func (f *Function) ConstUint(t Type, u uint64) Value {
	const op = "const"
	if !intType(t) {
		f.fail(errorf(KindType, op, "cannot create an integer constant of type %s", t))
		return Value{}
	}
	width := t.Width()
	if t.IsSigned() {
		n, err := safecast.Conv[int64](u)
		if err == nil {
			return f.ConstInt(t, n)
		}
		f.fail(&Error{Kind: KindType, Op: op, Msg: fmt.Sprintf("%d is out of range for %s", u, t), Err: err})
		return Value{}
	}
	if err := checkUnsigned(u, width); err != nil {
		f.fail(&Error{Kind: KindType, Op: op, Msg: fmt.Sprintf("%d is out of range for %s", u, t), Err: err})
		return Value{}
	}
	if width < 64 && u > uint64(1)<<width-1 {
		f.fail(errorf(KindType, op, "%d is out of range for %s", u, t))
		return Value{}
	}
	return f.constSlot(op, t, encodeUnsigned(u, width))
}

// ConstFloat creates a floating point constant of type t.
func (f *Function) ConstFloat(t Type, x float64) Value {
	const op = "const"
	if !t.IsFloat() {
		f.fail(errorf(KindType, op, "cannot create a float constant of type %s", t))
		return Value{}
	}
	var (
		h   engine.ValueID
		err error
	)
	if t.Width() == 32 {
		h, err = f.rt.eng.ConstFloat32(f.id, t.handle, float32(x))
	} else {
		h, err = f.rt.eng.ConstFloat64(f.id, t.handle, x)
	}
	return f.wrap(op, h, err)
}

// ConstBool creates a bool constant, 1 for true and 0 for false.
func (f *Function) ConstBool(b bool) Value {
	if b {
		return f.constSlot("const", f.rt.Bool(), 1)
	}
	return f.constSlot("const", f.rt.Bool(), 0)
}

// True is ConstBool(true).
func (f *Function) True() Value { return f.ConstBool(true) }

// False is ConstBool(false).
func (f *Function) False() Value { return f.ConstBool(false) }

// Null is the null void pointer.
func (f *Function) Null() Value {
	return f.constSlot("const", f.rt.VoidPtr(), 0)
}

// Const creates a constant of type t from a Go literal.
func (f *Function) Const(t Type, x any) Value {
	if t.IsFloat() {
		if fv, ok := toFloat(x); ok {
			return f.ConstFloat(t, fv)
		}
	}
	switch v := x.(type) {
	case bool:
		if t.Kind() == TypeBool {
			return f.ConstBool(v)
		}
		if v {
			return f.ConstInt(t, 1)
		}
		return f.ConstInt(t, 0)
	case int:
		return f.ConstInt(t, int64(v))
	case int8:
		return f.ConstInt(t, int64(v))
	case int16:
		return f.ConstInt(t, int64(v))
	case int32:
		return f.ConstInt(t, int64(v))
	case int64:
		return f.ConstInt(t, v)
	case uint:
		return f.ConstUint(t, uint64(v))
	case uint8:
		return f.ConstUint(t, uint64(v))
	case uint16:
		return f.ConstUint(t, uint64(v))
	case uint32:
		return f.ConstUint(t, uint64(v))
	case uint64:
		return f.ConstUint(t, v)
	case uintptr:
		return f.ConstUint(t, uint64(v))
	case float32, float64:
		fv, _ := toFloat(v)
		return f.ConstFloat(t, fv)
	default:
		f.fail(errorf(KindType, "const", "cannot create a %s constant from %T", t, x))
		return Value{}
	}
}

func toFloat(x any) (float64, bool) {
	switch v := x.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Reading constants back --------------------------------------------------------

func (v Value) constBits() (int64, bool) {
	if !v.Valid() || !v.IsConstant() || !intType(v.typ) {
		return 0, false
	}
	e := v.fn.rt.eng
	if v.typ.Width() == 64 && !v.typ.IsNative() {
		return e.ConstLongValue(v.fn.id, v.handle)
	}
	n, ok := e.ConstNintValue(v.fn.id, v.handle)
	return int64(n), ok
}

// ConstInt reads a signed integer constant.
func (v Value) ConstInt() (int64, bool) {
	bits, ok := v.constBits()
	if !ok {
		return 0, false
	}
	if v.typ.IsUnsigned() || v.typ.Kind() == TypePointer {
		u := decodeUnsigned(bits, v.typ.Width())
		n, err := safecast.Conv[int64](u)
		return n, err == nil
	}
	return bits, true
}

// ConstUint reads an unsigned integer constant.
func (v Value) ConstUint() (uint64, bool) {
	bits, ok := v.constBits()
	if !ok {
		return 0, false
	}
	if v.typ.IsUnsigned() || v.typ.Kind() == TypePointer {
		return decodeUnsigned(bits, v.typ.Width()), true
	}
	u, err := safecast.Conv[uint64](bits)
	return u, err == nil
}

// ConstFloat reads a floating point constant.
func (v Value) ConstFloat() (float64, bool) {
	if !v.Valid() || !v.typ.IsFloat() {
		return 0, false
	}
	e := v.fn.rt.eng
	if v.typ.Width() == 32 {
		x, ok := e.ConstFloat32Value(v.fn.id, v.handle)
		return float64(x), ok
	}
	return e.ConstFloat64Value(v.fn.id, v.handle)
}

// ConstBool reads a bool constant.
func (v Value) ConstBool() (bool, bool) {
	if v.kind != ValueBool {
		return false, false
	}
	bits, ok := v.constBits()
	return bits != 0, ok
}

// Numeric reads any constant as int64, uint64 or float64 depending on its
// type.
func (v Value) Numeric() (any, bool) {
	switch {
	case v.typ.IsFloat():
		return v.ConstFloat()
	case v.typ.IsUnsigned(), v.typ.Kind() == TypePointer:
		return v.ConstUint()
	case v.kind == ValueBool:
		return v.ConstBool()
	default:
		return v.ConstInt()
	}
}
