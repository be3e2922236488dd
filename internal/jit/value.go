package jit

import (
	"fmt"

	"jitkit/internal/engine"
)

// ValueKind is the variant of a Value, decided by its type.
type ValueKind uint8

const (
	ValueInvalid ValueKind = iota
	ValuePrimitive
	ValueBool
	ValuePointer
	ValueStruct
	ValueVoid
)

func (k ValueKind) String() string {
	switch k {
	case ValuePrimitive:
		return "primitive"
	case ValueBool:
		return "bool"
	case ValuePointer:
		return "pointer"
	case ValueStruct:
		return "struct"
	case ValueVoid:
		return "void"
	default:
		return "invalid"
	}
}

// Value is a typed handle to an engine value of one Function. Values are
// only produced by Function.WrapValue.
type Value struct {
	fn     *Function
	handle engine.ValueID
	kind   ValueKind
	typ    Type
}

// WrapValue classifies an engine value handle by its type.
func (f *Function) WrapValue(h engine.ValueID) (Value, error) {
	ty, err := f.rt.eng.ValueType(f.id, h)
	if err != nil {
		return Value{}, fromEngine("wrap", err)
	}
	t, err := f.rt.WrapType(ty)
	if err != nil {
		return Value{}, err
	}
	return Value{fn: f, handle: h, kind: valueKindOf(t), typ: t}, nil
}

func valueKindOf(t Type) ValueKind {
	switch t.Kind() {
	case TypeStruct:
		return ValueStruct
	case TypePointer:
		return ValuePointer
	case TypeVoid:
		return ValueVoid
	case TypeBool:
		return ValueBool
	default:
		return ValuePrimitive
	}
}

// wrap turns an emitter result into a Value, recording any failure.
func (f *Function) wrap(op string, h engine.ValueID, err error) Value {
	if err != nil {
		f.fail(fromEngine(op, err))
		return Value{}
	}
	v, err := f.WrapValue(h)
	if err != nil {
		f.fail(err)
		return Value{}
	}
	return v
}

// Valid reports whether v refers to an engine value.
func (v Value) Valid() bool { return v.fn != nil && v.handle != engine.NoValueID }

// Kind returns the variant of v.
func (v Value) Kind() ValueKind { return v.kind }

// Type returns the type of v.
func (v Value) Type() Type { return v.typ }

// Handle returns the engine handle.
func (v Value) Handle() engine.ValueID { return v.handle }

// Function returns the function v belongs to.
func (v Value) Function() *Function { return v.fn }

func (v Value) String() string {
	if !v.Valid() {
		return "<invalid value>"
	}
	return fmt.Sprintf("v%d:%s", v.handle, v.typ)
}

// IsConstant reports whether v was created by a constant constructor.
func (v Value) IsConstant() bool {
	return v.Valid() && v.fn.rt.eng.IsConstant(v.fn.id, v.handle)
}

// check records an error when v cannot be used as an operand.
func (v Value) check(op string) bool {
	if v.fn == nil {
		return false
	}
	if !v.Valid() {
		v.fn.fail(errorf(KindInstruction, op, "invalid value"))
		return false
	}
	return true
}

// operand turns x into a Value of f. Values pass through; Go literals become
// constants of type like.
func (f *Function) operand(op string, x any, like Type) (Value, bool) {
	switch v := x.(type) {
	case Value:
		if !v.Valid() {
			f.fail(errorf(KindInstruction, op, "invalid operand"))
			return Value{}, false
		}
		if v.fn != f {
			f.fail(errorf(KindInstruction, op, "operand %s belongs to another function", v))
			return Value{}, false
		}
		return v, true
	case nil:
		f.fail(errorf(KindInstruction, op, "missing operand"))
		return Value{}, false
	}
	if like.Kind() == TypePointer || like.Kind() == TypeStruct || like.Kind() == TypeVoid {
		like = f.rt.Intn()
		if _, isFloat := x.(float64); isFloat {
			like = f.rt.Float64()
		}
	}
	c := f.Const(like, x)
	return c, c.Valid()
}

// Declare allocates an uninitialized local of type t.
func (f *Function) Declare(t Type) Value {
	if !t.Valid() {
		f.fail(errorf(KindType, "declare", "invalid type"))
		return Value{}
	}
	h, err := f.rt.eng.ValueCreate(f.id, t.handle)
	return f.wrap("declare", h, err)
}

// Store assigns other to v and returns v. The types are not checked here:
// the engine converts scalars and rejects what it cannot store.
func (v Value) Store(other any) Value {
	if !v.check("store") {
		return v
	}
	o, ok := v.fn.operand("store", other, v.typ)
	if !ok {
		return v
	}
	v.fn.fail(fromEngine("store", v.fn.rt.eng.InsnStore(v.fn.id, v.handle, o.handle)))
	return v
}

// Address takes the address of v, making v addressable.
func (v Value) Address() Value {
	if !v.check("address") {
		return Value{}
	}
	h, err := v.fn.rt.eng.InsnAddressOf(v.fn.id, v.handle)
	return v.fn.wrap("address", h, err)
}

// Addressable reports whether v lives in memory.
func (v Value) Addressable() bool {
	return v.Valid() && v.fn.rt.eng.IsAddressable(v.fn.id, v.handle)
}

// SetAddressable forces v into memory.
func (v Value) SetAddressable() Value {
	if v.check("set_addressable") {
		v.fn.fail(fromEngine("set_addressable", v.fn.rt.eng.SetAddressable(v.fn.id, v.handle)))
	}
	return v
}

// ToBool normalizes v to 0/1. A bool value is returned unchanged.
func (v Value) ToBool() Value {
	if !v.check("to_bool") {
		return Value{}
	}
	if v.kind == ValueBool {
		return v
	}
	h, err := v.fn.rt.eng.InsnToBool(v.fn.id, v.handle)
	return v.fn.wrap("to_bool", h, err)
}

// ToNotBool is the inverted normalization of v.
func (v Value) ToNotBool() Value {
	if !v.check("to_not_bool") {
		return Value{}
	}
	h, err := v.fn.rt.eng.InsnToNotBool(v.fn.id, v.handle)
	return v.fn.wrap("to_not_bool", h, err)
}

// Cast converts v to t without checks. Narrowing truncates, widening sign-
// or zero-extends by the signedness of v.
func (v Value) Cast(t Type) Value {
	if !v.check("cast") {
		return Value{}
	}
	if !t.Valid() {
		v.fn.fail(errorf(KindType, "cast", "invalid target type"))
		return Value{}
	}
	h, err := v.fn.rt.eng.InsnConvert(v.fn.id, v.handle, t.handle)
	return v.fn.wrap("cast", h, err)
}
