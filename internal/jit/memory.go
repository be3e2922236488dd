package jit

// Memory access through pointers and struct fields.

// Deref loads the value v points to. A void pointer needs an explicit
// target type.
func (v Value) Deref(t ...Type) Value {
	const op = "deref"
	if !v.check(op) {
		return Value{}
	}
	target, ok := v.pointee(op, t)
	if !ok {
		return Value{}
	}
	return v.MLoad(0, target)
}

func (v Value) pointee(op string, override []Type) (Type, bool) {
	if len(override) > 0 && override[0].Valid() {
		return override[0], true
	}
	target, ok := v.typ.Target()
	if !ok {
		v.fn.fail(errorf(KindType, op, "%s is not a pointer", v.typ))
		return Type{}, false
	}
	if target.Kind() == TypeVoid {
		v.fn.fail(errorf(KindInstruction, op, "%s needs a target type", v.typ))
		return Type{}, false
	}
	return target, true
}

// MStore stores x at v+offset. v must be a pointer.
func (v Value) MStore(x any, offset int64) Value {
	const op = "mstore"
	if !v.check(op) {
		return v
	}
	like := v.fn.rt.Intn()
	if target, ok := v.typ.Target(); ok && target.Kind() != TypeVoid {
		like = target
	}
	o, ok := v.fn.operand(op, x, like)
	if !ok {
		return v
	}
	v.fn.fail(fromEngine(op, v.fn.rt.eng.InsnStoreRelative(v.fn.id, v.handle, offset, o.handle)))
	return v
}

// MLoad loads a value of type t from v+offset. v must be a pointer.
func (v Value) MLoad(offset int64, t Type) Value {
	const op = "mload"
	if !v.check(op) {
		return Value{}
	}
	if !t.Valid() {
		v.fn.fail(errorf(KindType, op, "invalid type"))
		return Value{}
	}
	h, err := v.fn.rt.eng.InsnLoadRelative(v.fn.id, v.handle, offset, t.handle)
	return v.fn.wrap(op, h, err)
}

// LoadElem loads element index of the array v points to.
func (v Value) LoadElem(index any, t ...Type) Value {
	const op = "load_elem"
	if !v.check(op) {
		return Value{}
	}
	target, ok := v.pointee(op, t)
	if !ok {
		return Value{}
	}
	idx, ok := v.fn.operand(op, index, v.fn.rt.Intn())
	if !ok {
		return Value{}
	}
	h, err := v.fn.rt.eng.InsnLoadElem(v.fn.id, v.handle, idx.handle, target.handle)
	return v.fn.wrap(op, h, err)
}

// StoreElem stores x into element index of the array v points to.
func (v Value) StoreElem(index, x any) Value {
	const op = "store_elem"
	if !v.check(op) {
		return v
	}
	target, ok := v.pointee(op, nil)
	if !ok {
		return v
	}
	idx, ok := v.fn.operand(op, index, v.fn.rt.Intn())
	if !ok {
		return v
	}
	val, ok := v.fn.operand(op, x, target)
	if !ok {
		return v
	}
	if !Compatible(val.typ, target) {
		val = val.Cast(target)
		if !val.Valid() {
			return v
		}
	}
	v.fn.fail(fromEngine(op, v.fn.rt.eng.InsnStoreElem(v.fn.id, v.handle, idx.handle, val.handle)))
	return v
}

// Field loads field i of the struct v.
func (v Value) Field(i int) Value {
	const op = "field"
	if !v.check(op) {
		return Value{}
	}
	ft, off, ok := v.field(op, i)
	if !ok {
		return Value{}
	}
	return v.Address().MLoad(int64(off), ft)
}

// FieldNamed loads the field called name.
func (v Value) FieldNamed(name string) Value {
	if !v.check("field") {
		return Value{}
	}
	i, err := v.typ.FindField(name)
	if err != nil {
		v.fn.fail(err)
		return Value{}
	}
	return v.Field(i)
}

// SetField stores x into field i of the struct v and returns v.
func (v Value) SetField(i int, x any) Value {
	const op = "set_field"
	if !v.check(op) {
		return v
	}
	ft, off, ok := v.field(op, i)
	if !ok {
		return v
	}
	val, ok := v.fn.operand(op, x, ft)
	if !ok {
		return v
	}
	if !Compatible(val.typ, ft) {
		val = val.Cast(ft)
		if !val.Valid() {
			return v
		}
	}
	v.Address().MStore(val, int64(off))
	return v
}

// SetFieldNamed stores x into the field called name.
func (v Value) SetFieldNamed(name string, x any) Value {
	if !v.check("set_field") {
		return v
	}
	i, err := v.typ.FindField(name)
	if err != nil {
		v.fn.fail(err)
		return v
	}
	return v.SetField(i, x)
}

func (v Value) field(op string, i int) (Type, int, bool) {
	if v.kind != ValueStruct {
		v.fn.fail(errorf(KindType, op, "%s is not a struct", v.typ))
		return Type{}, 0, false
	}
	ft, err := v.typ.FieldType(i)
	if err != nil {
		v.fn.fail(err)
		return Type{}, 0, false
	}
	off, err := v.typ.Offset(i)
	if err != nil {
		v.fn.fail(err)
		return Type{}, 0, false
	}
	return ft, off, true
}

// Alloca reserves size bytes of frame memory that live until the function
// returns.
func (f *Function) Alloca(size any) Value {
	n, ok := f.operand("alloca", size, f.rt.Uintn())
	if !ok {
		return Value{}
	}
	h, err := f.rt.eng.InsnAlloca(f.id, n.handle)
	return f.wrap("alloca", h, err)
}

// Stringz builds s in frame memory and returns it as a stringz value.
func (f *Function) Stringz(s string) Value {
	buf := f.Alloca(len(s) + 1)
	if !buf.Valid() {
		return Value{}
	}
	u8 := f.rt.Uint8()
	for i := 0; i < len(s); i++ {
		buf.MStore(f.ConstUint(u8, uint64(s[i])), int64(i))
	}
	buf.MStore(f.ConstUint(u8, 0), int64(len(s)))
	return buf.Cast(f.rt.Stringz())
}
