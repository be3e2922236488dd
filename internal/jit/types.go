package jit

import (
	"fmt"

	"jitkit/internal/engine"
	"jitkit/internal/types"
)

// TypeKind is the variant of a Type.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypePrimitive
	TypeBool
	TypeVoid
	TypePointer
	TypeStruct
	TypeSignature
)

func (k TypeKind) String() string {
	switch k {
	case TypePrimitive:
		return "primitive"
	case TypeBool:
		return "bool"
	case TypeVoid:
		return "void"
	case TypePointer:
		return "pointer"
	case TypeStruct:
		return "struct"
	case TypeSignature:
		return "signature"
	default:
		return "invalid"
	}
}

// ABI is the calling convention of a signature.
type ABI = types.ABI

const (
	ABICdecl    = types.ABICdecl
	ABIVararg   = types.ABIVararg
	ABIStdcall  = types.ABIStdcall
	ABIFastcall = types.ABIFastcall
)

// Tag names a type constructor for CreateType.
type Tag string

const (
	TagVoid      Tag = "void"
	TagBool      Tag = "bool"
	TagInt8      Tag = "int8"
	TagInt16     Tag = "int16"
	TagInt32     Tag = "int32"
	TagInt64     Tag = "int64"
	TagUint8     Tag = "uint8"
	TagUint16    Tag = "uint16"
	TagUint32    Tag = "uint32"
	TagUint64    Tag = "uint64"
	TagIntn      Tag = "intn"
	TagUintn     Tag = "uintn"
	TagFloat32   Tag = "float32"
	TagFloat64   Tag = "float64"
	TagStringz   Tag = "stringz"
	TagPointer   Tag = "pointer"
	TagStruct    Tag = "struct"
	TagSignature Tag = "signature"
)

var primitiveTags = map[Tag]engine.Primitive{
	TagVoid:    engine.PrimVoid,
	TagBool:    engine.PrimBool,
	TagInt8:    engine.PrimInt8,
	TagInt16:   engine.PrimInt16,
	TagInt32:   engine.PrimInt32,
	TagInt64:   engine.PrimInt64,
	TagUint8:   engine.PrimUint8,
	TagUint16:  engine.PrimUint16,
	TagUint32:  engine.PrimUint32,
	TagUint64:  engine.PrimUint64,
	TagIntn:    engine.PrimNint,
	TagUintn:   engine.PrimNuint,
	TagFloat32: engine.PrimFloat32,
	TagFloat64: engine.PrimFloat64,
	TagStringz: engine.PrimStringz,
}

// Type is an engine type handle classified into one of the TypeKind
// variants. Types are only produced by Runtime.WrapType.
type Type struct {
	rt     *Runtime
	handle types.TypeID
	kind   TypeKind
}

// WrapType classifies an engine type handle. Tags are looked through: a
// bool tag at any level yields TypeBool, so a named bool is still a bool.
// Otherwise the untagged base decides the kind.
func (r *Runtime) WrapType(h types.TypeID) (Type, error) {
	e := r.eng
	if e.Types.IsBool(h) {
		return Type{rt: r, handle: h, kind: TypeBool}, nil
	}
	base := e.Types.Underlying(h)
	var kind TypeKind
	switch e.KindOf(base) {
	case types.KindStruct:
		kind = TypeStruct
	case types.KindPointer:
		kind = TypePointer
	case types.KindSignature:
		kind = TypeSignature
	case types.KindVoid:
		kind = TypeVoid
	case types.KindInt, types.KindUint, types.KindFloat:
		kind = TypePrimitive
	default:
		return Type{}, errorf(KindUnsupportedType, "wrap", "type#%d has no wrapper", h)
	}
	return Type{rt: r, handle: h, kind: kind}, nil
}

func (r *Runtime) mustWrap(h types.TypeID) Type {
	t, err := r.WrapType(h)
	if err != nil {
		panic(err)
	}
	return t
}

// Primitive returns the built-in type named by tag.
func (r *Runtime) Primitive(tag Tag) (Type, error) {
	p, ok := primitiveTags[tag]
	if !ok {
		return Type{}, errorf(KindUnsupportedType, "create", "unknown type tag %q", tag)
	}
	h, err := r.eng.TypePrimitive(p)
	if err != nil {
		return Type{}, fromEngine("create", err)
	}
	return r.WrapType(h)
}

func (r *Runtime) builtin(p engine.Primitive) Type {
	h, err := r.eng.TypePrimitive(p)
	if err != nil {
		panic(err)
	}
	return r.mustWrap(h)
}

func (r *Runtime) Void() Type    { return r.builtin(engine.PrimVoid) }
func (r *Runtime) Bool() Type    { return r.builtin(engine.PrimBool) }
func (r *Runtime) Int8() Type    { return r.builtin(engine.PrimInt8) }
func (r *Runtime) Int16() Type   { return r.builtin(engine.PrimInt16) }
func (r *Runtime) Int32() Type   { return r.builtin(engine.PrimInt32) }
func (r *Runtime) Int64() Type   { return r.builtin(engine.PrimInt64) }
func (r *Runtime) Uint8() Type   { return r.builtin(engine.PrimUint8) }
func (r *Runtime) Uint16() Type  { return r.builtin(engine.PrimUint16) }
func (r *Runtime) Uint32() Type  { return r.builtin(engine.PrimUint32) }
func (r *Runtime) Uint64() Type  { return r.builtin(engine.PrimUint64) }
func (r *Runtime) Intn() Type    { return r.builtin(engine.PrimNint) }
func (r *Runtime) Uintn() Type   { return r.builtin(engine.PrimNuint) }
func (r *Runtime) Float32() Type { return r.builtin(engine.PrimFloat32) }
func (r *Runtime) Float64() Type { return r.builtin(engine.PrimFloat64) }
func (r *Runtime) VoidPtr() Type { return r.builtin(engine.PrimVoidPtr) }
func (r *Runtime) Stringz() Type { return r.builtin(engine.PrimStringz) }

// Pointer returns the pointer-to-target type.
func (r *Runtime) Pointer(target Type) (Type, error) {
	if !target.Valid() {
		return Type{}, errorf(KindType, "create", "pointer target has no type")
	}
	h, err := r.eng.TypePointer(target.handle)
	if err != nil {
		return Type{}, fromEngine("create", err)
	}
	return r.WrapType(h)
}

// Struct creates a new struct type. Field offsets are fixed here.
func (r *Runtime) Struct(fields ...Type) (Type, error) {
	hs := make([]types.TypeID, len(fields))
	for i, f := range fields {
		if !f.Valid() {
			return Type{}, errorf(KindType, "create", "struct field %d has no type", i)
		}
		hs[i] = f.handle
	}
	h, err := r.eng.TypeStruct(hs)
	if err != nil {
		return Type{}, fromEngine("create", err)
	}
	return r.WrapType(h)
}

// Signature returns the signature type of params, ret and abi.
func (r *Runtime) Signature(params []Type, ret Type, abi ABI) (Type, error) {
	if !ret.Valid() {
		return Type{}, errorf(KindType, "create", "signature needs a return type")
	}
	hs := make([]types.TypeID, len(params))
	for i, p := range params {
		if !p.Valid() {
			return Type{}, errorf(KindType, "create", "signature parameter %d has no type", i)
		}
		if p.kind == TypeVoid {
			return Type{}, errorf(KindType, "create", "signature parameter %d is void", i)
		}
		hs[i] = p.handle
	}
	h, err := r.eng.TypeSignature(abi, ret.handle, hs)
	if err != nil {
		return Type{}, fromEngine("create", err)
	}
	return r.WrapType(h)
}

// VariadicSignature describes a function with fixed leading parameters that
// accepts further arguments.
func (r *Runtime) VariadicSignature(fixed []Type, ret Type) (Type, error) {
	return r.Signature(fixed, ret, ABIVararg)
}

// CreateType builds a type from a tag and its arguments:
//
//	CreateType("int8")
//	CreateType("pointer", "pointer", "int8")   // **int8
//	CreateType("pointer")                      // *void
//	CreateType("struct", "int8", uint16Type)
//	CreateType("signature", []any{"int32"}, "void", ABIVararg)
//
// Arguments are Tags, strings or Types.
func (r *Runtime) CreateType(args ...any) (Type, error) {
	if len(args) == 0 {
		return Type{}, errorf(KindUnsupportedType, "create", "missing type tag")
	}
	if t, ok := args[0].(Type); ok && len(args) == 1 {
		return t, nil
	}
	head, ok := asTag(args[0])
	if !ok {
		return Type{}, errorf(KindUnsupportedType, "create", "unknown type tag %v", args[0])
	}
	rest := args[1:]
	switch head {
	case TagPointer:
		target := r.Void()
		if len(rest) > 0 {
			var err error
			if target, err = r.typeArg(rest[len(rest)-1]); err != nil {
				return Type{}, err
			}
			for i := len(rest) - 2; i >= 0; i-- {
				if tag, ok := asTag(rest[i]); !ok || tag != TagPointer {
					return Type{}, errorf(KindUnsupportedType, "create", "pointer chain expects pointer tags, got %v", rest[i])
				}
				if target, err = r.Pointer(target); err != nil {
					return Type{}, err
				}
			}
		}
		return r.Pointer(target)

	case TagStruct:
		fields := make([]Type, len(rest))
		for i, a := range rest {
			f, err := r.typeArg(a)
			if err != nil {
				return Type{}, err
			}
			fields[i] = f
		}
		return r.Struct(fields...)

	case TagSignature:
		if len(rest) < 2 || len(rest) > 3 {
			return Type{}, errorf(KindUnsupportedType, "create", "signature takes params, return and an optional abi")
		}
		var raw []any
		switch ps := rest[0].(type) {
		case []any:
			raw = ps
		case []Type:
			for _, p := range ps {
				raw = append(raw, p)
			}
		case nil:
		default:
			return Type{}, errorf(KindUnsupportedType, "create", "signature params must be a list, got %T", rest[0])
		}
		params := make([]Type, len(raw))
		for i, a := range raw {
			p, err := r.typeArg(a)
			if err != nil {
				return Type{}, err
			}
			params[i] = p
		}
		ret, err := r.typeArg(rest[1])
		if err != nil {
			return Type{}, err
		}
		abi := ABICdecl
		if len(rest) == 3 {
			if abi, err = abiArg(rest[2]); err != nil {
				return Type{}, err
			}
		}
		return r.Signature(params, ret, abi)

	default:
		if len(rest) != 0 {
			return Type{}, errorf(KindUnsupportedType, "create", "%s takes no arguments", head)
		}
		return r.Primitive(head)
	}
}

func (r *Runtime) typeArg(a any) (Type, error) {
	if t, ok := a.(Type); ok {
		if !t.Valid() {
			return Type{}, errorf(KindType, "create", "invalid type argument")
		}
		return t, nil
	}
	if tag, ok := asTag(a); ok {
		return r.CreateType(tag)
	}
	return Type{}, errorf(KindUnsupportedType, "create", "unknown type argument %v", a)
}

func asTag(a any) (Tag, bool) {
	switch v := a.(type) {
	case Tag:
		return v, true
	case string:
		return Tag(v), true
	default:
		return "", false
	}
}

func abiArg(a any) (ABI, error) {
	switch v := a.(type) {
	case ABI:
		return v, nil
	case string:
		if abi, ok := types.ParseABI(v); ok {
			return abi, nil
		}
	}
	return ABICdecl, errorf(KindUnsupportedType, "create", "unknown abi %v", a)
}

// Queries ----------------------------------------------------------------------

// Valid reports whether t was produced by a Runtime.
func (t Type) Valid() bool {
	return t.rt != nil && t.kind != TypeInvalid
}

// Kind returns the variant of t.
func (t Type) Kind() TypeKind { return t.kind }

// Handle returns the engine type handle.
func (t Type) Handle() types.TypeID { return t.handle }

func (t Type) String() string {
	if !t.Valid() {
		return "<invalid type>"
	}
	return t.rt.eng.Types.String(t.handle)
}

// Size is the storage size in bytes.
func (t Type) Size() int {
	if !t.Valid() {
		return 0
	}
	n, err := t.rt.eng.SizeOf(t.handle)
	if err != nil {
		return 0
	}
	return n
}

// Align is the alignment in bytes.
func (t Type) Align() int {
	if !t.Valid() {
		return 1
	}
	n, err := t.rt.eng.AlignOf(t.handle)
	if err != nil {
		return 1
	}
	return n
}

func (t Type) base() types.Type {
	if !t.Valid() {
		return types.Type{}
	}
	tt, _ := t.rt.eng.Types.Lookup(t.rt.eng.Types.Underlying(t.handle))
	return tt
}

// IsInteger reports whether t is an integer primitive.
func (t Type) IsInteger() bool {
	return t.kind == TypePrimitive && t.base().IsInteger()
}

// IsFloat reports whether t is a floating point primitive.
func (t Type) IsFloat() bool {
	return t.kind == TypePrimitive && t.base().Kind == types.KindFloat
}

// IsSigned reports whether t is a signed integer. Bool counts as signed.
func (t Type) IsSigned() bool {
	return t.kind == TypeBool || (t.kind == TypePrimitive && t.base().Kind == types.KindInt)
}

// IsUnsigned reports whether t is an unsigned integer.
func (t Type) IsUnsigned() bool {
	return t.kind == TypePrimitive && t.base().Kind == types.KindUint
}

// IsNative reports whether t is intn or uintn.
func (t Type) IsNative() bool {
	return t.IsInteger() && t.base().Width == types.WidthNative
}

// Width is the storage width in bits.
func (t Type) Width() int {
	return t.Size() * 8
}

// Target returns the pointee of a pointer type.
func (t Type) Target() (Type, bool) {
	if t.kind != TypePointer {
		return Type{}, false
	}
	h, ok := t.rt.eng.PointerTarget(t.handle)
	if !ok {
		return Type{}, false
	}
	target, err := t.rt.WrapType(h)
	return target, err == nil
}

// FieldCount is the number of fields of a struct type.
func (t Type) FieldCount() int {
	if t.kind != TypeStruct {
		return 0
	}
	return t.rt.eng.StructFieldCount(t.handle)
}

func (t Type) checkField(op string, i int) error {
	if t.kind != TypeStruct {
		return errorf(KindType, op, "%s is not a struct", t)
	}
	if n := t.FieldCount(); i < 0 || i >= n {
		return errorf(KindInstruction, op, "field %d out of range [0, %d) of %s", i, n, t)
	}
	return nil
}

// FieldType returns the type of field i.
func (t Type) FieldType(i int) (Type, error) {
	if err := t.checkField("field_type", i); err != nil {
		return Type{}, err
	}
	h, err := t.rt.eng.StructFieldType(t.handle, i)
	if err != nil {
		return Type{}, fromEngine("field_type", err)
	}
	return t.rt.WrapType(h)
}

// Offset returns the byte offset of field i.
func (t Type) Offset(i int) (int, error) {
	if err := t.checkField("offset", i); err != nil {
		return 0, err
	}
	off, err := t.rt.eng.StructFieldOffset(t.handle, i)
	return off, fromEngine("offset", err)
}

// FieldName returns the name of field i, empty when unnamed.
func (t Type) FieldName(i int) (string, error) {
	if err := t.checkField("field_name", i); err != nil {
		return "", err
	}
	name, err := t.rt.eng.StructFieldName(t.handle, i)
	return name, fromEngine("field_name", err)
}

// SetFieldNames names the fields of a struct type in order.
func (t Type) SetFieldNames(names ...string) error {
	if t.kind != TypeStruct {
		return errorf(KindType, "set_names", "%s is not a struct", t)
	}
	if len(names) != t.FieldCount() {
		return errorf(KindInstruction, "set_names", "%d names for %d fields", len(names), t.FieldCount())
	}
	return fromEngine("set_names", t.rt.eng.SetStructNames(t.handle, names))
}

// FindField resolves a field name to its index.
func (t Type) FindField(name string) (int, error) {
	if t.kind != TypeStruct {
		return 0, errorf(KindType, "find_field", "%s is not a struct", t)
	}
	i, ok := t.rt.eng.FindStructField(t.handle, name)
	if !ok {
		return 0, errorf(KindUnsupportedType, "find_field", "%s has no field %q", t, name)
	}
	return i, nil
}

// WithName returns t decorated with a name. Named structs keep their struct
// behavior.
func (t Type) WithName(name string) (Type, error) {
	if !t.Valid() {
		return Type{}, errorf(KindType, "with_name", "invalid type")
	}
	tag := types.TagName
	if t.kind == TypeStruct {
		tag = types.TagStructName
	}
	h, err := t.rt.eng.TypeTagged(t.handle, tag, name)
	if err != nil {
		return Type{}, fromEngine("with_name", err)
	}
	return t.rt.WrapType(h)
}

// Name returns the name attached by WithName.
func (t Type) Name() string {
	if !t.Valid() {
		return ""
	}
	switch t.rt.eng.TaggedKind(t.handle) {
	case types.TagName, types.TagStructName:
		return t.rt.eng.TaggedData(t.handle)
	default:
		return ""
	}
}

// IsStringz reports whether t is the NUL-terminated string pointer type.
func (t Type) IsStringz() bool {
	return t.Valid() && t.rt.eng.TaggedKind(t.handle) == types.TagStringz
}

// Params returns the parameter types of a signature.
func (t Type) Params() []Type {
	if t.kind != TypeSignature {
		return nil
	}
	hs := t.rt.eng.SignatureParams(t.handle)
	out := make([]Type, len(hs))
	for i, h := range hs {
		out[i] = t.rt.mustWrap(h)
	}
	return out
}

// Return returns the result type of a signature.
func (t Type) Return() Type {
	if t.kind != TypeSignature {
		return Type{}
	}
	return t.rt.mustWrap(t.rt.eng.SignatureReturn(t.handle))
}

// ABI returns the calling convention of a signature.
func (t Type) ABI() ABI {
	if t.kind != TypeSignature {
		return ABICdecl
	}
	return t.rt.eng.SignatureABI(t.handle)
}

// Variadic reports whether a signature accepts trailing arguments.
func (t Type) Variadic() bool {
	return t.kind == TypeSignature && t.rt.eng.SignatureVariadic(t.handle)
}

// Compatible reports whether a and b have the same variant and recursively
// equal fields.
func Compatible(a, b Type) bool {
	if !a.Valid() || !b.Valid() || a.kind != b.kind {
		return false
	}
	if a.rt == b.rt && a.handle == b.handle {
		return true
	}
	switch a.kind {
	case TypeVoid, TypeBool:
		return true
	case TypePrimitive:
		x, y := a.base(), b.base()
		return x.Kind == y.Kind && x.Width == y.Width
	case TypePointer:
		ta, okA := a.Target()
		tb, okB := b.Target()
		return okA && okB && Compatible(ta, tb)
	case TypeStruct:
		n := a.FieldCount()
		if n != b.FieldCount() {
			return false
		}
		for i := range n {
			fa, errA := a.FieldType(i)
			fb, errB := b.FieldType(i)
			oa, _ := a.Offset(i)
			ob, _ := b.Offset(i)
			if errA != nil || errB != nil || oa != ob || !Compatible(fa, fb) {
				return false
			}
		}
		return true
	case TypeSignature:
		if a.ABI() != b.ABI() || !Compatible(a.Return(), b.Return()) {
			return false
		}
		pa, pb := a.Params(), b.Params()
		if len(pa) != len(pb) {
			return false
		}
		for i := range pa {
			if !Compatible(pa[i], pb[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// GoString is used by %#v.
func (t Type) GoString() string {
	return fmt.Sprintf("jit.Type{%s %s}", t.kind, t)
}
