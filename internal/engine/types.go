package engine

import (
	"jitkit/internal/types"
)

// Primitive names a built-in engine type.
type Primitive uint8

const (
	PrimVoid Primitive = iota + 1
	PrimInt8
	PrimInt16
	PrimInt32
	PrimInt64
	PrimUint8
	PrimUint16
	PrimUint32
	PrimUint64
	PrimNint
	PrimNuint
	PrimFloat32
	PrimFloat64
	PrimVoidPtr
	PrimBool
	PrimStringz
)

// TypePrimitive returns the handle of a built-in type.
func (e *Engine) TypePrimitive(p Primitive) (types.TypeID, error) {
	b := e.Types.Builtins()
	switch p {
	case PrimVoid:
		return b.Void, nil
	case PrimInt8:
		return b.Int8, nil
	case PrimInt16:
		return b.Int16, nil
	case PrimInt32:
		return b.Int32, nil
	case PrimInt64:
		return b.Int64, nil
	case PrimUint8:
		return b.Uint8, nil
	case PrimUint16:
		return b.Uint16, nil
	case PrimUint32:
		return b.Uint32, nil
	case PrimUint64:
		return b.Uint64, nil
	case PrimNint:
		return b.Nint, nil
	case PrimNuint:
		return b.Nuint, nil
	case PrimFloat32:
		return b.Float32, nil
	case PrimFloat64:
		return b.Float64, nil
	case PrimVoidPtr:
		return b.VoidPtr, nil
	case PrimBool:
		return b.Bool, nil
	case PrimStringz:
		return b.Stringz, nil
	default:
		return types.NoTypeID, errorf(CodeUnknownType, "unknown primitive %d", p)
	}
}

func (e *Engine) knownType(ty types.TypeID) error {
	if _, ok := e.Types.Lookup(ty); !ok {
		return errorf(CodeUnknownType, "unknown type#%d", ty)
	}
	return nil
}

// TypePointer returns the pointer-to-target type.
func (e *Engine) TypePointer(target types.TypeID) (types.TypeID, error) {
	if err := e.knownType(target); err != nil {
		return types.NoTypeID, err
	}
	return e.Types.Intern(types.MakePointer(target)), nil
}

// TypeStruct creates a fresh struct type. Struct types are never shared, so
// field names may be attached later without affecting other structs.
func (e *Engine) TypeStruct(fields []types.TypeID) (types.TypeID, error) {
	for _, f := range fields {
		if err := e.knownType(f); err != nil {
			return types.NoTypeID, err
		}
	}
	id := e.Types.RegisterStruct(fields)
	if _, err := e.Layout.LayoutOf(id); err != nil {
		return types.NoTypeID, &EngineError{Code: CodeUnsupported, Message: err.Error(), Err: err}
	}
	return id, nil
}

// TypeSignature returns the signature type for abi, params and result.
func (e *Engine) TypeSignature(abi types.ABI, result types.TypeID, params []types.TypeID) (types.TypeID, error) {
	if err := e.knownType(result); err != nil {
		return types.NoTypeID, err
	}
	for _, p := range params {
		if err := e.knownType(p); err != nil {
			return types.NoTypeID, err
		}
	}
	return e.Types.RegisterSignature(abi, params, result), nil
}

// TypeTagged decorates base with tag and data.
func (e *Engine) TypeTagged(base types.TypeID, tag types.TagKind, data string) (types.TypeID, error) {
	if err := e.knownType(base); err != nil {
		return types.NoTypeID, err
	}
	return e.Types.RegisterTagged(base, tag, data), nil
}

// KindOf reports the kind of a type handle.
func (e *Engine) KindOf(ty types.TypeID) types.Kind {
	tt, ok := e.Types.Lookup(ty)
	if !ok {
		return types.KindInvalid
	}
	return tt.Kind
}

// SizeOf reports the storage size of a type on the engine's target.
func (e *Engine) SizeOf(ty types.TypeID) (int, error) {
	return e.Layout.SizeOf(ty)
}

// AlignOf reports the alignment of a type on the engine's target.
func (e *Engine) AlignOf(ty types.TypeID) (int, error) {
	return e.Layout.AlignOf(ty)
}

// TaggedKind reports the tag of a tagged type, TagNone otherwise.
func (e *Engine) TaggedKind(ty types.TypeID) types.TagKind {
	info, ok := e.Types.TaggedInfo(ty)
	if !ok {
		return types.TagNone
	}
	return info.Tag
}

// TaggedBase strips one level of tagging.
func (e *Engine) TaggedBase(ty types.TypeID) types.TypeID {
	tt, ok := e.Types.Lookup(ty)
	if !ok || tt.Kind != types.KindTagged {
		return ty
	}
	return tt.Elem
}

// TaggedData returns the payload string of a tagged type.
func (e *Engine) TaggedData(ty types.TypeID) string {
	info, _ := e.Types.TaggedInfo(ty)
	return info.Data
}

// PointerTarget returns the pointee of a pointer type.
func (e *Engine) PointerTarget(ty types.TypeID) (types.TypeID, bool) {
	return e.Types.PointerTarget(ty)
}

// StructFieldCount reports the number of fields of a struct type.
func (e *Engine) StructFieldCount(ty types.TypeID) int {
	return len(e.Types.StructFields(e.Types.Underlying(ty)))
}

func (e *Engine) structField(ty types.TypeID, i int) (types.StructField, error) {
	fields := e.Types.StructFields(e.Types.Underlying(ty))
	if i < 0 || i >= len(fields) {
		return types.StructField{}, errorf(CodeTypeMismatch, "field %d out of range [0, %d) of %s", i, len(fields), e.Types.String(ty))
	}
	return fields[i], nil
}

// StructFieldType returns the type of field i.
func (e *Engine) StructFieldType(ty types.TypeID, i int) (types.TypeID, error) {
	f, err := e.structField(ty, i)
	return f.Type, err
}

// StructFieldName returns the name of field i, empty when unnamed.
func (e *Engine) StructFieldName(ty types.TypeID, i int) (string, error) {
	f, err := e.structField(ty, i)
	return f.Name, err
}

// StructFieldOffset returns the byte offset of field i.
func (e *Engine) StructFieldOffset(ty types.TypeID, i int) (int, error) {
	if _, err := e.structField(ty, i); err != nil {
		return 0, err
	}
	off, ok := e.Layout.FieldOffset(e.Types.Underlying(ty), i)
	if !ok {
		return 0, errorf(CodeUnsupported, "no layout for %s", e.Types.String(ty))
	}
	return off, nil
}

// SetStructNames attaches field names to a struct type.
func (e *Engine) SetStructNames(ty types.TypeID, names []string) error {
	if !e.Types.SetStructNames(e.Types.Underlying(ty), names) {
		return errorf(CodeTypeMismatch, "cannot name %d fields of %s", len(names), e.Types.String(ty))
	}
	return nil
}

// FindStructField resolves a field name to its index.
func (e *Engine) FindStructField(ty types.TypeID, name string) (int, bool) {
	return e.Types.FindStructField(e.Types.Underlying(ty), name)
}

func (e *Engine) signature(ty types.TypeID) *types.SignatureInfo {
	info, ok := e.Types.SignatureInfo(e.Types.Underlying(ty))
	if !ok {
		return nil
	}
	return info
}

// SignatureABI reports the calling convention of a signature type.
func (e *Engine) SignatureABI(ty types.TypeID) types.ABI {
	if info := e.signature(ty); info != nil {
		return info.ABI
	}
	return types.ABICdecl
}

// SignatureParams returns a copy of the parameter types of a signature.
func (e *Engine) SignatureParams(ty types.TypeID) []types.TypeID {
	info := e.signature(ty)
	if info == nil {
		return nil
	}
	return append([]types.TypeID(nil), info.Params...)
}

// SignatureReturn returns the result type of a signature.
func (e *Engine) SignatureReturn(ty types.TypeID) types.TypeID {
	if info := e.signature(ty); info != nil {
		return info.Result
	}
	return types.NoTypeID
}

// SignatureVariadic reports whether a signature accepts trailing arguments.
func (e *Engine) SignatureVariadic(ty types.TypeID) bool {
	info := e.signature(ty)
	return info != nil && info.Variadic()
}

// FuncView is a read-only snapshot of a function for exporters.
type FuncView struct {
	ID       FuncID
	Name     string
	Sig      types.TypeID
	Compiled bool
	Params   []ValueID
	Values   []ValueView // index 0 is unused
	Insns    []Insn
	Labels   int
}

// ValueView describes one value handle of a function.
type ValueView struct {
	Type        types.TypeID
	Rep         Rep
	Kind        ValueKind
	Const       uint64
	Addressable bool
}

// FuncView snapshots a function.
func (e *Engine) FuncView(fn FuncID) (*FuncView, error) {
	f, err := e.Func(fn)
	if err != nil {
		return nil, err
	}
	v := &FuncView{
		ID:       f.ID,
		Name:     f.Name,
		Sig:      f.Sig,
		Compiled: f.compiled,
		Params:   f.Params(),
		Values:   make([]ValueView, len(f.values)),
		Insns:    f.Insns(),
		Labels:   f.NumLabels(),
	}
	for i := 1; i < len(f.values); i++ {
		vi := &f.values[i]
		v.Values[i] = ValueView{Type: vi.Type, Rep: vi.rep, Kind: vi.Kind, Const: vi.Const, Addressable: vi.Addressable}
	}
	return v, nil
}

// Rep returns the representation recorded on an instruction.
func (in *Insn) Rep() Rep {
	return in.rep
}
