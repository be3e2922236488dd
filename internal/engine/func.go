package engine

import (
	"fmt"
	"math"

	"fortio.org/safecast"

	"jitkit/internal/types"
)

// ValueKind says where a value comes from.
type ValueKind uint8

const (
	ValueTemp ValueKind = iota
	ValueLocal
	ValueParam
	ValueConst
)

func (k ValueKind) String() string {
	switch k {
	case ValueTemp:
		return "temp"
	case ValueLocal:
		return "local"
	case ValueParam:
		return "param"
	case ValueConst:
		return "const"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

type valueInfo struct {
	Type        types.TypeID
	rep         Rep
	Kind        ValueKind
	Param       int
	Const       uint64 // canonical bits of a constant
	Addressable bool
	frameOff    int // -1 while the value lives in a register
}

type labelInfo struct {
	pos int // index of the OpLabel instruction, -1 until placed
}

// Func is the engine-side state of one function.
type Func struct {
	ID   FuncID
	Ctx  ContextID
	Name string
	Sig  types.TypeID

	retRep    Rep
	values    []valueInfo
	params    []ValueID
	insns     []Insn
	labels    []labelInfo
	compiled  bool
	destroyed bool

	// filled by Compile
	labelPC   []int
	frameSize int
}

func newFunc(id FuncID, ctx ContextID, name string, sig types.TypeID, ret Rep) *Func {
	return &Func{
		ID:     id,
		Ctx:    ctx,
		Name:   name,
		Sig:    sig,
		retRep: ret,
		values: []valueInfo{{}},
		labels: []labelInfo{{pos: -1}},
	}
}

func (f *Func) addValue(v valueInfo) ValueID {
	v.frameOff = -1
	n, err := safecast.Conv[uint32](len(f.values))
	if err != nil {
		panic(fmt.Errorf("value table overflow: %w", err))
	}
	f.values = append(f.values, v)
	return ValueID(n)
}

func (f *Func) value(id ValueID) (*valueInfo, error) {
	if id == NoValueID || int(id) >= len(f.values) {
		return nil, f.errorf(CodeUnknownValue, "unknown value v%d", id)
	}
	return &f.values[id], nil
}

func (f *Func) append(in Insn) {
	f.insns = append(f.insns, in)
}

// Len reports the number of emitted instructions.
func (f *Func) Len() int {
	return len(f.insns)
}

// Insns returns a copy of the instruction stream.
func (f *Func) Insns() []Insn {
	out := make([]Insn, len(f.insns))
	copy(out, f.insns)
	return out
}

// Params returns the parameter value handles in order.
func (f *Func) Params() []ValueID {
	out := make([]ValueID, len(f.params))
	copy(out, f.params)
	return out
}

// NumValues reports how many value handles the function has allocated.
func (f *Func) NumValues() int {
	return len(f.values) - 1
}

// NumLabels reports how many labels the function has allocated.
func (f *Func) NumLabels() int {
	return len(f.labels) - 1
}

// Value creation ---------------------------------------------------------------

// ValueCreate allocates an uninitialized local of type ty.
func (e *Engine) ValueCreate(fn FuncID, ty types.TypeID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	r, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if r.Class == ClassVoid {
		return NoValueID, f.errorf(CodeTypeMismatch, "cannot create a value of type void")
	}
	return f.addValue(valueInfo{Type: ty, rep: r, Kind: ValueLocal}), nil
}

// ValueParam returns the handle of parameter index.
func (e *Engine) ValueParam(fn FuncID, index int) (ValueID, error) {
	f, err := e.Func(fn)
	if err != nil {
		return NoValueID, err
	}
	if index < 0 || index >= len(f.params) {
		return NoValueID, f.errorf(CodeArgCount, "parameter %d out of range [0, %d)", index, len(f.params))
	}
	return f.params[index], nil
}

// ValueType reports the type of a value.
func (e *Engine) ValueType(fn FuncID, v ValueID) (types.TypeID, error) {
	f, err := e.Func(fn)
	if err != nil {
		return types.NoTypeID, err
	}
	vi, err := f.value(v)
	if err != nil {
		return types.NoTypeID, err
	}
	return vi.Type, nil
}

// ValueKindOf reports where a value comes from.
func (e *Engine) ValueKindOf(fn FuncID, v ValueID) (ValueKind, error) {
	f, err := e.Func(fn)
	if err != nil {
		return ValueTemp, err
	}
	vi, err := f.value(v)
	if err != nil {
		return ValueTemp, err
	}
	return vi.Kind, nil
}

// SetAddressable forces v into frame memory so its address can be taken.
func (e *Engine) SetAddressable(fn FuncID, v ValueID) error {
	f, err := e.builder(fn)
	if err != nil {
		return err
	}
	vi, err := f.value(v)
	if err != nil {
		return err
	}
	if vi.Kind == ValueConst {
		return f.errorf(CodeUnsupported, "constant v%d cannot be addressable", v)
	}
	vi.Addressable = true
	return nil
}

// IsAddressable reports whether v lives in frame memory.
func (e *Engine) IsAddressable(fn FuncID, v ValueID) bool {
	f, err := e.Func(fn)
	if err != nil {
		return false
	}
	vi, err := f.value(v)
	return err == nil && vi.Addressable
}

// Constants --------------------------------------------------------------------

func (e *Engine) constValue(fn FuncID, ty types.TypeID, bits uint64, want Class) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	r, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if !constClassOK(r.Class, want) {
		return NoValueID, f.errorf(CodeTypeMismatch, "cannot create %s constant of type %s", want, e.Types.String(ty))
	}
	return f.addValue(valueInfo{Type: ty, rep: r, Kind: ValueConst, Const: Normalize(r, bits)}), nil
}

func constClassOK(have, want Class) bool {
	if want == ClassFloat {
		return have == ClassFloat
	}
	return have == ClassInt || have == ClassUint || have == ClassPointer
}

// ConstNint creates an integer constant from the native-int slot. The value
// is truncated to the width of ty.
func (e *Engine) ConstNint(fn FuncID, ty types.TypeID, v int) (ValueID, error) {
	return e.constValue(fn, ty, asUint64(int64(v)), ClassInt)
}

// ConstLong creates an integer constant from the 64-bit slot.
func (e *Engine) ConstLong(fn FuncID, ty types.TypeID, v int64) (ValueID, error) {
	return e.constValue(fn, ty, asUint64(v), ClassInt)
}

// ConstFloat32 creates a float32 constant.
func (e *Engine) ConstFloat32(fn FuncID, ty types.TypeID, v float32) (ValueID, error) {
	r, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if r.Size != 4 {
		return NoValueID, errorf(CodeTypeMismatch, "float32 constant needs a 32-bit float type, got %s", e.Types.String(ty))
	}
	return e.constValue(fn, ty, uint64(math.Float32bits(v)), ClassFloat)
}

// ConstFloat64 creates a float64 constant.
func (e *Engine) ConstFloat64(fn FuncID, ty types.TypeID, v float64) (ValueID, error) {
	r, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if r.Size != 8 {
		return NoValueID, errorf(CodeTypeMismatch, "float64 constant needs a 64-bit float type, got %s", e.Types.String(ty))
	}
	return e.constValue(fn, ty, math.Float64bits(v), ClassFloat)
}

func (e *Engine) constBits(fn FuncID, v ValueID) (valueInfo, bool) {
	f, err := e.Func(fn)
	if err != nil {
		return valueInfo{}, false
	}
	vi, err := f.value(v)
	if err != nil || vi.Kind != ValueConst {
		return valueInfo{}, false
	}
	return *vi, true
}

// IsConstant reports whether v is a constant.
func (e *Engine) IsConstant(fn FuncID, v ValueID) bool {
	_, ok := e.constBits(fn, v)
	return ok
}

// ConstNintValue reads an integer constant through the native-int slot. The
// result is sign-extended from the width of the constant's type.
func (e *Engine) ConstNintValue(fn FuncID, v ValueID) (int, bool) {
	vi, ok := e.constBits(fn, v)
	if !ok || vi.rep.Class == ClassFloat {
		return 0, false
	}
	n, err := safecast.Conv[int](asInt64(signExtend(vi.Const, vi.rep.Bits())))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ConstLongValue reads an integer constant through the 64-bit slot.
func (e *Engine) ConstLongValue(fn FuncID, v ValueID) (int64, bool) {
	vi, ok := e.constBits(fn, v)
	if !ok || vi.rep.Class == ClassFloat {
		return 0, false
	}
	return asInt64(signExtend(vi.Const, vi.rep.Bits())), true
}

// ConstFloat32Value reads a float32 constant.
func (e *Engine) ConstFloat32Value(fn FuncID, v ValueID) (float32, bool) {
	vi, ok := e.constBits(fn, v)
	if !ok || vi.rep.Class != ClassFloat || vi.rep.Size != 4 {
		return 0, false
	}
	return math.Float32frombits(uint32(vi.Const)), true //nolint:gosec // G115: canonical float32 bits.
}

// ConstFloat64Value reads a float64 constant.
func (e *Engine) ConstFloat64Value(fn FuncID, v ValueID) (float64, bool) {
	vi, ok := e.constBits(fn, v)
	if !ok || vi.rep.Class != ClassFloat || vi.rep.Size != 8 {
		return 0, false
	}
	return math.Float64frombits(vi.Const), true
}

// Labels -----------------------------------------------------------------------

// NewLabel allocates an unplaced label.
func (e *Engine) NewLabel(fn FuncID) (LabelID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoLabelID, err
	}
	n, convErr := safecast.Conv[uint32](len(f.labels))
	if convErr != nil {
		panic(fmt.Errorf("label table overflow: %w", convErr))
	}
	f.labels = append(f.labels, labelInfo{pos: -1})
	return LabelID(n), nil
}

func (f *Func) label(l LabelID) (*labelInfo, error) {
	if l == NoLabelID || int(l) >= len(f.labels) {
		return nil, f.errorf(CodeUnknownLabel, "unknown label L%d", l)
	}
	return &f.labels[l], nil
}

// LabelPlaced reports whether l has been placed in the stream.
func (e *Engine) LabelPlaced(fn FuncID, l LabelID) bool {
	f, err := e.Func(fn)
	if err != nil {
		return false
	}
	li, err := f.label(l)
	return err == nil && li.pos >= 0
}
