package engine

import (
	"jitkit/internal/trace"
	"jitkit/internal/types"
)

// temp allocates the destination of an instruction.
func (e *Engine) temp(f *Func, ty types.TypeID) (ValueID, error) {
	r, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	return f.addValue(valueInfo{Type: ty, rep: r, Kind: ValueTemp}), nil
}

func (e *Engine) emit(f *Func, in Insn) {
	f.append(in)
	if e.tracer.Level().ShouldEmit(trace.ScopeInsn) {
		trace.Point(e.tracer, trace.ScopeInsn, "insn:"+in.Op.String(), f.Name, 0)
	}
}

// coerce returns v converted to ty, emitting a convert only when the runtime
// representations differ.
func (e *Engine) coerce(f *Func, v ValueID, ty types.TypeID) (ValueID, error) {
	vi, err := f.value(v)
	if err != nil {
		return NoValueID, err
	}
	if vi.Type == ty {
		return v, nil
	}
	want, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if vi.rep == want {
		return v, nil
	}
	if !vi.rep.Scalar() || !want.Scalar() {
		return NoValueID, f.errorf(CodeTypeMismatch, "cannot convert %s to %s", e.Types.String(vi.Type), e.Types.String(ty))
	}
	dst, err := e.temp(f, ty)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: OpConvert, Dest: dst, A: v, Type: ty, rep: vi.rep})
	return dst, nil
}

// Operand promotion ------------------------------------------------------------

type numInfo struct {
	id     types.TypeID
	kind   types.Kind
	bits   int
	native bool
}

func (e *Engine) numeric(ty types.TypeID) (numInfo, bool) {
	under := e.Types.Underlying(ty)
	tt, ok := e.Types.Lookup(under)
	if !ok {
		return numInfo{}, false
	}
	switch tt.Kind {
	case types.KindInt, types.KindUint, types.KindFloat, types.KindPointer, types.KindSignature:
	default:
		return numInfo{}, false
	}
	return numInfo{
		id:     under,
		kind:   tt.Kind,
		bits:   e.Layout.IntBits(under),
		native: tt.Width == types.WidthNative && tt.IsInteger(),
	}, true
}

// promoteUnary widens 8- and 16-bit integers (and bool) to int32.
func (e *Engine) promoteUnary(ty types.TypeID) (types.TypeID, bool) {
	n, ok := e.numeric(ty)
	if !ok {
		return types.NoTypeID, false
	}
	switch n.kind {
	case types.KindInt, types.KindUint:
		if n.bits < 32 {
			return e.Types.Builtins().Int32, true
		}
		return n.id, true
	case types.KindFloat:
		return n.id, true
	default:
		return types.NoTypeID, false
	}
}

// commonType picks the type both operands of op are converted to.
//
// Floats win over integers (float64 over float32). Integers narrower than 32
// bits promote to int32. The wider operand decides width and signedness; at
// equal width unsigned wins. Pointer plus or minus an integer keeps the
// pointer type.
func (e *Engine) commonType(op Op, a, b types.TypeID) (types.TypeID, error) {
	na, okA := e.numeric(a)
	nb, okB := e.numeric(b)
	if !okA || !okB {
		return types.NoTypeID, errorf(CodeTypeMismatch, "%s: operands %s and %s are not numeric", op, e.Types.String(a), e.Types.String(b))
	}
	bi := e.Types.Builtins()

	if na.kind == types.KindFloat || nb.kind == types.KindFloat {
		if (na.kind == types.KindFloat && na.bits == 64) || (nb.kind == types.KindFloat && nb.bits == 64) {
			return bi.Float64, nil
		}
		if na.kind == types.KindPointer || nb.kind == types.KindPointer {
			return types.NoTypeID, errorf(CodeTypeMismatch, "%s: cannot mix pointer and float", op)
		}
		return bi.Float32, nil
	}

	ptrA := na.kind == types.KindPointer || na.kind == types.KindSignature
	ptrB := nb.kind == types.KindPointer || nb.kind == types.KindSignature
	switch {
	case ptrA && !ptrB && (op == OpAdd || op == OpSub):
		return na.id, nil
	case ptrB && !ptrA && op == OpAdd:
		return nb.id, nil
	case ptrA && ptrB && op == OpSub:
		return bi.Nint, nil
	case ptrA || ptrB:
		return bi.Nuint, nil
	}

	pa, _ := e.promoteUnary(na.id)
	pb, _ := e.promoteUnary(nb.id)
	na, _ = e.numeric(pa)
	nb, _ = e.numeric(pb)

	bits := max(na.bits, nb.bits)
	var unsigned bool
	switch {
	case na.bits > nb.bits:
		unsigned = na.kind == types.KindUint
	case nb.bits > na.bits:
		unsigned = nb.kind == types.KindUint
	default:
		unsigned = na.kind == types.KindUint || nb.kind == types.KindUint
	}
	native := (na.native && na.bits == bits) || (nb.native && nb.bits == bits)
	switch {
	case native && unsigned:
		return bi.Nuint, nil
	case native:
		return bi.Nint, nil
	case bits == 64 && unsigned:
		return bi.Uint64, nil
	case bits == 64:
		return bi.Int64, nil
	case unsigned:
		return bi.Uint32, nil
	default:
		return bi.Int32, nil
	}
}

// Emitters ---------------------------------------------------------------------

// InsnBinary emits an arithmetic or bitwise instruction. Operands are
// converted to their common type, which is also the result type. Shifts use
// the promoted type of the left operand.
func (e *Engine) InsnBinary(fn FuncID, op Op, a, b ValueID) (ValueID, error) {
	if !op.IsBinary() {
		return NoValueID, errorf(CodeUnsupported, "%s is not a binary opcode", op)
	}
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	va, err := f.value(a)
	if err != nil {
		return NoValueID, err
	}
	vb, err := f.value(b)
	if err != nil {
		return NoValueID, err
	}
	var ty types.TypeID
	if op == OpShl || op == OpShr {
		var ok bool
		ty, ok = e.promoteUnary(va.Type)
		if !ok {
			return NoValueID, f.errorf(CodeTypeMismatch, "%s: operand %s is not numeric", op, e.Types.String(va.Type))
		}
	} else {
		ty, err = e.commonType(op, va.Type, vb.Type)
		if err != nil {
			return NoValueID, withFunc(f, err)
		}
	}
	tr, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if tr.Class == ClassFloat && (op == OpAnd || op == OpOr || op == OpXor || op == OpShl || op == OpShr) {
		return NoValueID, f.errorf(CodeTypeMismatch, "%s: not defined on %s", op, e.Types.String(ty))
	}

	coerce := e.coerce
	if tr.Class == ClassPointer {
		// pointer plus or minus an integer: only the integer side moves
		coerce = e.coerceKeepPtr
	}
	ca, err := coerce(f, a, ty)
	if err != nil {
		return NoValueID, err
	}
	cb, err := coerce(f, b, ty)
	if err != nil {
		return NoValueID, err
	}
	dst, err := e.temp(f, ty)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: op, Dest: dst, A: ca, B: cb, rep: tr})
	return dst, nil
}

func (e *Engine) isPointer(ty types.TypeID) bool {
	n, ok := e.numeric(ty)
	return ok && (n.kind == types.KindPointer || n.kind == types.KindSignature)
}

// coerceKeepPtr leaves pointer operands alone and widens integers to the
// pointer-sized unsigned type.
func (e *Engine) coerceKeepPtr(f *Func, v ValueID, ptrTy types.TypeID) (ValueID, error) {
	vi, err := f.value(v)
	if err != nil {
		return NoValueID, err
	}
	if e.isPointer(vi.Type) {
		return v, nil
	}
	n, ok := e.numeric(vi.Type)
	if !ok {
		return NoValueID, f.errorf(CodeTypeMismatch, "cannot offset %s by %s", e.Types.String(ptrTy), e.Types.String(vi.Type))
	}
	if n.kind == types.KindUint {
		return e.coerce(f, v, e.Types.Builtins().Nuint)
	}
	return e.coerce(f, v, e.Types.Builtins().Nint)
}

// InsnUnary emits neg or not on the promoted operand type.
func (e *Engine) InsnUnary(fn FuncID, op Op, a ValueID) (ValueID, error) {
	if op != OpNeg && op != OpNot {
		return NoValueID, errorf(CodeUnsupported, "%s is not a unary opcode", op)
	}
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	va, err := f.value(a)
	if err != nil {
		return NoValueID, err
	}
	ty, ok := e.promoteUnary(va.Type)
	if !ok {
		return NoValueID, f.errorf(CodeTypeMismatch, "%s: operand %s is not numeric", op, e.Types.String(va.Type))
	}
	tr, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if tr.Class == ClassFloat && op == OpNot {
		return NoValueID, f.errorf(CodeTypeMismatch, "not: not defined on %s", e.Types.String(ty))
	}
	ca, err := e.coerce(f, a, ty)
	if err != nil {
		return NoValueID, err
	}
	dst, err := e.temp(f, ty)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: op, Dest: dst, A: ca, rep: tr})
	return dst, nil
}

// InsnCompare emits a comparison. The result is always of the bool type.
func (e *Engine) InsnCompare(fn FuncID, op Op, a, b ValueID) (ValueID, error) {
	if !op.IsCompare() {
		return NoValueID, errorf(CodeUnsupported, "%s is not a comparison", op)
	}
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	va, err := f.value(a)
	if err != nil {
		return NoValueID, err
	}
	vb, err := f.value(b)
	if err != nil {
		return NoValueID, err
	}
	ty, err := e.commonType(op, va.Type, vb.Type)
	if err != nil {
		return NoValueID, withFunc(f, err)
	}
	tr, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	ca, err := e.coerce(f, a, ty)
	if err != nil {
		return NoValueID, err
	}
	cb, err := e.coerce(f, b, ty)
	if err != nil {
		return NoValueID, err
	}
	dst, err := e.temp(f, e.Types.Builtins().Bool)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: op, Dest: dst, A: ca, B: cb, rep: tr})
	return dst, nil
}

func (e *Engine) boolish(fn FuncID, op Op, a ValueID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	va, err := f.value(a)
	if err != nil {
		return NoValueID, err
	}
	if !va.rep.Scalar() {
		return NoValueID, f.errorf(CodeTypeMismatch, "%s: operand %s is not scalar", op, e.Types.String(va.Type))
	}
	dst, err := e.temp(f, e.Types.Builtins().Bool)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: op, Dest: dst, A: a, rep: va.rep})
	return dst, nil
}

// InsnToBool emits a 0/1 normalization of a.
func (e *Engine) InsnToBool(fn FuncID, a ValueID) (ValueID, error) {
	return e.boolish(fn, OpToBool, a)
}

// InsnToNotBool emits the inverted 0/1 normalization of a.
func (e *Engine) InsnToNotBool(fn FuncID, a ValueID) (ValueID, error) {
	return e.boolish(fn, OpToNotBool, a)
}

// InsnConvert emits an unchecked conversion of a to ty. A conversion between
// types with the same representation still produces a fresh value.
func (e *Engine) InsnConvert(fn FuncID, a ValueID, ty types.TypeID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	va, err := f.value(a)
	if err != nil {
		return NoValueID, err
	}
	want, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if !va.rep.Scalar() || !want.Scalar() {
		return NoValueID, f.errorf(CodeTypeMismatch, "cannot convert %s to %s", e.Types.String(va.Type), e.Types.String(ty))
	}
	dst, err := e.temp(f, ty)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: OpConvert, Dest: dst, A: a, Type: ty, rep: va.rep})
	return dst, nil
}

// InsnStore assigns src to dest. Scalars are converted to the type of dest;
// structs are copied byte for byte and must have the same size.
func (e *Engine) InsnStore(fn FuncID, dest, src ValueID) error {
	f, err := e.builder(fn)
	if err != nil {
		return err
	}
	vd, err := f.value(dest)
	if err != nil {
		return err
	}
	vs, err := f.value(src)
	if err != nil {
		return err
	}
	if vd.Kind == ValueConst {
		return f.errorf(CodeTypeMismatch, "cannot store into constant v%d", dest)
	}
	if vd.rep.Class == ClassStruct || vs.rep.Class == ClassStruct {
		if vd.rep != vs.rep {
			return f.errorf(CodeTypeMismatch, "cannot store %s into %s", e.Types.String(vs.Type), e.Types.String(vd.Type))
		}
		e.emit(f, Insn{Op: OpCopy, Dest: dest, A: src, rep: vd.rep})
		return nil
	}
	cs, err := e.coerce(f, src, vd.Type)
	if err != nil {
		return err
	}
	e.emit(f, Insn{Op: OpCopy, Dest: dest, A: cs, rep: vd.rep})
	return nil
}

// InsnAddressOf takes the address of v, making it addressable first.
func (e *Engine) InsnAddressOf(fn FuncID, v ValueID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	vi, err := f.value(v)
	if err != nil {
		return NoValueID, err
	}
	if vi.Kind == ValueConst {
		return NoValueID, f.errorf(CodeUnsupported, "cannot take the address of constant v%d", v)
	}
	vi.Addressable = true
	ptrTy := e.Types.Intern(types.MakePointer(vi.Type))
	dst, err := e.temp(f, ptrTy)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: OpAddressOf, Dest: dst, A: v})
	return dst, nil
}

func (e *Engine) pointerOperand(f *Func, ptr ValueID) error {
	vp, err := f.value(ptr)
	if err != nil {
		return err
	}
	if vp.rep.Class != ClassPointer {
		return f.errorf(CodeTypeMismatch, "expected a pointer, got %s", e.Types.String(vp.Type))
	}
	return nil
}

// InsnLoadRelative loads a value of type ty from ptr+offset.
func (e *Engine) InsnLoadRelative(fn FuncID, ptr ValueID, offset int64, ty types.TypeID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	if err := e.pointerOperand(f, ptr); err != nil {
		return NoValueID, err
	}
	r, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if r.Class == ClassVoid {
		return NoValueID, f.errorf(CodeTypeMismatch, "cannot load a void value")
	}
	dst, err := e.temp(f, ty)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: OpLoadRel, Dest: dst, A: ptr, Offset: offset, Type: ty, rep: r})
	return dst, nil
}

// InsnStoreRelative stores v at ptr+offset using the representation of v.
func (e *Engine) InsnStoreRelative(fn FuncID, ptr ValueID, offset int64, v ValueID) error {
	f, err := e.builder(fn)
	if err != nil {
		return err
	}
	if err := e.pointerOperand(f, ptr); err != nil {
		return err
	}
	vi, err := f.value(v)
	if err != nil {
		return err
	}
	e.emit(f, Insn{Op: OpStoreRel, A: ptr, B: v, Offset: offset, Type: vi.Type, rep: vi.rep})
	return nil
}

// InsnLoadElem loads element index of an array of ty starting at base.
func (e *Engine) InsnLoadElem(fn FuncID, base, index ValueID, ty types.TypeID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	if err := e.pointerOperand(f, base); err != nil {
		return NoValueID, err
	}
	idx, err := e.coerce(f, index, e.Types.Builtins().Nint)
	if err != nil {
		return NoValueID, err
	}
	r, err := e.RepOf(ty)
	if err != nil {
		return NoValueID, err
	}
	if r.Class == ClassVoid {
		return NoValueID, f.errorf(CodeTypeMismatch, "cannot load a void element")
	}
	dst, err := e.temp(f, ty)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: OpLoadElem, Dest: dst, A: base, B: idx, Type: ty, rep: r})
	return dst, nil
}

// InsnStoreElem stores v into element index of an array of v's type.
func (e *Engine) InsnStoreElem(fn FuncID, base, index, v ValueID) error {
	f, err := e.builder(fn)
	if err != nil {
		return err
	}
	if err := e.pointerOperand(f, base); err != nil {
		return err
	}
	idx, err := e.coerce(f, index, e.Types.Builtins().Nint)
	if err != nil {
		return err
	}
	vi, err := f.value(v)
	if err != nil {
		return err
	}
	e.emit(f, Insn{Op: OpStoreElem, A: base, B: idx, Args: []ValueID{v}, Type: vi.Type, rep: vi.rep})
	return nil
}

// InsnAlloca reserves size bytes that live until the function returns.
func (e *Engine) InsnAlloca(fn FuncID, size ValueID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	n, err := e.coerce(f, size, e.Types.Builtins().Nuint)
	if err != nil {
		return NoValueID, err
	}
	dst, err := e.temp(f, e.Types.Builtins().VoidPtr)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: OpAlloca, Dest: dst, A: n})
	return dst, nil
}

// InsnLabel places l at the current end of the stream.
func (e *Engine) InsnLabel(fn FuncID, l LabelID) error {
	f, err := e.builder(fn)
	if err != nil {
		return err
	}
	li, err := f.label(l)
	if err != nil {
		return err
	}
	if li.pos >= 0 {
		return f.errorf(CodeLabelPlaced, "label L%d is already placed", l)
	}
	li.pos = len(f.insns)
	e.emit(f, Insn{Op: OpLabel, Label: l})
	return nil
}

// InsnBranch emits an unconditional branch to l.
func (e *Engine) InsnBranch(fn FuncID, l LabelID) error {
	f, err := e.builder(fn)
	if err != nil {
		return err
	}
	if _, err := f.label(l); err != nil {
		return err
	}
	e.emit(f, Insn{Op: OpBranch, Label: l})
	return nil
}

func (e *Engine) condBranch(fn FuncID, op Op, cond ValueID, l LabelID) error {
	f, err := e.builder(fn)
	if err != nil {
		return err
	}
	if _, err := f.label(l); err != nil {
		return err
	}
	vc, err := f.value(cond)
	if err != nil {
		return err
	}
	if !vc.rep.Scalar() {
		return f.errorf(CodeTypeMismatch, "%s: condition %s is not scalar", op, e.Types.String(vc.Type))
	}
	e.emit(f, Insn{Op: op, A: cond, Label: l, rep: vc.rep})
	return nil
}

// InsnBranchIf branches to l when cond is non-zero.
func (e *Engine) InsnBranchIf(fn FuncID, cond ValueID, l LabelID) error {
	return e.condBranch(fn, OpBranchIf, cond, l)
}

// InsnBranchIfNot branches to l when cond is zero.
func (e *Engine) InsnBranchIfNot(fn FuncID, cond ValueID, l LabelID) error {
	return e.condBranch(fn, OpBranchIfNot, cond, l)
}

// InsnReturn returns v converted to the declared return type. NoValueID
// returns from a void function.
func (e *Engine) InsnReturn(fn FuncID, v ValueID) error {
	f, err := e.builder(fn)
	if err != nil {
		return err
	}
	if v == NoValueID {
		if f.retRep.Class != ClassVoid {
			return f.errorf(CodeTypeMismatch, "missing return value")
		}
		e.emit(f, Insn{Op: OpReturn})
		return nil
	}
	if f.retRep.Class == ClassVoid {
		return f.errorf(CodeTypeMismatch, "void function cannot return a value")
	}
	info, _ := e.Types.SignatureInfo(f.Sig)
	cv, err := e.coerce(f, v, info.Result)
	if err != nil {
		return err
	}
	e.emit(f, Insn{Op: OpReturn, A: cv, rep: f.retRep})
	return nil
}

// InsnDefaultReturn appends a fallback return when the end of the stream is
// reachable and reports whether it was.
func (e *Engine) InsnDefaultReturn(fn FuncID) (bool, error) {
	f, err := e.builder(fn)
	if err != nil {
		return false, err
	}
	if !f.endReachable() {
		return false, nil
	}
	e.emit(f, Insn{Op: OpReturn, implicit: true})
	return true, nil
}

// InsnCall calls another function of the engine. Arguments are converted to
// the callee's parameter types.
func (e *Engine) InsnCall(fn, callee FuncID, args []ValueID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	target, err := e.Func(callee)
	if err != nil {
		return NoValueID, err
	}
	info, _ := e.Types.SignatureInfo(target.Sig)
	cargs, err := e.callArgs(f, info, args)
	if err != nil {
		return NoValueID, err
	}
	dst, err := e.callResult(f, info.Result)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: OpCall, Dest: dst, Args: cargs, Callee: callee, Type: target.Sig, rep: target.retRep})
	return dst, nil
}

func (e *Engine) callArgs(f *Func, info *types.SignatureInfo, args []ValueID) ([]ValueID, error) {
	if len(args) != len(info.Params) {
		return nil, f.errorf(CodeArgCount, "call expects %d arguments, got %d", len(info.Params), len(args))
	}
	out := make([]ValueID, len(args))
	for i, a := range args {
		ca, err := e.coerce(f, a, info.Params[i])
		if err != nil {
			return nil, err
		}
		out[i] = ca
	}
	return out, nil
}

// callResult allocates the destination of a call; void calls still produce a
// value handle so the builder can wrap it.
func (e *Engine) callResult(f *Func, ret types.TypeID) (ValueID, error) {
	r, err := e.RepOf(ret)
	if err != nil {
		return NoValueID, err
	}
	return f.addValue(valueInfo{Type: ret, rep: r, Kind: ValueTemp}), nil
}

// InsnMath emits a floating point intrinsic. Integer operands are converted
// to float64; the result has the operand's float type.
func (e *Engine) InsnMath(fn FuncID, op MathOp, args []ValueID) (ValueID, error) {
	f, err := e.builder(fn)
	if err != nil {
		return NoValueID, err
	}
	if len(args) != op.Arity() {
		return NoValueID, f.errorf(CodeArgCount, "%s expects %d operands, got %d", op, op.Arity(), len(args))
	}
	ty := e.Types.Builtins().Float32
	for _, a := range args {
		va, err := f.value(a)
		if err != nil {
			return NoValueID, err
		}
		if va.rep.Class != ClassFloat || va.rep.Size != 4 {
			ty = e.Types.Builtins().Float64
		}
	}
	cargs := make([]ValueID, len(args))
	for i, a := range args {
		if cargs[i], err = e.coerce(f, a, ty); err != nil {
			return NoValueID, err
		}
	}
	r, _ := e.RepOf(ty)
	dst, err := e.temp(f, ty)
	if err != nil {
		return NoValueID, err
	}
	e.emit(f, Insn{Op: OpMath, Dest: dst, Args: cargs, Math: op, rep: r})
	return dst, nil
}

func withFunc(f *Func, err error) error {
	if ee, ok := err.(*EngineError); ok && ee.Func == "" && f != nil {
		ee.Func = f.Name
	}
	return err
}
