// Package llvmir lowers compiled engine functions to LLVM IR.
//
// The output has -O0 shape: every engine value gets a stack slot in the
// entry block, every instruction loads its operands from their slots and
// stores its result back, labels become basic blocks and fallthrough into a
// label becomes an explicit br. Pointers are lowered to i8*, structs to byte
// arrays of their engine size. Natives, math intrinsics and other engine
// functions become external declarations.
package llvmir

import (
	"fmt"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	irtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"jitkit/internal/engine"
	"jitkit/internal/types"
)

var bytePtr = irtypes.NewPointer(irtypes.I8)

// Options tunes an export.
type Options struct {
	// Name overrides the engine name of the function.
	Name string
	// Variadic reports natives to declare as variadic. Natives called with
	// differing signatures are declared variadic regardless.
	Variadic func(native string) bool
}

// Export lowers the compiled function fn into a fresh module. An empty name
// keeps the engine name.
func Export(e *engine.Engine, fn engine.FuncID, name string) (*ir.Module, error) {
	return ExportWith(e, fn, Options{Name: name})
}

// ExportWith is Export with options.
func ExportWith(e *engine.Engine, fn engine.FuncID, opts Options) (*ir.Module, error) {
	m := ir.NewModule()
	m.TargetTriple = e.Target().Triple
	if _, err := AddFunc(m, e, fn, opts); err != nil {
		return nil, err
	}
	return m, nil
}

// AddFunc lowers fn into m and returns the defined function.
func AddFunc(m *ir.Module, e *engine.Engine, fn engine.FuncID, opts Options) (*ir.Func, error) {
	view, err := e.FuncView(fn)
	if err != nil {
		return nil, err
	}
	if !view.Compiled {
		return nil, fmt.Errorf("llvmir: %s is not compiled", view.Name)
	}
	name := opts.Name
	if name == "" {
		name = view.Name
	}
	g := &funcGen{e: e, m: m, view: view, opts: opts, decls: make(map[string]*ir.Func)}
	for _, f := range m.Funcs {
		g.decls[f.Name()] = f
	}
	if err := g.lower(name); err != nil {
		return nil, fmt.Errorf("llvmir: %s: %w", name, err)
	}
	return g.f, nil
}

type funcGen struct {
	e    *engine.Engine
	m    *ir.Module
	view *engine.FuncView
	opts Options

	f      *ir.Func
	entry  *ir.Block
	cur    *ir.Block
	slots  []*ir.InstAlloca // by value handle, nil for constants and void
	labels []*ir.Block      // by label handle
	decls  map[string]*ir.Func
	// native name -> signature it is declared with, NoTypeID when the uses
	// disagree and the declaration is variadic
	natives map[string]types.TypeID
	ptrInt  *irtypes.IntType
}

// typeOf maps a representation to its LLVM type.
func typeOf(r engine.Rep) (irtypes.Type, error) {
	switch r.Class {
	case engine.ClassVoid:
		return irtypes.Void, nil
	case engine.ClassInt, engine.ClassUint:
		return intType(r.Size)
	case engine.ClassFloat:
		if r.Size == 4 {
			return irtypes.Float, nil
		}
		return irtypes.Double, nil
	case engine.ClassPointer:
		return bytePtr, nil
	case engine.ClassStruct:
		return irtypes.NewArray(uint64(r.Size), irtypes.I8), nil //nolint:gosec // G115: sizes are positive.
	default:
		return nil, fmt.Errorf("no LLVM type for %s", r.Class)
	}
}

func intType(size int) (*irtypes.IntType, error) {
	switch size {
	case 1:
		return irtypes.I8, nil
	case 2:
		return irtypes.I16, nil
	case 4:
		return irtypes.I32, nil
	case 8:
		return irtypes.I64, nil
	default:
		return nil, fmt.Errorf("no integer type of %d bytes", size)
	}
}

func (g *funcGen) typeOfType(ty types.TypeID) (irtypes.Type, error) {
	r, err := g.e.RepOf(ty)
	if err != nil {
		return nil, err
	}
	return typeOf(r)
}

func (g *funcGen) rep(v engine.ValueID) engine.Rep {
	return g.view.Values[v].Rep
}

func (g *funcGen) lower(name string) error {
	ptrInt, err := intType(g.e.Target().PtrSize)
	if err != nil {
		return err
	}
	g.ptrInt = ptrInt
	g.collectNatives()

	ret, err := g.typeOfType(g.e.SignatureReturn(g.view.Sig))
	if err != nil {
		return err
	}
	params := make([]*ir.Param, len(g.view.Params))
	for i, p := range g.view.Params {
		t, err := typeOf(g.rep(p))
		if err != nil {
			return err
		}
		params[i] = ir.NewParam(fmt.Sprintf("p%d", i), t)
	}
	if prev, ok := g.decls[name]; ok && len(prev.Blocks) > 0 {
		return fmt.Errorf("function @%s is already defined", name)
	}
	g.f = g.m.NewFunc(name, ret, params...)
	g.decls[name] = g.f

	g.entry = g.f.NewBlock("entry")
	g.cur = g.entry
	g.slots = make([]*ir.InstAlloca, len(g.view.Values))
	for i := 1; i < len(g.view.Values); i++ {
		vv := &g.view.Values[i]
		if vv.Kind == engine.ValueConst || vv.Rep.Class == engine.ClassVoid {
			continue
		}
		t, err := typeOf(vv.Rep)
		if err != nil {
			return err
		}
		slot := g.entry.NewAlloca(t)
		slot.SetName(fmt.Sprintf("v%d", i))
		g.slots[i] = slot
	}
	for i, p := range g.view.Params {
		g.entry.NewStore(params[i], g.slots[p])
	}

	g.labels = make([]*ir.Block, g.view.Labels+1)
	for l := 1; l <= g.view.Labels; l++ {
		g.labels[l] = g.f.NewBlock(fmt.Sprintf("L%d", l))
	}
	// label blocks were appended in handle order; reorder them as placed
	g.f.Blocks = g.f.Blocks[:1]

	for pc := range g.view.Insns {
		if err := g.insn(pc, &g.view.Insns[pc]); err != nil {
			return fmt.Errorf("insn %d (%s): %w", pc, g.view.Insns[pc].Op, err)
		}
	}
	if g.cur.Term == nil {
		g.cur.NewUnreachable()
	}
	return nil
}

// collectNatives decides the declaration of every native the function calls.
func (g *funcGen) collectNatives() {
	g.natives = make(map[string]types.TypeID)
	for i := range g.view.Insns {
		in := &g.view.Insns[i]
		if in.Op != engine.OpCallNative {
			continue
		}
		prev, seen := g.natives[in.Native]
		switch {
		case seen && prev != in.Type:
			g.natives[in.Native] = types.NoTypeID
		case !seen && g.opts.Variadic != nil && g.opts.Variadic(in.Native):
			g.natives[in.Native] = types.NoTypeID
		case !seen:
			g.natives[in.Native] = in.Type
		}
	}
}

// block starts a new basic block, falling through from the current one.
func (g *funcGen) block(b *ir.Block) {
	if g.cur.Term == nil {
		g.cur.NewBr(b)
	}
	b.Parent = g.f
	g.f.Blocks = append(g.f.Blocks, b)
	g.cur = b
}

func (g *funcGen) continuation(pc int) *ir.Block {
	return ir.NewBlock(fmt.Sprintf("pc%d", pc+1))
}

// constant materializes a constant value.
func (g *funcGen) constant(vv *engine.ValueView) (value.Value, error) {
	t, err := typeOf(vv.Rep)
	if err != nil {
		return nil, err
	}
	switch vv.Rep.Class {
	case engine.ClassInt:
		bits := vv.Const
		if vv.Rep.Size < 8 && bits>>(vv.Rep.Bits()-1)&1 == 1 {
			bits |= math.MaxUint64 << vv.Rep.Bits()
		}
		return constant.NewInt(t.(*irtypes.IntType), int64(bits)), nil //nolint:gosec // G115: reinterpreting canonical bits.
	case engine.ClassUint:
		return constant.NewInt(t.(*irtypes.IntType), int64(vv.Const)), nil //nolint:gosec // G115: reinterpreting canonical bits.
	case engine.ClassFloat:
		return constant.NewFloat(t.(*irtypes.FloatType), engine.BitsFloat(vv.Rep, vv.Const)), nil
	case engine.ClassPointer:
		if vv.Const == 0 {
			return constant.NewNull(bytePtr), nil
		}
		return constant.NewIntToPtr(constant.NewInt(irtypes.I64, int64(vv.Const)), bytePtr), nil //nolint:gosec // G115: reinterpreting address bits.
	default:
		return nil, fmt.Errorf("constant of class %s", vv.Rep.Class)
	}
}

// operand reads v: constants inline, everything else from its slot.
func (g *funcGen) operand(v engine.ValueID) (value.Value, error) {
	if v == engine.NoValueID || int(v) >= len(g.view.Values) {
		return nil, fmt.Errorf("unknown value v%d", v)
	}
	vv := &g.view.Values[v]
	if vv.Kind == engine.ValueConst {
		return g.constant(vv)
	}
	slot := g.slots[v]
	if slot == nil {
		return nil, fmt.Errorf("value v%d has no storage", v)
	}
	return g.cur.NewLoad(slot.ElemType, slot), nil
}

// operandAs reads v converted to rep r.
func (g *funcGen) operandAs(v engine.ValueID, r engine.Rep) (value.Value, error) {
	x, err := g.operand(v)
	if err != nil {
		return nil, err
	}
	return g.cast(x, g.rep(v), r)
}

func (g *funcGen) set(v engine.ValueID, x value.Value) error {
	if int(v) >= len(g.slots) || g.slots[v] == nil {
		return fmt.Errorf("value v%d has no storage", v)
	}
	g.cur.NewStore(x, g.slots[v])
	return nil
}

// cast converts x between representations the way the interpreter does:
// narrowing truncates, widening extends by the source class.
func (g *funcGen) cast(x value.Value, from, to engine.Rep) (value.Value, error) {
	if from == to {
		return x, nil
	}
	ft, err := typeOf(from)
	if err != nil {
		return nil, err
	}
	tt, err := typeOf(to)
	if err != nil {
		return nil, err
	}
	if ft.Equal(tt) {
		return x, nil
	}
	switch {
	case from.Class == engine.ClassStruct || to.Class == engine.ClassStruct,
		from.Class == engine.ClassVoid || to.Class == engine.ClassVoid:
		return nil, fmt.Errorf("cannot convert %s to %s", from.Class, to.Class)
	case from.Class == engine.ClassFloat && to.Class == engine.ClassFloat:
		if from.Size < to.Size {
			return g.cur.NewFPExt(x, tt), nil
		}
		return g.cur.NewFPTrunc(x, tt), nil
	case from.Class == engine.ClassFloat:
		if to.Class == engine.ClassPointer {
			return g.cur.NewIntToPtr(g.cur.NewFPToUI(x, g.ptrInt), tt), nil
		}
		if to.Class == engine.ClassInt {
			return g.cur.NewFPToSI(x, tt), nil
		}
		return g.cur.NewFPToUI(x, tt), nil
	case to.Class == engine.ClassFloat:
		if from.Class == engine.ClassPointer {
			return g.cur.NewUIToFP(g.cur.NewPtrToInt(x, g.ptrInt), tt), nil
		}
		if from.Class == engine.ClassInt {
			return g.cur.NewSIToFP(x, tt), nil
		}
		return g.cur.NewUIToFP(x, tt), nil
	case from.Class == engine.ClassPointer:
		return g.cur.NewPtrToInt(x, tt), nil
	case to.Class == engine.ClassPointer:
		return g.cur.NewIntToPtr(x, tt), nil
	case from.Size > to.Size:
		return g.cur.NewTrunc(x, tt), nil
	case from.Class == engine.ClassInt:
		return g.cur.NewSExt(x, tt), nil
	default:
		return g.cur.NewZExt(x, tt), nil
	}
}

// truthy tests a scalar against zero.
func (g *funcGen) truthy(x value.Value, r engine.Rep, want bool) (value.Value, error) {
	t, err := typeOf(r)
	if err != nil {
		return nil, err
	}
	switch r.Class {
	case engine.ClassFloat:
		pred := enum.FPredUNE
		if !want {
			pred = enum.FPredOEQ
		}
		return g.cur.NewFCmp(pred, x, constant.NewFloat(t.(*irtypes.FloatType), 0)), nil
	case engine.ClassPointer:
		pred := enum.IPredNE
		if !want {
			pred = enum.IPredEQ
		}
		return g.cur.NewICmp(pred, x, constant.NewNull(bytePtr)), nil
	case engine.ClassInt, engine.ClassUint:
		pred := enum.IPredNE
		if !want {
			pred = enum.IPredEQ
		}
		return g.cur.NewICmp(pred, x, constant.NewInt(t.(*irtypes.IntType), 0)), nil
	default:
		return nil, fmt.Errorf("no truth value for %s", r.Class)
	}
}

// boolean widens an i1 into the engine's bool representation.
func (g *funcGen) boolean(dst engine.ValueID, c value.Value) error {
	t, err := typeOf(g.rep(dst))
	if err != nil {
		return err
	}
	return g.set(dst, g.cur.NewZExt(c, t))
}

// address computes base+offset as i8* and casts it to a pointer to t.
func (g *funcGen) address(base value.Value, offset int64, t irtypes.Type) value.Value {
	p := base
	if offset != 0 {
		p = g.cur.NewGetElementPtr(irtypes.I8, base, constant.NewInt(irtypes.I64, offset))
	}
	return g.cur.NewBitCast(p, irtypes.NewPointer(t))
}

func (g *funcGen) insn(pc int, in *engine.Insn) error {
	switch {
	case in.Op.IsBinary():
		return g.binary(in)
	case in.Op.IsCompare():
		return g.compare(in)
	}

	switch in.Op {
	case engine.OpNop:
		return nil

	case engine.OpNeg, engine.OpNot:
		a, err := g.operandAs(in.A, in.Rep())
		if err != nil {
			return err
		}
		t, err := typeOf(in.Rep())
		if err != nil {
			return err
		}
		var z value.Value
		switch {
		case in.Op == engine.OpNeg && in.Rep().Class == engine.ClassFloat:
			z = g.cur.NewFNeg(a)
		case in.Op == engine.OpNeg:
			z = g.cur.NewSub(constant.NewInt(t.(*irtypes.IntType), 0), a)
		default:
			z = g.cur.NewXor(a, constant.NewInt(t.(*irtypes.IntType), -1))
		}
		return g.set(in.Dest, z)

	case engine.OpToBool, engine.OpToNotBool:
		a, err := g.operand(in.A)
		if err != nil {
			return err
		}
		c, err := g.truthy(a, g.rep(in.A), in.Op == engine.OpToBool)
		if err != nil {
			return err
		}
		return g.boolean(in.Dest, c)

	case engine.OpConvert, engine.OpCopy:
		x, err := g.operandAs(in.A, g.rep(in.Dest))
		if err != nil {
			return err
		}
		return g.set(in.Dest, x)

	case engine.OpAddressOf:
		if int(in.A) >= len(g.slots) || g.slots[in.A] == nil {
			return fmt.Errorf("value v%d has no storage", in.A)
		}
		return g.set(in.Dest, g.cur.NewBitCast(g.slots[in.A], bytePtr))

	case engine.OpLoadRel:
		p, err := g.operand(in.A)
		if err != nil {
			return err
		}
		t, err := typeOf(in.Rep())
		if err != nil {
			return err
		}
		x, err := g.cast(g.cur.NewLoad(t, g.address(p, in.Offset, t)), in.Rep(), g.rep(in.Dest))
		if err != nil {
			return err
		}
		return g.set(in.Dest, x)

	case engine.OpStoreRel:
		p, err := g.operand(in.A)
		if err != nil {
			return err
		}
		t, err := typeOf(in.Rep())
		if err != nil {
			return err
		}
		x, err := g.operandAs(in.B, in.Rep())
		if err != nil {
			return err
		}
		g.cur.NewStore(x, g.address(p, in.Offset, t))
		return nil

	case engine.OpLoadElem, engine.OpStoreElem:
		return g.element(in)

	case engine.OpAlloca:
		n, err := g.operandAs(in.A, engine.Rep{Class: engine.ClassUint, Size: g.e.Target().PtrSize})
		if err != nil {
			return err
		}
		buf := g.cur.NewAlloca(irtypes.I8)
		buf.NElems = n
		return g.set(in.Dest, buf)

	case engine.OpLabel:
		if int(in.Label) >= len(g.labels) || g.labels[in.Label] == nil {
			return fmt.Errorf("unknown label L%d", in.Label)
		}
		g.block(g.labels[in.Label])
		return nil

	case engine.OpBranch:
		target, err := g.label(in.Label)
		if err != nil {
			return err
		}
		g.cur.NewBr(target)
		g.block(g.continuation(pc))
		return nil

	case engine.OpBranchIf, engine.OpBranchIfNot:
		target, err := g.label(in.Label)
		if err != nil {
			return err
		}
		a, err := g.operand(in.A)
		if err != nil {
			return err
		}
		c, err := g.truthy(a, g.rep(in.A), in.Op == engine.OpBranchIf)
		if err != nil {
			return err
		}
		next := g.continuation(pc)
		g.cur.NewCondBr(c, target, next)
		g.block(next)
		return nil

	case engine.OpReturn:
		if in.A == engine.NoValueID {
			g.cur.NewRet(nil)
		} else {
			ret, err := g.e.RepOf(g.e.SignatureReturn(g.view.Sig))
			if err != nil {
				return err
			}
			x, err := g.operandAs(in.A, ret)
			if err != nil {
				return err
			}
			g.cur.NewRet(x)
		}
		g.block(g.continuation(pc))
		return nil

	case engine.OpCall:
		return g.call(in)
	case engine.OpCallNative:
		return g.callNative(in)
	case engine.OpMath:
		return g.math(in)
	}
	return fmt.Errorf("no lowering for %s", in.Op)
}

func (g *funcGen) label(l engine.LabelID) (*ir.Block, error) {
	if int(l) >= len(g.labels) || g.labels[l] == nil {
		return nil, fmt.Errorf("unknown label L%d", l)
	}
	return g.labels[l], nil
}

func (g *funcGen) binary(in *engine.Insn) error {
	r := in.Rep()
	if r.Class == engine.ClassPointer {
		// pointer arithmetic runs on the address bits
		r = engine.Rep{Class: engine.ClassUint, Size: g.e.Target().PtrSize}
	}
	a, err := g.operandAs(in.A, r)
	if err != nil {
		return err
	}
	b, err := g.operandAs(in.B, r)
	if err != nil {
		return err
	}
	var z value.Value
	if r.Class == engine.ClassFloat {
		z, err = g.floatBinary(in.Op, r, a, b)
	} else {
		z, err = g.intBinary(in.Op, r, a, b)
	}
	if err != nil {
		return err
	}
	if z, err = g.cast(z, r, in.Rep()); err != nil {
		return err
	}
	return g.set(in.Dest, z)
}

func (g *funcGen) intBinary(op engine.Op, r engine.Rep, a, b value.Value) (value.Value, error) {
	signed := r.Class == engine.ClassInt
	switch op {
	case engine.OpAdd:
		return g.cur.NewAdd(a, b), nil
	case engine.OpSub:
		return g.cur.NewSub(a, b), nil
	case engine.OpMul:
		return g.cur.NewMul(a, b), nil
	case engine.OpDiv:
		if signed {
			return g.cur.NewSDiv(a, b), nil
		}
		return g.cur.NewUDiv(a, b), nil
	case engine.OpRem:
		if signed {
			return g.cur.NewSRem(a, b), nil
		}
		return g.cur.NewURem(a, b), nil
	case engine.OpPow:
		t, err := typeOf(r)
		if err != nil {
			return nil, err
		}
		prefix := "jitkit.upow."
		if signed {
			prefix = "jitkit.ipow."
		}
		callee := g.declare(fmt.Sprintf("%s%s", prefix, t), t, false, t, t)
		return g.cur.NewCall(callee, a, b), nil
	case engine.OpAnd:
		return g.cur.NewAnd(a, b), nil
	case engine.OpOr:
		return g.cur.NewOr(a, b), nil
	case engine.OpXor:
		return g.cur.NewXor(a, b), nil
	case engine.OpShl, engine.OpShr:
		t, err := typeOf(r)
		if err != nil {
			return nil, err
		}
		// the count is taken modulo the width
		n := g.cur.NewAnd(b, constant.NewInt(t.(*irtypes.IntType), int64(r.Bits()-1)))
		if op == engine.OpShl {
			return g.cur.NewShl(a, n), nil
		}
		if signed {
			return g.cur.NewAShr(a, n), nil
		}
		return g.cur.NewLShr(a, n), nil
	}
	return nil, fmt.Errorf("%s on integers", op)
}

func (g *funcGen) floatBinary(op engine.Op, r engine.Rep, a, b value.Value) (value.Value, error) {
	switch op {
	case engine.OpAdd:
		return g.cur.NewFAdd(a, b), nil
	case engine.OpSub:
		return g.cur.NewFSub(a, b), nil
	case engine.OpMul:
		return g.cur.NewFMul(a, b), nil
	case engine.OpDiv:
		return g.cur.NewFDiv(a, b), nil
	case engine.OpRem:
		return g.cur.NewFRem(a, b), nil
	case engine.OpPow:
		t, err := typeOf(r)
		if err != nil {
			return nil, err
		}
		return g.cur.NewCall(g.declare(libm("pow", r), t, false, t, t), a, b), nil
	}
	return nil, fmt.Errorf("%s on floats", op)
}

var (
	signedPreds = map[engine.Op]enum.IPred{
		engine.OpLt: enum.IPredSLT, engine.OpLe: enum.IPredSLE,
		engine.OpGt: enum.IPredSGT, engine.OpGe: enum.IPredSGE,
		engine.OpEq: enum.IPredEQ, engine.OpNe: enum.IPredNE,
	}
	unsignedPreds = map[engine.Op]enum.IPred{
		engine.OpLt: enum.IPredULT, engine.OpLe: enum.IPredULE,
		engine.OpGt: enum.IPredUGT, engine.OpGe: enum.IPredUGE,
		engine.OpEq: enum.IPredEQ, engine.OpNe: enum.IPredNE,
	}
	floatPreds = map[engine.Op]enum.FPred{
		engine.OpLt: enum.FPredOLT, engine.OpLe: enum.FPredOLE,
		engine.OpGt: enum.FPredOGT, engine.OpGe: enum.FPredOGE,
		engine.OpEq: enum.FPredOEQ, engine.OpNe: enum.FPredUNE,
	}
)

func (g *funcGen) compare(in *engine.Insn) error {
	r := in.Rep()
	a, err := g.operandAs(in.A, r)
	if err != nil {
		return err
	}
	b, err := g.operandAs(in.B, r)
	if err != nil {
		return err
	}
	var c value.Value
	switch r.Class {
	case engine.ClassFloat:
		c = g.cur.NewFCmp(floatPreds[in.Op], a, b)
	case engine.ClassInt:
		c = g.cur.NewICmp(signedPreds[in.Op], a, b)
	default:
		c = g.cur.NewICmp(unsignedPreds[in.Op], a, b)
	}
	return g.boolean(in.Dest, c)
}

func (g *funcGen) element(in *engine.Insn) error {
	base, err := g.operand(in.A)
	if err != nil {
		return err
	}
	idx, err := g.operandAs(in.B, engine.Rep{Class: engine.ClassInt, Size: g.e.Target().PtrSize})
	if err != nil {
		return err
	}
	t, err := typeOf(in.Rep())
	if err != nil {
		return err
	}
	p := g.cur.NewGetElementPtr(t, g.cur.NewBitCast(base, irtypes.NewPointer(t)), idx)
	if in.Op == engine.OpLoadElem {
		x, err := g.cast(g.cur.NewLoad(t, p), in.Rep(), g.rep(in.Dest))
		if err != nil {
			return err
		}
		return g.set(in.Dest, x)
	}
	if len(in.Args) != 1 {
		return fmt.Errorf("store_elem without a value")
	}
	x, err := g.operandAs(in.Args[0], in.Rep())
	if err != nil {
		return err
	}
	g.cur.NewStore(x, p)
	return nil
}

// declare returns the function named name, adding an external declaration
// the first time.
func (g *funcGen) declare(name string, ret irtypes.Type, variadic bool, params ...irtypes.Type) *ir.Func {
	if f, ok := g.decls[name]; ok {
		return f
	}
	ps := make([]*ir.Param, len(params))
	for i, p := range params {
		ps[i] = ir.NewParam("", p)
	}
	f := g.m.NewFunc(name, ret, ps...)
	f.Sig.Variadic = variadic
	g.decls[name] = f
	return f
}

// declareSig declares name with the parameters and result of sig.
func (g *funcGen) declareSig(name string, sig types.TypeID, variadic bool) (*ir.Func, error) {
	if f, ok := g.decls[name]; ok {
		return f, nil
	}
	ret, err := g.typeOfType(g.e.SignatureReturn(sig))
	if err != nil {
		return nil, err
	}
	if variadic {
		return g.declare(name, ret, true), nil
	}
	params := g.e.SignatureParams(sig)
	ps := make([]irtypes.Type, len(params))
	for i, p := range params {
		if ps[i], err = g.typeOfType(p); err != nil {
			return nil, err
		}
	}
	return g.declare(name, ret, g.e.SignatureVariadic(sig), ps...), nil
}

func (g *funcGen) args(ids []engine.ValueID, sig types.TypeID) ([]value.Value, error) {
	params := g.e.SignatureParams(sig)
	out := make([]value.Value, len(ids))
	for i, id := range ids {
		want := g.rep(id)
		if i < len(params) {
			r, err := g.e.RepOf(params[i])
			if err != nil {
				return nil, err
			}
			want = r
		}
		x, err := g.operandAs(id, want)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func (g *funcGen) result(dst engine.ValueID, r engine.Rep, x value.Value) error {
	if r.Class == engine.ClassVoid || dst == engine.NoValueID || g.slots[dst] == nil {
		return nil
	}
	return g.set(dst, x)
}

func (g *funcGen) call(in *engine.Insn) error {
	var callee *ir.Func
	if in.Callee == g.view.ID {
		callee = g.f
	} else {
		target, err := g.e.Func(in.Callee)
		if err != nil {
			return err
		}
		if callee, err = g.declareSig(target.Name, target.Sig, false); err != nil {
			return err
		}
	}
	args, err := g.args(in.Args, in.Type)
	if err != nil {
		return err
	}
	return g.result(in.Dest, in.Rep(), g.cur.NewCall(callee, args...))
}

func (g *funcGen) callNative(in *engine.Insn) error {
	variadic := g.natives[in.Native] == types.NoTypeID
	callee, err := g.declareSig(in.Native, in.Type, variadic)
	if err != nil {
		return err
	}
	args, err := g.args(in.Args, in.Type)
	if err != nil {
		return err
	}
	return g.result(in.Dest, in.Rep(), g.cur.NewCall(callee, args...))
}

// libm names the C math function for an operation on r.
func libm(name string, r engine.Rep) string {
	if r.Size == 4 {
		return name + "f"
	}
	return name
}

func (g *funcGen) math(in *engine.Insn) error {
	r := in.Rep()
	t, err := typeOf(r)
	if err != nil {
		return err
	}
	params := make([]irtypes.Type, len(in.Args))
	args := make([]value.Value, len(in.Args))
	for i, a := range in.Args {
		params[i] = t
		if args[i], err = g.operandAs(a, r); err != nil {
			return err
		}
	}
	callee := g.declare(libm(in.Math.String(), r), t, false, params...)
	return g.set(in.Dest, g.cur.NewCall(callee, args...))
}
