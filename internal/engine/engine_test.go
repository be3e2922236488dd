package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitkit/internal/layout"
	"jitkit/internal/types"
)

func building(t *testing.T, opts Options) (*Engine, ContextID) {
	t.Helper()
	e := New(opts)
	ctx := e.CreateContext()
	require.NoError(t, e.BuildStart(ctx))
	return e, ctx
}

func sig(t *testing.T, e *Engine, result types.TypeID, params ...types.TypeID) types.TypeID {
	t.Helper()
	s, err := e.TypeSignature(types.ABICdecl, result, params)
	require.NoError(t, err)
	return s
}

func param(t *testing.T, e *Engine, fn FuncID, i int) ValueID {
	t.Helper()
	v, err := e.ValueParam(fn, i)
	require.NoError(t, err)
	return v
}

func binop(t *testing.T, e *Engine, fn FuncID, op Op, a, b ValueID) ValueID {
	t.Helper()
	v, err := e.InsnBinary(fn, op, a, b)
	require.NoError(t, err)
	return v
}

func codeOf(code Code) error {
	return &EngineError{Code: code}
}

// buildFact builds int64 fact(int64) with a self call.
func buildFact(t *testing.T, e *Engine, ctx ContextID) FuncID {
	t.Helper()
	b := e.Types.Builtins()
	fn, err := e.CreateFunction(ctx, sig(t, e, b.Int64, b.Int64), "fact")
	require.NoError(t, err)
	n := param(t, e, fn, 0)
	one, err := e.ConstLong(fn, b.Int64, 1)
	require.NoError(t, err)

	c, err := e.InsnCompare(fn, OpLe, n, one)
	require.NoError(t, err)
	rec, err := e.NewLabel(fn)
	require.NoError(t, err)
	require.NoError(t, e.InsnBranchIfNot(fn, c, rec))
	require.NoError(t, e.InsnReturn(fn, one))
	require.NoError(t, e.InsnLabel(fn, rec))
	r, err := e.InsnCall(fn, fn, []ValueID{binop(t, e, fn, OpSub, n, one)})
	require.NoError(t, err)
	require.NoError(t, e.InsnReturn(fn, binop(t, e, fn, OpMul, n, r)))

	reachable, err := e.InsnDefaultReturn(fn)
	require.NoError(t, err)
	require.False(t, reachable)
	require.NoError(t, e.Compile(fn))
	return fn
}

func TestBuildCursorIsExclusive(t *testing.T) {
	e := New(Options{})
	first := e.CreateContext()
	second := e.CreateContext()

	require.NoError(t, e.BuildStart(first))
	assert.ErrorIs(t, e.BuildStart(second), codeOf(CodeBuildState))
	assert.ErrorIs(t, e.BuildStart(first), codeOf(CodeBuildState))
	assert.Equal(t, first, e.Building())

	require.NoError(t, e.BuildEnd(first))
	require.NoError(t, e.BuildStart(second))
	assert.Equal(t, second, e.Building())
}

func TestDestroyContextEndsBuild(t *testing.T) {
	e, ctx := building(t, Options{})
	b := e.Types.Builtins()
	fn, err := e.CreateFunction(ctx, sig(t, e, b.Void), "")
	require.NoError(t, err)

	require.NoError(t, e.DestroyContext(ctx))
	assert.Equal(t, NoContextID, e.Building())
	assert.ErrorIs(t, e.BuildStart(ctx), codeOf(CodeUnknownContext))
	_, err = e.Func(fn)
	assert.ErrorIs(t, err, codeOf(CodeUnknownFunction))
}

func TestCreateFunctionNeedsBuild(t *testing.T) {
	e := New(Options{})
	ctx := e.CreateContext()
	_, err := e.CreateFunction(ctx, sig(t, e, e.Types.Builtins().Void), "")
	assert.ErrorIs(t, err, codeOf(CodeBuildState))
}

func TestAddInt32(t *testing.T) {
	e, ctx := building(t, Options{})
	b := e.Types.Builtins()
	fn, err := e.CreateFunction(ctx, sig(t, e, b.Int32, b.Int32, b.Int32), "add")
	require.NoError(t, err)
	sum := binop(t, e, fn, OpAdd, param(t, e, fn, 0), param(t, e, fn, 1))
	require.NoError(t, e.InsnReturn(fn, sum))
	require.NoError(t, e.Compile(fn))

	got, err := e.Apply(fn, []uint64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)

	got, err = e.Apply(fn, []uint64{asUint64(-7), 3})
	require.NoError(t, err)
	assert.Equal(t, int64(-4), asInt64(got))

	_, err = e.Apply(fn, []uint64{1})
	assert.ErrorIs(t, err, codeOf(CodeArgCount))
}

func TestOperandPromotion(t *testing.T) {
	e, ctx := building(t, Options{})
	b := e.Types.Builtins()
	fn, err := e.CreateFunction(ctx, sig(t, e, b.Void), "")
	require.NoError(t, err)

	local := func(ty types.TypeID) ValueID {
		v, err := e.ValueCreate(fn, ty)
		require.NoError(t, err)
		return v
	}
	tests := []struct {
		name string
		a, b types.TypeID
		want types.TypeID
	}{
		{"narrow ints promote", b.Int8, b.Uint16, b.Int32},
		{"unsigned wins at equal width", b.Int32, b.Uint32, b.Uint32},
		{"wider wins", b.Uint32, b.Int64, b.Int64},
		{"native int", b.Nint, b.Int8, b.Nint},
		{"float wins", b.Int64, b.Float32, b.Float32},
		{"float64 wins", b.Float32, b.Float64, b.Float64},
		{"pointer plus int", b.VoidPtr, b.Int32, b.VoidPtr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := binop(t, e, fn, OpAdd, local(tt.a), local(tt.b))
			got, err := e.ValueType(fn, v)
			require.NoError(t, err)
			assert.Equal(t, e.Types.String(tt.want), e.Types.String(got))
		})
	}

	cmp, err := e.InsnCompare(fn, OpLt, local(b.Int8), local(b.Float64))
	require.NoError(t, err)
	ty, err := e.ValueType(fn, cmp)
	require.NoError(t, err)
	assert.True(t, e.Types.IsBool(ty))

	_, err = e.InsnBinary(fn, OpAnd, local(b.Float32), local(b.Float32))
	assert.ErrorIs(t, err, codeOf(CodeTypeMismatch))
}

func TestLoopWithStepBudget(t *testing.T) {
	build := func(e *Engine, ctx ContextID) FuncID {
		b := e.Types.Builtins()
		fn, err := e.CreateFunction(ctx, sig(t, e, b.Int64, b.Int64), "sum")
		require.NoError(t, err)
		n := param(t, e, fn, 0)
		s, err := e.ValueCreate(fn, b.Int64)
		require.NoError(t, err)
		i, err := e.ValueCreate(fn, b.Int64)
		require.NoError(t, err)
		zero, err := e.ConstLong(fn, b.Int64, 0)
		require.NoError(t, err)
		one, err := e.ConstLong(fn, b.Int64, 1)
		require.NoError(t, err)
		require.NoError(t, e.InsnStore(fn, s, zero))
		require.NoError(t, e.InsnStore(fn, i, one))

		top, err := e.NewLabel(fn)
		require.NoError(t, err)
		bottom, err := e.NewLabel(fn)
		require.NoError(t, err)
		require.NoError(t, e.InsnLabel(fn, top))
		c, err := e.InsnCompare(fn, OpGt, i, n)
		require.NoError(t, err)
		require.NoError(t, e.InsnBranchIf(fn, c, bottom))
		require.NoError(t, e.InsnStore(fn, s, binop(t, e, fn, OpAdd, s, i)))
		require.NoError(t, e.InsnStore(fn, i, binop(t, e, fn, OpAdd, i, one)))
		require.NoError(t, e.InsnBranch(fn, top))
		require.NoError(t, e.InsnLabel(fn, bottom))
		require.NoError(t, e.InsnReturn(fn, s))
		require.NoError(t, e.Compile(fn))
		return fn
	}

	e, ctx := building(t, Options{})
	fn := build(e, ctx)
	got, err := e.Apply(fn, []uint64{10})
	require.NoError(t, err)
	assert.Equal(t, uint64(55), got)

	limited, lctx := building(t, Options{MaxSteps: 50})
	fn = build(limited, lctx)
	_, err = limited.Apply(fn, []uint64{1000})
	assert.ErrorIs(t, err, codeOf(CodeStepLimit))
}

func TestRecursionAndDepthLimit(t *testing.T) {
	e, ctx := building(t, Options{})
	fn := buildFact(t, e, ctx)
	got, err := e.Apply(fn, []uint64{10})
	require.NoError(t, err)
	assert.Equal(t, uint64(3628800), got)

	shallow, sctx := building(t, Options{MaxDepth: 5})
	fn = buildFact(t, shallow, sctx)
	_, err = shallow.Apply(fn, []uint64{10})
	assert.ErrorIs(t, err, codeOf(CodeStackOverflow))
}

func TestDivideByZero(t *testing.T) {
	e, ctx := building(t, Options{})
	b := e.Types.Builtins()
	fn, err := e.CreateFunction(ctx, sig(t, e, b.Int32, b.Int32, b.Int32), "div")
	require.NoError(t, err)
	q := binop(t, e, fn, OpDiv, param(t, e, fn, 0), param(t, e, fn, 1))
	require.NoError(t, e.InsnReturn(fn, q))
	require.NoError(t, e.Compile(fn))

	got, err := e.Apply(fn, []uint64{asUint64(-9), 2})
	require.NoError(t, err)
	assert.Equal(t, int64(-4), asInt64(got))

	_, err = e.Apply(fn, []uint64{1, 0})
	require.ErrorIs(t, err, codeOf(CodeDivideByZero))
	assert.Contains(t, err.Error(), "div")
}

func TestStructThroughFrameMemory(t *testing.T) {
	e, ctx := building(t, Options{})
	b := e.Types.Builtins()
	st, err := e.TypeStruct([]types.TypeID{b.Int8, b.Uint16})
	require.NoError(t, err)
	off, err := e.StructFieldOffset(st, 1)
	require.NoError(t, err)
	require.Equal(t, 2, off)

	fn, err := e.CreateFunction(ctx, sig(t, e, b.Int32, b.Int8, b.Uint16), "fields")
	require.NoError(t, err)
	v, err := e.ValueCreate(fn, st)
	require.NoError(t, err)
	p, err := e.InsnAddressOf(fn, v)
	require.NoError(t, err)
	require.NoError(t, e.InsnStoreRelative(fn, p, 0, param(t, e, fn, 0)))
	require.NoError(t, e.InsnStoreRelative(fn, p, int64(off), param(t, e, fn, 1)))
	x, err := e.InsnLoadRelative(fn, p, 0, b.Int8)
	require.NoError(t, err)
	y, err := e.InsnLoadRelative(fn, p, int64(off), b.Uint16)
	require.NoError(t, err)
	require.NoError(t, e.InsnReturn(fn, binop(t, e, fn, OpAdd, x, y)))
	require.NoError(t, e.Compile(fn))

	got, err := e.Apply(fn, []uint64{asUint64(-5), 300})
	require.NoError(t, err)
	assert.Equal(t, int64(295), asInt64(got))
	assert.Equal(t, 0, e.Memory().Live())
}

func TestLabels(t *testing.T) {
	e, ctx := building(t, Options{})
	b := e.Types.Builtins()
	fn, err := e.CreateFunction(ctx, sig(t, e, b.Void), "labels")
	require.NoError(t, err)

	placed, err := e.NewLabel(fn)
	require.NoError(t, err)
	require.NoError(t, e.InsnLabel(fn, placed))
	assert.ErrorIs(t, e.InsnLabel(fn, placed), codeOf(CodeLabelPlaced))
	assert.ErrorIs(t, e.InsnBranch(fn, LabelID(99)), codeOf(CodeUnknownLabel))

	dangling, err := e.NewLabel(fn)
	require.NoError(t, err)
	require.NoError(t, e.InsnBranch(fn, dangling))
	assert.ErrorIs(t, e.Compile(fn), codeOf(CodeUnplacedLabel))
}

func TestDefaultReturn(t *testing.T) {
	e, ctx := building(t, Options{})
	b := e.Types.Builtins()

	empty, err := e.CreateFunction(ctx, sig(t, e, b.Void), "empty")
	require.NoError(t, err)
	reachable, err := e.InsnDefaultReturn(empty)
	require.NoError(t, err)
	assert.True(t, reachable)
	require.NoError(t, e.Compile(empty))
	_, err = e.Apply(empty, nil)
	require.NoError(t, err)

	// return inside a conditional leaves the end reachable
	partial, err := e.CreateFunction(ctx, sig(t, e, b.Int32, b.Int32), "partial")
	require.NoError(t, err)
	skip, err := e.NewLabel(partial)
	require.NoError(t, err)
	require.NoError(t, e.InsnBranchIfNot(partial, param(t, e, partial, 0), skip))
	require.NoError(t, e.InsnReturn(partial, param(t, e, partial, 0)))
	require.NoError(t, e.InsnLabel(partial, skip))
	reachable, err = e.InsnDefaultReturn(partial)
	require.NoError(t, err)
	assert.True(t, reachable)
}

func TestCompiledFunctionIsSealed(t *testing.T) {
	e, ctx := building(t, Options{})
	fn := buildFact(t, e, ctx)
	require.NoError(t, e.Compile(fn))
	_, err := e.ValueCreate(fn, e.Types.Builtins().Int8)
	assert.ErrorIs(t, err, codeOf(CodeCompiled))
}

func TestConstantReaders(t *testing.T) {
	e, ctx := building(t, Options{})
	b := e.Types.Builtins()
	fn, err := e.CreateFunction(ctx, sig(t, e, b.Void), "")
	require.NoError(t, err)

	v, err := e.ConstLong(fn, b.Uint64, -1)
	require.NoError(t, err)
	got, ok := e.ConstLongValue(fn, v)
	require.True(t, ok)
	assert.Equal(t, int64(-1), got)

	v, err = e.ConstNint(fn, b.Int8, 0x180)
	require.NoError(t, err)
	n, ok := e.ConstNintValue(fn, v)
	require.True(t, ok)
	assert.Equal(t, -128, n)

	f, err := e.ConstFloat32(fn, b.Float32, 1.5)
	require.NoError(t, err)
	fv, ok := e.ConstFloat32Value(fn, f)
	require.True(t, ok)
	assert.InDelta(t, 1.5, fv, 0)

	_, err = e.ConstFloat64(fn, b.Float32, 1.5)
	assert.ErrorIs(t, err, codeOf(CodeTypeMismatch))
	_, ok = e.ConstLongValue(fn, f)
	assert.False(t, ok)
}

func TestNativeCalls(t *testing.T) {
	e, ctx := building(t, Options{})
	b := e.Types.Builtins()
	e.RegisterNative("twice", func(c *NativeCall) (uint64, error) {
		return c.ReturnInt(c.Int(0) * 2), nil
	})
	s := sig(t, e, b.Int32, b.Int32)

	fn, err := e.CreateFunction(ctx, s, "callTwice")
	require.NoError(t, err)
	r, err := e.InsnCallNative(fn, "twice", s, []ValueID{param(t, e, fn, 0)})
	require.NoError(t, err)
	require.NoError(t, e.InsnReturn(fn, r))
	require.NoError(t, e.Compile(fn))
	got, err := e.Apply(fn, []uint64{21})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)

	missing, err := e.CreateFunction(ctx, s, "callMissing")
	require.NoError(t, err)
	r, err = e.InsnCallNative(missing, "missing", s, []ValueID{param(t, e, missing, 0)})
	require.NoError(t, err)
	require.NoError(t, e.InsnReturn(missing, r))
	require.NoError(t, e.Compile(missing))
	_, err = e.Apply(missing, []uint64{1})
	assert.ErrorIs(t, err, codeOf(CodeUnknownNative))

	variadic, err := e.TypeSignature(types.ABIVararg, b.Int32, []types.TypeID{b.Stringz})
	require.NoError(t, err)
	_, err = e.InsnCallNative(fn, "printf", variadic, nil)
	assert.Error(t, err)

	assert.Equal(t, []string{"twice"}, e.Natives())
}

func TestImageRoundTrip(t *testing.T) {
	e, ctx := building(t, Options{})
	fn := buildFact(t, e, ctx)
	img, err := e.ExportImage(fn)
	require.NoError(t, err)
	assert.Equal(t, "fact", img.Name)

	other, octx := building(t, Options{})
	restored, err := other.ImportImage(octx, img)
	require.NoError(t, err)
	got, err := other.Apply(restored, []uint64{5})
	require.NoError(t, err)
	assert.Equal(t, uint64(120), got)

	foreign, fctx := building(t, Options{Target: layout.I386LinuxGNU()})
	_, err = foreign.ImportImage(fctx, img)
	assert.ErrorIs(t, err, codeOf(CodeUnsupported))
}

func TestDump(t *testing.T) {
	e, ctx := building(t, Options{})
	fn := buildFact(t, e, ctx)
	var buf bytes.Buffer
	require.NoError(t, e.Dump(&buf, fn, DumpOptions{Values: true}))
	out := buf.String()
	assert.Contains(t, out, "fn fact fn(int64) -> int64 [compiled]")
	assert.Contains(t, out, "call fact(")
	assert.Contains(t, out, "mul")
	assert.Contains(t, out, "param#0")
}

func TestNativeWidthFollowsTarget(t *testing.T) {
	e := New(Options{Target: layout.I386LinuxGNU()})
	size, err := e.SizeOf(e.Types.Builtins().Nint)
	require.NoError(t, err)
	assert.Equal(t, 4, size)
	size, err = e.SizeOf(e.Types.Builtins().VoidPtr)
	require.NoError(t, err)
	assert.Equal(t, 4, size)
}
