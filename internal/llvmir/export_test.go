package llvmir_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitkit/internal/jit"
	"jitkit/internal/llvmir"
)

func build(t *testing.T, r *jit.Runtime, params []jit.Type, ret jit.Type, body func(f *jit.Function, args []jit.Value)) *jit.Function {
	t.Helper()
	fn, err := r.NewContext().BuildFunction(params, ret, func(f *jit.Function) error {
		body(f, f.Args())
		return f.Err()
	})
	require.NoError(t, err)
	return fn
}

func TestExportStraightLine(t *testing.T) {
	r := jit.New()
	i64 := r.Int64()
	fn := build(t, r, []jit.Type{i64, i64}, i64, func(f *jit.Function, a []jit.Value) {
		f.Return(a[0].Mul(10).Add(a[1]))
	})

	m, err := llvmir.Export(r.Engine(), fn.ID(), "muladd")
	require.NoError(t, err)
	out := m.String()
	assert.Contains(t, out, "define i64 @muladd(i64 %p0, i64 %p1)")
	assert.Contains(t, out, "mul i64")
	assert.Contains(t, out, "add i64")
	assert.Contains(t, out, "ret i64")
	assert.Contains(t, out, `target triple = "x86_64-linux-gnu"`)
}

func TestExportLabelsBecomeBlocks(t *testing.T) {
	r := jit.New()
	i32 := r.Int32()
	fn := build(t, r, []jit.Type{i32}, i32, func(f *jit.Function, a []jit.Value) {
		require.NoError(t, f.If(a[0].Lt(0)).Do(func() {
			f.Return(a[0].Neg())
		}).Else(func() {
			f.Return(a[0])
		}).End())
	})

	m, err := llvmir.Export(r.Engine(), fn.ID(), "abs")
	require.NoError(t, err)
	require.Len(t, m.Funcs, 1)
	def := m.Funcs[0]
	assert.Greater(t, len(def.Blocks), 2)
	for _, b := range def.Blocks {
		assert.NotNil(t, b.Term, "block %s has no terminator", b.Name())
	}
	out := m.String()
	assert.Contains(t, out, "icmp slt i32")
	assert.Contains(t, out, "br i1")
	assert.Contains(t, out, "\nL1:")
}

func TestExportDeclaresCallees(t *testing.T) {
	r := jit.New()
	f64 := r.Float64()
	fn := build(t, r, []jit.Type{f64}, r.Void(), func(f *jit.Function, a []jit.Value) {
		f.C().Printf("%f\n", f.Math(jit.MathSqrt, a[0]))
	})

	variadic := func(name string) bool {
		n, ok := r.Natives().Lookup(name)
		return ok && n.Variadic
	}
	m, err := llvmir.ExportWith(r.Engine(), fn.ID(), llvmir.Options{Name: "show", Variadic: variadic})
	require.NoError(t, err)
	out := m.String()
	assert.Contains(t, out, "declare double @sqrt(double")
	assert.Contains(t, out, "declare i32 @printf(...)")
	assert.Contains(t, out, "define void @show(double %p0)")
}

func TestExportSelfCall(t *testing.T) {
	r := jit.New()
	i64 := r.Int64()
	fn := build(t, r, []jit.Type{i64}, i64, func(f *jit.Function, a []jit.Value) {
		require.NoError(t, f.If(a[0].Le(1)).Do(func() {
			f.Return(1)
		}).End())
		f.Return(a[0].Mul(f.CallOther(f, a[0].Sub(1))))
	})
	m, err := llvmir.Export(r.Engine(), fn.ID(), "fact")
	require.NoError(t, err)
	require.Len(t, m.Funcs, 1)
	assert.Contains(t, m.String(), "call i64 @fact(")
}

func TestExportNeedsCompiledFunction(t *testing.T) {
	r := jit.New()
	b, err := r.NewContext().BuildStart()
	require.NoError(t, err)
	defer func() { _ = b.End() }()
	sig, err := r.Signature(nil, r.Void(), jit.ABICdecl)
	require.NoError(t, err)
	f, err := b.NewFunction("open", sig)
	require.NoError(t, err)

	_, err = llvmir.Export(r.Engine(), f.ID(), "")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not compiled"))
}
