package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIfElse(t *testing.T) {
	r := New()
	fn := compile(t, r, []Type{r.Int32()}, r.Bool(), func(f *Function) {
		x := arg(t, f, 0)
		require.NoError(t, f.If(x.Gt(0)).Do(func() {
			f.Return(true)
		}).Else(func() {
			f.Return(false)
		}).End())
	})

	assert.Equal(t, true, call(t, fn, 5))
	assert.Equal(t, false, call(t, fn, -65))
	assert.Equal(t, false, call(t, fn, 0))
}

func TestIfWithoutElseFallsThrough(t *testing.T) {
	r := New()
	fn := compile(t, r, []Type{r.Int32()}, r.Int32(), func(f *Function) {
		x := arg(t, f, 0)
		res := f.Declare(r.Int32()).Store(1)
		require.NoError(t, f.If(x.Lt(0)).Do(func() {
			res.Store(-1)
		}).End())
		f.Return(res)
	})

	assert.Equal(t, int64(1), call(t, fn, 7))
	assert.Equal(t, int64(-1), call(t, fn, -7))
}

func TestUnless(t *testing.T) {
	r := New()
	fn := compile(t, r, []Type{r.Int32()}, r.Int32(), func(f *Function) {
		x := arg(t, f, 0)
		require.NoError(t, f.Unless(x.Gt(0)).Do(func() {
			f.Return(0)
		}).End())
		f.Return(1)
	})

	assert.Equal(t, int64(1), call(t, fn, 5))
	assert.Equal(t, int64(0), call(t, fn, -3))
	assert.Equal(t, int64(0), call(t, fn, 0))
}

func countTo(t *testing.T, r *Runtime, until bool) *Function {
	t.Helper()
	return compile(t, r, []Type{r.Int32()}, r.Int32(), func(f *Function) {
		x := arg(t, f, 0)
		res := f.Declare(r.Int32()).Store(0)
		loop := f.While(func() Value { return res.Lt(x) })
		if until {
			loop = f.Until(func() Value { return res.Ge(x) })
		}
		require.NoError(t, loop.Do(func() {
			res.Store(res.Add(1))
		}).End())
		f.Return(res)
	})
}

func TestWhile(t *testing.T) {
	r := New()
	fn := countTo(t, r, false)
	assert.Equal(t, int64(0), call(t, fn, 0))
	assert.Equal(t, int64(5), call(t, fn, 5))
	assert.Equal(t, int64(0), call(t, fn, -4))
}

func TestUntil(t *testing.T) {
	r := New()
	fn := countTo(t, r, true)
	assert.Equal(t, int64(0), call(t, fn, 0))
	assert.Equal(t, int64(5), call(t, fn, 5))
}

func TestBreakLeavesInnermostLoop(t *testing.T) {
	r := New()
	fn := compile(t, r, []Type{r.Int32()}, r.Int32(), func(f *Function) {
		x := arg(t, f, 0)
		res := f.Declare(r.Int32()).Store(0)
		require.NoError(t, f.While(func() Value { return res.Lt(x) }).Do(func() {
			res.Store(res.Add(1))
			require.NoError(t, f.Break())
		}).End())
		f.Return(res)
	})

	assert.Equal(t, int64(1), call(t, fn, 5))
	assert.Equal(t, int64(1), call(t, fn, 1000))
}

func TestNestedLoops(t *testing.T) {
	r := New()
	// sum of i*j for i, j in [0, n)
	fn := compile(t, r, []Type{r.Int32()}, r.Int32(), func(f *Function) {
		n := arg(t, f, 0)
		sum := f.Declare(r.Int32()).Store(0)
		i := f.Declare(r.Int32()).Store(0)
		require.NoError(t, f.While(func() Value { return i.Lt(n) }).Do(func() {
			j := f.Declare(r.Int32()).Store(0)
			require.NoError(t, f.While(func() Value { return j.Lt(n) }).Do(func() {
				sum.Store(sum.Add(i.Mul(j)))
				j.Store(j.Add(1))
			}).End())
			i.Store(i.Add(1))
		}).End())
		f.Return(sum)
	})

	assert.Equal(t, int64(0), call(t, fn, 1))
	assert.Equal(t, int64(36), call(t, fn, 4))
}

func TestBreakOutsideLoop(t *testing.T) {
	r := New()
	f := building(t, r, nil, r.Void())
	require.ErrorIs(t, f.Break(), ErrInstruction)
	require.ErrorIs(t, f.Compile(), ErrInstruction)
}

func TestLabelPlacedTwice(t *testing.T) {
	r := New()
	f := building(t, r, nil, r.Void())
	l := f.Label()
	require.NoError(t, l.Set())
	assert.True(t, l.Placed())
	require.ErrorIs(t, l.Set(), ErrInstruction)
}

func TestJmpSkipsCode(t *testing.T) {
	r := New()
	fn := compile(t, r, nil, r.Int32(), func(f *Function) {
		skip := f.Label()
		require.NoError(t, f.Jmp(skip))
		f.Return(1)
		require.NoError(t, skip.Set())
		f.Return(2)
	})
	assert.Equal(t, int64(2), call(t, fn))
}

func TestReachableFallthroughRejected(t *testing.T) {
	r := New()
	ctx := r.NewContext()
	_, err := ctx.BuildFunction([]Type{r.Int32()}, r.Int32(), func(f *Function) error {
		x := arg(t, f, 0)
		return f.If(x.Gt(0)).Do(func() { f.Return(1) }).End()
	})
	require.ErrorIs(t, err, ErrCompile)
	assert.False(t, r.Lock().Held())
	assert.False(t, ctx.Building())
}

func TestVoidFunctionGetsDefaultReturn(t *testing.T) {
	r := New()
	fn := compile(t, r, nil, r.Void(), func(*Function) {})
	res, err := fn.Call()
	require.NoError(t, err)
	assert.Nil(t, res)
}
