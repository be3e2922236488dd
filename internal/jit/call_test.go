package jit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitkit/internal/engine"
)

func TestCallArgumentCount(t *testing.T) {
	r := New()
	i32 := r.Int32()
	fn := compile(t, r, []Type{i32, i32}, i32, func(f *Function) {
		f.Return(arg(t, f, 0).Add(arg(t, f, 1)))
	})

	_, err := fn.Call(1)
	require.ErrorIs(t, err, ErrArgument)
	_, err = fn.Call(1, 2, 3)
	require.ErrorIs(t, err, ErrArgument)
	// the count is checked before any argument is looked at
	_, err = fn.Call(struct{}{})
	require.ErrorIs(t, err, ErrArgument)
	assert.Equal(t, int64(3), call(t, fn, 1, 2))
}

func TestCallBeforeCompile(t *testing.T) {
	r := New()
	f := building(t, r, nil, r.Void())
	_, err := f.Call()
	require.ErrorIs(t, err, ErrCompile)
}

func TestCallTranslatesBools(t *testing.T) {
	r := New()
	fn := compile(t, r, []Type{r.Bool(), r.Bool()}, r.Bool(), func(f *Function) {
		f.Return(arg(t, f, 0).LogicalXor(arg(t, f, 1)))
	})
	assert.Equal(t, true, call(t, fn, true, false))
	assert.Equal(t, false, call(t, fn, true, true))
	assert.Equal(t, false, call(t, fn, false, false))
}

func TestCallRejectsUnconvertibleArgument(t *testing.T) {
	r := New()
	fn := compile(t, r, []Type{r.Int32()}, r.Int32(), func(f *Function) {
		f.Return(arg(t, f, 0))
	})
	_, err := fn.Call("seven")
	require.ErrorIs(t, err, ErrArgument)
	_, err = fn.Call(1.5)
	require.ErrorIs(t, err, ErrArgument)
}

func TestCallOther(t *testing.T) {
	r := New()
	i64 := r.Int64()
	ctx := r.NewContext()
	var square, caller *Function
	require.NoError(t, ctx.Build(func(b *Build) error {
		var err error
		square, err = b.Function([]Type{i64}, i64, func(f *Function) error {
			x := arg(t, f, 0)
			f.Return(x.Mul(x))
			return nil
		})
		if err != nil {
			return err
		}
		caller, err = b.Function([]Type{i64}, i64, func(f *Function) error {
			f.Return(f.CallOther(square, arg(t, f, 0)).Add(1))
			return nil
		})
		return err
	}))
	assert.Equal(t, int64(50), call(t, caller, 7))

	f := building(t, r, nil, i64)
	f.CallOther(square)
	require.ErrorIs(t, f.Err(), ErrArgument)
}

func TestRecursion(t *testing.T) {
	r := New(WithMaxDepth(64))
	i64 := r.Int64()
	fact := compile(t, r, []Type{i64}, i64, func(f *Function) {
		n := arg(t, f, 0)
		require.NoError(t, f.If(n.Le(1)).Do(func() {
			f.Return(1)
		}).End())
		f.Return(n.Mul(f.CallOther(f, n.Sub(1))))
	})
	assert.Equal(t, int64(3628800), call(t, fact, 10))

	_, err := fact.Call(1000)
	var ee *engine.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engine.CodeStackOverflow, ee.Code)
}

func TestRuntimeFailuresAreWrapped(t *testing.T) {
	r := New(WithMaxSteps(100))
	i32 := r.Int32()
	div := compile(t, r, []Type{i32, i32}, i32, func(f *Function) {
		f.Return(arg(t, f, 0).Div(arg(t, f, 1)))
	})
	_, err := div.Call(1, 0)
	require.ErrorIs(t, err, &engine.EngineError{Code: engine.CodeDivideByZero})

	spin := compile(t, r, nil, r.Void(), func(f *Function) {
		require.NoError(t, f.While(func() Value { return f.True() }).Do(func() {}).End())
	})
	_, err = spin.Call()
	require.ErrorIs(t, err, &engine.EngineError{Code: engine.CodeStepLimit})
}

func TestCallMany(t *testing.T) {
	r := New()
	i64 := r.Int64()
	square := compile(t, r, []Type{i64}, i64, func(f *Function) {
		x := arg(t, f, 0)
		f.Return(x.Mul(x))
	})

	sets := make([][]any, 32)
	for i := range sets {
		sets[i] = []any{i}
	}
	res, err := square.CallMany(context.Background(), sets, 4)
	require.NoError(t, err)
	require.Len(t, res, len(sets))
	for i, v := range res {
		assert.Equal(t, int64(i*i), v)
	}

	sets[7] = []any{1, 2}
	_, err = square.CallMany(context.Background(), sets, 4)
	require.ErrorIs(t, err, ErrArgument)
}

func TestPrintfNative(t *testing.T) {
	var out bytes.Buffer
	r := New(WithStdout(&out))
	fn := compile(t, r, []Type{r.Int32()}, r.Void(), func(f *Function) {
		c := f.C()
		c.Printf("%d-%s|%5.2f|%x|%c%%\n", arg(t, f, 0), "hi", 3.14159, 255, 'Z')
		c.Puts("done")
		c.Putchar('!')
	})
	_, err := fn.Call(-42)
	require.NoError(t, err)
	assert.Equal(t, "-42-hi| 3.14|ff|Z%\ndone\n!", out.String())
}

func TestStringArguments(t *testing.T) {
	r := New()
	strlen := compile(t, r, []Type{r.Stringz()}, r.Uintn(), func(f *Function) {
		f.Return(f.C().Strlen(arg(t, f, 0)))
	})
	assert.Equal(t, uint64(5), call(t, strlen, "hello"))
	assert.Equal(t, uint64(0), call(t, strlen, ""))
	assert.Equal(t, 0, r.Engine().Memory().Live())
}

func TestNativeRegistry(t *testing.T) {
	r := New(WithoutNatives("rand"))
	_, ok := r.Natives().Lookup("rand")
	assert.False(t, ok)
	assert.Contains(t, r.Natives().Names(), "printf")

	_, err := r.Natives().Register(Native{
		Name:   "twice",
		Params: []Type{r.Int64()},
		Return: r.Int64(),
		Impl: func(c *engine.NativeCall) (uint64, error) {
			return c.ReturnInt(2 * c.Int(0)), nil
		},
	})
	require.NoError(t, err)

	fn := compile(t, r, []Type{r.Int64()}, r.Int64(), func(f *Function) {
		f.Return(f.CallNative("twice", arg(t, f, 0)))
	})
	assert.Equal(t, int64(42), call(t, fn, 21))

	f := building(t, r, nil, r.Void())
	f.CallNative("missing")
	require.ErrorIs(t, f.Err(), ErrInstruction)
}

func TestNativeFailureSurfaces(t *testing.T) {
	r := New()
	_, err := r.Natives().Register(Native{
		Name: "fail",
		Impl: func(*engine.NativeCall) (uint64, error) { return 0, errors.New("nope") },
	})
	require.NoError(t, err)
	fn := compile(t, r, nil, r.Void(), func(f *Function) {
		f.CallNative("fail")
	})
	_, err = fn.Call()
	require.ErrorIs(t, err, &engine.EngineError{Code: engine.CodeNative})
}

func TestImageRoundTrip(t *testing.T) {
	r := New()
	i64 := r.Int64()
	fn := compile(t, r, []Type{i64, i64}, i64, func(f *Function) {
		a, b := arg(t, f, 0), arg(t, f, 1)
		f.Return(a.Mul(10).Add(b))
	})
	img, err := fn.Image()
	require.NoError(t, err)

	var loaded *Function
	require.NoError(t, r.NewContext().Build(func(b *Build) error {
		loaded, err = b.LoadImage(img)
		return err
	}))
	assert.True(t, loaded.Compiled())
	assert.Equal(t, int64(47), call(t, loaded, 4, 7))
}

func TestDump(t *testing.T) {
	r := New()
	fn := compile(t, r, []Type{r.Int32()}, r.Int32(), func(f *Function) {
		f.Return(arg(t, f, 0).Add(1))
	})
	var buf bytes.Buffer
	require.NoError(t, fn.Dump(&buf))
	assert.Contains(t, buf.String(), "[compiled]")
	assert.Contains(t, buf.String(), "add")
}
