package jit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLockIsExclusive(t *testing.T) {
	r := New()
	first := r.NewContext()
	second := r.NewContext()

	b, err := first.BuildStart()
	require.NoError(t, err)
	assert.Same(t, first, r.Current())

	_, err = second.BuildStart()
	require.ErrorIs(t, err, ErrBuildLock)
	_, err = first.BuildStart()
	require.ErrorIs(t, err, ErrBuildLock)

	require.NoError(t, b.End())
	assert.Nil(t, r.Current())
	require.ErrorIs(t, b.End(), ErrBuildLock)

	b2, err := second.BuildStart()
	require.NoError(t, err)
	assert.True(t, second.Building())
	require.NoError(t, second.BuildEnd())
	assert.False(t, b2.Active())
}

func TestEndedBuildCannotCreateFunctions(t *testing.T) {
	r := New()
	b, err := r.NewContext().BuildStart()
	require.NoError(t, err)
	require.NoError(t, b.End())

	sig, err := r.Signature(nil, r.Void(), ABICdecl)
	require.NoError(t, err)
	_, err = b.NewFunction("late", sig)
	require.ErrorIs(t, err, ErrBuildLock)
}

func TestBuildReleasesLockOnError(t *testing.T) {
	r := New()
	ctx := r.NewContext()
	boom := errors.New("boom")

	err := ctx.Build(func(*Build) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, r.Lock().Held())

	require.NoError(t, ctx.Build(func(*Build) error { return nil }))
}

func TestBuildReleasesLockOnPanic(t *testing.T) {
	r := New()
	ctx := r.NewContext()

	require.Panics(t, func() {
		_ = ctx.Build(func(*Build) error { panic("boom") })
	})
	assert.False(t, r.Lock().Held())
	assert.False(t, ctx.Building())

	_, err := r.NewContext().BuildStart()
	require.NoError(t, err)
}

func TestDestroy(t *testing.T) {
	r := New()
	ctx := r.NewContext()
	_, err := ctx.BuildStart()
	require.NoError(t, err)

	require.NoError(t, ctx.Destroy())
	assert.True(t, ctx.Destroyed())
	assert.False(t, r.Lock().Held())
	require.NoError(t, ctx.Destroy())

	_, err = ctx.BuildStart()
	require.ErrorIs(t, err, ErrBuildLock)

	other, err := r.NewContext().BuildStart()
	require.NoError(t, err)
	require.NoError(t, other.End())
}

func TestDestroyInsideBuild(t *testing.T) {
	r := New()
	ctx := r.NewContext()
	err := ctx.Build(func(*Build) error { return ctx.Destroy() })
	require.NoError(t, err)
	assert.False(t, r.Lock().Held())
}

func TestFunctionsBelongToContext(t *testing.T) {
	r := New()
	ctx := r.NewContext()
	var fns []*Function
	require.NoError(t, ctx.Build(func(b *Build) error {
		for range 3 {
			fn, err := b.Function(nil, r.Int32(), func(f *Function) error {
				f.Return(len(fns))
				return nil
			})
			if err != nil {
				return err
			}
			fns = append(fns, fn)
		}
		return nil
	}))
	require.Len(t, ctx.Functions(), 3)
	for i, fn := range fns {
		assert.Same(t, ctx, fn.Context())
		assert.Equal(t, int64(i), call(t, fn))
	}
}

func TestCompiledFunctionIsSealed(t *testing.T) {
	r := New()
	ctx := r.NewContext()
	require.NoError(t, ctx.Build(func(b *Build) error {
		fn, err := b.Function(nil, r.Int32(), func(f *Function) error {
			f.Return(1)
			return nil
		})
		require.NoError(t, err)
		fn.Return(2)
		require.ErrorIs(t, fn.Err(), ErrCompile)
		return nil
	}))
}

func TestSecondContextBuildsAfterFirstEnds(t *testing.T) {
	r := New()
	a := compile(t, r, nil, r.Int32(), func(f *Function) { f.Return(10) })
	b := compile(t, r, nil, r.Int32(), func(f *Function) { f.Return(20) })
	assert.NotEqual(t, a.Context().ID(), b.Context().ID())
	assert.Equal(t, int64(10), call(t, a))
	assert.Equal(t, int64(20), call(t, b))
}
