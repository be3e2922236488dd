package jit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// building starts a build on a fresh context and creates an empty function.
func building(t *testing.T, r *Runtime, params []Type, ret Type) *Function {
	t.Helper()
	b, err := r.NewContext().BuildStart()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.End() })
	sig, err := r.Signature(params, ret, ABICdecl)
	require.NoError(t, err)
	f, err := b.NewFunction("", sig)
	require.NoError(t, err)
	return f
}

// compile builds and compiles one function on a fresh context.
func compile(t *testing.T, r *Runtime, params []Type, ret Type, body func(f *Function)) *Function {
	t.Helper()
	f, err := r.NewContext().BuildFunction(params, ret, func(f *Function) error {
		body(f)
		return f.Err()
	})
	require.NoError(t, err)
	require.True(t, f.Compiled())
	return f
}

func arg(t *testing.T, f *Function, i int) Value {
	t.Helper()
	v, err := f.Arg(i)
	require.NoError(t, err)
	return v
}

func call(t *testing.T, f *Function, args ...any) any {
	t.Helper()
	res, err := f.Call(args...)
	require.NoError(t, err)
	return res
}

func ptr(t *testing.T, r *Runtime, target Type) Type {
	t.Helper()
	p, err := r.Pointer(target)
	require.NoError(t, err)
	return p
}
