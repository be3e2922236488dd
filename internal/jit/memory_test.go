package jit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructFieldSum(t *testing.T) {
	r := New()
	st, err := r.Struct(r.Int8(), r.Uint16())
	require.NoError(t, err)
	require.NoError(t, st.SetFieldNames("x", "y"))

	fn := compile(t, r, []Type{r.Int8(), r.Uint16()}, r.Int32(), func(f *Function) {
		s := f.Declare(st)
		s.SetField(0, arg(t, f, 0))
		s.SetFieldNamed("y", arg(t, f, 1))
		f.Return(s.Field(0).Add(s.FieldNamed("y")))
	})

	cases := []struct {
		x    int8
		y    uint16
		want int64
	}{
		{1, 2, 3},
		{-5, 300, 295},
		{math.MinInt8, 0, -128},
		{math.MaxInt8, math.MaxUint16, 127 + 65535},
		{-1, 1, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, call(t, fn, tc.x, tc.y), "%d + %d", tc.x, tc.y)
	}
	assert.Equal(t, 0, r.Engine().Memory().Live())
}

func TestUnknownFieldName(t *testing.T) {
	r := New()
	st, err := r.Struct(r.Int8())
	require.NoError(t, err)
	require.NoError(t, st.SetFieldNames("a"))

	f := building(t, r, nil, r.Void())
	f.Declare(st).FieldNamed("b")
	require.ErrorIs(t, f.Err(), ErrUnsupportedType)
}

func TestFieldOnScalarFails(t *testing.T) {
	r := New()
	f := building(t, r, []Type{r.Int32()}, r.Void())
	arg(t, f, 0).Field(0)
	require.ErrorIs(t, f.Err(), ErrType)
}

func TestPointerRoundTrip(t *testing.T) {
	r := New()
	fn := compile(t, r, []Type{r.Int8()}, r.Int8(), func(f *Function) {
		local := f.Declare(r.Int8()).Store(arg(t, f, 0))
		p := local.Address()
		require.Equal(t, ValuePointer, p.Kind())
		assert.True(t, local.Addressable())
		f.Return(p.Deref())
	})
	for x := math.MinInt8; x <= math.MaxInt8; x++ {
		require.Equal(t, int64(x), call(t, fn, int8(x)))
	}
}

func TestDerefVoidPointerNeedsType(t *testing.T) {
	r := New()
	f := building(t, r, []Type{r.VoidPtr()}, r.Void())
	p := arg(t, f, 0)
	assert.False(t, p.Deref().Valid())
	require.ErrorIs(t, f.Err(), ErrInstruction)
}

func TestMemoryStoreAndLoad(t *testing.T) {
	r := New()
	// writes x at offset 0 and x*2 at offset 8 of an alloca, reads both back
	fn := compile(t, r, []Type{r.Int64()}, r.Int64(), func(f *Function) {
		x := arg(t, f, 0)
		buf := f.Alloca(16)
		buf.MStore(x, 0)
		buf.MStore(x.Mul(2), 8)
		f.Return(buf.MLoad(0, r.Int64()).Add(buf.MLoad(8, r.Int64())))
	})
	assert.Equal(t, int64(21), call(t, fn, 7))
	assert.Equal(t, 0, r.Engine().Memory().Live())
}

func TestElementAccess(t *testing.T) {
	r := New()
	i32 := r.Int32()
	// fills a[i] = i*i for i < n and sums it back
	fn := compile(t, r, []Type{i32}, i32, func(f *Function) {
		n := arg(t, f, 0)
		arr := f.Alloca(n.Mul(4)).Cast(ptr(t, r, i32))
		i := f.Declare(i32).Store(0)
		require.NoError(t, f.While(func() Value { return i.Lt(n) }).Do(func() {
			arr.StoreElem(i, i.Mul(i))
			i.Store(i.Add(1))
		}).End())
		sum := f.Declare(i32).Store(0)
		i.Store(0)
		require.NoError(t, f.While(func() Value { return i.Lt(n) }).Do(func() {
			sum.Store(sum.Add(arr.LoadElem(i)))
			i.Store(i.Add(1))
		}).End())
		f.Return(sum)
	})
	assert.Equal(t, int64(0), call(t, fn, 0))
	assert.Equal(t, int64(0+1+4+9+16), call(t, fn, 5))
}

func TestStringzIsNulTerminated(t *testing.T) {
	r := New()
	fn := compile(t, r, nil, r.Uint8(), func(f *Function) {
		s := f.Stringz("abc")
		f.Return(s.LoadElem(1, r.Uint8()).Add(s.LoadElem(3, r.Uint8())))
	})
	assert.Equal(t, uint64('b'), call(t, fn))
}
