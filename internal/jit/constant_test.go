package jit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedConstantsRoundTrip(t *testing.T) {
	r := New()
	f := building(t, r, nil, r.Void())

	cases := []struct {
		typ  Type
		vals []int64
	}{
		{r.Int8(), []int64{math.MinInt8, -1, 0, 1, math.MaxInt8}},
		{r.Int16(), []int64{math.MinInt16, -300, 0, math.MaxInt16}},
		{r.Int32(), []int64{math.MinInt32, -70000, 0, math.MaxInt32}},
		{r.Int64(), []int64{math.MinInt64, -1 << 40, 0, math.MaxInt64}},
		{r.Intn(), []int64{math.MinInt64, -1, math.MaxInt64}},
	}
	for _, tc := range cases {
		for _, x := range tc.vals {
			c := f.ConstInt(tc.typ, x)
			require.True(t, c.Valid(), "%s %d", tc.typ, x)
			got, ok := c.ConstInt()
			require.True(t, ok)
			assert.Equal(t, x, got, "%s", tc.typ)
		}
	}
	require.NoError(t, f.Err())
}

func TestUnsignedConstantsRoundTrip(t *testing.T) {
	r := New()
	f := building(t, r, nil, r.Void())

	cases := []struct {
		typ  Type
		vals []uint64
	}{
		{r.Uint8(), []uint64{0, 127, 128, math.MaxUint8}},
		{r.Uint16(), []uint64{0, 1 << 15, math.MaxUint16}},
		{r.Uint32(), []uint64{0, 1 << 31, math.MaxUint32}},
		{r.Uint64(), []uint64{0, 1 << 63, math.MaxUint64}},
		{r.Uintn(), []uint64{0, 1 << 63, math.MaxUint64}},
		{r.VoidPtr(), []uint64{0, 4096}},
	}
	for _, tc := range cases {
		for _, x := range tc.vals {
			c := f.ConstUint(tc.typ, x)
			require.True(t, c.Valid(), "%s %d", tc.typ, x)
			got, ok := c.ConstUint()
			require.True(t, ok)
			assert.Equal(t, x, got, "%s", tc.typ)
		}
	}
	require.NoError(t, f.Err())
}

func TestUnsignedConstantsAboveSignedRangeRun(t *testing.T) {
	r := New()
	f32 := compile(t, r, nil, r.Uint32(), func(f *Function) {
		f.Return(f.ConstUint(r.Uint32(), math.MaxUint32))
	})
	assert.Equal(t, uint64(math.MaxUint32), call(t, f32))

	f64 := compile(t, r, nil, r.Uint64(), func(f *Function) {
		f.Return(uint64(math.MaxUint64))
	})
	assert.Equal(t, uint64(math.MaxUint64), call(t, f64))
}

func TestConstantOutOfRange(t *testing.T) {
	r := New()
	f := building(t, r, nil, r.Void())

	assert.False(t, f.ConstInt(r.Int8(), 128).Valid())
	require.ErrorIs(t, f.Err(), ErrType)

	r2 := New()
	g := building(t, r2, nil, r2.Void())
	assert.False(t, g.ConstInt(r2.Uint8(), -1).Valid())
	require.ErrorIs(t, g.Err(), ErrType)
}

func TestFloatAndBoolConstants(t *testing.T) {
	r := New()
	f := building(t, r, nil, r.Void())

	x, ok := f.ConstFloat(r.Float32(), 1.5).ConstFloat()
	require.True(t, ok)
	assert.InDelta(t, 1.5, x, 0)

	y, ok := f.Const(r.Float64(), 3).ConstFloat()
	require.True(t, ok)
	assert.InDelta(t, 3.0, y, 0)

	tr := f.True()
	assert.Equal(t, ValueBool, tr.Kind())
	b, ok := tr.ConstBool()
	require.True(t, ok)
	assert.True(t, b)
	n, ok := f.False().ConstInt()
	require.True(t, ok)
	assert.Equal(t, int64(0), n)

	num, ok := f.ConstUint(r.Uint16(), 65535).Numeric()
	require.True(t, ok)
	assert.Equal(t, uint64(65535), num)
	require.NoError(t, f.Err())
}

func TestEncodeUnsigned(t *testing.T) {
	assert.Equal(t, int64(-1), encodeUnsigned(math.MaxUint32, 32))
	assert.Equal(t, int64(math.MaxInt32), encodeUnsigned(math.MaxInt32, 32))
	assert.Equal(t, int64(-128), encodeUnsigned(128, 8))
	assert.Equal(t, int64(-1), encodeUnsigned(math.MaxUint64, 64))
	for _, w := range []int{8, 16, 32, 64} {
		for _, u := range []uint64{0, 1, 1<<(w-1) - 1, 1 << (w - 1)} {
			assert.Equal(t, u, decodeUnsigned(encodeUnsigned(u, w), w), "width %d", w)
		}
	}
}
