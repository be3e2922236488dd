package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReadWrite(t *testing.T) {
	m := NewMemory(8)
	p, err := m.Alloc(8)
	require.NoError(t, err)
	require.NotZero(t, p)

	require.NoError(t, m.Write(p+2, []byte{1, 2, 3}))
	got, err := m.Read(p, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 1, 2, 3, 0, 0, 0}, got)

	_, err = m.Read(p+6, 4)
	assert.ErrorIs(t, err, codeOf(CodeBadAccess))
	assert.ErrorIs(t, m.Write(0, []byte{1}), codeOf(CodeBadAccess))
	assert.Equal(t, 1, m.Live())
}

func TestMemoryFree(t *testing.T) {
	m := NewMemory(8)
	require.NoError(t, m.Free(0))

	p, err := m.Alloc(4)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Free(p+1), codeOf(CodeBadAccess))
	require.NoError(t, m.Free(p))
	_, err = m.Read(p, 1)
	assert.ErrorIs(t, err, codeOf(CodeBadAccess))
	assert.Equal(t, 0, m.Live())
}

func TestMemoryReallocKeepsContents(t *testing.T) {
	m := NewMemory(8)
	p, err := m.Alloc(2)
	require.NoError(t, err)
	require.NoError(t, m.Write(p, []byte{7, 9}))

	q, err := m.Realloc(p, 4)
	require.NoError(t, err)
	got, err := m.Read(q, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 9, 0, 0}, got)
	assert.Equal(t, 1, m.Live())
}

func TestMemoryCStrings(t *testing.T) {
	m := NewMemory(4)
	p, err := m.WriteCString("hello")
	require.NoError(t, err)
	assert.Less(t, p, uint64(1)<<32, "4-byte pointers must fit in 32 bits")

	s, err := m.ReadCString(p + 1)
	require.NoError(t, err)
	assert.Equal(t, "ello", s)

	require.NoError(t, m.Fill(p, 'x', 5))
	s, err = m.ReadCString(p)
	require.NoError(t, err)
	assert.Equal(t, "xxxxx", s)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		rep  Rep
		in   uint64
		want uint64
	}{
		{Rep{ClassInt, 1}, 0xFF, ^uint64(0)},
		{Rep{ClassInt, 2}, 0x1_7FFF, 0x7FFF},
		{Rep{ClassUint, 4}, ^uint64(0), 0xFFFF_FFFF},
		{Rep{ClassFloat, 4}, 0xDEAD_0000_3F80_0000, 0x3F80_0000},
		{Rep{ClassUint, 8}, ^uint64(0), ^uint64(0)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.rep, tt.in), "%v %#x", tt.rep, tt.in)
	}
}
