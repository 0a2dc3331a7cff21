// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSliceAppendWithArena(t *testing.T) {
	a := NewArena(1024)

	s, err := AllocateSlice[int](a, 3, 3)
	require.NoError(t, err)
	s[0] = 1
	s[1] = 2
	s[2] = 3

	result, err := SliceAppend(a, s, 4, 5)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5}, result)
	require.Equal(t, 6, cap(result))

	// s itself is untouched
	require.Equal(t, []int{1, 2, 3}, s)
}

func TestSliceAppendInPlace(t *testing.T) {
	a := NewArena(1024)

	s, err := AllocateSlice[uint32](a, 0, 8)
	require.NoError(t, err)
	used := a.Len()

	for i := uint32(0); i < 8; i++ {
		s, err = SliceAppend(a, s, i)
		require.NoError(t, err)
	}
	require.Len(t, s, 8)
	require.Equal(t, used, a.Len())
}

func TestSliceAppendGrowth(t *testing.T) {
	a := NewArena(64 * 1024)

	var s []byte
	var err error
	s, err = SliceAppend(a, s, 1)
	require.NoError(t, err)
	require.Equal(t, 1, cap(s))

	for i := 0; i < 300; i++ {
		s, err = SliceAppend(a, s, byte(i))
		require.NoError(t, err)
	}
	require.Len(t, s, 301)
	require.Equal(t, 320, cap(s)) // doubles to 256, then grows by a quarter
	require.Equal(t, byte(1), s[0])
	require.Equal(t, byte(43), s[300])
}

func TestSliceAppendOutOfMemory(t *testing.T) {
	a := NewArena(32)

	s, err := AllocateSlice[int64](a, 2, 2)
	require.NoError(t, err)
	s[0], s[1] = 7, 8

	grown, err := SliceAppend(a, s, 9, 10, 11)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, []int64{7, 8}, grown)
}

func TestAllocateSliceZeroed(t *testing.T) {
	a := NewArena(64)

	s, err := AllocateSlice[byte](a, 16, 16)
	require.NoError(t, err)
	for i := range s {
		s[i] = 0xff
	}
	a.Reset()

	s, err = AllocateSlice[byte](a, 16, 16)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 16), s)

	empty, err := AllocateSlice[byte](a, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestAllocateSliceNilAllocator(t *testing.T) {
	s, err := AllocateSlice[string](nil, 2, 4)
	require.NoError(t, err)
	require.Len(t, s, 2)
	require.Equal(t, 4, cap(s))

	s, err = SliceAppend(nil, s, "a")
	require.NoError(t, err)
	require.Equal(t, []string{"", "", "a"}, s)
}

func TestAllocateSlicePanics(t *testing.T) {
	a := NewArena(64)
	require.Panics(t, func() { _, _ = AllocateSlice[int](a, 3, 2) })
	require.Panics(t, func() { _, _ = AllocateSlice[*int](a, 1, 1) })
}

func TestAllocateSliceSizeOverflow(t *testing.T) {
	a := NewArena(64)

	s, err := AllocateSlice[int64](a, 0, math.MaxInt/4)
	require.ErrorIs(t, err, ErrInvalidSize)
	require.Nil(t, s)
	require.Equal(t, 0, a.Len())
}

func TestNextCap(t *testing.T) {
	require.Equal(t, 3, nextCap(0, 3))
	require.Equal(t, 8, nextCap(2, 5))
	require.Equal(t, 256, nextCap(128, 129))
	require.Equal(t, 320, nextCap(256, 257))
	require.Equal(t, 400, nextCap(320, 400))
}
