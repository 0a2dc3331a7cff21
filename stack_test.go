// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestStackAllocMatchesArena(t *testing.T) {
	stack := NewStack(1024)
	arena := NewArena(1024)

	for _, tc := range []struct{ size, align int }{{256, 8}, {100, 16}, {50, 4}, {3, 1}, {8, 8}} {
		s1, err := stack.Alloc(tc.size, tc.align)
		require.NoError(t, err)
		s2, err := arena.Alloc(tc.size, tc.align)
		require.NoError(t, err)
		require.Equal(t, s2, s1)
	}
	require.Equal(t, arena.Len(), stack.Len())
}

func TestStackMarksLIFO(t *testing.T) {
	stack := NewStack(1024)

	_, err := stack.Alloc(40, 8)
	require.NoError(t, err)
	m1 := stack.Mark()
	before := stack.Info()

	_, err = stack.Alloc(100, 16)
	require.NoError(t, err)
	m2 := stack.Mark()
	_, err = stack.Alloc(60, 4)
	require.NoError(t, err)

	require.NoError(t, stack.FreeToMark(m2))
	require.Equal(t, m2.Offset(), stack.Len())
	require.NoError(t, stack.FreeToMark(m1))
	require.Equal(t, m1.Offset(), stack.Len())

	after := stack.Info()
	require.Equal(t, before.Used, after.Used)
	require.Equal(t, before.ActiveAllocations(), after.ActiveAllocations())

	// Same offset as if nothing had been allocated past m1
	s, err := stack.Alloc(100, 16)
	require.NoError(t, err)
	require.Equal(t, 48, s.Off)
}

func TestStackFreeToNewerMarkFails(t *testing.T) {
	stack := NewStack(512)

	m0 := stack.Mark()
	_, err := stack.Alloc(64, 8)
	require.NoError(t, err)
	m1 := stack.Mark()

	require.NoError(t, stack.FreeToMark(m0))
	err = stack.FreeToMark(m1)
	require.True(t, errors.Is(err, ErrInvalidRollback))
	require.Equal(t, 0, stack.Len())

	require.ErrorIs(t, NewStack(512).FreeToMark(m0), ErrForeignToken)

	stack.Clear()
	require.NoError(t, stack.FreeToMark(stack.Mark()))
}

func TestStackClearInvalidatesMarks(t *testing.T) {
	stack := NewStack(512)

	_, err := stack.Alloc(64, 8)
	require.NoError(t, err)
	m := stack.Mark()
	stack.Clear()

	_, err = stack.Alloc(128, 8)
	require.NoError(t, err)
	require.ErrorIs(t, stack.FreeToMark(m), ErrStaleToken)
	require.Equal(t, 128, stack.Len())
}

func TestStackFreeTop(t *testing.T) {
	stack := NewStack(256)

	a, err := stack.Alloc(10, 1)
	require.NoError(t, err)
	b, err := stack.Alloc(20, 2)
	require.NoError(t, err)
	require.Equal(t, 10, b.Off)

	require.ErrorIs(t, stack.FreeTop(a), ErrNotTop)
	require.NoError(t, stack.FreeTop(b))
	require.Equal(t, b.Off, stack.Len())
	require.NoError(t, stack.FreeTop(a))
	require.Equal(t, 0, stack.Len())

	require.ErrorIs(t, stack.FreeTop(Span{}), ErrNotTop)
	require.Equal(t, uint64(0), stack.Info().ActiveAllocations())
}

func TestStackFreeTopKeepsPadding(t *testing.T) {
	stack := NewStack(256)

	a, err := stack.Alloc(10, 1)
	require.NoError(t, err)
	b, err := stack.Alloc(20, 8)
	require.NoError(t, err)
	require.Equal(t, 16, b.Off)

	require.NoError(t, stack.FreeTop(b))
	require.Equal(t, 16, stack.Len())
	require.ErrorIs(t, stack.FreeTop(a), ErrNotTop)
}

func TestStackFreeTopRejectsMismatchedSpans(t *testing.T) {
	stack := NewStack(256)

	a, err := stack.Alloc(50, 1)
	require.NoError(t, err)
	b, err := stack.Alloc(50, 1)
	require.NoError(t, err)

	// ends at the cursor but reaches into a
	require.ErrorIs(t, stack.FreeTop(Span{Off: 10, Len: 90}), ErrNotTop)
	// empty span at the cursor
	require.ErrorIs(t, stack.FreeTop(Span{Off: 100, Len: 0}), ErrNotTop)
	// right start, wrong length
	require.ErrorIs(t, stack.FreeTop(Span{Off: b.Off, Len: 10}), ErrNotTop)
	require.Equal(t, 100, stack.Len())
	require.Equal(t, uint64(2), stack.Info().ActiveAllocations())

	require.NoError(t, stack.FreeTop(b))
	require.ErrorIs(t, stack.FreeTop(Span{Off: 10, Len: 40}), ErrNotTop)
	require.NoError(t, stack.FreeTop(a))

	info := stack.Info()
	require.Equal(t, 0, info.Used)
	require.Equal(t, uint64(0), info.ActiveAllocations())
}

func TestStackFreeTopEmptyAllocation(t *testing.T) {
	stack := NewStack(64)

	_, err := stack.Alloc(8, 1)
	require.NoError(t, err)
	empty, err := stack.Alloc(0, 1)
	require.NoError(t, err)

	require.NoError(t, stack.FreeTop(empty))
	require.Equal(t, 8, stack.Len())
	require.Equal(t, uint64(1), stack.Info().ActiveAllocations())
	require.ErrorIs(t, stack.FreeTop(empty), ErrNotTop)
}

func TestStackFreeTopAfterMark(t *testing.T) {
	stack := NewStack(256)

	a, err := stack.Alloc(16, 8)
	require.NoError(t, err)
	m := stack.Mark()
	_, err = stack.Alloc(16, 8)
	require.NoError(t, err)
	_, err = stack.Alloc(16, 8)
	require.NoError(t, err)

	require.NoError(t, stack.FreeToMark(m))
	require.NoError(t, stack.FreeTop(a))
	require.Equal(t, 0, stack.Len())

	_, err = stack.Alloc(16, 8)
	require.NoError(t, err)
	stack.Clear()
	require.ErrorIs(t, stack.FreeTop(a), ErrNotTop)
}

func TestStackOverflow(t *testing.T) {
	stack := NewStack(64)

	_, err := stack.Alloc(60, 1)
	require.NoError(t, err)
	_, err = stack.Alloc(8, 8)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, 60, stack.Len())
	require.Equal(t, 4, stack.Available())
}

func TestScopedStack(t *testing.T) {
	stack := NewStack(1024)

	_, err := stack.Alloc(100, 4)
	require.NoError(t, err)
	usedBefore := stack.Len()

	scope := stack.Scope()
	s, err := scope.Alloc(200, 4)
	require.NoError(t, err)
	require.Len(t, scope.Bytes(s), 200)
	require.Greater(t, stack.Len(), usedBefore)

	require.NoError(t, scope.Close())
	require.Equal(t, usedBefore, stack.Len())
	require.NoError(t, scope.Close())
}

func TestScopedStackNesting(t *testing.T) {
	stack := NewStack(1024)

	err := stack.WithScope(func(outer *ScopedStack) error {
		_, err := outer.Alloc(64, 8)
		require.NoError(t, err)
		return stack.WithScope(func(inner *ScopedStack) error {
			_, err := inner.Alloc(64, 8)
			require.NoError(t, err)
			require.Equal(t, 128, stack.Len())
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, 0, stack.Len())
}

func TestScopedStackOutOfOrderClose(t *testing.T) {
	stack := NewStack(1024)

	outer := stack.Scope()
	_, err := outer.Alloc(64, 8)
	require.NoError(t, err)
	inner := stack.Scope()
	_, err = inner.Alloc(64, 8)
	require.NoError(t, err)

	require.NoError(t, outer.Close())
	require.ErrorIs(t, inner.Close(), ErrInvalidRollback)
	require.Equal(t, 0, stack.Len())
}

func TestWithScopeReleasesOnPanic(t *testing.T) {
	stack := NewStack(1024)

	require.Panics(t, func() {
		_ = stack.WithScope(func(sc *ScopedStack) error {
			_, err := sc.Alloc(512, 8)
			require.NoError(t, err)
			panic("abort")
		})
	})
	require.Equal(t, 0, stack.Len())
	require.Equal(t, 512, stack.Peak())
}

func TestStackInfoAndRelease(t *testing.T) {
	stack := NewStack(100)

	_, err := stack.Alloc(30, 1)
	require.NoError(t, err)

	info := stack.Info()
	require.Equal(t, TypeStack, info.Type)
	require.Equal(t, 30, info.Used)
	require.Equal(t, 70, info.Available)

	stack.Release()
	_, err = stack.Alloc(1, 1)
	require.ErrorIs(t, err, ErrReleased)
	require.Equal(t, 0, stack.Cap())
}
