// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
)

const growThreshold = 256

// AllocateSlice creates a slice of type T with a given length and capacity,
// using the provided Allocator for memory allocation. Elements are zeroed.
// If the allocator is nil, it returns a slice using Go's built-in make function.
// T must not contain Go pointers.
func AllocateSlice[T any](a Allocator, len, cap int) ([]T, error) {
	if a == nil {
		return make([]T, len, cap), nil
	}
	if len < 0 || cap < len {
		panic("memory: AllocateSlice: len out of range")
	}
	mustBePointerFree[T]()
	var x T
	size := int(unsafe.Sizeof(x))
	if size > 0 && cap > math.MaxInt/size {
		return nil, errors.Wrapf(ErrInvalidSize, "slice of %d elements of %d bytes", cap, size)
	}
	s, err := a.Alloc(size*cap, int(unsafe.Alignof(x)))
	if err != nil {
		return nil, err
	}
	b := a.Bytes(s)
	clear(b)
	if cap == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), cap)[:len], nil
}

// SliceAppend appends elements to a slice of type T, moving it into a larger
// allocation from a when its capacity is exceeded. The old backing memory is not
// reclaimed until the allocator is reset.
func SliceAppend[T any](a Allocator, s []T, data ...T) ([]T, error) {
	if a == nil {
		return append(s, data...), nil
	}
	if need := len(s) + len(data); need > cap(s) {
		moved, err := AllocateSlice[T](a, len(s), nextCap(cap(s), need))
		if err != nil {
			return s, err
		}
		copy(moved, s)
		s = moved
	}
	return append(s, data...), nil
}

// nextCap returns the capacity to move a slice of capacity c to so that it holds
// need elements: exactly need for an empty slice, otherwise doubling below
// growThreshold and growing by a quarter above it.
func nextCap(c, need int) int {
	if c == 0 {
		return need
	}
	for c < need {
		if c < growThreshold {
			c *= 2
		} else {
			c += c / 4
		}
	}
	return c
}
