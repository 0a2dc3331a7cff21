// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Reporter is implemented by every allocator in this package.
type Reporter interface {
	// Info returns a usage snapshot. The snapshot is a value and does not track
	// later changes to the allocator.
	Info() AllocatorInfo
}

// Allocator is a bump allocator over a single owned buffer.
type Allocator interface {
	Reporter

	// Alloc reserves size bytes at an offset aligned to alignment.
	// It returns ErrOutOfMemory without changing state when the buffer cannot fit the request.
	Alloc(size, alignment int) (Span, error)

	// Bytes returns the bytes of a span previously returned by Alloc.
	Bytes(s Span) []byte

	// Reset rewinds the allocator to empty without zeroing memory.
	// After invoking this method any span previously returned by Alloc becomes immediately invalid.
	Reset()

	// Release drops the allocator's buffer. Later allocations fail with ErrReleased.
	Release()

	// Len returns the number of bytes currently allocated, including alignment padding.
	Len() int

	// Cap returns the capacity of the owned buffer.
	Cap() int

	// Peak returns the highest cursor the allocator has reached.
	// This value is not reset when Reset is called, allowing tracking of maximum usage.
	Peak() int
}

// Option configures bump allocators.
type Option func(*options)

type options struct {
	zero bool
}

// WithZeroing clears every allocation before it is returned.
func WithZeroing() Option {
	return func(o *options) {
		o.zero = true
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Allocate places a zeroed T in the allocator and returns a pointer to it.
// If the allocator is nil, it allocates with Go's built-in new function.
// T must not contain Go pointers: the garbage collector does not scan allocator memory.
func Allocate[T any](a Allocator) (*T, error) {
	if a == nil {
		return new(T), nil
	}
	mustBePointerFree[T]()
	var x T
	s, err := a.Alloc(int(unsafe.Sizeof(x)), int(unsafe.Alignof(x)))
	if err != nil {
		return nil, err
	}
	b := a.Bytes(s)
	clear(b)
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil
}

func mustBePointerFree[T any]() {
	if t := reflect.TypeFor[T](); hasPointers(t) {
		panic(fmt.Sprintf("memory: type %v contains pointers and cannot live in allocator memory", t))
	}
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.String:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
