// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

// TypedPool is a Pool whose blocks hold one T each.
//
// T must not contain Go pointers (pointers, slices, maps, strings, interfaces, ...):
// pool memory is a byte buffer that the garbage collector does not scan.
type TypedPool[T any] struct {
	pool *Pool
}

// NewTypedPool creates a pool of count values of T.
// It panics if T contains Go pointers.
func NewTypedPool[T any](count int, opts ...PoolOption) *TypedPool[T] {
	mustBePointerFree[T]()
	var x T
	return &TypedPool[T]{
		pool: NewPool(int(unsafe.Sizeof(x)), int(unsafe.Alignof(x)), count, opts...),
	}
}

// Alloc returns a pointer to a zeroed T from the pool.
func (p *TypedPool[T]) Alloc() (*T, error) {
	s, err := p.pool.Alloc()
	if err != nil {
		return nil, err
	}
	v := (*T)(p.pool.buf.pointer(s.Off))
	var zero T
	*v = zero
	return v, nil
}

// Free returns v to the pool. v must have come from Alloc on this pool.
func (p *TypedPool[T]) Free(v *T) error {
	off, ok := p.offsetOf(v)
	if !ok {
		return errors.Wrap(ErrInvalidAddress, "typed pool free")
	}
	return p.pool.Free(Span{Off: off, Len: p.pool.blockSize})
}

func (p *TypedPool[T]) offsetOf(v *T) (int, bool) {
	if v == nil || p.pool.buf.released() || p.pool.count == 0 {
		return 0, false
	}
	base := uintptr(p.pool.buf.pointer(0))
	addr := uintptr(unsafe.Pointer(v))
	if addr < base || addr >= base+uintptr(p.pool.stride*p.pool.count) {
		return 0, false
	}
	return int(addr - base), true
}

// Pool returns the untyped pool backing p.
func (p *TypedPool[T]) Pool() *Pool {
	return p.pool
}

// InUse returns the number of live values.
func (p *TypedPool[T]) InUse() int {
	return p.pool.InUse()
}

// Stats returns the backing pool's block counters.
func (p *TypedPool[T]) Stats() PoolStats {
	return p.pool.Stats()
}

// Info satisfies the Reporter interface.
func (p *TypedPool[T]) Info() AllocatorInfo {
	return p.pool.Info()
}

// Release drops the backing buffer. Every value obtained from the pool becomes invalid.
func (p *TypedPool[T]) Release() {
	p.pool.Release()
}

// Disposer is implemented by values that need teardown before their pool slot is reused.
type Disposer interface {
	Dispose()
}

// PoolBox owns one value in a TypedPool slot. Close tears the value down and
// returns the slot exactly once.
type PoolBox[T any] struct {
	pool *TypedPool[T]
	v    *T // nil once the slot is returned
}

// NewPoolBox allocates a slot and stores value in it.
func NewPoolBox[T any](pool *TypedPool[T], value T) (*PoolBox[T], error) {
	v, err := pool.Alloc()
	if err != nil {
		return nil, err
	}
	*v = value
	return &PoolBox[T]{pool: pool, v: v}, nil
}

// Value returns the boxed value, or nil after Close.
func (b *PoolBox[T]) Value() *T {
	return b.v
}

// Closed reports whether the slot has been returned.
func (b *PoolBox[T]) Closed() bool {
	return b.v == nil
}

// Close calls Dispose if *T implements Disposer, zeroes the value and returns
// the slot to the pool. The slot is returned even if Dispose panics.
// Later calls do nothing.
func (b *PoolBox[T]) Close() (err error) {
	v := b.v
	if v == nil {
		return nil
	}
	b.v = nil
	defer func() {
		var zero T
		*v = zero
		err = b.pool.Free(v)
	}()
	if d, ok := any(v).(Disposer); ok {
		d.Dispose()
	}
	return nil
}

// WithPoolBox stores value in a pool slot for the duration of fn. The slot is
// released when fn returns or panics.
func WithPoolBox[T any](pool *TypedPool[T], value T, fn func(v *T) error) (err error) {
	b, err := NewPoolBox(pool, value)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(b.Value())
}
