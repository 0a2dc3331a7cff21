// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"github.com/cockroachdb/errors"
)

// Arena is a bump allocator over a fixed buffer. Allocations are released in bulk
// with Reset or Restore; there is no individual free.
//
// Arena is not safe for concurrent use. Wrap it with NewConcurrentAllocator when
// several goroutines share one instance.
type Arena struct {
	buf  ownedBuffer
	cur  bump
	opts options
}

// NewArena creates an arena that owns a buffer of capacity bytes.
func NewArena(capacity int, opts ...Option) *Arena {
	return &Arena{
		buf:  newOwnedBuffer(capacity),
		cur:  newBump(),
		opts: applyOptions(opts),
	}
}

// Alloc satisfies the Allocator interface.
func (a *Arena) Alloc(size, alignment int) (Span, error) {
	if a.buf.released() {
		return Span{}, ErrReleased
	}
	s, err := a.cur.alloc(size, alignment, a.buf.capacity())
	if err != nil {
		return Span{}, errors.Wrap(err, "arena")
	}
	if a.opts.zero {
		clear(a.buf.bytes(s))
	}
	return s, nil
}

// AllocBytes is Alloc followed by Bytes.
func (a *Arena) AllocBytes(size, alignment int) ([]byte, error) {
	s, err := a.Alloc(size, alignment)
	if err != nil {
		return nil, err
	}
	return a.buf.bytes(s), nil
}

// Bytes satisfies the Allocator interface.
func (a *Arena) Bytes(s Span) []byte {
	return a.buf.bytes(s)
}

// Checkpoint captures the current cursor.
func (a *Arena) Checkpoint() Checkpoint {
	return Checkpoint{t: a.cur.capture()}
}

// Restore rolls the cursor back to c. The checkpoint must come from this arena,
// must not predate the last Reset and must not be ahead of the cursor; otherwise
// the arena is left unchanged and an error is returned.
func (a *Arena) Restore(c Checkpoint) error {
	return errors.Wrap(a.cur.rewind(c.t), "arena restore")
}

// Reset satisfies the Allocator interface.
func (a *Arena) Reset() {
	a.cur.reset()
}

// Release satisfies the Allocator interface.
func (a *Arena) Release() {
	a.cur.reset()
	a.buf.release()
}

// Len satisfies the Allocator interface.
func (a *Arena) Len() int {
	return a.cur.offset
}

// Cap satisfies the Allocator interface.
func (a *Arena) Cap() int {
	return a.buf.capacity()
}

// Available returns the bytes left before the arena is exhausted, ignoring alignment.
func (a *Arena) Available() int {
	return a.buf.capacity() - a.cur.offset
}

// Peak satisfies the Allocator interface.
func (a *Arena) Peak() int {
	return a.cur.peak
}

// Utilization returns the used fraction of the buffer as a percentage.
func (a *Arena) Utilization() float64 {
	return a.Info().Utilization()
}

// Info satisfies the Reporter interface.
func (a *Arena) Info() AllocatorInfo {
	return AllocatorInfo{
		Type:              TypeArena,
		TotalCapacity:     a.Cap(),
		Used:              a.Len(),
		Available:         a.Available(),
		AllocationCount:   a.cur.allocs,
		DeallocationCount: a.cur.frees,
	}
}

// ScopedArena is a region of an Arena that is rolled back when it is closed.
// Scopes must be closed in reverse order of opening. Closing an outer scope first
// rewinds past the inner one, whose Close then reports ErrInvalidRollback.
type ScopedArena struct {
	arena  *Arena
	cp     Checkpoint
	closed bool
}

// Scope opens a scope at the current cursor.
func (a *Arena) Scope() *ScopedArena {
	return &ScopedArena{arena: a, cp: a.Checkpoint()}
}

// WithScope runs fn inside a scope and closes it on every exit path, including panics.
func (a *Arena) WithScope(fn func(sc *ScopedArena) error) (err error) {
	sc := a.Scope()
	defer func() {
		if cerr := sc.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(sc)
}

// Alloc allocates from the underlying arena.
func (sc *ScopedArena) Alloc(size, alignment int) (Span, error) {
	return sc.arena.Alloc(size, alignment)
}

// AllocBytes allocates from the underlying arena and returns the bytes.
func (sc *ScopedArena) AllocBytes(size, alignment int) ([]byte, error) {
	return sc.arena.AllocBytes(size, alignment)
}

// Bytes returns the bytes of a span allocated in this scope.
func (sc *ScopedArena) Bytes(s Span) []byte {
	return sc.arena.Bytes(s)
}

// Close restores the arena to the scope's checkpoint. Only the first call has an effect.
func (sc *ScopedArena) Close() error {
	if sc.closed {
		return nil
	}
	sc.closed = true
	return sc.arena.Restore(sc.cp)
}
