// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"github.com/cockroachdb/errors"
)

// StackAllocator is a LIFO bump allocator. Memory is returned in reverse order of
// allocation, either one allocation at a time with FreeTop or in bulk with FreeToMark.
type StackAllocator struct {
	buf    ownedBuffer
	cur    bump
	opts   options
	starts []int // start offset of each live allocation, oldest first
}

// NewStack creates a stack allocator that owns a buffer of capacity bytes.
func NewStack(capacity int, opts ...Option) *StackAllocator {
	return &StackAllocator{
		buf:  newOwnedBuffer(capacity),
		cur:  newBump(),
		opts: applyOptions(opts),
	}
}

// Alloc satisfies the Allocator interface.
func (s *StackAllocator) Alloc(size, alignment int) (Span, error) {
	if s.buf.released() {
		return Span{}, ErrReleased
	}
	sp, err := s.cur.alloc(size, alignment, s.buf.capacity())
	if err != nil {
		return Span{}, errors.Wrap(err, "stack")
	}
	if s.opts.zero {
		clear(s.buf.bytes(sp))
	}
	s.starts = append(s.starts, sp.Off)
	return sp, nil
}

// Bytes satisfies the Allocator interface.
func (s *StackAllocator) Bytes(sp Span) []byte {
	return s.buf.bytes(sp)
}

// Mark captures the current cursor.
func (s *StackAllocator) Mark() Mark {
	return Mark{t: s.cur.capture()}
}

// FreeToMark releases everything allocated after m was captured.
// A mark ahead of the cursor would break LIFO order and is rejected with
// ErrInvalidRollback, leaving the stack unchanged.
func (s *StackAllocator) FreeToMark(m Mark) error {
	if err := s.cur.rewind(m.t); err != nil {
		return errors.Wrap(err, "stack free to mark")
	}
	s.starts = s.starts[:min(len(s.starts), int(m.t.live))]
	return nil
}

// FreeTop releases sp, which must be exactly the most recent live allocation.
// Alignment padding in front of sp stays allocated until the next FreeToMark or Clear.
func (s *StackAllocator) FreeTop(sp Span) error {
	n := len(s.starts)
	if n == 0 || sp.Off != s.starts[n-1] || sp.End() != s.cur.offset || sp.Len < 0 {
		return errors.Wrapf(ErrNotTop, "span [%d, %d), cursor %d", sp.Off, sp.End(), s.cur.offset)
	}
	s.starts = s.starts[:n-1]
	s.cur.offset = sp.Off
	s.cur.frees++
	return nil
}

// Clear releases every allocation. Marks captured earlier become stale.
func (s *StackAllocator) Clear() {
	s.cur.reset()
	s.starts = s.starts[:0]
}

// Reset satisfies the Allocator interface. It is the same as Clear.
func (s *StackAllocator) Reset() {
	s.Clear()
}

// Release satisfies the Allocator interface.
func (s *StackAllocator) Release() {
	s.Clear()
	s.buf.release()
}

// Len satisfies the Allocator interface.
func (s *StackAllocator) Len() int {
	return s.cur.offset
}

// Cap satisfies the Allocator interface.
func (s *StackAllocator) Cap() int {
	return s.buf.capacity()
}

// Available returns the bytes left before the stack overflows, ignoring alignment.
func (s *StackAllocator) Available() int {
	return s.buf.capacity() - s.cur.offset
}

// Peak satisfies the Allocator interface.
func (s *StackAllocator) Peak() int {
	return s.cur.peak
}

// Info satisfies the Reporter interface.
func (s *StackAllocator) Info() AllocatorInfo {
	return AllocatorInfo{
		Type:              TypeStack,
		TotalCapacity:     s.Cap(),
		Used:              s.Len(),
		Available:         s.Available(),
		AllocationCount:   s.cur.allocs,
		DeallocationCount: s.cur.frees,
	}
}

// ScopedStack is a region of a StackAllocator that is released when it is closed.
// Scopes must be closed in reverse order of opening. Closing an outer scope first
// rewinds past the inner one, whose Close then reports ErrInvalidRollback.
type ScopedStack struct {
	stack  *StackAllocator
	mark   Mark
	closed bool
}

// Scope opens a scope at the current cursor.
func (s *StackAllocator) Scope() *ScopedStack {
	return &ScopedStack{stack: s, mark: s.Mark()}
}

// WithScope runs fn inside a scope and closes it on every exit path, including panics.
func (s *StackAllocator) WithScope(fn func(sc *ScopedStack) error) (err error) {
	sc := s.Scope()
	defer func() {
		if cerr := sc.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(sc)
}

// Alloc allocates from the underlying stack.
func (sc *ScopedStack) Alloc(size, alignment int) (Span, error) {
	return sc.stack.Alloc(size, alignment)
}

// Bytes returns the bytes of a span allocated in this scope.
func (sc *ScopedStack) Bytes(sp Span) []byte {
	return sc.stack.Bytes(sp)
}

// Close frees the stack back to the scope's mark. Only the first call has an effect.
func (sc *ScopedStack) Close() error {
	if sc.closed {
		return nil
	}
	sc.closed = true
	return sc.stack.FreeToMark(sc.mark)
}
