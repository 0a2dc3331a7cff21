// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// token is the shared payload of Checkpoint and Mark.
type token struct {
	owner  uuid.UUID
	epoch  uint64
	offset int
	live   uint64 // live allocation count at capture time
}

// Checkpoint is an Arena cursor snapshot used for bulk rollback.
type Checkpoint struct {
	t token
}

// Offset returns the cursor offset captured by the checkpoint.
func (c Checkpoint) Offset() int {
	return c.t.offset
}

// Mark is a StackAllocator cursor snapshot used by FreeToMark.
type Mark struct {
	t token
}

// Offset returns the cursor offset captured by the mark.
func (m Mark) Offset() int {
	return m.t.offset
}

// bump is the upward-growing cursor shared by Arena, StackAllocator and the
// bottom half of DoubleEndedStack.
type bump struct {
	id     uuid.UUID
	offset int
	peak   int
	epoch  uint64 // incremented by reset, invalidates older tokens
	allocs uint64
	frees  uint64
}

func newBump() bump {
	return bump{id: uuid.New()}
}

// alloc reserves size bytes at the next offset aligned to alignment, failing
// without mutation if the range would pass limit.
func (c *bump) alloc(size, alignment, limit int) (Span, error) {
	if size < 0 {
		return Span{}, errors.Wrapf(ErrInvalidSize, "size %d", size)
	}
	if !validAlignment(alignment) {
		return Span{}, errors.Wrapf(ErrInvalidAlignment, "alignment %d", alignment)
	}
	next := alignUp(c.offset, alignment)
	if next > limit || size > limit-next {
		return Span{}, errors.Wrapf(ErrOutOfMemory, "%d bytes at alignment %d, %d of %d in use", size, alignment, c.offset, limit)
	}
	c.offset = next + size
	if c.offset > c.peak {
		c.peak = c.offset
	}
	c.allocs++
	return Span{Off: next, Len: size}, nil
}

func (c *bump) live() uint64 {
	return c.allocs - c.frees
}

func (c *bump) capture() token {
	return token{owner: c.id, epoch: c.epoch, offset: c.offset, live: c.live()}
}

// rewind moves the cursor back to t. The cursor never moves forward.
func (c *bump) rewind(t token) error {
	switch {
	case t.owner != c.id:
		return ErrForeignToken
	case t.epoch != c.epoch:
		return errors.Wrapf(ErrStaleToken, "token epoch %d, allocator epoch %d", t.epoch, c.epoch)
	case t.offset > c.offset:
		return errors.Wrapf(ErrInvalidRollback, "token offset %d, cursor %d", t.offset, c.offset)
	}
	c.offset = t.offset
	if live := c.live(); live > t.live {
		c.frees += live - t.live
	}
	return nil
}

func (c *bump) reset() {
	if c.offset == 0 && c.live() == 0 {
		return
	}
	c.offset = 0
	c.frees = c.allocs
	c.epoch++
}
