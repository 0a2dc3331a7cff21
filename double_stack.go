// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Side selects one end of a DoubleEndedStack.
type Side int

const (
	Bottom Side = iota
	Top
)

func (s Side) String() string {
	if s == Top {
		return "top"
	}
	return "bottom"
}

// SideMark is a cursor snapshot of one side of a DoubleEndedStack.
type SideMark struct {
	side Side
	t    token
}

// Side returns the side the mark was captured on.
func (m SideMark) Side() Side {
	return m.side
}

// Offset returns the captured cursor offset.
func (m SideMark) Offset() int {
	return m.t.offset
}

// DoubleEndedStack splits one buffer into two LIFO regions. The bottom region
// grows upward from offset 0 and the top region grows downward from the end of
// the buffer. The regions never overlap: bottom <= top at all times.
type DoubleEndedStack struct {
	buf    ownedBuffer
	id     uuid.UUID
	bottom int
	top    int
	peak   int
	opts   options

	// per-side reset epochs and counters
	epoch  [2]uint64
	allocs [2]uint64
	frees  [2]uint64
}

// NewDoubleEndedStack creates a double-ended stack that owns a buffer of capacity bytes.
func NewDoubleEndedStack(capacity int, opts ...Option) *DoubleEndedStack {
	d := &DoubleEndedStack{
		buf:  newOwnedBuffer(capacity),
		id:   uuid.New(),
		opts: applyOptions(opts),
	}
	d.top = d.buf.capacity()
	return d
}

// AllocBottom reserves size bytes at the bottom cursor, aligned up to alignment.
// It fails with ErrOutOfMemory if the allocation would pass the top cursor.
func (d *DoubleEndedStack) AllocBottom(size, alignment int) (Span, error) {
	if err := d.check(size, alignment); err != nil {
		return Span{}, err
	}
	next := alignUp(d.bottom, alignment)
	if next > d.top || size > d.top-next {
		return Span{}, errors.Wrapf(ErrOutOfMemory, "double-ended stack bottom: %d bytes at alignment %d, bottom %d, top %d", size, alignment, d.bottom, d.top)
	}
	d.bottom = next + size
	return d.commit(Bottom, Span{Off: next, Len: size}), nil
}

// AllocTop reserves size bytes below the top cursor, aligned down to alignment.
// It fails with ErrOutOfMemory if the allocation would fall below the bottom cursor.
func (d *DoubleEndedStack) AllocTop(size, alignment int) (Span, error) {
	if err := d.check(size, alignment); err != nil {
		return Span{}, err
	}
	if size > d.top {
		return Span{}, errors.Wrapf(ErrOutOfMemory, "double-ended stack top: %d bytes, top %d", size, d.top)
	}
	next := alignDown(d.top-size, alignment)
	if next < d.bottom {
		return Span{}, errors.Wrapf(ErrOutOfMemory, "double-ended stack top: %d bytes at alignment %d, bottom %d, top %d", size, alignment, d.bottom, d.top)
	}
	d.top = next
	return d.commit(Top, Span{Off: next, Len: size}), nil
}

func (d *DoubleEndedStack) check(size, alignment int) error {
	switch {
	case d.buf.released():
		return ErrReleased
	case size < 0:
		return errors.Wrapf(ErrInvalidSize, "size %d", size)
	case !validAlignment(alignment):
		return errors.Wrapf(ErrInvalidAlignment, "alignment %d", alignment)
	}
	return nil
}

func (d *DoubleEndedStack) commit(side Side, s Span) Span {
	d.allocs[side]++
	if used := d.Used(); used > d.peak {
		d.peak = used
	}
	if d.opts.zero {
		clear(d.buf.bytes(s))
	}
	return s
}

// Bytes returns the bytes of a span returned by AllocBottom or AllocTop.
func (d *DoubleEndedStack) Bytes(s Span) []byte {
	return d.buf.bytes(s)
}

// MarkBottom captures the bottom cursor.
func (d *DoubleEndedStack) MarkBottom() SideMark {
	return d.mark(Bottom, d.bottom)
}

// MarkTop captures the top cursor.
func (d *DoubleEndedStack) MarkTop() SideMark {
	return d.mark(Top, d.top)
}

func (d *DoubleEndedStack) mark(side Side, offset int) SideMark {
	return SideMark{side: side, t: token{
		owner:  d.id,
		epoch:  d.epoch[side],
		offset: offset,
		live:   d.allocs[side] - d.frees[side],
	}}
}

// FreeBottomToMark rewinds the bottom cursor to m. Marks from the top side, from
// another instance, from before ClearBottom, or above the bottom cursor are rejected.
func (d *DoubleEndedStack) FreeBottomToMark(m SideMark) error {
	if err := d.validate(Bottom, m); err != nil {
		return err
	}
	if m.t.offset > d.bottom {
		return errors.Wrapf(ErrInvalidRollback, "bottom mark %d, cursor %d", m.t.offset, d.bottom)
	}
	d.bottom = m.t.offset
	d.rewound(Bottom, m.t.live)
	return nil
}

// FreeTopToMark rewinds the top cursor to m. Marks below the top cursor are
// newer than the cursor and are rejected.
func (d *DoubleEndedStack) FreeTopToMark(m SideMark) error {
	if err := d.validate(Top, m); err != nil {
		return err
	}
	if m.t.offset < d.top {
		return errors.Wrapf(ErrInvalidRollback, "top mark %d, cursor %d", m.t.offset, d.top)
	}
	d.top = m.t.offset
	d.rewound(Top, m.t.live)
	return nil
}

func (d *DoubleEndedStack) validate(side Side, m SideMark) error {
	switch {
	case m.t.owner != d.id || m.side != side:
		return errors.Wrapf(ErrForeignToken, "%s mark used on %s side", m.side, side)
	case m.t.epoch != d.epoch[side]:
		return errors.Wrapf(ErrStaleToken, "%s mark epoch %d, side epoch %d", side, m.t.epoch, d.epoch[side])
	}
	return nil
}

func (d *DoubleEndedStack) rewound(side Side, live uint64) {
	if cur := d.allocs[side] - d.frees[side]; cur > live {
		d.frees[side] += cur - live
	}
}

// ClearBottom releases every bottom allocation. The top side is untouched.
func (d *DoubleEndedStack) ClearBottom() {
	if d.bottom == 0 && d.allocs[Bottom] == d.frees[Bottom] {
		return
	}
	d.bottom = 0
	d.frees[Bottom] = d.allocs[Bottom]
	d.epoch[Bottom]++
}

// ClearTop releases every top allocation. The bottom side is untouched.
func (d *DoubleEndedStack) ClearTop() {
	if d.top == d.buf.capacity() && d.allocs[Top] == d.frees[Top] {
		return
	}
	d.top = d.buf.capacity()
	d.frees[Top] = d.allocs[Top]
	d.epoch[Top]++
}

// Clear releases both sides.
func (d *DoubleEndedStack) Clear() {
	d.ClearBottom()
	d.ClearTop()
}

// Release drops the buffer. Later allocations fail with ErrReleased.
func (d *DoubleEndedStack) Release() {
	d.Clear()
	d.buf.release()
	d.top = 0
}

// BottomLen returns the bytes used by the bottom side.
func (d *DoubleEndedStack) BottomLen() int {
	return d.bottom
}

// TopLen returns the bytes used by the top side.
func (d *DoubleEndedStack) TopLen() int {
	return d.buf.capacity() - d.top
}

// Used returns the bytes used by both sides together.
func (d *DoubleEndedStack) Used() int {
	return d.bottom + (d.buf.capacity() - d.top)
}

// Available returns the gap between the two cursors.
func (d *DoubleEndedStack) Available() int {
	return d.top - d.bottom
}

// Cap returns the capacity of the owned buffer.
func (d *DoubleEndedStack) Cap() int {
	return d.buf.capacity()
}

// Peak returns the highest combined usage the stack has reached.
func (d *DoubleEndedStack) Peak() int {
	return d.peak
}

// Info satisfies the Reporter interface.
func (d *DoubleEndedStack) Info() AllocatorInfo {
	return AllocatorInfo{
		Type:              TypeDoubleEndedStack,
		TotalCapacity:     d.Cap(),
		Used:              d.Used(),
		Available:         d.Available(),
		AllocationCount:   d.allocs[Bottom] + d.allocs[Top],
		DeallocationCount: d.frees[Bottom] + d.frees[Top],
	}
}
