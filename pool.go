// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// linkSize is the room a free block needs to hold its next-free link.
const linkSize = 8

// Pool hands out fixed-size blocks from a single buffer in O(1).
//
// Free blocks form an intrusive singly-linked list: the first eight bytes of each
// free block hold the offset of the next free block plus one, with zero ending the
// list. Allocated block contents are unspecified until written.
//
// Pool is not safe for concurrent use.
type Pool struct {
	buf       ownedBuffer
	blockSize int
	alignment int
	stride    int
	count     int
	head      int // offset of the first free block, -1 when exhausted
	inUse     int
	peak      int
	allocs    uint64
	frees     uint64

	occupied []uint64 // slot occupancy bitmap, nil unless debug checks are on
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithDebugChecks enables a slot occupancy bitmap so that double frees are
// reported as ErrDoubleFree instead of corrupting the free list.
func WithDebugChecks() PoolOption {
	return func(p *Pool) {
		p.occupied = make([]uint64, (p.count+63)/64)
	}
}

// NewPool creates a pool of count blocks of blockSize bytes, each aligned to alignment.
// Blocks are padded to at least eight bytes to hold the free-list link.
// It panics if blockSize or count is negative or alignment is not a power of two.
func NewPool(blockSize, alignment, count int, opts ...PoolOption) *Pool {
	switch {
	case blockSize < 0:
		panic("memory: negative pool block size")
	case count < 0:
		panic("memory: negative pool block count")
	case !validAlignment(alignment):
		panic("memory: pool alignment must be a positive power of two")
	}
	stride := alignUp(max(blockSize, linkSize), alignment)
	p := &Pool{
		buf:       newOwnedBuffer(stride * count),
		blockSize: blockSize,
		alignment: alignment,
		stride:    stride,
		count:     count,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.thread()
	return p
}

// thread links every block into the free list in address order.
func (p *Pool) thread() {
	p.head = -1
	if p.count == 0 {
		return
	}
	p.head = 0
	for i := 0; i < p.count; i++ {
		next := 0
		if i+1 < p.count {
			next = (i+1)*p.stride + 1
		}
		p.setLink(i*p.stride, next)
	}
}

func (p *Pool) setLink(off, next int) {
	binary.NativeEndian.PutUint64(p.buf.mem[off:off+linkSize], uint64(next))
}

func (p *Pool) link(off int) int {
	return int(binary.NativeEndian.Uint64(p.buf.mem[off:off+linkSize])) - 1
}

// Alloc pops a block from the free list. It returns ErrOutOfMemory when every
// block is in use.
func (p *Pool) Alloc() (Span, error) {
	if p.buf.released() {
		return Span{}, ErrReleased
	}
	if p.head < 0 {
		return Span{}, errors.Wrapf(ErrOutOfMemory, "pool: all %d blocks of %d bytes in use", p.count, p.blockSize)
	}
	off := p.head
	p.head = p.link(off)
	if p.occupied != nil {
		p.setOccupied(off/p.stride, true)
	}
	p.inUse++
	if p.inUse > p.peak {
		p.peak = p.inUse
	}
	p.allocs++
	return Span{Off: off, Len: p.blockSize}, nil
}

// Free pushes the block at s.Off back onto the free list.
//
// s must have been returned by Alloc on this pool and not freed since. Offsets
// outside the buffer or off the block grid are rejected with ErrInvalidAddress.
// A double free is only detected when the pool was built WithDebugChecks;
// otherwise it corrupts the free list.
func (p *Pool) Free(s Span) error {
	if p.buf.released() {
		return ErrReleased
	}
	if s.Off < 0 || s.Off >= p.stride*p.count || s.Off%p.stride != 0 {
		return errors.Wrapf(ErrInvalidAddress, "offset %d, block stride %d, %d blocks", s.Off, p.stride, p.count)
	}
	if p.occupied != nil {
		slot := s.Off / p.stride
		if !p.isOccupied(slot) {
			return errors.Wrapf(ErrDoubleFree, "block %d", slot)
		}
		p.setOccupied(slot, false)
	}
	p.setLink(s.Off, p.head+1)
	p.head = s.Off
	p.inUse--
	p.frees++
	return nil
}

func (p *Pool) isOccupied(slot int) bool {
	return p.occupied[slot/64]&(1<<(slot%64)) != 0
}

func (p *Pool) setOccupied(slot int, on bool) {
	if on {
		p.occupied[slot/64] |= 1 << (slot % 64)
	} else {
		p.occupied[slot/64] &^= 1 << (slot % 64)
	}
}

// Bytes returns the bytes of a block returned by Alloc.
func (p *Pool) Bytes(s Span) []byte {
	return p.buf.bytes(s)
}

// Reset returns every block to the free list in address order.
func (p *Pool) Reset() {
	if p.buf.released() {
		return
	}
	p.thread()
	clear(p.occupied)
	p.frees += uint64(p.inUse)
	p.inUse = 0
}

// Release drops the pool's buffer. Later allocations fail with ErrReleased.
func (p *Pool) Release() {
	p.frees += uint64(p.inUse)
	p.inUse = 0
	p.head = -1
	p.buf.release()
}

// BlockSize returns the requested block size.
func (p *Pool) BlockSize() int {
	return p.blockSize
}

// Stride returns the distance in bytes between consecutive blocks.
func (p *Pool) Stride() int {
	return p.stride
}

// Len returns the number of blocks in the pool.
func (p *Pool) Len() int {
	return p.count
}

// InUse returns the number of allocated blocks.
func (p *Pool) InUse() int {
	return p.inUse
}

// FreeBlocks returns the number of blocks on the free list.
func (p *Pool) FreeBlocks() int {
	if p.buf.released() {
		return 0
	}
	return p.count - p.inUse
}

// Info satisfies the Reporter interface. Sizes are counted in strides, so padding
// added for alignment or the free-list link counts as used while a block is allocated.
func (p *Pool) Info() AllocatorInfo {
	return AllocatorInfo{
		Type:              TypePool,
		TotalCapacity:     p.buf.capacity(),
		Used:              p.inUse * p.stride,
		Available:         p.FreeBlocks() * p.stride,
		AllocationCount:   p.allocs,
		DeallocationCount: p.frees,
	}
}

// PoolStats describes the block-level state of a pool.
type PoolStats struct {
	BlockSize   int
	Stride      int
	TotalBlocks int
	InUse       int
	Free        int
	PeakInUse   int
	Allocations uint64
	Frees       uint64
}

// Stats returns a snapshot of the pool's block counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		BlockSize:   p.blockSize,
		Stride:      p.stride,
		TotalBlocks: p.count,
		InUse:       p.inUse,
		Free:        p.FreeBlocks(),
		PeakInUse:   p.peak,
		Allocations: p.allocs,
		Frees:       p.frees,
	}
}

// Utilization returns the percentage of blocks in use.
func (s PoolStats) Utilization() float64 {
	if s.TotalBlocks == 0 {
		return 0
	}
	return float64(s.InUse) / float64(s.TotalBlocks) * 100
}

// Fragmentation returns the percentage of blocks sitting on the free list.
func (s PoolStats) Fragmentation() float64 {
	if s.TotalBlocks == 0 {
		return 0
	}
	return float64(s.Free) / float64(s.TotalBlocks) * 100
}
