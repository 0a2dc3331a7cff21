// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"unsafe"
)

// bufferAlignment is the address alignment of the first byte of every owned buffer.
// Offsets aligned to any power of two up to this value are also aligned addresses.
const bufferAlignment = 16

// Span is a byte range inside an allocator's buffer.
type Span struct {
	Off int // offset from the start of the buffer
	Len int // length in bytes
}

// End returns the offset one past the last byte of the span.
func (s Span) End() int {
	return s.Off + s.Len
}

// ownedBuffer is the single contiguous region an allocator acquires at construction
// and drops at release.
type ownedBuffer struct {
	mem []byte
}

func newOwnedBuffer(capacity int) ownedBuffer {
	if capacity < 0 {
		panic("memory: negative buffer capacity")
	}
	raw := make([]byte, capacity+bufferAlignment-1)
	pad := 0
	for addr := uintptr(unsafe.Pointer(unsafe.SliceData(raw))); (addr+uintptr(pad))%bufferAlignment != 0; pad++ {
	}
	return ownedBuffer{mem: raw[pad : pad+capacity : pad+capacity]}
}

func (b *ownedBuffer) capacity() int {
	return len(b.mem)
}

func (b *ownedBuffer) released() bool {
	return b.mem == nil
}

// bytes returns a view of s whose capacity ends at s.End, so appends to it can
// never spill into neighbouring allocations. It panics if s is out of range.
func (b *ownedBuffer) bytes(s Span) []byte {
	return b.mem[s.Off:s.End():s.End()]
}

func (b *ownedBuffer) pointer(off int) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b.mem[off:]))
}

func (b *ownedBuffer) release() {
	b.mem = nil
}

func validAlignment(alignment int) bool {
	return alignment > 0 && alignment&(alignment-1) == 0
}

func alignUp(off, alignment int) int {
	return (off + alignment - 1) &^ (alignment - 1)
}

func alignDown(off, alignment int) int {
	return off &^ (alignment - 1)
}
