// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"io"
)

// Buffer is a bytes.Buffer-like struct backed by an Allocator.
// It implements io.Writer, io.Reader and io.WriterTo. When the allocator is
// exhausted, writes fail with ErrOutOfMemory and leave the buffer unchanged.
type Buffer struct {
	alloc Allocator
	buf   []byte
	off   int // read offset
}

// NewBuffer creates a new Buffer backed by the given allocator.
// If the allocator is nil, it will fall back to standard Go allocation.
func NewBuffer(a Allocator) *Buffer {
	return &Buffer{alloc: a}
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	buf, err := SliceAppend(b.alloc, b.buf, p...)
	if err != nil {
		return 0, err
	}
	b.buf = buf
	return len(p), nil
}

// WriteByte writes a single byte to the buffer.
func (b *Buffer) WriteByte(c byte) error {
	buf, err := SliceAppend(b.alloc, b.buf, c)
	if err != nil {
		return err
	}
	b.buf = buf
	return nil
}

// WriteString writes a string to the buffer.
func (b *Buffer) WriteString(s string) (n int, err error) {
	return b.Write([]byte(s))
}

// WriteTo implements io.WriterTo. It drains the unread portion of the buffer into w.
func (b *Buffer) WriteTo(w io.Writer) (n int64, err error) {
	if b.Len() == 0 {
		return 0, nil
	}
	m, err := w.Write(b.buf[b.off:])
	b.off += m
	if b.off == len(b.buf) {
		b.Reset()
	}
	return int64(m), err
}

// Read reads up to len(p) bytes from the buffer into p.
func (b *Buffer) Read(p []byte) (n int, err error) {
	if b.Len() == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n = copy(p, b.buf[b.off:])
	b.off += n
	return n, nil
}

// Bytes returns a slice holding the unread portion of the buffer.
// The slice is valid for use only until the next buffer modification or allocator reset.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.off:]
}

// String returns the contents of the unread portion of the buffer as a string.
func (b *Buffer) String() string {
	return string(b.buf[b.off:])
}

// Len returns the number of bytes of the unread portion of the buffer.
func (b *Buffer) Len() int {
	return len(b.buf) - b.off
}

// Cap returns the capacity of the buffer's current backing allocation.
func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// Reset empties the buffer but keeps its backing allocation for reuse.
func (b *Buffer) Reset() {
	b.off = 0
	if b.buf != nil {
		b.buf = b.buf[:0]
	}
}
