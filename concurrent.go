// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"sync"
)

type concurrentAllocator struct {
	mtx sync.Mutex
	a   Allocator
}

// NewConcurrentAllocator returns an allocator that is safe to be accessed
// concurrently from multiple goroutines. The wrapped allocator must not be used
// directly while the wrapper is shared.
func NewConcurrentAllocator(a Allocator) Allocator {
	return &concurrentAllocator{a: a}
}

// Alloc satisfies the Allocator interface.
func (c *concurrentAllocator) Alloc(size, alignment int) (Span, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.a == nil {
		return Span{}, ErrReleased
	}
	return c.a.Alloc(size, alignment)
}

// Bytes satisfies the Allocator interface.
func (c *concurrentAllocator) Bytes(s Span) []byte {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.a == nil {
		return nil
	}
	return c.a.Bytes(s)
}

// Reset satisfies the Allocator interface.
func (c *concurrentAllocator) Reset() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.a == nil {
		return
	}
	c.a.Reset()
}

// Release satisfies the Allocator interface.
func (c *concurrentAllocator) Release() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.a == nil {
		return
	}
	c.a.Release()
}

// Len satisfies the Allocator interface.
func (c *concurrentAllocator) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.a == nil {
		return 0
	}
	return c.a.Len()
}

// Cap satisfies the Allocator interface.
func (c *concurrentAllocator) Cap() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.a == nil {
		return 0
	}
	return c.a.Cap()
}

// Peak satisfies the Allocator interface.
func (c *concurrentAllocator) Peak() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.a == nil {
		return 0
	}
	return c.a.Peak()
}

// Info satisfies the Reporter interface.
func (c *concurrentAllocator) Info() AllocatorInfo {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.a == nil {
		return AllocatorInfo{Type: TypeCustom}
	}
	return c.a.Info()
}
