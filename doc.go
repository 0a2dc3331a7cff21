// SPDX-License-Identifier: Apache-2.0

// Package memory provides fixed-overhead allocators for hot loops that cannot
// afford the latency or fragmentation of general-purpose allocation.
//
// Every allocator acquires one buffer at construction and addresses it through
// bounds-checked offsets (Span):
//
//   - Arena: bump allocation with Checkpoint/Restore, ScopedArena and bulk Reset.
//   - Pool: fixed-size blocks on an intrusive free list, with TypedPool and
//     PoolBox for typed and scoped use.
//   - StackAllocator: LIFO allocation with Mark/FreeToMark and ScopedStack.
//   - DoubleEndedStack: two LIFO regions growing toward each other in one buffer.
//
// Manager and Profiler observe usage through AllocatorInfo snapshots that the
// caller pushes in; they never reach into allocator internals. Stats holds
// global allocation counters that the caller records into.
//
// Allocation failure is reported as an error wrapping ErrOutOfMemory and leaves
// the allocator unchanged. None of the allocators lock; share an Allocator across
// goroutines through NewConcurrentAllocator or external synchronization.
//
// Memory handed out by these allocators is not scanned by the garbage collector.
// Only values without Go pointers may be stored in it; Allocate, AllocateSlice
// and TypedPool enforce this.
package memory
