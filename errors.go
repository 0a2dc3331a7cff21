// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrOutOfMemory is returned when a request exceeds the remaining capacity.
	// The allocator state is left unchanged.
	ErrOutOfMemory = errors.New("memory: allocator exhausted")

	// ErrInvalidSize is returned for negative allocation sizes.
	ErrInvalidSize = errors.New("memory: invalid allocation size")

	// ErrInvalidAlignment is returned when alignment is not a positive power of two.
	ErrInvalidAlignment = errors.New("memory: alignment must be a positive power of two")

	// ErrInvalidRollback is returned when a checkpoint or mark is newer than the
	// allocator's current cursor.
	ErrInvalidRollback = errors.New("memory: rollback token is ahead of the cursor")

	// ErrForeignToken is returned when a checkpoint or mark was produced by a
	// different allocator instance.
	ErrForeignToken = errors.New("memory: rollback token belongs to another allocator")

	// ErrStaleToken is returned when a checkpoint or mark was captured before the
	// allocator was last reset.
	ErrStaleToken = errors.New("memory: rollback token predates the last reset")

	// ErrInvalidAddress is returned when a pool is handed a span it cannot have produced.
	ErrInvalidAddress = errors.New("memory: address does not belong to this pool")

	// ErrDoubleFree is returned by pools with debug checks enabled when a block is
	// freed twice.
	ErrDoubleFree = errors.New("memory: block is already free")

	// ErrNotTop is returned when a stack allocation other than the most recent one is popped.
	ErrNotTop = errors.New("memory: allocation is not at the top of the stack")

	// ErrReleased is returned by allocators whose buffer has been released.
	ErrReleased = errors.New("memory: allocator released")
)
