// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"sync/atomic"

	"golang.org/x/exp/slog"
)

// Stats is a set of global allocation counters fed by the caller.
//
// Allocators in this package never update a Stats themselves; code that wants a
// process-wide view records its own allocations and deallocations here.
// Stats is safe for concurrent use.
type Stats struct {
	allocations      atomic.Uint64
	deallocations    atomic.Uint64
	bytesAllocated   atomic.Uint64
	bytesDeallocated atomic.Uint64
	current          atomic.Int64
	peak             atomic.Int64
}

// RecordAllocation counts one allocation of n bytes and raises the peak if needed.
func (s *Stats) RecordAllocation(n int) {
	s.allocations.Add(1)
	s.bytesAllocated.Add(uint64(n))
	current := s.current.Add(int64(n))
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			return
		}
	}
}

// RecordDeallocation counts one deallocation of n bytes. The peak is unaffected.
func (s *Stats) RecordDeallocation(n int) {
	s.deallocations.Add(1)
	s.bytesDeallocated.Add(uint64(n))
	s.current.Add(-int64(n))
}

// Allocations returns the number of recorded allocations.
func (s *Stats) Allocations() uint64 {
	return s.allocations.Load()
}

// Deallocations returns the number of recorded deallocations.
func (s *Stats) Deallocations() uint64 {
	return s.deallocations.Load()
}

// BytesAllocated returns the total bytes ever recorded as allocated.
func (s *Stats) BytesAllocated() uint64 {
	return s.bytesAllocated.Load()
}

// BytesDeallocated returns the total bytes ever recorded as deallocated.
func (s *Stats) BytesDeallocated() uint64 {
	return s.bytesDeallocated.Load()
}

// Current returns the bytes allocated and not yet deallocated.
func (s *Stats) Current() int {
	return int(s.current.Load())
}

// Peak returns the highest value Current has reached since the last Reset.
func (s *Stats) Peak() int {
	return int(s.peak.Load())
}

// Active returns the number of allocations not yet deallocated.
func (s *Stats) Active() uint64 {
	allocs, frees := s.allocations.Load(), s.deallocations.Load()
	if frees > allocs {
		return 0
	}
	return allocs - frees
}

// Reset zeroes every counter. It is not atomic with respect to concurrent records.
func (s *Stats) Reset() {
	s.allocations.Store(0)
	s.deallocations.Store(0)
	s.bytesAllocated.Store(0)
	s.bytesDeallocated.Store(0)
	s.current.Store(0)
	s.peak.Store(0)
}

// LogValue implements slog.LogValuer.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("allocations", s.Allocations()),
		slog.Uint64("deallocations", s.Deallocations()),
		slog.Int("current", s.Current()),
		slog.Int("peak", s.Peak()),
	)
}
