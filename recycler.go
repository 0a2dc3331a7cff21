// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"sync"
	"weak"
)

// DefaultRecycledCapacity is the arena capacity used for keys with no recorded usage.
const DefaultRecycledCapacity = 1024 * 1024

// recycleWindow bounds how many releases are averaged per key.
const recycleWindow = 50

const recyclePage = 4096

// Recycler keeps released Arenas for reuse, typically one per frame or request.
//
// Idle arenas are held through weak pointers, so the garbage collector may reclaim
// them under memory pressure. The capacity of a newly created arena is the
// average peak usage recorded for its key, rounded up to 4 KiB.
// Recycler is safe for concurrent use; the arenas it hands out are not.
type Recycler struct {
	pool            []weak.Pointer[RecycledArena]
	sizes           map[uint64]*recycledSize
	defaultCapacity int
	mu              sync.Mutex
}

// recycledSize tracks the peak usage across the last recycleWindow releases of a key.
type recycledSize struct {
	count      int
	totalBytes int
}

// RecycledArena is an Arena on loan from a Recycler.
type RecycledArena struct {
	Arena *Arena
	Key   uint64
}

// NewRecycler creates a Recycler. A defaultCapacity <= 0 selects DefaultRecycledCapacity.
func NewRecycler(defaultCapacity int) *Recycler {
	if defaultCapacity <= 0 {
		defaultCapacity = DefaultRecycledCapacity
	}
	return &Recycler{
		sizes:           make(map[uint64]*recycledSize),
		defaultCapacity: defaultCapacity,
	}
}

// Acquire returns an idle arena large enough for key's recorded usage, or a new one.
func (r *Recycler) Acquire(key uint64) *RecycledArena {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := r.capacityFor(key)
	for i := len(r.pool) - 1; i >= 0; i-- {
		v := r.pool[i].Value()
		if v == nil {
			// collected by the GC
			r.pool = append(r.pool[:i], r.pool[i+1:]...)
			continue
		}
		if v.Arena.Cap() < want {
			continue
		}
		r.pool = append(r.pool[:i], r.pool[i+1:]...)
		v.Key = key
		return v
	}
	return &RecycledArena{
		Arena: NewArena(want),
		Key:   key,
	}
}

// Release resets item's arena and returns it to the recycler.
// The arena's peak usage is recorded against the item's key.
func (r *Recycler) Release(item *RecycledArena) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release(item)
}

// ReleaseMany is Release for several items under one lock.
func (r *Recycler) ReleaseMany(items []*RecycledArena) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		r.release(item)
	}
}

func (r *Recycler) release(item *RecycledArena) {
	peak := item.Arena.Peak()
	item.Arena.Reset()

	if size, ok := r.sizes[item.Key]; ok {
		if size.count == recycleWindow {
			size.count = 1
			size.totalBytes = size.totalBytes / recycleWindow
		}
		size.count++
		size.totalBytes += peak
	} else {
		r.sizes[item.Key] = &recycledSize{
			count:      1,
			totalBytes: peak,
		}
	}

	item.Key = 0
	r.pool = append(r.pool, weak.Make(item))
}

// Idle returns the number of arenas waiting for reuse, including any the GC has
// not yet collected.
func (r *Recycler) Idle() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pool)
}

// capacityFor returns the arena capacity to use for key, rounded up to a whole page.
func (r *Recycler) capacityFor(key uint64) int {
	if size, ok := r.sizes[key]; ok && size.totalBytes > 0 {
		return alignUp(size.totalBytes/size.count, recyclePage)
	}
	return r.defaultCapacity
}
