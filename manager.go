// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

// Manager is a registry of named allocator usage snapshots plus a set of global
// allocation counters.
//
// Manager never reads allocators itself: callers push snapshots with
// RegisterAllocator or Track whenever they want the registry refreshed.
// The registry is not safe for concurrent use; the Stats it owns are.
type Manager struct {
	allocators map[string]AllocatorInfo
	stats      *Stats
	logger     *slog.Logger
	now        func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for registry changes. Messages are logged at debug level.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the time source used to stamp reports.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates an empty Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		allocators: make(map[string]AllocatorInfo),
		stats:      &Stats{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterAllocator stores info under name, replacing any earlier snapshot.
func (m *Manager) RegisterAllocator(name string, info AllocatorInfo) {
	_, replaced := m.allocators[name]
	m.allocators[name] = info
	m.logger.Debug("allocator registered",
		slog.String("name", name),
		slog.String("type", info.Type.String()),
		slog.Int("capacity", info.TotalCapacity),
		slog.Int("used", info.Used),
		slog.Bool("replaced", replaced),
	)
}

// Track registers a fresh snapshot of r under name.
func (m *Manager) Track(name string, r Reporter) {
	m.RegisterAllocator(name, r.Info())
}

// Allocator returns the snapshot registered under name.
func (m *Manager) Allocator(name string) (AllocatorInfo, bool) {
	info, ok := m.allocators[name]
	return info, ok
}

// Unregister removes name from the registry. It reports whether name was present.
func (m *Manager) Unregister(name string) bool {
	if _, ok := m.allocators[name]; !ok {
		return false
	}
	delete(m.allocators, name)
	m.logger.Debug("allocator unregistered", slog.String("name", name))
	return true
}

// Len returns the number of registered allocators.
func (m *Manager) Len() int {
	return len(m.allocators)
}

// Stats returns the manager's global counters.
func (m *Manager) Stats() *Stats {
	return m.stats
}

// Reset removes every registered snapshot and zeroes the global counters.
func (m *Manager) Reset() {
	clear(m.allocators)
	m.stats.Reset()
}

// Report aggregates the registered snapshots. It does not modify the Manager.
func (m *Manager) Report() Report {
	r := Report{
		Timestamp:  m.now(),
		Allocators: make([]NamedInfo, 0, len(m.allocators)),
	}
	for name, info := range m.allocators {
		r.TotalCapacity += info.TotalCapacity
		r.TotalUsed += info.Used
		r.TotalAvailable += info.Available
		r.Allocators = append(r.Allocators, NamedInfo{Name: name, AllocatorInfo: info})
	}
	sort.Slice(r.Allocators, func(i, j int) bool {
		return r.Allocators[i].Name < r.Allocators[j].Name
	})
	return r
}

// NamedInfo is a registered snapshot together with its name.
type NamedInfo struct {
	Name string
	AllocatorInfo
}

// Report is a point-in-time aggregate of a Manager's registry.
// Allocators are sorted by name.
type Report struct {
	Timestamp      time.Time
	TotalCapacity  int
	TotalUsed      int
	TotalAvailable int
	Allocators     []NamedInfo
}

// Count returns the number of allocators in the report.
func (r Report) Count() int {
	return len(r.Allocators)
}

// Utilization returns TotalUsed as a percentage of TotalCapacity.
func (r Report) Utilization() float64 {
	return r.Aggregate().Utilization()
}

// Aggregate folds the report into one snapshot of type TypeCustom, suitable for
// Profiler.Sample.
func (r Report) Aggregate() AllocatorInfo {
	info := AllocatorInfo{
		Type:          TypeCustom,
		TotalCapacity: r.TotalCapacity,
		Used:          r.TotalUsed,
		Available:     r.TotalAvailable,
	}
	for _, a := range r.Allocators {
		info.AllocationCount += a.AllocationCount
		info.DeallocationCount += a.DeallocationCount
	}
	return info
}

// JSON encodes the report, including the per-allocator breakdown.
func (r Report) JSON() ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("timestamp").String(r.Timestamp.UTC().Format(time.RFC3339Nano))
	obj.Name("total_capacity").Int(r.TotalCapacity)
	obj.Name("total_used").Int(r.TotalUsed)
	obj.Name("total_available").Int(r.TotalAvailable)
	obj.Name("utilization").Float64(r.Utilization())
	obj.Name("allocator_count").Int(r.Count())
	allocs := obj.Name("allocators").Object()
	for _, a := range r.Allocators {
		entry := allocs.Name(a.Name).Object()
		entry.Name("type").String(a.Type.String())
		entry.Name("capacity").Int(a.TotalCapacity)
		entry.Name("used").Int(a.Used)
		entry.Name("available").Int(a.Available)
		entry.Name("allocations").Int(int(a.AllocationCount))
		entry.Name("deallocations").Int(int(a.DeallocationCount))
		entry.End()
	}
	allocs.End()
	obj.End()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// WriteSummary writes a human-readable summary of the report to w.
func (r Report) WriteSummary(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("=== Memory Report ===\n")
	ew.printf("Total Capacity: %s\n", humanize.IBytes(uint64(r.TotalCapacity)))
	ew.printf("Total Used: %s\n", humanize.IBytes(uint64(r.TotalUsed)))
	ew.printf("Total Available: %s\n", humanize.IBytes(uint64(r.TotalAvailable)))
	ew.printf("Utilization: %.2f%%\n", r.Utilization())
	ew.printf("Allocators: %d\n", r.Count())
	for _, a := range r.Allocators {
		ew.printf("\n  %s: %s\n", a.Name, a.Type)
		ew.printf("    Capacity: %s\n", humanize.IBytes(uint64(a.TotalCapacity)))
		ew.printf("    Used: %s (%.2f%%)\n", humanize.IBytes(uint64(a.Used)), a.Utilization())
		ew.printf("    Available: %s\n", humanize.IBytes(uint64(a.Available)))
		ew.printf("    Active Allocations: %s\n", humanize.Comma(int64(a.ActiveAllocations())))
	}
	return ew.err
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("total_capacity", r.TotalCapacity),
		slog.Int("total_used", r.TotalUsed),
		slog.Int("total_available", r.TotalAvailable),
		slog.Float64("utilization", r.Utilization()),
	}
	for _, a := range r.Allocators {
		attrs = append(attrs, slog.Any(a.Name, slog.GroupValue(
			slog.String("type", a.Type.String()),
			slog.Int("capacity", a.TotalCapacity),
			slog.Int("used", a.Used),
		)))
	}
	return slog.GroupValue(attrs...)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
