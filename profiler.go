// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"time"

	"golang.org/x/exp/slog"
)

// Sample is one timestamped usage snapshot recorded by a Profiler.
type Sample struct {
	Timestamp time.Time
	Info      AllocatorInfo
}

// Profiler records usage snapshots over time.
//
// With a positive interval, a snapshot offered sooner than interval after the
// last recorded one is dropped. With a zero interval every snapshot is recorded.
// The log is append-only until Clear. Profiler is not safe for concurrent use.
type Profiler struct {
	interval time.Duration
	samples  []Sample
	logger   *slog.Logger
	now      func() time.Time
}

// ProfilerOption configures a Profiler.
type ProfilerOption func(*Profiler)

// WithProfilerLogger sets the logger used to report dropped samples at debug level.
func WithProfilerLogger(logger *slog.Logger) ProfilerOption {
	return func(p *Profiler) {
		p.logger = logger
	}
}

// WithProfilerClock sets the time source used to stamp samples.
func WithProfilerClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// NewProfiler creates a Profiler with the given sampling interval.
// A negative interval is treated as zero.
func NewProfiler(interval time.Duration, opts ...ProfilerOption) *Profiler {
	p := &Profiler{
		interval: max(interval, 0),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the sampling interval.
func (p *Profiler) Interval() time.Duration {
	return p.interval
}

// Sample records info with the current time. It reports whether the sample was
// recorded or dropped for arriving within the sampling interval.
func (p *Profiler) Sample(info AllocatorInfo) bool {
	now := p.now()
	if p.interval > 0 && len(p.samples) > 0 {
		if since := now.Sub(p.samples[len(p.samples)-1].Timestamp); since < p.interval {
			p.logger.Debug("profiler sample dropped",
				slog.Duration("since_last", since),
				slog.Duration("interval", p.interval),
			)
			return false
		}
	}
	p.samples = append(p.samples, Sample{Timestamp: now, Info: info})
	return true
}

// SampleReport records the aggregate of a Manager report.
func (p *Profiler) SampleReport(r Report) bool {
	return p.Sample(r.Aggregate())
}

// Samples returns a copy of the recorded samples in the order they were taken.
func (p *Profiler) Samples() []Sample {
	out := make([]Sample, len(p.samples))
	copy(out, p.samples)
	return out
}

// Len returns the number of recorded samples.
func (p *Profiler) Len() int {
	return len(p.samples)
}

// Clear discards every recorded sample.
func (p *Profiler) Clear() {
	p.samples = p.samples[:0]
}

// AverageUsage returns the integer mean of the Used field over all samples, or 0
// when there are none.
func (p *Profiler) AverageUsage() int {
	if len(p.samples) == 0 {
		return 0
	}
	var sum int
	for _, s := range p.samples {
		sum += s.Info.Used
	}
	return sum / len(p.samples)
}

// PeakUsage returns the largest Used value over all samples, or 0 when there are none.
func (p *Profiler) PeakUsage() int {
	var peak int
	for _, s := range p.samples {
		peak = max(peak, s.Info.Used)
	}
	return peak
}
