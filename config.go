// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config declares a set of named allocators and a profiler.
//
//	sampleInterval: 100ms
//	allocators:
//	  - name: frame
//	    type: arena
//	    capacity: 1048576
//	  - name: particles
//	    type: pool
//	    blockSize: 64
//	    blockAlignment: 16
//	    blockCount: 4096
//	    debug: true
type Config struct {
	SampleInterval time.Duration     `yaml:"sampleInterval"`
	Allocators     []AllocatorConfig `yaml:"allocators"`
}

// AllocatorConfig declares one allocator. Capacity applies to arenas, stacks and
// double-ended stacks; the block fields apply to pools.
type AllocatorConfig struct {
	Name           string        `yaml:"name"`
	Type           AllocatorType `yaml:"type"`
	Capacity       int           `yaml:"capacity"`
	BlockSize      int           `yaml:"blockSize"`
	BlockAlignment int           `yaml:"blockAlignment"`
	BlockCount     int           `yaml:"blockCount"`
	Zeroing        bool          `yaml:"zeroing"`
	Debug          bool          `yaml:"debug"`
}

// ParseConfig decodes and validates a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "memory: parse config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every allocator has a unique name and usable dimensions.
func (c *Config) Validate() error {
	if c.SampleInterval < 0 {
		return errors.Newf("memory: negative sample interval %v", c.SampleInterval)
	}
	seen := make(map[string]struct{}, len(c.Allocators))
	for i, a := range c.Allocators {
		if a.Name == "" {
			return errors.Newf("memory: allocator %d has no name", i)
		}
		if _, dup := seen[a.Name]; dup {
			return errors.Newf("memory: duplicate allocator name %q", a.Name)
		}
		seen[a.Name] = struct{}{}
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the dimensions required by the allocator's type.
func (a AllocatorConfig) Validate() error {
	switch a.Type {
	case TypeArena, TypeStack, TypeDoubleEndedStack:
		if a.Capacity <= 0 {
			return errors.Newf("memory: %s %q: capacity must be positive, got %d", a.Type, a.Name, a.Capacity)
		}
	case TypePool:
		if a.BlockSize <= 0 || a.BlockCount <= 0 {
			return errors.Newf("memory: pool %q: blockSize and blockCount must be positive, got %d and %d", a.Name, a.BlockSize, a.BlockCount)
		}
		if a.BlockAlignment != 0 && !validAlignment(a.BlockAlignment) {
			return errors.Newf("memory: pool %q: blockAlignment %d is not a power of two", a.Name, a.BlockAlignment)
		}
	default:
		return errors.Newf("memory: %q: type %s cannot be built from config", a.Name, a.Type)
	}
	return nil
}

// Build constructs the declared allocator.
func (a AllocatorConfig) Build() (Reporter, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	var opts []Option
	if a.Zeroing {
		opts = append(opts, WithZeroing())
	}
	switch a.Type {
	case TypeArena:
		return NewArena(a.Capacity, opts...), nil
	case TypeStack:
		return NewStack(a.Capacity, opts...), nil
	case TypeDoubleEndedStack:
		return NewDoubleEndedStack(a.Capacity, opts...), nil
	default:
		var popts []PoolOption
		if a.Debug {
			popts = append(popts, WithDebugChecks())
		}
		alignment := a.BlockAlignment
		if alignment == 0 {
			alignment = linkSize
		}
		return NewPool(a.BlockSize, alignment, a.BlockCount, popts...), nil
	}
}

// Set is a collection of named allocators built from a Config.
type Set struct {
	names      []string
	allocators map[string]Reporter
	profiler   *Profiler
}

// Build constructs every declared allocator and a profiler using the configured
// sampling interval.
func (c *Config) Build(opts ...ProfilerOption) (*Set, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s := &Set{
		allocators: make(map[string]Reporter, len(c.Allocators)),
		profiler:   NewProfiler(c.SampleInterval, opts...),
	}
	for _, a := range c.Allocators {
		r, err := a.Build()
		if err != nil {
			return nil, err
		}
		s.names = append(s.names, a.Name)
		s.allocators[a.Name] = r
	}
	return s, nil
}

// Names returns the allocator names in declaration order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Get returns the allocator declared under name.
func (s *Set) Get(name string) (Reporter, bool) {
	r, ok := s.allocators[name]
	return r, ok
}

// Arena returns the arena declared under name.
func (s *Set) Arena(name string) (*Arena, bool) {
	a, ok := s.allocators[name].(*Arena)
	return a, ok
}

// Stack returns the stack allocator declared under name.
func (s *Set) Stack(name string) (*StackAllocator, bool) {
	a, ok := s.allocators[name].(*StackAllocator)
	return a, ok
}

// DoubleEndedStack returns the double-ended stack declared under name.
func (s *Set) DoubleEndedStack(name string) (*DoubleEndedStack, bool) {
	a, ok := s.allocators[name].(*DoubleEndedStack)
	return a, ok
}

// Pool returns the pool declared under name.
func (s *Set) Pool(name string) (*Pool, bool) {
	a, ok := s.allocators[name].(*Pool)
	return a, ok
}

// Profiler returns the set's profiler.
func (s *Set) Profiler() *Profiler {
	return s.profiler
}

// Snapshot registers a fresh snapshot of every allocator with m, then samples
// the resulting report into the set's profiler. It reports whether the sample was recorded.
func (s *Set) Snapshot(m *Manager) bool {
	for _, name := range s.names {
		m.Track(name, s.allocators[name])
	}
	return s.profiler.SampleReport(m.Report())
}
