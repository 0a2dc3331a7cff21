// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testConfig = `
sampleInterval: 100ms
allocators:
  - name: frame
    type: arena
    capacity: 4096
    zeroing: true
  - name: scratch
    type: stack
    capacity: 1024
  - name: level
    type: double_ended_stack
    capacity: 2048
  - name: particles
    type: pool
    blockSize: 24
    blockCount: 10
    debug: true
`

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	require.Equal(t, 100*time.Millisecond, c.SampleInterval)
	require.Len(t, c.Allocators, 4)
	require.Equal(t, TypeArena, c.Allocators[0].Type)
	require.True(t, c.Allocators[0].Zeroing)
	require.Equal(t, TypeStack, c.Allocators[1].Type)
	require.Equal(t, TypeDoubleEndedStack, c.Allocators[2].Type)
	require.Equal(t, TypePool, c.Allocators[3].Type)
	require.Equal(t, 24, c.Allocators[3].BlockSize)
}

func TestParseConfigErrors(t *testing.T) {
	cases := map[string]string{
		"unknown type": `
allocators:
  - name: a
    type: heap
    capacity: 10`,
		"duplicate name": `
allocators:
  - name: a
    capacity: 10
  - name: a
    capacity: 10`,
		"missing name": `
allocators:
  - type: stack
    capacity: 10`,
		"zero capacity": `
allocators:
  - name: a
    type: stack`,
		"bad alignment": `
allocators:
  - name: a
    type: pool
    blockSize: 8
    blockCount: 8
    blockAlignment: 3`,
		"custom type": `
allocators:
  - name: a
    type: custom
    capacity: 10`,
		"negative interval": `
sampleInterval: -1s`,
		"malformed": `allocators: [`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestConfigDefaultsToArena(t *testing.T) {
	c, err := ParseConfig([]byte("allocators:\n  - name: a\n    capacity: 16\n"))
	require.NoError(t, err)
	require.Equal(t, TypeArena, c.Allocators[0].Type)
}

func TestAllocatorTypeYAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(AllocatorConfig{Name: "p", Type: TypeDoubleEndedStack, Capacity: 8})
	require.NoError(t, err)
	require.Contains(t, string(out), "type: double_ended_stack")

	var back AllocatorConfig
	require.NoError(t, yaml.Unmarshal(out, &back))
	require.Equal(t, TypeDoubleEndedStack, back.Type)
}

func TestConfigBuild(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	clock := &fakeClock{now: time.Unix(0, 0)}
	set, err := c.Build(WithProfilerClock(clock.Now))
	require.NoError(t, err)
	require.Equal(t, []string{"frame", "scratch", "level", "particles"}, set.Names())
	require.Equal(t, 100*time.Millisecond, set.Profiler().Interval())

	arena, ok := set.Arena("frame")
	require.True(t, ok)
	require.Equal(t, 4096, arena.Cap())

	stack, ok := set.Stack("scratch")
	require.True(t, ok)
	require.Equal(t, 1024, stack.Cap())

	des, ok := set.DoubleEndedStack("level")
	require.True(t, ok)
	require.Equal(t, 2048, des.Cap())

	pool, ok := set.Pool("particles")
	require.True(t, ok)
	require.Equal(t, 24, pool.BlockSize())
	require.Equal(t, 24, pool.Stride())
	require.Equal(t, 10, pool.Len())

	_, ok = set.Arena("particles")
	require.False(t, ok)
	_, ok = set.Get("missing")
	require.False(t, ok)

	// debug checks are on for the pool
	s, err := pool.Alloc()
	require.NoError(t, err)
	require.NoError(t, pool.Free(s))
	require.ErrorIs(t, pool.Free(s), ErrDoubleFree)
}

func TestSetSnapshot(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	clock := &fakeClock{now: time.Unix(0, 0)}
	set, err := c.Build(WithProfilerClock(clock.Now))
	require.NoError(t, err)

	m := NewManager()
	require.True(t, set.Snapshot(m))
	require.Equal(t, 4, m.Len())

	arena, _ := set.Arena("frame")
	_, err = arena.Alloc(1000, 8)
	require.NoError(t, err)

	// within the sampling interval the registry is refreshed but no sample is taken
	clock.Advance(10 * time.Millisecond)
	require.False(t, set.Snapshot(m))
	info, _ := m.Allocator("frame")
	require.Equal(t, 1000, info.Used)

	clock.Advance(100 * time.Millisecond)
	require.True(t, set.Snapshot(m))
	require.Equal(t, 2, set.Profiler().Len())
	require.Equal(t, 1000, set.Profiler().PeakUsage())
	require.Equal(t, 500, set.Profiler().AverageUsage())
}
