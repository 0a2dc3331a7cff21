// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// AllocatorType tags a usage snapshot with the kind of allocator that produced it.
type AllocatorType int

const (
	TypeArena AllocatorType = iota
	TypePool
	TypeStack
	TypeDoubleEndedStack
	TypeCustom
)

var allocatorTypeNames = map[AllocatorType]string{
	TypeArena:            "arena",
	TypePool:             "pool",
	TypeStack:            "stack",
	TypeDoubleEndedStack: "double_ended_stack",
	TypeCustom:           "custom",
}

func (t AllocatorType) String() string {
	if name, ok := allocatorTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseAllocatorType is the inverse of AllocatorType.String. Matching is case-insensitive.
func ParseAllocatorType(s string) (AllocatorType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range allocatorTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, errors.Newf("memory: unknown allocator type %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *AllocatorType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseAllocatorType(s)
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	*t = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t AllocatorType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// AllocatorInfo is a usage snapshot of one allocator.
// Used + Available == TotalCapacity holds for every snapshot taken from this package.
type AllocatorInfo struct {
	Type              AllocatorType
	TotalCapacity     int
	Used              int
	Available         int
	AllocationCount   uint64
	DeallocationCount uint64
}

// Utilization returns Used as a percentage of TotalCapacity.
func (i AllocatorInfo) Utilization() float64 {
	if i.TotalCapacity == 0 {
		return 0
	}
	return float64(i.Used) / float64(i.TotalCapacity) * 100
}

// ActiveAllocations returns the number of allocations not yet released.
func (i AllocatorInfo) ActiveAllocations() uint64 {
	if i.DeallocationCount > i.AllocationCount {
		return 0
	}
	return i.AllocationCount - i.DeallocationCount
}
