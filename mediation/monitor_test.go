package mediation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRingEviction(t *testing.T) {
	r := NewRing[string](3)
	assert.Empty(t, r.Entries())

	for i := 1; i <= 4; i++ {
		r.Push(fmt.Sprintf("m%d", i))
		assert.LessOrEqual(t, r.Len(), r.Cap())
	}

	assert.Equal(t, []string{"m2", "m3", "m4"}, r.Entries())
	assert.Equal(t, []string{"m4", "m3", "m2"}, r.Latest())
}

func TestRingNeverExceedsCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 8, 16} {
		r := NewRing[int](capacity)
		for i := 0; i < capacity*3+1; i++ {
			r.Push(i)
			assert.LessOrEqual(t, r.Len(), capacity)
		}
		entries := r.Entries()
		assert.Len(t, entries, capacity)
		assert.Equal(t, capacity*3, entries[len(entries)-1])
	}
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Entries())
}

func TestMonitorDefaultLength(t *testing.T) {
	m := NewMonitor(0)
	assert.Equal(t, DefaultMonitorLength, m.Inbound.Cap())
	assert.Equal(t, DefaultMonitorLength, m.Outbound.Cap())
}

func TestRegistry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(func() time.Time { return now })

	r.Touch(3)
	_, ok := r.Lookup(3)
	assert.False(t, ok, "touch must not create entries")
	assert.Empty(t, r.Snapshot())

	r.RegisterPort(1, "Arturia BeatStep")
	r.RegisterPort(0, "Midi Through")

	now = now.Add(2 * time.Second)
	r.Touch(1)
	info, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, now, info.LastReceivedAt)

	// clock going backwards keeps the later timestamp
	earlier := now.Add(-time.Minute)
	now = earlier
	r.Touch(1)
	info, _ = r.Lookup(1)
	assert.True(t, info.LastReceivedAt.After(earlier))

	snap := r.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, 0, snap[0].Index)
	assert.Equal(t, "Arturia BeatStep", snap[1].Name)

	r.RegisterPort(1, "renamed")
	info, _ = r.Lookup(1)
	assert.Equal(t, "renamed", info.Name)
}
