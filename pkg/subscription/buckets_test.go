package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

func TestBucketTableLifecycle(t *testing.T) {
	table := newBucketTable()

	assert.True(t, table.add(floor, 1))
	assert.False(t, table.add(floor, 1))
	assert.False(t, table.add(floor, 2))
	assert.Equal(t, 3, table.size(floor))
	assert.Equal(t, 2, table.count(floor, 1))
	assert.Equal(t, []tag.Handle{1, 2}, table.handles(floor))

	removed, deleted := table.remove(floor, 3)
	assert.False(t, removed)
	assert.False(t, deleted)

	removed, deleted = table.remove(floor, 1)
	assert.True(t, removed)
	assert.False(t, deleted)
	assert.Equal(t, []tag.Handle{1, 2}, table.handles(floor))

	table.remove(floor, 1)
	assert.Equal(t, []tag.Handle{2}, table.handles(floor))

	removed, deleted = table.remove(floor, 2)
	assert.True(t, removed)
	assert.True(t, deleted)
	assert.Equal(t, 0, table.len())
	assert.Nil(t, table.handles(floor))

	removed, _ = table.remove(ms(300), 1)
	assert.False(t, removed)
}

func TestBucketTableIntervalsSorted(t *testing.T) {
	table := newBucketTable()
	for _, r := range []time.Duration{time.Second, floor, ms(250)} {
		table.add(r, 1)
	}
	assert.Equal(t, []time.Duration{floor, ms(250), time.Second}, table.intervals())
}

func TestTagStateCounts(t *testing.T) {
	s := newTagState(7, floor)

	assert.Equal(t, floor, s.clamp(ms(1)))
	assert.Equal(t, ms(300), s.clamp(ms(300)))
	assert.False(t, s.HasAnySubscription())

	s.add(floor)
	s.add(floor)
	s.add(ms(300))
	assert.Equal(t, 3, s.Total())
	assert.Equal(t, []time.Duration{floor, ms(300)}, s.Rates())

	assert.True(t, s.remove(floor))
	assert.False(t, s.remove(ms(999)))
	assert.Equal(t, map[time.Duration]int{floor: 1, ms(300): 1}, s.ReferenceCounts())

	c := s.clone()
	c.add(ms(700))
	assert.Equal(t, 2, s.Total(), "clone is independent")

	s.remove(floor)
	s.remove(ms(300))
	assert.False(t, s.HasAnySubscription())
	assert.Empty(t, s.Rates())
}
