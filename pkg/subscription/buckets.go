package subscription

import (
	"sort"
	"time"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

// rateBucket holds every committed subscription sharing one effective rate,
// as a multiplicity per tag.
type rateBucket struct {
	members map[tag.Handle]int
	size    int
}

// bucketTable maps effective rates to their buckets. A bucket exists only
// while it holds at least one subscription.
type bucketTable struct {
	buckets map[time.Duration]*rateBucket
}

func newBucketTable() bucketTable {
	return bucketTable{buckets: make(map[time.Duration]*rateBucket)}
}

// add appends one subscription for h at rate and reports whether the bucket
// was created by this call.
func (t *bucketTable) add(rate time.Duration, h tag.Handle) (created bool) {
	b, ok := t.buckets[rate]
	if !ok {
		b = &rateBucket{members: make(map[tag.Handle]int)}
		t.buckets[rate] = b
		created = true
	}
	b.members[h]++
	b.size++
	return created
}

// remove drops one subscription for h at rate. removed is false when none
// exists; deleted is true when the bucket became empty and was dropped.
func (t *bucketTable) remove(rate time.Duration, h tag.Handle) (removed, deleted bool) {
	b, ok := t.buckets[rate]
	if !ok {
		return false, false
	}
	n := b.members[h]
	if n == 0 {
		return false, false
	}
	if n == 1 {
		delete(b.members, h)
	} else {
		b.members[h] = n - 1
	}
	b.size--
	if b.size == 0 {
		delete(t.buckets, rate)
		return true, true
	}
	return true, false
}

// intervals returns the bucket keys, ascending.
func (t *bucketTable) intervals() []time.Duration {
	out := make([]time.Duration, 0, len(t.buckets))
	for r := range t.buckets {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// handles returns the distinct handles in the bucket at rate, ascending.
func (t *bucketTable) handles(rate time.Duration) []tag.Handle {
	b, ok := t.buckets[rate]
	if !ok {
		return nil
	}
	out := make([]tag.Handle, 0, len(b.members))
	for h := range b.members {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t *bucketTable) size(rate time.Duration) int {
	if b, ok := t.buckets[rate]; ok {
		return b.size
	}
	return 0
}

func (t *bucketTable) count(rate time.Duration, h tag.Handle) int {
	if b, ok := t.buckets[rate]; ok {
		return b.members[h]
	}
	return 0
}

func (t *bucketTable) len() int {
	return len(t.buckets)
}
