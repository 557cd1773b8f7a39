package subscription

import (
	"sort"
	"time"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

// TagState is the per-tag bookkeeping: how many committed subscriptions the
// tag has at each effective rate.
type TagState struct {
	handle          tag.Handle
	minimumInterval time.Duration
	refs            map[time.Duration]int
	total           int
}

func newTagState(h tag.Handle, minimumInterval time.Duration) *TagState {
	return &TagState{
		handle:          h,
		minimumInterval: minimumInterval,
		refs:            make(map[time.Duration]int),
	}
}

// Handle returns the tag handle.
func (s *TagState) Handle() tag.Handle { return s.handle }

// MinimumInterval returns the tag's polling floor.
func (s *TagState) MinimumInterval() time.Duration { return s.minimumInterval }

// HasAnySubscription reports whether any committed subscription exists.
func (s *TagState) HasAnySubscription() bool { return s.total > 0 }

// Total returns the number of committed subscriptions across all rates.
func (s *TagState) Total() int { return s.total }

// Count returns the number of committed subscriptions at rate.
func (s *TagState) Count(rate time.Duration) int { return s.refs[rate] }

// Rates returns the rates with at least one subscription, ascending.
func (s *TagState) Rates() []time.Duration {
	rates := make([]time.Duration, 0, len(s.refs))
	for r := range s.refs {
		rates = append(rates, r)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })
	return rates
}

// ReferenceCounts returns a copy of the per-rate counts.
func (s *TagState) ReferenceCounts() map[time.Duration]int {
	out := make(map[time.Duration]int, len(s.refs))
	for r, n := range s.refs {
		out[r] = n
	}
	return out
}

// clamp raises rate to the tag's floor.
func (s *TagState) clamp(rate time.Duration) time.Duration {
	return max(rate, s.minimumInterval)
}

func (s *TagState) add(rate time.Duration) {
	s.refs[rate]++
	s.total++
}

// remove drops one subscription at rate. It reports false when none exists.
func (s *TagState) remove(rate time.Duration) bool {
	n := s.refs[rate]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(s.refs, rate)
	} else {
		s.refs[rate] = n - 1
	}
	s.total--
	return true
}

func (s *TagState) clone() *TagState {
	return &TagState{
		handle:          s.handle,
		minimumInterval: s.minimumInterval,
		refs:            s.ReferenceCounts(),
		total:           s.total,
	}
}
