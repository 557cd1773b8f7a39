package service

import (
	"time"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

// subKey identifies a committed subscription owned by a session.
type subKey struct {
	handle tag.Handle
	rate   time.Duration
}

// pendingRecord is a session's view of one pending scheduler entry.
type pendingRecord struct {
	handle    tag.Handle
	rate      time.Duration
	requested time.Duration
	since     time.Time
}

// session tracks the subscriptions one client created.
type session struct {
	id        string
	openedAt  time.Time
	pending   []pendingRecord
	committed map[subKey]int
}

func newSession(id string, now time.Time) *session {
	return &session{
		id:        id,
		openedAt:  now,
		committed: make(map[subKey]int),
	}
}

// owns reports whether the session holds a committed (h, rate) record.
func (s *session) owns(h tag.Handle, rate time.Duration) bool {
	return s.committed[subKey{h, rate}] > 0
}

func (s *session) take(h tag.Handle, rate time.Duration) {
	k := subKey{h, rate}
	if s.committed[k] <= 1 {
		delete(s.committed, k)
		return
	}
	s.committed[k]--
}

func (s *session) give(h tag.Handle, rate time.Duration) {
	s.committed[subKey{h, rate}]++
}

// hasPending reports whether a pending (h, rate) entry exists.
func (s *session) hasPending(h tag.Handle, rate time.Duration) bool {
	for _, p := range s.pending {
		if p.handle == h && p.rate == rate {
			return true
		}
	}
	return false
}

// dropPending removes one pending (h, rate) entry, oldest first.
func (s *session) dropPending(h tag.Handle, rate time.Duration) bool {
	for i, p := range s.pending {
		if p.handle == h && p.rate == rate {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// commitPending moves every pending entry of h into the committed bag.
func (s *session) commitPending(h tag.Handle) int {
	kept := s.pending[:0]
	moved := 0
	for _, p := range s.pending {
		if p.handle == h {
			s.give(p.handle, p.rate)
			moved++
			continue
		}
		kept = append(kept, p)
	}
	s.pending = kept
	return moved
}

// stalePending removes and returns pending entries added before cutoff.
func (s *session) stalePending(cutoff time.Time) []pendingRecord {
	var stale []pendingRecord
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.since.Before(cutoff) {
			stale = append(stale, p)
			continue
		}
		kept = append(kept, p)
	}
	s.pending = kept
	return stale
}

func (s *session) subscriptionCount() int {
	n := 0
	for _, c := range s.committed {
		n += c
	}
	return n
}
