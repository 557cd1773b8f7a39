package subscription

import (
	"fmt"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/mash-protocol/tagsched/pkg/tag"
)

// Snapshot is a point-in-time copy of the scheduler tables.
type Snapshot struct {
	TakenAt   time.Time          `cbor:"1,keyasint" json:"taken_at"`
	Intervals []IntervalSnapshot `cbor:"2,keyasint,omitempty" json:"intervals,omitempty"`
	Pending   []PendingSnapshot  `cbor:"3,keyasint,omitempty" json:"pending,omitempty"`
}

// IntervalSnapshot describes one rate bucket.
type IntervalSnapshot struct {
	Interval time.Duration    `cbor:"1,keyasint" json:"interval"`
	Members  []MemberSnapshot `cbor:"2,keyasint" json:"members"`
}

// MemberSnapshot is one tag's multiplicity within a bucket.
type MemberSnapshot struct {
	Handle tag.Handle `cbor:"1,keyasint" json:"handle"`
	Count  int        `cbor:"2,keyasint" json:"count"`
}

// PendingSnapshot is one request awaiting SubscribeReady.
type PendingSnapshot struct {
	Handle    tag.Handle    `cbor:"1,keyasint" json:"handle"`
	Requested time.Duration `cbor:"2,keyasint" json:"requested"`
	Rate      time.Duration `cbor:"3,keyasint" json:"rate"`
	Since     time.Time     `cbor:"4,keyasint" json:"since"`
}

// Subscriptions returns the total number of committed subscriptions in the
// snapshot.
func (s Snapshot) Subscriptions() int {
	n := 0
	for _, iv := range s.Intervals {
		for _, m := range iv.Members {
			n += m.Count
		}
	}
	return n
}

// Snapshot copies the current tables. Intervals, members and pending entries
// are ordered deterministically.
func (s *Scheduler) Snapshot() Snapshot {
	defer s.enter()()

	snap := Snapshot{TakenAt: s.config.Clock()}
	for _, rate := range s.buckets.intervals() {
		b := s.buckets.buckets[rate]
		iv := IntervalSnapshot{Interval: rate, Members: make([]MemberSnapshot, 0, len(b.members))}
		for _, h := range s.buckets.handles(rate) {
			iv.Members = append(iv.Members, MemberSnapshot{Handle: h, Count: b.members[h]})
		}
		snap.Intervals = append(snap.Intervals, iv)
	}

	for h, entries := range s.pending {
		for _, e := range entries {
			snap.Pending = append(snap.Pending, PendingSnapshot{
				Handle:    h,
				Requested: e.requested,
				Rate:      e.rate,
				Since:     e.since,
			})
		}
	}
	sort.SliceStable(snap.Pending, func(i, j int) bool {
		a, b := snap.Pending[i], snap.Pending[j]
		if a.Handle != b.Handle {
			return a.Handle < b.Handle
		}
		return a.Since.Before(b.Since)
	})
	return snap
}

var snapshotEncMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano

	var err error
	snapshotEncMode, err = opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}
}

// EncodeSnapshot encodes a snapshot as deterministic CBOR.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	return snapshotEncMode.Marshal(snap)
}

// DecodeSnapshot decodes a snapshot produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
