package metrics

import "time"

// Operation names used as metric labels.
const (
	OpSubscribe      = "subscribe"
	OpSubscribeReady = "subscribe_ready"
	OpUnsubscribe    = "unsubscribe"
	OpModify         = "modify"
	OpDiscardPending = "discard_pending"
)

// Operation results used as metric labels.
const (
	ResultAccepted   = "accepted"
	ResultClamped    = "clamped"
	ResultUnknownTag = "unknown_tag"
	ResultNoMatch    = "no_match"
	ResultNoPending  = "no_pending"
)

// Collector receives engine and dispatcher measurements.
// Implementations must be safe for concurrent use.
type Collector interface {
	// RecordOperation counts one per-element outcome of an engine operation.
	RecordOperation(op, result string)

	// SetActiveIntervals records the number of distinct active intervals.
	SetActiveIntervals(n int)

	// SetSubscriptions records the number of committed subscriptions.
	SetSubscriptions(n int)

	// SetPending records the number of pending (unconfirmed) subscriptions.
	SetPending(n int)

	// RecordDispatch records one periodic value read.
	RecordDispatch(interval time.Duration, batchSize int, err error)
}

// Nop discards all measurements.
type Nop struct{}

// NewNop returns a no-op collector.
func NewNop() *Nop {
	return &Nop{}
}

// RecordOperation discards the outcome.
func (*Nop) RecordOperation(_, _ string) {}

// SetActiveIntervals discards the gauge value.
func (*Nop) SetActiveIntervals(_ int) {}

// SetSubscriptions discards the gauge value.
func (*Nop) SetSubscriptions(_ int) {}

// SetPending discards the gauge value.
func (*Nop) SetPending(_ int) {}

// RecordDispatch discards the dispatch measurement.
func (*Nop) RecordDispatch(_ time.Duration, _ int, _ error) {}

// Compile-time interface satisfaction check.
var _ Collector = (*Nop)(nil)

// OrNop returns c, or a Nop collector when c is nil.
func OrNop(c Collector) Collector {
	if c == nil {
		return NewNop()
	}
	return c
}
