package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mash-protocol/tagsched/pkg/log"
	"github.com/mash-protocol/tagsched/pkg/metrics"
	"github.com/mash-protocol/tagsched/pkg/tag"
)

// pendingEntry is a clamped request awaiting SubscribeReady.
type pendingEntry struct {
	requested time.Duration
	rate      time.Duration
	since     time.Time
}

// Scheduler groups tag subscriptions by effective polling rate.
// It is not safe for concurrent use; see the package documentation.
type Scheduler struct {
	config  Config
	tags    tag.Provider
	logger  *slog.Logger
	events  log.Logger
	metrics metrics.Collector

	// Committed state
	states        map[tag.Handle]*TagState
	buckets       bucketTable
	subscriptions int

	// Requests accepted by Subscribe, not yet confirmed
	pending      map[tag.Handle][]pendingEntry
	pendingCount int

	busy atomic.Bool
}

// NewScheduler creates a scheduler with default configuration.
func NewScheduler(tags tag.Provider) *Scheduler {
	return NewSchedulerWithConfig(tags, DefaultConfig())
}

// NewSchedulerWithConfig creates a scheduler with custom configuration.
func NewSchedulerWithConfig(tags tag.Provider, config Config) *Scheduler {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Scheduler{
		config:  config,
		tags:    tags,
		logger:  logger,
		events:  log.OrNoop(config.EventLogger),
		metrics: metrics.OrNop(config.Metrics),
		states:  make(map[tag.Handle]*TagState),
		buckets: newBucketTable(),
		pending: make(map[tag.Handle][]pendingEntry),
	}
}

// Subscribe validates and clamps each (handle, requestedRate) pair and holds
// the accepted ones pending until SubscribeReady. Unknown handles are not
// accepted and report a zero rate.
func (s *Scheduler) Subscribe(handles []tag.Handle, requestedRates []time.Duration) ([]time.Duration, []bool) {
	defer s.enter()()

	revised := make([]time.Duration, len(handles))
	accepted := make([]bool, len(handles))

	for i, h := range handles {
		if i >= len(requestedRates) {
			s.reject(log.OpSubscribe, h, 0, 0, ErrMissingRate)
			continue
		}
		rate, err := s.subscribe(h, requestedRates[i])
		if err != nil {
			s.reject(log.OpSubscribe, h, requestedRates[i], 0, err)
			continue
		}
		revised[i], accepted[i] = rate, true

		result := metrics.ResultAccepted
		op := &log.OperationEvent{
			Op:            log.OpSubscribe,
			Handle:        h,
			RequestedRate: requestedRates[i],
			RevisedRate:   rate,
			Accepted:      true,
		}
		if rate != requestedRates[i] {
			result = metrics.ResultClamped
			op.Reason = "clamped to minimum interval"
		}
		s.metrics.RecordOperation(metrics.OpSubscribe, result)
		s.emit(op)
	}

	s.updateGauges()
	return revised, accepted
}

// SubscribeReady commits every pending request of the given handles.
// A handle without pending requests is ignored.
func (s *Scheduler) SubscribeReady(handles []tag.Handle) {
	defer s.enter()()

	for _, h := range handles {
		entries := s.pending[h]
		if len(entries) == 0 {
			s.reject(log.OpSubscribeReady, h, 0, 0, ErrNoPendingSubscription)
			continue
		}
		delete(s.pending, h)
		s.pendingCount -= len(entries)

		state := s.states[h]
		for _, e := range entries {
			s.commit(state, e.rate)
			s.metrics.RecordOperation(metrics.OpSubscribeReady, metrics.ResultAccepted)
			s.emit(&log.OperationEvent{
				Op:            log.OpSubscribeReady,
				Handle:        h,
				RequestedRate: e.requested,
				RevisedRate:   e.rate,
				Accepted:      true,
			})
		}
	}

	s.updateGauges()
}

// DiscardPending drops one pending request per (handle, rate) pair, where
// rate is the revised rate Subscribe returned. Use it when the transport
// rejects a subscription after Subscribe accepted it.
func (s *Scheduler) DiscardPending(handles []tag.Handle, rates []time.Duration) []bool {
	defer s.enter()()

	accepted := make([]bool, len(handles))
	for i, h := range handles {
		if i >= len(rates) {
			s.reject(log.OpDiscardPending, h, 0, 0, ErrMissingRate)
			continue
		}
		if !s.discard(h, rates[i]) {
			s.reject(log.OpDiscardPending, h, rates[i], 0, ErrNoPendingSubscription)
			continue
		}
		accepted[i] = true
		s.metrics.RecordOperation(metrics.OpDiscardPending, metrics.ResultAccepted)
		s.emit(&log.OperationEvent{Op: log.OpDiscardPending, Handle: h, RevisedRate: rates[i], Accepted: true})
	}

	s.updateGauges()
	return accepted
}

// Unsubscribe removes one committed subscription per (handle, rate) pair.
func (s *Scheduler) Unsubscribe(handles []tag.Handle, rates []time.Duration) []bool {
	defer s.enter()()

	accepted := make([]bool, len(handles))
	for i, h := range handles {
		if i >= len(rates) {
			s.reject(log.OpUnsubscribe, h, 0, 0, ErrMissingRate)
			continue
		}
		if err := s.unsubscribe(h, rates[i]); err != nil {
			s.reject(log.OpUnsubscribe, h, rates[i], 0, err)
			continue
		}
		accepted[i] = true
		s.metrics.RecordOperation(metrics.OpUnsubscribe, metrics.ResultAccepted)
		s.emit(&log.OperationEvent{Op: log.OpUnsubscribe, Handle: h, RevisedRate: rates[i], Accepted: true})
	}

	s.updateGauges()
	return accepted
}

// ModifySubscription moves one committed subscription per triple from
// oldRate to the clamped newRate.
func (s *Scheduler) ModifySubscription(handles []tag.Handle, oldRates, newRates []time.Duration) ([]time.Duration, []bool) {
	defer s.enter()()

	revised := make([]time.Duration, len(handles))
	accepted := make([]bool, len(handles))

	for i, h := range handles {
		if i >= len(oldRates) || i >= len(newRates) {
			s.reject(log.OpModify, h, 0, 0, ErrMissingRate)
			continue
		}
		rate, err := s.modify(h, oldRates[i], newRates[i])
		if err != nil {
			s.reject(log.OpModify, h, newRates[i], oldRates[i], err)
			continue
		}
		revised[i], accepted[i] = rate, true

		result := metrics.ResultAccepted
		op := &log.OperationEvent{
			Op:            log.OpModify,
			Handle:        h,
			OldRate:       oldRates[i],
			RequestedRate: newRates[i],
			RevisedRate:   rate,
			Accepted:      true,
		}
		if rate != newRates[i] {
			result = metrics.ResultClamped
			op.Reason = "clamped to minimum interval"
		}
		s.metrics.RecordOperation(metrics.OpModify, result)
		s.emit(op)
	}

	s.updateGauges()
	return revised, accepted
}

// ActiveIntervals returns the distinct effective rates that currently have
// at least one committed subscription, ascending.
func (s *Scheduler) ActiveIntervals() []time.Duration {
	defer s.enter()()
	return s.buckets.intervals()
}

// HandlesAt returns the distinct handles subscribed at rate, ascending.
func (s *Scheduler) HandlesAt(rate time.Duration) []tag.Handle {
	defer s.enter()()
	return s.buckets.handles(rate)
}

// BucketSize returns the number of committed subscriptions at rate.
func (s *Scheduler) BucketSize(rate time.Duration) int {
	defer s.enter()()
	return s.buckets.size(rate)
}

// TagState returns a copy of the bookkeeping for h. It reports false for
// handles that are not configured.
func (s *Scheduler) TagState(h tag.Handle) (*TagState, bool) {
	defer s.enter()()

	state, err := s.state(h)
	if err != nil {
		return nil, false
	}
	return state.clone(), true
}

// HasAnySubscription reports whether h has a committed subscription.
func (s *Scheduler) HasAnySubscription(h tag.Handle) bool {
	defer s.enter()()

	state, ok := s.states[h]
	return ok && state.HasAnySubscription()
}

// SubscriptionCount returns the number of committed subscriptions.
func (s *Scheduler) SubscriptionCount() int {
	defer s.enter()()
	return s.subscriptions
}

// PendingCount returns the number of requests awaiting SubscribeReady.
func (s *Scheduler) PendingCount() int {
	defer s.enter()()
	return s.pendingCount
}

// Verify checks the internal invariants and returns an error wrapping
// ErrInconsistent describing the first violation found.
func (s *Scheduler) Verify() error {
	defer s.enter()()

	perBucket := make(map[time.Duration]int)
	total := 0
	for h, state := range s.states {
		sum := 0
		for rate, n := range state.refs {
			if n <= 0 {
				return fmt.Errorf("%w: tag %d has count %d at %v", ErrInconsistent, h, n, rate)
			}
			if rate < state.minimumInterval {
				return fmt.Errorf("%w: tag %d subscribed at %v below floor %v", ErrInconsistent, h, rate, state.minimumInterval)
			}
			if got := s.buckets.count(rate, h); got != n {
				return fmt.Errorf("%w: tag %d has %d at %v, bucket holds %d", ErrInconsistent, h, n, rate, got)
			}
			perBucket[rate] += n
			sum += n
		}
		if sum != state.total {
			return fmt.Errorf("%w: tag %d total %d, counts sum to %d", ErrInconsistent, h, state.total, sum)
		}
		total += sum
	}

	for rate, b := range s.buckets.buckets {
		if b.size == 0 {
			return fmt.Errorf("%w: empty bucket at %v", ErrInconsistent, rate)
		}
		if perBucket[rate] != b.size {
			return fmt.Errorf("%w: bucket %v holds %d, tags account for %d", ErrInconsistent, rate, b.size, perBucket[rate])
		}
	}
	if total != s.subscriptions {
		return fmt.Errorf("%w: %d subscriptions counted, tags hold %d", ErrInconsistent, s.subscriptions, total)
	}

	pending := 0
	for _, entries := range s.pending {
		pending += len(entries)
	}
	if pending != s.pendingCount {
		return fmt.Errorf("%w: %d pending counted, %d held", ErrInconsistent, s.pendingCount, pending)
	}
	return nil
}

// enter marks the start of a call when concurrent-use detection is enabled.
// Use as `defer s.enter()()`.
func (s *Scheduler) enter() func() {
	if !s.config.DetectConcurrentUse {
		return func() {}
	}
	if !s.busy.CompareAndSwap(false, true) {
		panic(ErrConcurrentUse)
	}
	return func() { s.busy.Store(false) }
}

// state returns the TagState for h, materialising it from configuration on
// first use.
func (s *Scheduler) state(h tag.Handle) (*TagState, error) {
	if state, ok := s.states[h]; ok {
		return state, nil
	}
	if !s.tags.Exists(h) {
		return nil, ErrUnknownTag
	}
	state := newTagState(h, s.tags.MinimumInterval(h))
	s.states[h] = state
	return state, nil
}

func (s *Scheduler) subscribe(h tag.Handle, requested time.Duration) (time.Duration, error) {
	state, err := s.state(h)
	if err != nil {
		return 0, err
	}
	rate := state.clamp(requested)
	s.pending[h] = append(s.pending[h], pendingEntry{
		requested: requested,
		rate:      rate,
		since:     s.config.Clock(),
	})
	s.pendingCount++
	return rate, nil
}

func (s *Scheduler) discard(h tag.Handle, rate time.Duration) bool {
	entries := s.pending[h]
	for i, e := range entries {
		if e.rate != rate {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(s.pending, h)
		} else {
			s.pending[h] = entries
		}
		s.pendingCount--
		return true
	}
	return false
}

func (s *Scheduler) unsubscribe(h tag.Handle, rate time.Duration) error {
	state, err := s.state(h)
	if err != nil {
		return err
	}
	if state.Count(rate) == 0 {
		return ErrNoMatchingSubscription
	}
	s.release(state, rate)
	return nil
}

func (s *Scheduler) modify(h tag.Handle, oldRate, newRate time.Duration) (time.Duration, error) {
	state, err := s.state(h)
	if err != nil {
		return 0, err
	}
	if state.Count(oldRate) == 0 {
		return 0, ErrNoMatchingSubscription
	}
	rate := state.clamp(newRate)
	// Commit before release so an unchanged rate never empties its bucket.
	s.commit(state, rate)
	s.release(state, oldRate)
	return rate, nil
}

func (s *Scheduler) commit(state *TagState, rate time.Duration) {
	state.add(rate)
	s.subscriptions++
	if s.buckets.add(rate, state.handle) {
		s.intervalChanged(rate, log.IntervalAdded)
	}
}

func (s *Scheduler) release(state *TagState, rate time.Duration) {
	state.remove(rate)
	s.subscriptions--
	if _, deleted := s.buckets.remove(rate, state.handle); deleted {
		s.intervalChanged(rate, log.IntervalRemoved)
	}
}

func (s *Scheduler) intervalChanged(rate time.Duration, change log.IntervalChange) {
	s.logger.Debug("active interval changed", "interval", rate, "change", change.String())
	s.events.Log(log.Event{
		Timestamp: s.config.Clock(),
		Category:  log.CategoryInterval,
		Interval:  &log.IntervalEvent{Interval: rate, Change: change},
	})
	if s.config.Observer == nil {
		return
	}
	if change == log.IntervalAdded {
		s.config.Observer.IntervalAdded(rate)
	} else {
		s.config.Observer.IntervalRemoved(rate)
	}
}

func (s *Scheduler) reject(op log.Op, h tag.Handle, rate, oldRate time.Duration, err error) {
	s.logger.Debug("subscription element rejected", "op", op.String(), "handle", h, "rate", rate, "error", err)
	s.metrics.RecordOperation(metricsOp(op), rejectResult(err))
	s.emit(&log.OperationEvent{
		Op:            op,
		Handle:        h,
		RequestedRate: rate,
		OldRate:       oldRate,
		Reason:        err.Error(),
	})
}

func (s *Scheduler) emit(op *log.OperationEvent) {
	s.events.Log(log.Event{
		Timestamp: s.config.Clock(),
		Category:  log.CategoryOperation,
		Operation: op,
	})
}

func (s *Scheduler) updateGauges() {
	s.metrics.SetActiveIntervals(s.buckets.len())
	s.metrics.SetSubscriptions(s.subscriptions)
	s.metrics.SetPending(s.pendingCount)
}

func metricsOp(op log.Op) string {
	switch op {
	case log.OpSubscribe:
		return metrics.OpSubscribe
	case log.OpSubscribeReady:
		return metrics.OpSubscribeReady
	case log.OpUnsubscribe:
		return metrics.OpUnsubscribe
	case log.OpModify:
		return metrics.OpModify
	default:
		return metrics.OpDiscardPending
	}
}

func rejectResult(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTag):
		return metrics.ResultUnknownTag
	case errors.Is(err, ErrNoPendingSubscription):
		return metrics.ResultNoPending
	default:
		return metrics.ResultNoMatch
	}
}
