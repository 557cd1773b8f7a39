package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/tagsched/pkg/dispatch"
	"github.com/mash-protocol/tagsched/pkg/log"
	"github.com/mash-protocol/tagsched/pkg/subscription"
	"github.com/mash-protocol/tagsched/pkg/tag"
	"github.com/mash-protocol/tagsched/pkg/valuecache"
)

// DataServer hosts the scheduler, its dispatcher and client sessions.
type DataServer struct {
	mu sync.Mutex

	config Config
	logger *slog.Logger
	events *sessionStamper

	tags       tag.Provider
	scheduler  *subscription.Scheduler
	dispatcher *dispatch.Dispatcher

	sessions  map[string]*session
	state     ServiceState
	startedAt time.Time
	reaped    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDataServer creates a server for the tags in tags, reading values from cache.
func NewDataServer(tags tag.Provider, cache valuecache.Service, config Config) *DataServer {
	if config.PendingTimeout <= 0 {
		config.PendingTimeout = DefaultPendingTimeout
	}
	if config.ReapInterval <= 0 {
		config.ReapInterval = DefaultReapInterval
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &DataServer{
		config:   config,
		logger:   logger,
		tags:     tags,
		sessions: make(map[string]*session),
		events:   &sessionStamper{next: log.OrNoop(config.EventLogger)},
	}

	dcfg := config.Dispatch
	if dcfg.Logger == nil {
		dcfg.Logger = config.Logger
	}
	if dcfg.EventLogger == nil {
		dcfg.EventLogger = config.EventLogger
	}
	if dcfg.Metrics == nil {
		dcfg.Metrics = config.Metrics
	}
	if dcfg.Clock == nil {
		dcfg.Clock = config.Clock
	}
	s.dispatcher = dispatch.NewWithConfig(&s.mu, nil, cache, dcfg)

	s.scheduler = subscription.NewSchedulerWithConfig(tags, subscription.Config{
		DetectConcurrentUse: config.DetectConcurrentUse,
		Logger:              config.Logger,
		EventLogger:         s.events,
		Metrics:             config.Metrics,
		Observer:            s.dispatcher,
		Clock:               config.Clock,
	})
	s.dispatcher.SetSource(s.scheduler)

	return s
}

// Locker returns the host lock. Hold it while calling Scheduler methods
// directly.
func (s *DataServer) Locker() sync.Locker {
	return &s.mu
}

// Scheduler returns the hosted scheduler. Callers must hold Locker.
func (s *DataServer) Scheduler() *subscription.Scheduler {
	return s.scheduler
}

// Dispatcher returns the periodic dispatcher.
func (s *DataServer) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Start starts the timers and the pending reaper.
func (s *DataServer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.state = StateRunning
	s.startedAt = s.config.Clock()
	s.mu.Unlock()

	s.dispatcher.Start(ctx)

	s.wg.Add(1)
	go s.reapLoop(ctx)

	s.logger.Info("data server started",
		slog.Duration("pending_timeout", s.config.PendingTimeout),
		slog.Duration("reap_interval", s.config.ReapInterval))
	return nil
}

// Stop stops the timers and the reaper. Sessions stay open.
func (s *DataServer) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopped
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.dispatcher.Stop()

	s.logger.Info("data server stopped")
	return nil
}

// State returns the current service state.
func (s *DataServer) State() ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OpenSession creates a client session and returns its id.
func (s *DataServer) OpenSession() string {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = newSession(id, s.config.Clock())
	s.mu.Unlock()

	s.logger.Debug("session opened", slog.String("session", id))
	return id
}

// CloseSession releases every committed subscription of the session and
// discards its pending requests.
func (s *DataServer) CloseSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	delete(s.sessions, id)
	defer s.events.as(id)()

	var handles []tag.Handle
	var rates []time.Duration
	for k, n := range sess.committed {
		for range n {
			handles = append(handles, k.handle)
			rates = append(rates, k.rate)
		}
	}
	released := 0
	if len(handles) > 0 {
		for _, ok := range s.scheduler.Unsubscribe(handles, rates) {
			if ok {
				released++
			}
		}
	}

	discarded := s.discardRecords(sess.pending)
	sess.pending = nil

	s.logger.Debug("session closed",
		slog.String("session", id),
		slog.Int("released", released),
		slog.Int("discarded", discarded))
	return nil
}

// Subscribe requests subscriptions for the session. Accepted entries stay
// pending until SubscribeReady.
func (s *DataServer) Subscribe(id string, handles []tag.Handle, requested []time.Duration) ([]time.Duration, []bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return nil, nil, err
	}
	defer s.events.as(id)()

	rates, accepted := s.scheduler.Subscribe(handles, requested)
	now := s.config.Clock()
	for i, ok := range accepted {
		if !ok {
			continue
		}
		sess.pending = append(sess.pending, pendingRecord{
			handle:    handles[i],
			rate:      rates[i],
			requested: requested[i],
			since:     now,
		})
	}
	return rates, accepted, nil
}

// SubscribeReady commits every pending request of the listed handles.
// Pending requests of other sessions for the same handles are committed too,
// and stay owned by those sessions.
func (s *DataServer) SubscribeReady(id string, handles []tag.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.session(id); err != nil {
		return err
	}
	defer s.events.as(id)()

	for _, h := range handles {
		for _, other := range s.sessions {
			other.commitPending(h)
		}
	}
	s.scheduler.SubscribeReady(handles)
	return nil
}

// DiscardPending drops pending requests the session made. rates are the
// revised rates Subscribe returned.
func (s *DataServer) DiscardPending(id string, handles []tag.Handle, rates []time.Duration) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	defer s.events.as(id)()

	result := make([]bool, len(handles))
	var idx []int
	for i, h := range handles {
		if i >= len(rates) || !sess.dropPending(h, rates[i]) {
			continue
		}
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		return result, nil
	}

	hs, rs := pick(handles, rates, idx)
	for j, ok := range s.scheduler.DiscardPending(hs, rs) {
		result[idx[j]] = ok
	}
	return result, nil
}

// Unsubscribe releases committed subscriptions the session owns.
// A record owned by another session is not touched.
func (s *DataServer) Unsubscribe(id string, handles []tag.Handle, rates []time.Duration) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	defer s.events.as(id)()

	result := make([]bool, len(handles))
	var idx []int
	for i, h := range handles {
		if i >= len(rates) || !sess.owns(h, rates[i]) {
			continue
		}
		sess.take(h, rates[i])
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		return result, nil
	}

	hs, rs := pick(handles, rates, idx)
	for j, ok := range s.scheduler.Unsubscribe(hs, rs) {
		result[idx[j]] = ok
		if !ok {
			sess.give(hs[j], rs[j])
			s.logger.Warn("owned subscription missing from scheduler",
				slog.String("session", id),
				slog.Any("handle", hs[j]),
				slog.Duration("rate", rs[j]))
		}
	}
	return result, nil
}

// ModifySubscription moves committed subscriptions the session owns to a
// new rate.
func (s *DataServer) ModifySubscription(id string, handles []tag.Handle, oldRates, newRates []time.Duration) ([]time.Duration, []bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return nil, nil, err
	}
	defer s.events.as(id)()

	revised := make([]time.Duration, len(handles))
	result := make([]bool, len(handles))
	var idx []int
	claimed := make(map[subKey]int)
	for i, h := range handles {
		if i >= len(oldRates) || i >= len(newRates) {
			continue
		}
		k := subKey{h, oldRates[i]}
		if sess.committed[k]-claimed[k] <= 0 {
			continue
		}
		claimed[k]++
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		return revised, result, nil
	}

	hs, olds := pick(handles, oldRates, idx)
	_, news := pick(handles, newRates, idx)
	rates, accepted := s.scheduler.ModifySubscription(hs, olds, news)
	for j, ok := range accepted {
		revised[idx[j]] = rates[j]
		result[idx[j]] = ok
		if ok {
			sess.take(hs[j], olds[j])
			sess.give(hs[j], rates[j])
		}
	}
	return revised, result, nil
}

// ActiveIntervals returns the distinct committed rates, ascending.
func (s *DataServer) ActiveIntervals() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.ActiveIntervals()
}

// TagState returns a copy of the bookkeeping for h.
func (s *DataServer) TagState(h tag.Handle) (*subscription.TagState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.TagState(h)
}

// Snapshot captures the scheduler state.
func (s *DataServer) Snapshot() subscription.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Snapshot()
}

// Verify checks scheduler consistency and that session bookkeeping agrees
// with it.
func (s *DataServer) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scheduler.Verify(); err != nil {
		return err
	}

	owned := make(map[subKey]int)
	pending := 0
	for _, sess := range s.sessions {
		for k, n := range sess.committed {
			owned[k] += n
		}
		pending += len(sess.pending)
	}
	for k, n := range owned {
		st, ok := s.scheduler.TagState(k.handle)
		if !ok || st.Count(k.rate) < n {
			return fmt.Errorf("%w: sessions own %d of %s at %s", subscription.ErrInconsistent, n, k.handle, k.rate)
		}
	}
	if pending > s.scheduler.PendingCount() {
		return fmt.Errorf("%w: sessions hold %d pending, scheduler %d", subscription.ErrInconsistent, pending, s.scheduler.PendingCount())
	}
	return nil
}

// Stats returns a point-in-time view of the server.
func (s *DataServer) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		State:           s.state.String(),
		StartedAt:       s.startedAt,
		Sessions:        len(s.sessions),
		Subscriptions:   s.scheduler.SubscriptionCount(),
		Pending:         s.scheduler.PendingCount(),
		ActiveIntervals: s.scheduler.ActiveIntervals(),
		Reaped:          s.reaped,
	}
	s.mu.Unlock()

	st.Timers = s.dispatcher.Intervals()
	return st
}

// Sessions returns the open session ids, sorted.
func (s *DataServer) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// session returns the open session id. Caller holds s.mu.
func (s *DataServer) session(id string) (*session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return sess, nil
}

// discardRecords drops pending records from the scheduler. Caller holds s.mu.
func (s *DataServer) discardRecords(records []pendingRecord) int {
	if len(records) == 0 {
		return 0
	}
	handles := make([]tag.Handle, len(records))
	rates := make([]time.Duration, len(records))
	for i, p := range records {
		handles[i] = p.handle
		rates[i] = p.rate
	}
	n := 0
	for _, ok := range s.scheduler.DiscardPending(handles, rates) {
		if ok {
			n++
		}
	}
	return n
}

func pick[T any](handles []tag.Handle, values []T, idx []int) ([]tag.Handle, []T) {
	hs := make([]tag.Handle, len(idx))
	vs := make([]T, len(idx))
	for j, i := range idx {
		hs[j] = handles[i]
		vs[j] = values[i]
	}
	return hs, vs
}
