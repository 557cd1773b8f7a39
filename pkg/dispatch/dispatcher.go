package dispatch

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/mash-protocol/tagsched/pkg/log"
	"github.com/mash-protocol/tagsched/pkg/metrics"
	"github.com/mash-protocol/tagsched/pkg/tag"
	"github.com/mash-protocol/tagsched/pkg/valuecache"
)

// Defaults.
const (
	DefaultMinimumPeriod = 10 * time.Millisecond
	DefaultReadTimeout   = 5 * time.Second
)

// HandleSource lists the tags subscribed at an interval.
// *subscription.Scheduler satisfies it.
type HandleSource interface {
	HandlesAt(rate time.Duration) []tag.Handle
}

// Batch is the result of one tick.
type Batch struct {
	Interval time.Duration
	Handles  []tag.Handle
	Values   map[tag.Handle]valuecache.Value
	At       time.Time
}

// Sample is the last value read for a tag.
type Sample struct {
	Value    valuecache.Value
	Interval time.Duration
	ReadAt   time.Time
}

// Config holds dispatcher configuration.
type Config struct {
	// MinimumPeriod is the shortest timer period.
	MinimumPeriod time.Duration

	// ReadTimeout bounds a single value cache read.
	ReadTimeout time.Duration

	// OnBatch receives every successful read. May be nil.
	OnBatch func(Batch)

	// Logger receives debug output. Nil disables it.
	Logger *slog.Logger

	// EventLogger receives dispatch and error events.
	EventLogger log.Logger

	// Metrics receives dispatch outcomes.
	Metrics metrics.Collector

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		MinimumPeriod: DefaultMinimumPeriod,
		ReadTimeout:   DefaultReadTimeout,
		Clock:         time.Now,
	}
}

// Dispatcher owns the per-interval timers.
type Dispatcher struct {
	mu     sync.Mutex
	timers map[time.Duration]context.CancelFunc

	locker sync.Locker
	source HandleSource
	cache  valuecache.Service
	config Config
	logger *slog.Logger
	events log.Logger
	stats  metrics.Collector

	last *xsync.Map[tag.Handle, Sample]

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// New creates a dispatcher with default configuration.
func New(locker sync.Locker, source HandleSource, cache valuecache.Service) *Dispatcher {
	return NewWithConfig(locker, source, cache, DefaultConfig())
}

// NewWithConfig creates a dispatcher. locker is the host lock guarding source.
func NewWithConfig(locker sync.Locker, source HandleSource, cache valuecache.Service, config Config) *Dispatcher {
	if config.MinimumPeriod <= 0 {
		config.MinimumPeriod = DefaultMinimumPeriod
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Dispatcher{
		timers: make(map[time.Duration]context.CancelFunc),
		locker: locker,
		source: source,
		cache:  cache,
		config: config,
		logger: logger,
		events: log.OrNoop(config.EventLogger),
		stats:  metrics.OrNop(config.Metrics),
		last:   xsync.NewMap[tag.Handle, Sample](),
	}
}

// SetSource replaces the handle source. Call it before Start.
func (d *Dispatcher) SetSource(source HandleSource) {
	d.source = source
}

// Start begins running timers for every known interval.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.running.Swap(true) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.ctx, d.cancel = context.WithCancel(ctx)
	for interval := range d.timers {
		d.timers[interval] = d.spawn(interval)
	}
}

// Stop cancels every timer and waits for in-flight ticks.
func (d *Dispatcher) Stop() {
	if !d.running.Swap(false) {
		return
	}

	d.mu.Lock()
	d.cancel()
	for interval := range d.timers {
		d.timers[interval] = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Running reports whether Start has been called without a matching Stop.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// IntervalAdded starts a timer for interval. It is the scheduler observer hook.
func (d *Dispatcher) IntervalAdded(interval time.Duration) {
	d.Add(interval)
}

// IntervalRemoved stops the timer for interval.
func (d *Dispatcher) IntervalRemoved(interval time.Duration) {
	d.Remove(interval)
}

// Add starts a timer for interval. Adding a running interval is a no-op.
func (d *Dispatcher) Add(interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.timers[interval]; ok {
		return
	}
	d.timers[interval] = nil
	if d.running.Load() {
		d.timers[interval] = d.spawn(interval)
	}
	d.logger.Debug("timer added", slog.Duration("interval", interval), slog.Duration("period", d.period(interval)))
}

// Remove stops the timer for interval. It does not wait for an in-flight tick.
func (d *Dispatcher) Remove(interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cancel, ok := d.timers[interval]
	if !ok {
		return
	}
	if cancel != nil {
		cancel()
	}
	delete(d.timers, interval)
	d.logger.Debug("timer removed", slog.Duration("interval", interval))
}

// Sync makes the timer set equal to intervals.
func (d *Dispatcher) Sync(intervals []time.Duration) {
	want := make(map[time.Duration]struct{}, len(intervals))
	for _, iv := range intervals {
		want[iv] = struct{}{}
	}

	for _, iv := range d.Intervals() {
		if _, ok := want[iv]; !ok {
			d.Remove(iv)
		}
	}
	for iv := range want {
		d.Add(iv)
	}
}

// Intervals returns the intervals with a timer, ascending.
func (d *Dispatcher) Intervals() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]time.Duration, 0, len(d.timers))
	for iv := range d.timers {
		out = append(out, iv)
	}
	slices.Sort(out)
	return out
}

// Last returns the last sample read for h.
func (d *Dispatcher) Last(h tag.Handle) (Sample, bool) {
	return d.last.Load(h)
}

// Samples returns a copy of every last sample.
func (d *Dispatcher) Samples() map[tag.Handle]Sample {
	out := make(map[tag.Handle]Sample, d.last.Size())
	d.last.Range(func(h tag.Handle, s Sample) bool {
		out[h] = s
		return true
	})
	return out
}

// Forget drops the last sample of h.
func (d *Dispatcher) Forget(h tag.Handle) {
	d.last.Delete(h)
}

// Fire performs one read for interval. The tick loop calls it; tests and the
// console may call it directly.
func (d *Dispatcher) Fire(ctx context.Context, interval time.Duration) (Batch, error) {
	d.locker.Lock()
	handles := d.source.HandlesAt(interval)
	d.locker.Unlock()

	batch := Batch{Interval: interval, Handles: handles, At: d.config.Clock()}
	if len(handles) == 0 {
		return batch, nil
	}

	readCtx, cancel := context.WithTimeout(ctx, d.config.ReadTimeout)
	defer cancel()

	start := time.Now()
	values, err := d.cache.GetValues(readCtx, handles)
	elapsed := time.Since(start)
	d.stats.RecordDispatch(interval, len(handles), err)

	if err != nil {
		d.logger.Warn("value read failed", slog.Duration("interval", interval), slog.Any("error", err))
		d.events.Log(log.Event{
			Timestamp: batch.At,
			Category:  log.CategoryError,
			Error:     &log.ErrorEventData{Message: err.Error(), Context: "dispatch " + interval.String()},
		})
		return batch, err
	}

	batch.Values = values
	for h, v := range values {
		d.last.Store(h, Sample{Value: v, Interval: interval, ReadAt: batch.At})
	}

	d.events.Log(log.Event{
		Timestamp: batch.At,
		Category:  log.CategoryDispatch,
		Dispatch:  &log.DispatchEvent{Interval: interval, BatchSize: len(handles), Elapsed: elapsed},
	})

	if d.config.OnBatch != nil {
		d.config.OnBatch(batch)
	}
	return batch, nil
}

func (d *Dispatcher) period(interval time.Duration) time.Duration {
	return max(interval, d.config.MinimumPeriod)
}

// spawn starts the tick goroutine for interval. Caller holds d.mu.
func (d *Dispatcher) spawn(interval time.Duration) context.CancelFunc {
	ctx, cancel := context.WithCancel(d.ctx)
	d.wg.Add(1)
	go d.loop(ctx, interval)
	return cancel
}

func (d *Dispatcher) loop(ctx context.Context, interval time.Duration) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.period(interval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = d.Fire(ctx, interval)
		}
	}
}
