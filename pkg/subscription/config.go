package subscription

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mash-protocol/tagsched/pkg/log"
	"github.com/mash-protocol/tagsched/pkg/metrics"
)

// Per-element rejection reasons. They never escape the batch API; they are
// reported through the event log, the metrics and debug logging.
var (
	ErrUnknownTag             = errors.New("unknown tag handle")
	ErrNoMatchingSubscription = errors.New("no matching subscription")
	ErrNoPendingSubscription  = errors.New("no pending subscription")
	ErrMissingRate            = errors.New("missing rate for handle")
)

// ErrConcurrentUse is the panic value raised when DetectConcurrentUse is set
// and two calls overlap.
var ErrConcurrentUse = errors.New("subscription: concurrent scheduler call without host lock")

// ErrInconsistent is returned by Verify when the tables disagree.
var ErrInconsistent = errors.New("subscription: inconsistent scheduler state")

// Observer is notified when the active interval set changes.
// Callbacks run synchronously inside the scheduler call, under the host lock.
type Observer interface {
	IntervalAdded(rate time.Duration)
	IntervalRemoved(rate time.Duration)
}

// Config holds scheduler configuration.
type Config struct {
	// DetectConcurrentUse panics with ErrConcurrentUse when calls overlap.
	DetectConcurrentUse bool

	// Logger receives debug output. Nil disables it.
	Logger *slog.Logger

	// EventLogger receives one event per array element and per interval change.
	EventLogger log.Logger

	// Metrics receives operation outcomes and gauges.
	Metrics metrics.Collector

	// Observer is notified of interval set changes.
	Observer Observer

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Clock: time.Now,
	}
}
