package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mash-protocol/tagsched/pkg/dispatch"
	"github.com/mash-protocol/tagsched/pkg/log"
	"github.com/mash-protocol/tagsched/pkg/metrics"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrUnknownSession = errors.New("unknown session")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateRunning - timers and the reaper are running.
	StateRunning

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Defaults.
const (
	DefaultPendingTimeout = 30 * time.Second
	DefaultReapInterval   = 5 * time.Second
)

// Config configures a DataServer.
type Config struct {
	// PendingTimeout is how long a subscription may stay pending before the
	// reaper discards it. Zero selects DefaultPendingTimeout.
	PendingTimeout time.Duration

	// ReapInterval is how often the reaper runs.
	ReapInterval time.Duration

	// DetectConcurrentUse makes the scheduler panic on unsynchronised calls.
	DetectConcurrentUse bool

	// Dispatch configures the periodic dispatcher. Its Logger, EventLogger
	// and Metrics default to the server's.
	Dispatch dispatch.Config

	// Logger for service-level logging. Nil disables it.
	Logger *slog.Logger

	// EventLogger receives engine events.
	EventLogger log.Logger

	// Metrics receives operation outcomes.
	Metrics metrics.Collector

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		PendingTimeout: DefaultPendingTimeout,
		ReapInterval:   DefaultReapInterval,
		Dispatch:       dispatch.DefaultConfig(),
		Clock:          time.Now,
	}
}

// Stats is a point-in-time view of the server.
type Stats struct {
	State           string          `json:"state"`
	StartedAt       time.Time       `json:"started_at,omitzero"`
	Sessions        int             `json:"sessions"`
	Subscriptions   int             `json:"subscriptions"`
	Pending         int             `json:"pending"`
	ActiveIntervals []time.Duration `json:"active_intervals"`
	Timers          []time.Duration `json:"timers"`
	Reaped          int             `json:"reaped"`
}
