package log

import (
	"time"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

// Event is one captured engine event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the client session, when known.
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Category classifies the event.
	Category Category `cbor:"3,keyasint"`

	// Exactly one of these is set, matching Category.
	Operation *OperationEvent `cbor:"10,keyasint,omitempty"`
	Interval  *IntervalEvent  `cbor:"11,keyasint,omitempty"`
	Dispatch  *DispatchEvent  `cbor:"12,keyasint,omitempty"`
	Error     *ErrorEventData `cbor:"13,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryOperation is a per-element scheduler operation outcome.
	CategoryOperation Category = 0
	// CategoryInterval is a change of the active interval set.
	CategoryInterval Category = 1
	// CategoryDispatch is a periodic value read.
	CategoryDispatch Category = 2
	// CategoryError is an error outside the scheduler's per-element results.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryOperation:
		return "OPERATION"
	case CategoryInterval:
		return "INTERVAL"
	case CategoryDispatch:
		return "DISPATCH"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Op identifies a scheduler operation.
type Op uint8

const (
	OpSubscribe Op = iota
	OpSubscribeReady
	OpUnsubscribe
	OpModify
	OpDiscardPending
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpSubscribe:
		return "SUBSCRIBE"
	case OpSubscribeReady:
		return "SUBSCRIBE_READY"
	case OpUnsubscribe:
		return "UNSUBSCRIBE"
	case OpModify:
		return "MODIFY"
	case OpDiscardPending:
		return "DISCARD_PENDING"
	default:
		return "UNKNOWN"
	}
}

// OperationEvent captures the outcome of one array element of an operation.
type OperationEvent struct {
	// Op is the operation performed.
	Op Op `cbor:"1,keyasint"`

	// Handle is the tag addressed by the element.
	Handle tag.Handle `cbor:"2,keyasint"`

	// RequestedRate is the rate the caller asked for (new rate for Modify).
	RequestedRate time.Duration `cbor:"3,keyasint,omitempty"`

	// RevisedRate is the effective rate after clamping.
	RevisedRate time.Duration `cbor:"4,keyasint,omitempty"`

	// OldRate is the rate being replaced (Modify only).
	OldRate time.Duration `cbor:"5,keyasint,omitempty"`

	// Accepted reports the per-element result.
	Accepted bool `cbor:"6,keyasint"`

	// Reason explains a rejection or a clamp.
	Reason string `cbor:"7,keyasint,omitempty"`
}

// IntervalChange indicates how the active interval set changed.
type IntervalChange uint8

const (
	// IntervalAdded means a rate bucket was created.
	IntervalAdded IntervalChange = 0
	// IntervalRemoved means a rate bucket became empty and was deleted.
	IntervalRemoved IntervalChange = 1
)

// String returns the change name.
func (c IntervalChange) String() string {
	switch c {
	case IntervalAdded:
		return "ADDED"
	case IntervalRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// IntervalEvent captures a change of the active interval set.
type IntervalEvent struct {
	Interval time.Duration  `cbor:"1,keyasint"`
	Change   IntervalChange `cbor:"2,keyasint"`
}

// DispatchEvent captures one periodic batch read.
type DispatchEvent struct {
	// Interval is the timer that fired.
	Interval time.Duration `cbor:"1,keyasint"`

	// BatchSize is the number of tags read.
	BatchSize int `cbor:"2,keyasint"`

	// Elapsed is how long the value cache read took.
	Elapsed time.Duration `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
