// Package commands implements the tagsched-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mash-protocol/tagsched/pkg/log"
	"github.com/mash-protocol/tagsched/pkg/tag"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timestampLayout)
	session := shortenSessionID(event.SessionID)
	if session == "" {
		session = "-"
	}

	fmt.Fprintf(w, "%s [session:%s] %s %s\n", ts, session, event.Category, eventLabel(event))

	switch {
	case event.Operation != nil:
		formatOperationDetails(w, event.Operation)
	case event.Interval != nil:
		fmt.Fprintf(w, "  Interval: %s\n", event.Interval.Interval)
	case event.Dispatch != nil:
		fmt.Fprintf(w, "  Interval: %s  Tags: %d  Read: %s\n",
			event.Dispatch.Interval, event.Dispatch.BatchSize, formatDuration(event.Dispatch.Elapsed))
	case event.Error != nil:
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	}

	fmt.Fprintln(w)
}

// eventLabel names the event type within its category.
func eventLabel(event log.Event) string {
	switch {
	case event.Operation != nil:
		return event.Operation.Op.String()
	case event.Interval != nil:
		return event.Interval.Change.String()
	case event.Dispatch != nil:
		return "READ"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

func formatOperationDetails(w io.Writer, op *log.OperationEvent) {
	result := "accepted"
	if !op.Accepted {
		result = "rejected"
	}
	fmt.Fprintf(w, "  Tag: %s  Result: %s\n", op.Handle, result)

	var rates []string
	if op.OldRate != 0 {
		rates = append(rates, "old "+op.OldRate.String())
	}
	if op.RequestedRate != 0 {
		rates = append(rates, "requested "+op.RequestedRate.String())
	}
	if op.RevisedRate != 0 {
		rates = append(rates, "rate "+op.RevisedRate.String())
	}
	if len(rates) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(rates, ", "))
	}
	if op.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", op.Reason)
	}
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return d.Round(time.Microsecond).String()
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "operation", "op":
		return log.CategoryOperation, nil
	case "interval":
		return log.CategoryInterval, nil
	case "dispatch":
		return log.CategoryDispatch, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be operation, interval, dispatch, or error)", s)
	}
}

// ParseOp parses an operation name (case-insensitive).
func ParseOp(s string) (log.Op, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "subscribe":
		return log.OpSubscribe, nil
	case "subscribe_ready", "ready":
		return log.OpSubscribeReady, nil
	case "unsubscribe":
		return log.OpUnsubscribe, nil
	case "modify":
		return log.OpModify, nil
	case "discard_pending", "discard":
		return log.OpDiscardPending, nil
	default:
		return 0, fmt.Errorf("invalid op: %s", s)
	}
}

// ParseHandle parses a numeric tag handle.
func ParseHandle(s string) (tag.Handle, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid tag handle: %s", s)
	}
	return tag.Handle(n), nil
}

// RunView prints every event matching filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
