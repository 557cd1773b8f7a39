package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mash-protocol/tagsched/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Operations       map[log.Op]*OpStats
	Sessions         map[string]*SessionStats
	IntervalsAdded   int
	IntervalsRemoved int
	Reads            int
	TagsRead         int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// OpStats counts per-element outcomes of one operation.
type OpStats struct {
	Accepted int
	Rejected int
}

// SessionStats holds statistics for a single session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Operations:       make(map[log.Op]*OpStats),
		Sessions:         make(map[string]*SessionStats),
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.SessionID != "" {
		sess, ok := s.Sessions[event.SessionID]
		if !ok {
			sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			s.Sessions[event.SessionID] = sess
		}
		sess.Events++
		if event.Timestamp.After(sess.LastSeen) {
			sess.LastSeen = event.Timestamp
		}
	}

	switch {
	case event.Operation != nil:
		op, ok := s.Operations[event.Operation.Op]
		if !ok {
			op = &OpStats{}
			s.Operations[event.Operation.Op] = op
		}
		if event.Operation.Accepted {
			op.Accepted++
		} else {
			op.Rejected++
		}
	case event.Interval != nil:
		if event.Interval.Change == log.IntervalAdded {
			s.IntervalsAdded++
		} else {
			s.IntervalsRemoved++
		}
	case event.Dispatch != nil:
		s.Reads++
		s.TagsRead += event.Dispatch.BatchSize
	case event.Error != nil:
		s.Errors++
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== tagsched Event Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryOperation, log.CategoryInterval, log.CategoryDispatch, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Operations) > 0 {
		fmt.Fprintln(w, "Operations:")
		for _, op := range []log.Op{log.OpSubscribe, log.OpSubscribeReady, log.OpUnsubscribe, log.OpModify, log.OpDiscardPending} {
			if s, ok := stats.Operations[op]; ok {
				fmt.Fprintf(w, "  %-17s %d accepted, %d rejected\n", op.String()+":", s.Accepted, s.Rejected)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Intervals: %d added, %d removed\n", stats.IntervalsAdded, stats.IntervalsRemoved)
	if stats.Reads > 0 {
		fmt.Fprintf(w, "Reads: %d (%d tags)\n", stats.Reads, stats.TagsRead)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenSessionID(s.id), s.stats.Events, duration)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
