package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mash-protocol/tagsched/pkg/log"
)

// FilterOptions holds raw filter flags.
type FilterOptions struct {
	Output    string
	SessionID string
	TimeStart string
	TimeEnd   string
	Category  string
	Op        string
	Handle    string
}

// BuildFilter converts flag values into a log.Filter.
func BuildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{SessionID: opts.SessionID}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if opts.Category != "" {
		c, err := ParseCategory(opts.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if opts.Op != "" {
		o, err := ParseOp(opts.Op)
		if err != nil {
			return filter, err
		}
		filter.Op = &o
	}
	if opts.Handle != "" {
		h, err := ParseHandle(opts.Handle)
		if err != nil {
			return filter, err
		}
		filter.Handle = &h
	}
	return filter, nil
}

// RunFilter copies matching events to opts.Output. Returns the number copied.
func RunFilter(path string, opts FilterOptions) (int, error) {
	if opts.Output == "" {
		return 0, errors.New("output file required")
	}
	filter, err := BuildFilter(opts)
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}
	return count, nil
}
