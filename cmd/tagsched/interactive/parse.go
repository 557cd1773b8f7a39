package interactive

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

var errSyntax = errors.New("syntax error")

// resolveTag accepts a tag name or a numeric handle.
func resolveTag(catalog *tag.Catalog, s string) (tag.Handle, error) {
	if h, ok := catalog.ByName(s); ok {
		return h, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown tag %q", s)
	}
	// Unknown numeric handles are passed through so the scheduler reports them.
	return tag.Handle(n), nil
}

// parseRate accepts a Go duration ("250ms", "2s") or a bare number of
// milliseconds.
func parseRate(s string) (time.Duration, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad rate %q", errSyntax, s)
	}
	return d, nil
}

// parsePairs parses "tag@rate" arguments.
func parsePairs(catalog *tag.Catalog, args []string) ([]tag.Handle, []time.Duration, error) {
	handles := make([]tag.Handle, 0, len(args))
	rates := make([]time.Duration, 0, len(args))
	for _, a := range args {
		name, rate, ok := strings.Cut(a, "@")
		if !ok {
			return nil, nil, fmt.Errorf("%w: expected tag@rate, got %q", errSyntax, a)
		}
		h, err := resolveTag(catalog, name)
		if err != nil {
			return nil, nil, err
		}
		r, err := parseRate(rate)
		if err != nil {
			return nil, nil, err
		}
		handles = append(handles, h)
		rates = append(rates, r)
	}
	return handles, rates, nil
}

// parseTriples parses "tag@old:new" arguments.
func parseTriples(catalog *tag.Catalog, args []string) ([]tag.Handle, []time.Duration, []time.Duration, error) {
	var handles []tag.Handle
	var olds, news []time.Duration
	for _, a := range args {
		name, rates, ok := strings.Cut(a, "@")
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: expected tag@old:new, got %q", errSyntax, a)
		}
		oldS, newS, ok := strings.Cut(rates, ":")
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: expected tag@old:new, got %q", errSyntax, a)
		}
		h, err := resolveTag(catalog, name)
		if err != nil {
			return nil, nil, nil, err
		}
		o, err := parseRate(oldS)
		if err != nil {
			return nil, nil, nil, err
		}
		n, err := parseRate(newS)
		if err != nil {
			return nil, nil, nil, err
		}
		handles = append(handles, h)
		olds = append(olds, o)
		news = append(news, n)
	}
	return handles, olds, news, nil
}

// parseHandles parses bare tag arguments.
func parseHandles(catalog *tag.Catalog, args []string) ([]tag.Handle, error) {
	handles := make([]tag.Handle, 0, len(args))
	for _, a := range args {
		h, err := resolveTag(catalog, a)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}
