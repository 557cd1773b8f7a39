package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mash-protocol/tagsched/pkg/log"
	"github.com/mash-protocol/tagsched/pkg/tag"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cbor")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

func sampleEvents() []log.Event {
	ts := time.Date(2026, 3, 1, 10, 15, 32, 123456000, time.UTC)
	return []log.Event{
		{
			Timestamp: ts,
			SessionID: "aaaaaaaa-1111",
			Category:  log.CategoryOperation,
			Operation: &log.OperationEvent{
				Op: log.OpSubscribe, Handle: 7, RequestedRate: 50 * time.Millisecond,
				RevisedRate: 100 * time.Millisecond, Accepted: true, Reason: "clamped to minimum interval",
			},
		},
		{
			Timestamp: ts.Add(time.Millisecond),
			SessionID: "aaaaaaaa-1111",
			Category:  log.CategoryInterval,
			Interval:  &log.IntervalEvent{Interval: 100 * time.Millisecond, Change: log.IntervalAdded},
		},
		{
			Timestamp: ts.Add(2 * time.Millisecond),
			SessionID: "bbbbbbbb-2222",
			Category:  log.CategoryOperation,
			Operation: &log.OperationEvent{Op: log.OpUnsubscribe, Handle: 9, RevisedRate: time.Second, Reason: "no matching subscription"},
		},
		{
			Timestamp: ts.Add(100 * time.Millisecond),
			Category:  log.CategoryDispatch,
			Dispatch:  &log.DispatchEvent{Interval: 100 * time.Millisecond, BatchSize: 1, Elapsed: 300 * time.Microsecond},
		},
		{
			Timestamp: ts.Add(200 * time.Millisecond),
			Category:  log.CategoryError,
			Error:     &log.ErrorEventData{Message: "cache down", Context: "dispatch 100ms"},
		},
	}
}

func TestViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"2026-03-01T10:15:32.123456Z [session:aaaaaaaa] OPERATION SUBSCRIBE",
		"Tag: 7  Result: accepted",
		"requested 50ms, rate 100ms",
		"Reason: clamped to minimum interval",
		"INTERVAL ADDED",
		"Result: rejected",
		"[session:-] DISPATCH READ",
		"Interval: 100ms  Tags: 1  Read: 300us",
		"Context: dispatch 100ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestViewAppliesFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	filter, err := BuildFilter(FilterOptions{Category: "operation", Handle: "9"})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := RunView(path, filter, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "OPERATION") != 1 || !strings.Contains(out, "UNSUBSCRIBE") {
		t.Errorf("expected only the unsubscribe event, got:\n%s", out)
	}
}

func TestBuildFilterErrors(t *testing.T) {
	tests := []FilterOptions{
		{Category: "frames"},
		{Op: "read"},
		{Handle: "x"},
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01"},
	}
	for _, opts := range tests {
		if _, err := BuildFilter(opts); err == nil {
			t.Errorf("BuildFilter(%+v) should fail", opts)
		}
	}
}

func TestParseOpAliases(t *testing.T) {
	tests := map[string]log.Op{
		"subscribe":       log.OpSubscribe,
		"ready":           log.OpSubscribeReady,
		"SUBSCRIBE_READY": log.OpSubscribeReady,
		"discard-pending": log.OpDiscardPending,
		"Modify":          log.OpModify,
	}
	for in, want := range tests {
		got, err := ParseOp(in)
		if err != nil || got != want {
			t.Errorf("ParseOp(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestFilterWritesSubset(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.cbor")

	n, err := RunFilter(path, FilterOptions{Output: out, SessionID: "aaaaaaaa-1111"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("filtered %d events, want 2", n)
	}

	reader, err := log.NewReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	events, err := reader.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[1].Interval == nil {
		t.Errorf("unexpected filtered events: %+v", events)
	}

	if _, err := RunFilter(path, FilterOptions{}); err == nil {
		t.Error("RunFilter without output should fail")
	}
}

func TestExportJSONLAndCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := export(reader, "jsonl", &buf); err != nil {
		t.Fatalf("export jsonl: %v", err)
	}
	reader.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d JSONL lines, want 5", len(lines))
	}
	var first log.Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first.Operation == nil || first.Operation.Handle != tag.Handle(7) {
		t.Errorf("unexpected first event: %+v", first)
	}

	reader, err = log.NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	buf.Reset()
	if err := export(reader, "csv", &buf); err != nil {
		t.Fatalf("export csv: %v", err)
	}
	rows := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if rows[0] != "timestamp,session_id,category,type,tag,rate,accepted" {
		t.Errorf("unexpected header: %s", rows[0])
	}
	if !strings.Contains(rows[1], "OPERATION,SUBSCRIBE,7,100ms,true") {
		t.Errorf("unexpected row: %s", rows[1])
	}

	if err := RunExport(path, "xml", ""); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestStatsSummarizes(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Total Events: 5",
		"OPERATION:   2",
		"SUBSCRIBE:        1 accepted, 0 rejected",
		"UNSUBSCRIBE:      0 accepted, 1 rejected",
		"Intervals: 1 added, 0 removed",
		"Reads: 1 (1 tags)",
		"Sessions: 2",
		"[aaaaaaaa] 2 events",
		"Errors: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}
