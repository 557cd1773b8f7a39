package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func opEvent(session string, op Op, handle uint32, accepted bool) Event {
	return Event{
		Timestamp: time.Now(),
		SessionID: session,
		Category:  CategoryOperation,
		Operation: &OperationEvent{
			Op:            op,
			Handle:        tagHandle(handle),
			RequestedRate: 10 * time.Millisecond,
			RevisedRate:   100 * time.Millisecond,
			Accepted:      accepted,
		},
	}
}

func TestFileLoggerCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(opEvent("s1", OpSubscribe, 4, true))
	logger.Log(Event{
		Timestamp: time.Now(),
		Category:  CategoryInterval,
		Interval:  &IntervalEvent{Interval: 500 * time.Millisecond, Change: IntervalAdded},
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	events, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	op := events[0].Operation
	if op == nil {
		t.Fatal("first event has no Operation")
	}
	if op.Handle != 4 || op.RevisedRate != 100*time.Millisecond || !op.Accepted {
		t.Errorf("Operation = %+v, want handle 4 revised 100ms accepted", op)
	}
	if events[1].Interval == nil || events[1].Interval.Change != IntervalAdded {
		t.Errorf("second event = %+v, want interval added", events[1])
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.tlog")

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(opEvent("s1", OpUnsubscribe, uint32(i+1), true))
		logger.Close()
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	events, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}

func TestFileLoggerIgnoresLogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Close()
	logger.Log(opEvent("s1", OpSubscribe, 1, true))

	if err := logger.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	data, _ := os.ReadFile(path)
	if len(data) != 0 {
		t.Errorf("file has %d bytes after closed Log, want 0", len(data))
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				logger.Log(opEvent("s", OpSubscribe, uint32(g*100+i+1), true))
			}
		}(g)
	}
	wg.Wait()
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	count := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 200 {
		t.Errorf("read %d events, want 200", count)
	}
}
