package log

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends CBOR-encoded events to a file.
// It is safe for concurrent use.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *cbor.Encoder
	closed  bool
}

// NewFileLogger opens path for appending, creating it (and its parent
// directory) if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &FileLogger{
		file:    f,
		buf:     buf,
		encoder: NewEncoder(buf),
	}, nil
}

// Log buffers an event. Encoding errors are dropped; event capture must not
// disturb the engine.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	_ = l.encoder.Encode(event)
}

// Flush writes buffered events to the file.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	return l.buf.Flush()
}

// Close flushes and closes the file. Subsequent Log calls are ignored.
// Close is idempotent.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	flushErr := l.buf.Flush()
	if err := l.file.Close(); err != nil {
		return err
	}
	return flushErr
}

var _ Logger = (*FileLogger)(nil)
