// Package log provides structured event capture for the subscription engine.
//
// It is separate from operational logging (slog). Event capture records every
// per-element outcome of the scheduler operations, every change of the active
// interval set and every periodic dispatch, producing a machine-readable trace
// for debugging and offline analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/tagsched/events.tlog")
//
//	// Both
//	cfg.EventLogger = log.NewMultiLogger(console, file)
//
// # File Format
//
// Log files are a stream of CBOR-encoded Events with integer keys. Use Reader
// (optionally with a Filter) to replay them.
package log
