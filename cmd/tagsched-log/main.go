// Command tagsched-log views and analyzes tagsched event log files.
//
// Event logs are written by tagsched when started with --event-log.
//
// Usage:
//
//	tagsched-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View events in human-readable format
//	export   Export events to JSONL or CSV
//	filter   Copy matching events to a new log file
//	stats    Show statistics about the log file
//	snapshot Print a scheduler snapshot file
//
// Examples:
//
//	# Rejected operations on tag 7
//	tagsched-log view --category operation --tag 7 events.cbor
//
//	# Everything one session did
//	tagsched-log filter --session 3f2a9c1e-... -o session.cbor events.cbor
//
//	# Export to CSV
//	tagsched-log export --format csv -o events.csv events.cbor
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/mash-protocol/tagsched/cmd/tagsched-log/commands"
)

const usage = `tagsched-log - tagsched Event Log Analyzer

Usage:
  tagsched-log <command> [flags] <file.cbor>

Commands:
  view     View events in human-readable format
  export   Export events to JSONL or CSV
  filter   Copy matching events to a new log file
  stats    Show statistics about the log file
  snapshot Print a scheduler snapshot file

Use "tagsched-log <command> --help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "snapshot":
		err = runSnapshot(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name, summary string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "tagsched-log %s - %s\n\nUsage:\n  tagsched-log %s [flags] <file.cbor>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

func addFilterFlags(fs *pflag.FlagSet, opts *commands.FilterOptions) {
	fs.StringVar(&opts.SessionID, "session", "", "Filter by session ID")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (operation, interval, dispatch, error)")
	fs.StringVar(&opts.Op, "op", "", "Filter by operation (subscribe, ready, unsubscribe, modify, discard)")
	fs.StringVar(&opts.Handle, "tag", "", "Filter by tag handle")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Events at or after this time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Events before this time (RFC3339)")
}

func logPath(fs *pflag.FlagSet) (string, error) {
	if fs.NArg() < 1 {
		fs.Usage()
		return "", errors.New("log file path required")
	}
	return fs.Arg(0), nil
}

func runView(args []string) error {
	fs := newFlagSet("view", "View events in human-readable format")
	var opts commands.FilterOptions
	addFilterFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := logPath(fs)
	if err != nil {
		return err
	}

	filter, err := commands.BuildFilter(opts)
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runExport(args []string) error {
	fs := newFlagSet("export", "Export events to JSONL or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.StringP("output", "o", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := logPath(fs)
	if err != nil {
		return err
	}
	return commands.RunExport(path, *format, *output)
}

func runFilter(args []string) error {
	fs := newFlagSet("filter", "Copy matching events to a new log file")
	var opts commands.FilterOptions
	addFilterFlags(fs, &opts)
	fs.StringVarP(&opts.Output, "output", "o", "", "Output file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := logPath(fs)
	if err != nil {
		return err
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", n, opts.Output)
	return nil
}

func runStats(args []string) error {
	fs := newFlagSet("stats", "Show statistics about the log file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := logPath(fs)
	if err != nil {
		return err
	}
	return commands.RunStats(path, os.Stdout)
}

func runSnapshot(args []string) error {
	fs := newFlagSet("snapshot", "Print a scheduler snapshot file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := logPath(fs)
	if err != nil {
		return err
	}
	return commands.RunSnapshot(path, os.Stdout)
}
