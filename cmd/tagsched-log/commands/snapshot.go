package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mash-protocol/tagsched/pkg/persistence"
)

// RunSnapshot prints a snapshot file written by tagsched.
func RunSnapshot(path string, w io.Writer) error {
	snap, err := persistence.NewSnapshotStore(path).Load()
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if snap == nil {
		return errors.New("snapshot file not found")
	}

	fmt.Fprintf(w, "Taken at: %s\n", snap.TakenAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Subscriptions: %d in %d interval(s)\n", snap.Subscriptions(), len(snap.Intervals))
	for _, iv := range snap.Intervals {
		fmt.Fprintf(w, "  %s\n", iv.Interval)
		for _, m := range iv.Members {
			fmt.Fprintf(w, "    tag %-8s x%d\n", m.Handle, m.Count)
		}
	}

	if len(snap.Pending) > 0 {
		fmt.Fprintf(w, "Pending: %d\n", len(snap.Pending))
		for _, p := range snap.Pending {
			fmt.Fprintf(w, "  tag %-8s requested %s, rate %s, since %s\n",
				p.Handle, p.Requested, p.Rate, p.Since.Format(time.RFC3339))
		}
	}
	return nil
}
