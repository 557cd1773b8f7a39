package service

import (
	"context"
	"log/slog"
	"time"
)

// ReapStale discards pending requests older than maxAge across all sessions.
// Returns the number discarded.
func (s *DataServer) ReapStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.config.Clock().Add(-maxAge)
	reaped := 0
	for _, sess := range s.sessions {
		stale := sess.stalePending(cutoff)
		if len(stale) == 0 {
			continue
		}
		restore := s.events.as(sess.id)
		n := s.discardRecords(stale)
		restore()
		reaped += n
		s.logger.Debug("discarded stale pending subscriptions",
			slog.String("session", sess.id),
			slog.Int("count", n))
	}
	s.reaped += reaped
	return reaped
}

func (s *DataServer) reapLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ReapStale(s.config.PendingTimeout); n > 0 {
				s.logger.Info("pending subscriptions expired", slog.Int("count", n))
			}
		}
	}
}
