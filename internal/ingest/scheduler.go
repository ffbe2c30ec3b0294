package ingest

import (
	"context"
	"log/slog"
	"time"

	"feedguard/internal/feed"
)

// Scheduler periodically re-ingests enabled feeds whose refresh interval
// has elapsed. One failing feed never stops the sweep from evaluating the
// rest.
type Scheduler struct {
	registry *feed.Registry
	engine   *Engine
	poll     time.Duration
}

func NewScheduler(reg *feed.Registry, eng *Engine, poll time.Duration) *Scheduler {
	if poll <= 0 {
		poll = time.Minute
	}
	return &Scheduler{registry: reg, engine: eng, poll: poll}
}

// Run blocks until ctx is cancelled, sweeping the registry once per poll
// period.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	slog.Info("feed scheduler started", "poll_interval", s.poll)

	for {
		select {
		case <-ctx.Done():
			slog.Info("feed scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	now := time.Now()
	for _, f := range s.registry.List() {
		if !f.Enabled || !due(f, now) {
			continue
		}
		if s.engine.Busy(f.ID) {
			slog.Debug("skipping feed, run in flight", "feed", f.Name, "feed_id", f.ID)
			continue
		}
		go func(id, name string) {
			if _, err := s.engine.Ingest(ctx, id); err != nil {
				slog.Error("scheduled ingestion failed", "feed", name, "err", err)
			}
		}(f.ID, f.Name)
	}
}

// due treats a never-updated feed as infinitely overdue.
func due(f feed.Feed, now time.Time) bool {
	if f.LastUpdated.IsZero() {
		return true
	}
	return now.Sub(f.LastUpdated) >= time.Duration(f.RefreshInterval)*time.Minute
}
