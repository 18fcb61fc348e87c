// Package stats snapshots per-table row counts once an hour, grounded on
// original_source/.../main_modules/stats.py: wait until the next
// wall-clock hour boundary, count every monitored table, write one Stats
// row per category, sleep again. Reuses the teacher's ticker-loop shape
// (pkg/cleanup.Service) adapted to a variable, non-fixed sleep interval.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/rysavy-ondrej/project-inventor/internal/dao"
)

// Service produces one Stats row per category for every monitored table
// at each hour boundary.
type Service struct {
	set *dao.Set

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService returns a Service snapshotting set's tables.
func NewService(set *dao.Set) *Service {
	return &Service{set: set}
}

// Start launches the background snapshot loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Stats started")
}

// Stop signals the snapshot loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Stats stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	for {
		wait := untilNextHour(time.Now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.snapshotAll(ctx)

		// Matches the original's trailing 100ms sleep after each pass, so
		// a snapshot that completes right at the hour boundary never
		// fires twice for the same hour.
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// untilNextHour returns the duration from now until the next wall-clock
// hour boundary.
func untilNextHour(now time.Time) time.Duration {
	nextHour := now.Truncate(time.Hour).Add(time.Hour)
	return nextHour.Sub(now)
}

// tableCensus names the tables Stats monitors and how to count them,
// matching stats.py's tables_to_calculate list exactly (every table
// except stats itself).
type tableCensus struct {
	name        string
	countRecords func(ctx context.Context) (*dao.RecordsCounter, error)
}

func (s *Service) snapshotAll(ctx context.Context) {
	at := time.Now()
	tables := []tableCensus{
		{"tests", s.set.Tests.CountRecords},
		{"requests", s.set.Requests.CountRecords},
		{"events", s.set.Events.CountRecords},
		{"runs", s.set.Runs.CountRecords},
		{"results", s.set.Results.CountRecords},
		{"old_params", s.set.OldParams.CountRecords},
		{"multi_results", s.set.MultiResults.CountRecords},
		{"orchestrators", s.set.Orchestrators.CountRecords},
		{"nonces", s.set.Nonces.CountRecords},
	}
	for _, tb := range tables {
		counter, err := tb.countRecords(ctx)
		if err != nil {
			slog.Error("Stats: count failed", "table", tb.name, "error", err)
			continue
		}
		if err := s.set.Stats.Record(ctx, at, tb.name, counter); err != nil {
			slog.Error("Stats: record failed", "table", tb.name, "error", err)
		}
	}
	slog.Debug("Stats: snapshot complete")
}
