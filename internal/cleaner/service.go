// Package cleaner enforces per-table retention, generalizing the
// teacher's pkg/cleanup.Service (ticker loop, per-table cleanup calls,
// slog logging) from a fixed pair of tables to the config-driven set of
// retention-eligible tables spec.md §4.6 names.
package cleaner

import (
	"context"
	"log/slog"
	"time"

	"github.com/rysavy-ondrej/project-inventor/internal/config"
	"github.com/rysavy-ondrej/project-inventor/internal/dao"
)

// Service periodically deletes rows older than each table's configured
// retention window. All operations are idempotent and safe to run from
// a single process per spec.md §5 ("multi-process, not
// multi-threaded-in-one").
type Service struct {
	cfg config.CleanerConfig
	set *dao.Set

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService returns a Service that sweeps set's tables on the interval
// and per-table retentions described by cfg.
func NewService(cfg config.CleanerConfig, set *dao.Set) *Service {
	return &Service{cfg: cfg, set: set}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleaner started", "interval_seconds", s.cfg.IntervalInt)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleaner stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweepAll(ctx)

	interval := time.Duration(s.cfg.IntervalInt) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAll(ctx)
		}
	}
}

// table bundles one retention-eligible DAO deletion with a display name
// for logging. The threshold is already curried into deleteOld by
// sweepAll, since each DAO's DeleteOldRecords takes it as a parameter.
type table struct {
	name      string
	deleteOld func(ctx context.Context) (*dao.RecordsCounter, error)
}

func (s *Service) sweepAll(ctx context.Context) {
	tables := []table{
		{"requests", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.Requests.DeleteOldRecords(ctx, int64(s.cfg.RequestsRetentionInt))
		}},
		{"events", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.Events.DeleteOldRecords(ctx, int64(s.cfg.EventsRetentionInt))
		}},
		{"runs", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.Runs.DeleteOldRecords(ctx, int64(s.cfg.RunsRetentionInt))
		}},
		{"results", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.Results.DeleteOldRecords(ctx, int64(s.cfg.ResultsRetentionInt))
		}},
		{"old_params", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.OldParams.DeleteOldRecords(ctx, int64(s.cfg.OldParamsRetentionInt))
		}},
		{"stats", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.Stats.DeleteOldRecords(ctx, int64(s.cfg.StatsRetentionInt))
		}},
		{"nonces", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.Nonces.DeleteOldRecords(ctx, int64(s.cfg.NoncesInt))
		}},
		{"tests", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.Tests.DeleteOldRecords(ctx, int64(s.cfg.TestsRetentionInt))
		}},
		{"multi_results", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.MultiResults.DeleteOldRecords(ctx, int64(s.cfg.MultiResultsRetentionInt))
		}},
		{"orchestrators", func(ctx context.Context) (*dao.RecordsCounter, error) {
			return s.set.Orchestrators.DeleteOldRecords(ctx, int64(s.cfg.OrchestratorsRetentionInt))
		}},
	}
	for _, tb := range tables {
		s.sweep(ctx, tb)
	}
}

func (s *Service) sweep(ctx context.Context, tb table) {
	counter, err := tb.deleteOld(ctx)
	if err != nil {
		slog.Error("Cleaner: sweep failed", "table", tb.name, "error", err)
		return
	}
	counter.Iterate(func(category string, count int) {
		if count > 0 && category == "all" {
			slog.Info("Cleaner: swept rows", "table", tb.name, "count", count)
		}
	})
}
