// Package calendar implements the two calendar pipelines of spec.md
// §4.1–§4.2, grounded directly on
// original_source/.../main_modules/calendar.py: the requests pipeline
// turns pending Request rows into Event rows (or deletes them outright
// for disabled/deleted tests), and the planned-events pipeline turns due
// Event rows into waiting Runs and plans the next periodic occurrence.
// Both run on a 100ms cooperative loop, the teacher's ticker-loop shape
// (pkg/cleanup.Service) adapted to the calendar's fixed short interval.
package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// pollInterval matches spec.md §5's "~100 ms for Calendar".
const pollInterval = 100 * time.Millisecond

// Service runs both calendar pipelines on each tick.
type Service struct {
	set *dao.Set

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService returns a Service operating against set.
func NewService(set *dao.Set) *Service {
	return &Service{set: set}
}

// Start launches the background calendar loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Calendar started")
}

// Stop signals the calendar loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Calendar stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		s.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce runs the requests pipeline followed by the planned-events
// pipeline, exactly the order process_events() uses in the original.
func (s *Service) ProcessOnce(ctx context.Context) {
	s.processAllRequests(ctx)
	s.processAllEvents(ctx)
}

// rollback rolls tx back and logs op/err, the shared failure path for
// every multi-statement transaction in this package.
func (s *Service) rollback(tx *sqlx.Tx, op string, err error) {
	if rbErr := tx.Rollback(); rbErr != nil {
		slog.Error("Calendar: rollback failed", "op", op, "error", rbErr)
	}
	slog.Error("Calendar: event transaction failed, event left for reprocessing", "op", op, "error", err)
}

// insertIntoCalendar inserts a new Event for test at runAt, unless the
// test is no longer enabled -- the central enablement gate is actually
// enforced inside dao.EventDAO.Create itself (spec.md §4.1), so this
// helper only needs to log and forward.
func (s *Service) insertIntoCalendar(ctx context.Context, tx *sqlx.Tx, test *models.Test, runAt time.Time, source models.EventSource, recoveryAttempt int64, state dao.TxState) error {
	event, err := s.set.Events.Create(ctx, tx, &models.Event{
		IDTest:          test.IDTest,
		RunAt:           runAt,
		Source:          source,
		RecoveryAttempt: recoveryAttempt,
	}, state)
	if err != nil {
		return err
	}
	if event == nil {
		slog.Debug("Calendar: event not planned, test not enabled", "id_test", test.IDTest)
		return nil
	}
	slog.Debug("Calendar: event planned", "id_test", test.IDTest, "run_at", runAt)
	return nil
}

// calculateNextEventTime implements the next-event formula of spec.md
// §4.2, used after both request-driven and periodic events but never
// after a recovery event.
func calculateNextEventTime(test *models.Test, previousRun, now time.Time) *time.Time {
	if test.SchedulingInterval == nil || *test.SchedulingInterval == 0 {
		return nil
	}
	next := previousRun.Add(time.Duration(*test.SchedulingInterval) * time.Second)
	if next.Before(now) {
		next = now
	}
	if test.SchedulingUntil != nil && next.After(*test.SchedulingUntil) {
		return nil
	}
	return &next
}

func (s *Service) planNextEvent(ctx context.Context, tx *sqlx.Tx, test *models.Test, previousRun, now time.Time, state dao.TxState) error {
	next := calculateNextEventTime(test, previousRun, now)
	if next == nil {
		slog.Debug("Calendar: no next event to plan", "id_test", test.IDTest)
		return nil
	}
	return s.insertIntoCalendar(ctx, tx, test, *next, models.EventSourceCalendar, 0, state)
}
