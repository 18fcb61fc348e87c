package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// processAllEvents consumes every due Event, materializing a waiting Run
// for each and planning the next periodic occurrence, matching
// PlannedEvents.process_all_events in the original.
func (s *Service) processAllEvents(ctx context.Context) {
	now := time.Now()
	events, err := s.set.Events.GetDue(ctx, now)
	if err != nil {
		slog.Error("Calendar: listing due events failed", "error", err)
		return
	}
	for _, event := range events {
		s.processOneEvent(ctx, event, now)
	}
}

// processOneEvent materializes a due event into a waiting Run, plans the
// next periodic occurrence, and deletes the event -- one transaction, so
// a failure partway through leaves the event untouched to be reprocessed
// on the next tick rather than surviving alongside a Run or next-event
// row it already produced (spec.md §4.2: the event is deleted in the
// same transaction as the Run it spawns).
func (s *Service) processOneEvent(ctx context.Context, event models.Event, now time.Time) {
	test, err := s.set.Tests.Get(ctx, event.IDTest)
	if err != nil {
		slog.Error("Calendar: fetching test for event failed", "id_test", event.IDTest, "error", err)
		return
	}
	if test == nil {
		slog.Warn("Calendar: event for unknown test, dropping", "id_test", event.IDTest)
		if err := s.set.Events.Delete(ctx, nil, event.IDEvent, dao.TxNone); err != nil {
			slog.Error("Calendar: deleting orphan event failed", "id_event", event.IDEvent, "error", err)
		}
		return
	}

	tx, err := s.set.Begin(ctx)
	if err != nil {
		slog.Error("Calendar: beginning event transaction failed", "id_test", test.IDTest, "error", err)
		return
	}

	if err := s.startNewRun(ctx, tx, test, event); err != nil {
		s.rollback(tx, "starting run", err)
		return
	}

	// A recovery event never chains into a next periodic occurrence; only
	// request- and calendar-sourced events do.
	if event.Source != models.EventSourceRecovery {
		if err := s.planNextEvent(ctx, tx, test, event.RunAt, now, dao.TxContinue); err != nil {
			s.rollback(tx, "planning next event", err)
			return
		}
	}

	if err := s.set.Events.Delete(ctx, tx, event.IDEvent, dao.TxFinish); err != nil {
		s.rollback(tx, "deleting processed event", err)
		return
	}
}

// startNewRun materializes event into a waiting Run. The at-most-one-
// waiting-run invariant is enforced by the runs_one_waiting_per_test
// unique index rather than a read-then-write check (see dao.RunDAO), so
// ErrWaitingRunExists here is the expected, logged outcome of a race the
// original could only flag.
func (s *Service) startNewRun(ctx context.Context, tx *sqlx.Tx, test *models.Test, event models.Event) error {
	_, err := s.set.Runs.CreateWaiting(ctx, tx, &models.Run{
		IDTest:          test.IDTest,
		Version:         test.Version,
		Planned:         event.RunAt,
		RecoveryAttempt: event.RecoveryAttempt,
	}, dao.TxContinue)
	if err != nil {
		if errors.Is(err, dao.ErrWaitingRunExists) {
			slog.Warn("Calendar: run not created, one is already waiting", "id_test", test.IDTest)
			return nil
		}
		return err
	}
	return nil
}
