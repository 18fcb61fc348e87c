package testsmanager

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
	"github.com/rysavy-ondrej/project-inventor/internal/probe"
)

// processResultsFromQueue drains every result currently buffered, the Go
// analogue of "while not queue.empty()" against a non-blocking channel
// read.
func (s *Service) processResultsFromQueue(ctx context.Context) {
	for {
		var msg probe.ResultMessage
		select {
		case msg = <-s.results:
		default:
			return
		}
		s.harvestResult(ctx, msg)
	}
}

// harvestResult folds one finished Run's outcome into the database: a
// non-success result re-requests the test as a recovery attempt, the
// Test's denormalized last-result columns are updated, a Result row is
// recorded, and the Run is deleted -- one transaction, matching the
// original's single commit spanning all four writes. A write failure
// rolls the whole harvest back and drops this message, same as the
// original's "except TransactionError: rollback(); continue".
func (s *Service) harvestResult(ctx context.Context, msg probe.ResultMessage) {
	run, err := s.set.Runs.Get(ctx, msg.RunID)
	if err != nil {
		slog.Error("tests manager: fetching run for queued result failed", "run_id", msg.RunID, "error", err)
		return
	}
	if run == nil {
		slog.Error("tests manager: result received after its run was deleted", "run_id", msg.RunID)
		return
	}

	finished := time.Now()
	status := models.ResultStatus(msg.Status)
	if !models.ValidResultStatus(msg.Status) {
		slog.Error("tests manager: result carries an unknown status", "run_id", msg.RunID, "status", msg.Status)
		status = models.ResultStatusError
	}

	tx, err := s.set.Begin(ctx)
	if err != nil {
		slog.Error("tests manager: beginning harvest transaction failed", "error", err)
		return
	}

	if status != models.ResultStatusSuccess {
		if _, err := s.set.Requests.Create(ctx, tx, &models.Request{
			IDTest: run.IDTest, Reason: models.RequestReasonFailed, RecoveryAttempt: run.RecoveryAttempt + 1,
		}, dao.TxContinue); err != nil {
			s.rollback(tx, "requesting recovery attempt", err)
			return
		}
	}

	var started time.Time
	if run.Started != nil {
		started = *run.Started
	}

	if err := s.set.Tests.RecordResult(ctx, tx, run.IDTest, finished, status, dao.TxContinue); err != nil {
		s.rollback(tx, "recording test result", err)
		return
	}
	if _, err := s.set.Results.Create(ctx, tx, &models.Result{
		IDTest: run.IDTest, Version: run.Version, Planned: run.Planned, Started: started,
		Finished: finished, Status: status, RecoveryAttempt: run.RecoveryAttempt, Data: msg.Data,
	}, dao.TxContinue); err != nil {
		s.rollback(tx, "creating result", err)
		return
	}
	if err := s.set.Runs.Delete(ctx, tx, run.IDRun, dao.TxFinish); err != nil {
		s.rollback(tx, "deleting harvested run", err)
		return
	}
}

func (s *Service) rollback(tx *sqlx.Tx, op string, err error) {
	if rbErr := tx.Rollback(); rbErr != nil {
		slog.Error("tests manager: rollback failed", "op", op, "error", rbErr)
	}
	slog.Error("tests manager: harvest transaction failed, message dropped", "op", op, "error", err)
}
