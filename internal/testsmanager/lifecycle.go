package testsmanager

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
	"github.com/rysavy-ondrej/project-inventor/internal/probe"
)

// startNewRuns spawns a probe child process for every waiting Run,
// transitioning it to running. A Run whose Test has since been disabled
// is dropped without spawning, matching start_new_tests's own state
// check.
func (s *Service) startNewRuns(ctx context.Context) {
	runs, err := s.set.Runs.GetByState(ctx, models.RunStateWaiting)
	if err != nil {
		slog.Error("tests manager: listing waiting runs failed", "error", err)
		return
	}

	for _, run := range runs {
		s.startOneRun(ctx, run)
	}
}

func (s *Service) startOneRun(ctx context.Context, run models.Run) {
	test, err := s.set.Tests.Get(ctx, run.IDTest)
	if err != nil {
		slog.Error("tests manager: fetching test for waiting run failed", "id_run", run.IDRun, "error", err)
		return
	}
	if test == nil || test.State != models.TestStateEnabled {
		slog.Debug("tests manager: run's test is not enabled, dropping run", "id_run", run.IDRun)
		if err := s.set.Runs.Delete(ctx, nil, run.IDRun, dao.TxNone); err != nil {
			slog.Error("tests manager: deleting run for disabled test failed", "id_run", run.IDRun, "error", err)
		}
		return
	}

	started := time.Now()
	params := test.TestParams
	if !json.Valid([]byte(params)) {
		params = "{}"
	}

	process, err := probe.Spawn(test.Name, params, run.IDRun, s.results)
	if err != nil {
		slog.Error("tests manager: spawning probe failed, disabling test", "test", test.Name, "error", err)
		if err := s.set.Tests.UpdateState(ctx, nil, test.IDTest, models.TestStateDisabled, dao.TxNone); err != nil {
			slog.Error("tests manager: disabling test after spawn failure failed", "id_test", test.IDTest, "error", err)
		}
		return
	}

	// Both writes below must land together: if the second commits after a
	// crash the run would stay waiting forever while a child is already
	// running for it, and the next tick would spawn a second child for the
	// same run.
	tx, err := s.set.Begin(ctx)
	if err != nil {
		slog.Error("tests manager: beginning run-start transaction failed", "id_run", run.IDRun, "error", err)
		return
	}

	if err := s.set.Tests.RecordStarted(ctx, tx, test.IDTest, started, dao.TxContinue); err != nil {
		s.rollback(tx, "recording test started", err)
		return
	}
	deadline := started.Add(time.Duration(test.Timeout) * time.Second)
	if err := s.set.Runs.TransitionToRunning(ctx, tx, run.IDRun, process.Pid, started, deadline, dao.TxFinish); err != nil {
		s.rollback(tx, "transitioning run to running", err)
		return
	}
}

// terminateOldRuns sends SIGTERM to every running Run past its deadline,
// or records it crashed if the process has already died on its own --
// spec.md §4.3's first escalation step.
func (s *Service) terminateOldRuns(ctx context.Context) {
	runs, err := s.set.Runs.GetByStateAndDeadline(ctx, models.RunStateRunning, time.Now())
	if err != nil {
		slog.Error("tests manager: listing overdue running runs failed", "error", err)
		return
	}

	for _, run := range runs {
		s.terminateOneRun(ctx, run)
	}
}

// terminateOneRun signals the run's process (a non-DB side effect, safe to
// run before the transaction starts) then writes the run-state-or-delete,
// Result, and denormalized Test status together in one transaction, the
// Go analogue of the original's single commit spanning all three writes.
func (s *Service) terminateOneRun(ctx context.Context, run models.Run) {
	finished := time.Now()

	var status models.ResultStatus
	alive := run.PID != nil && probe.IsAlive(*run.PID)
	if alive {
		if err := probe.Terminate(*run.PID); err != nil {
			slog.Error("tests manager: terminating run failed", "id_run", run.IDRun, "error", err)
		}
		status = models.ResultStatusTerminated
	} else {
		status = models.ResultStatusCrashed
	}

	tx, err := s.set.Begin(ctx)
	if err != nil {
		slog.Error("tests manager: beginning terminate transaction failed", "id_run", run.IDRun, "error", err)
		return
	}

	if alive {
		deadline := finished.Add(time.Duration(s.cfg.ProcessDeadlineTerminatingInt) * time.Second)
		if err := s.set.Runs.TransitionState(ctx, tx, run.IDRun, models.RunStateTerminating, deadline, dao.TxContinue); err != nil {
			s.rollback(tx, "moving run to terminating", err)
			return
		}
	} else if err := s.set.Runs.Delete(ctx, tx, run.IDRun, dao.TxContinue); err != nil {
		s.rollback(tx, "deleting crashed run", err)
		return
	}

	var started time.Time
	if run.Started != nil {
		started = *run.Started
	}
	if _, err := s.set.Results.Create(ctx, tx, &models.Result{
		IDTest: run.IDTest, Version: run.Version, Planned: run.Planned, Started: started,
		Finished: finished, Status: status, RecoveryAttempt: run.RecoveryAttempt,
	}, dao.TxContinue); err != nil {
		s.rollback(tx, "recording terminated/crashed result", err)
		return
	}
	if err := s.set.Tests.RecordResult(ctx, tx, run.IDTest, finished, status, dao.TxFinish); err != nil {
		s.rollback(tx, "recording terminated/crashed test status", err)
		return
	}
}

// killOldRuns sends SIGKILL to every terminating Run past its grace
// deadline, spec.md §4.3's second escalation.
func (s *Service) killOldRuns(ctx context.Context) {
	runs, err := s.set.Runs.GetByStateAndDeadline(ctx, models.RunStateTerminating, time.Now())
	if err != nil {
		slog.Error("tests manager: listing overdue terminating runs failed", "error", err)
		return
	}

	for _, run := range runs {
		if run.PID != nil && probe.IsAlive(*run.PID) {
			slog.Debug("tests manager: killing run past termination grace period", "id_run", run.IDRun)
			if err := probe.Kill(*run.PID); err != nil {
				slog.Error("tests manager: killing run failed", "id_run", run.IDRun, "error", err)
			}
			deadline := time.Now().Add(time.Duration(s.cfg.ProcessDeadlineKillingInt) * time.Second)
			if err := s.set.Runs.TransitionState(ctx, nil, run.IDRun, models.RunStateKilling, deadline, dao.TxNone); err != nil {
				slog.Error("tests manager: moving run to killing failed", "id_run", run.IDRun, "error", err)
			}
		} else if err := s.set.Runs.Delete(ctx, nil, run.IDRun, dao.TxNone); err != nil {
			slog.Error("tests manager: deleting run after kill failed", "id_run", run.IDRun, "error", err)
		}
	}
}

// zombifyOldRuns marks every killed Run still somehow alive past its
// deadline as a zombie; a Run whose process has actually died is simply
// removed.
func (s *Service) zombifyOldRuns(ctx context.Context) {
	runs, err := s.set.Runs.GetByStateAndDeadline(ctx, models.RunStateKilling, time.Now())
	if err != nil {
		slog.Error("tests manager: listing overdue killing runs failed", "error", err)
		return
	}

	for _, run := range runs {
		if run.PID != nil && probe.IsAlive(*run.PID) {
			slog.Warn("tests manager: run not killed in time, marking zombie", "id_run", run.IDRun, "pid", *run.PID)
			deadline := time.Now().Add(zombieRecheckDeadline)
			if err := s.set.Runs.TransitionState(ctx, nil, run.IDRun, models.RunStateZombie, deadline, dao.TxNone); err != nil {
				slog.Error("tests manager: moving run to zombie failed", "id_run", run.IDRun, "error", err)
			}
		} else if err := s.set.Runs.Delete(ctx, nil, run.IDRun, dao.TxNone); err != nil {
			slog.Error("tests manager: deleting run after zombie check failed", "id_run", run.IDRun, "error", err)
		}
	}
}

// checkZombies re-polls every zombie Run, pushing its deadline out again
// while the process lingers and finally reaping it once it's gone.
func (s *Service) checkZombies(ctx context.Context) {
	runs, err := s.set.Runs.GetByStateAndDeadline(ctx, models.RunStateZombie, time.Now())
	if err != nil {
		slog.Error("tests manager: listing overdue zombie runs failed", "error", err)
		return
	}

	for _, run := range runs {
		if run.PID != nil && probe.IsAlive(*run.PID) {
			deadline := time.Now().Add(zombieRecheckDeadline)
			if err := s.set.Runs.TransitionState(ctx, nil, run.IDRun, models.RunStateZombie, deadline, dao.TxNone); err != nil {
				slog.Error("tests manager: re-deadlining zombie run failed", "id_run", run.IDRun, "error", err)
			}
		} else if err := s.set.Runs.Delete(ctx, nil, run.IDRun, dao.TxNone); err != nil {
			slog.Error("tests manager: reaping dead zombie run failed", "id_run", run.IDRun, "error", err)
		}
	}
}
