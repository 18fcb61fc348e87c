// Package testsmanager drives the Run lifecycle: harvesting results
// reported by finished probe child processes, starting waiting Runs, and
// escalating overdue ones through terminate, kill, and zombie states.
// Grounded on tests_manager.py's TestsManager.process_tests.
package testsmanager

import (
	"context"
	"log/slog"
	"time"

	"github.com/rysavy-ondrej/project-inventor/internal/config"
	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/probe"
)

// pollInterval matches spec.md §5's "~100 ms for Tests Manager".
const pollInterval = 100 * time.Millisecond

// zombieRecheckDeadline is how far out a zombie's deadline is pushed each
// time it's found still alive, the original's hardcoded 10 seconds.
const zombieRecheckDeadline = 10 * time.Second

// Service runs the six-step Tests Manager pipeline on each tick.
type Service struct {
	set *dao.Set
	cfg config.TestsConfig

	results chan probe.ResultMessage

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService returns a Service operating against set. resultBuffer is the
// channel capacity for in-flight probe results; callers pass Results() to
// probe.Spawn for every Run they start.
func NewService(set *dao.Set, cfg config.TestsConfig, resultBuffer int) *Service {
	return &Service{set: set, cfg: cfg, results: make(chan probe.ResultMessage, resultBuffer)}
}

// Results returns the channel probe.Spawn should report a new Run's
// outcome on.
func (s *Service) Results() chan<- probe.ResultMessage { return s.results }

// Start launches the background tests-manager loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Tests Manager started")
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Tests Manager stopped")
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

// ProcessOnce runs the six steps in the fixed order process_tests uses:
// harvest finished results, start waiting runs, then escalate overdue
// running/terminating/killing/zombie runs one step each.
func (s *Service) ProcessOnce(ctx context.Context) {
	s.processResultsFromQueue(ctx)
	s.startNewRuns(ctx)
	s.terminateOldRuns(ctx)
	s.killOldRuns(ctx)
	s.zombifyOldRuns(ctx)
	s.checkZombies(ctx)
}
