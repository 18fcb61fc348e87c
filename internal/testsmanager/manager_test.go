package testsmanager_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/config"
	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
	"github.com/rysavy-ondrej/project-inventor/internal/probe"
	"github.com/rysavy-ondrej/project-inventor/internal/testsmanager"
	"github.com/rysavy-ondrej/project-inventor/internal/testutil"
)

func newSet(t *testing.T) *dao.Set {
	db := testutil.SetupTestDatabase(t)
	return dao.NewSet(db)
}

func createEnabledTest(t *testing.T, ctx context.Context, set *dao.Set, name string) *models.Test {
	t.Helper()
	test, err := set.Tests.Create(ctx, nil, &models.Test{
		Name: name, State: models.TestStateEnabled, Timeout: 30, TestParams: "{}", Created: time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)
	return test
}

func testsConfig() config.TestsConfig {
	return config.TestsConfig{
		ProcessDeadlineTerminatingInt: 5,
		ProcessDeadlineKillingInt:     5,
		ProcessDeadlineZombieInt:      5,
	}
}

func TestHarvestResult_SuccessDeletesRunAndRecordsResult(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()
	test := createEnabledTest(t, ctx, set, "harvest-success")

	run, err := set.Runs.CreateWaiting(ctx, nil, &models.Run{IDTest: test.IDTest, Version: test.Version, Planned: time.Now()}, dao.TxNone)
	require.NoError(t, err)
	started := time.Now()
	require.NoError(t, set.Runs.TransitionToRunning(ctx, nil, run.IDRun, 12345, started, started.Add(30*time.Second), dao.TxNone))

	svc := testsmanager.NewService(set, testsConfig(), 4)
	svc.Results() <- probe.ResultMessage{RunID: run.IDRun, Status: "success", Data: "ok"}
	svc.ProcessOnce(ctx)

	got, err := set.Runs.Get(ctx, run.IDRun)
	require.NoError(t, err)
	assert.Nil(t, got, "harvested run must be deleted")

	results, err := set.Results.GetSince(ctx, test.IDTest, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.ResultStatusSuccess, results[0].Status)

	requests, err := set.Requests.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, requests, "a successful result must not request a recovery attempt")
}

func TestHarvestResult_FailureRequestsRecoveryAttempt(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()
	test := createEnabledTest(t, ctx, set, "harvest-failure")

	run, err := set.Runs.CreateWaiting(ctx, nil, &models.Run{IDTest: test.IDTest, Version: test.Version, Planned: time.Now(), RecoveryAttempt: 1}, dao.TxNone)
	require.NoError(t, err)
	started := time.Now()
	require.NoError(t, set.Runs.TransitionToRunning(ctx, nil, run.IDRun, 12345, started, started.Add(30*time.Second), dao.TxNone))

	svc := testsmanager.NewService(set, testsConfig(), 4)
	svc.Results() <- probe.ResultMessage{RunID: run.IDRun, Status: "error", Data: "boom"}
	svc.ProcessOnce(ctx)

	requests, err := set.Requests.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, models.RequestReasonFailed, requests[0].Reason)
	assert.Equal(t, int64(2), requests[0].RecoveryAttempt)
}

func TestStartNewRuns_SpawnsWaitingRunAndMovesToRunning(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()
	test := createEnabledTest(t, ctx, set, "noop")

	_, err := set.Runs.CreateWaiting(ctx, nil, &models.Run{IDTest: test.IDTest, Version: test.Version, Planned: time.Now()}, dao.TxNone)
	require.NoError(t, err)

	svc := testsmanager.NewService(set, testsConfig(), 4)
	svc.ProcessOnce(ctx)

	runs, err := set.Runs.GetByState(ctx, models.RunStateRunning)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].PID)
}

func TestStartNewRuns_DropsRunForDisabledTest(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()
	test := createEnabledTest(t, ctx, set, "will-disable")

	_, err := set.Runs.CreateWaiting(ctx, nil, &models.Run{IDTest: test.IDTest, Version: test.Version, Planned: time.Now()}, dao.TxNone)
	require.NoError(t, err)
	require.NoError(t, set.Tests.UpdateState(ctx, nil, test.IDTest, models.TestStateDisabled, dao.TxNone))

	svc := testsmanager.NewService(set, testsConfig(), 4)
	svc.ProcessOnce(ctx)

	runs, err := set.Runs.GetByState(ctx, models.RunStateWaiting)
	require.NoError(t, err)
	assert.Empty(t, runs)
	runs, err = set.Runs.GetByState(ctx, models.RunStateRunning)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestTerminateOldRuns_CrashedProcessIsReapedDirectly(t *testing.T) {
	set := newSet(t)
	ctx := context.Background()
	test := createEnabledTest(t, ctx, set, "terminate-crashed")

	run, err := set.Runs.CreateWaiting(ctx, nil, &models.Run{IDTest: test.IDTest, Version: test.Version, Planned: time.Now()}, dao.TxNone)
	require.NoError(t, err)
	started := time.Now().Add(-time.Minute)
	// a PID from a process that has already exited
	require.NoError(t, set.Runs.TransitionToRunning(ctx, nil, run.IDRun, 999999, started, started.Add(time.Second), dao.TxNone))

	svc := testsmanager.NewService(set, testsConfig(), 4)
	svc.ProcessOnce(ctx)

	got, err := set.Runs.Get(ctx, run.IDRun)
	require.NoError(t, err)
	assert.Nil(t, got)

	results, err := set.Results.GetSince(ctx, test.IDTest, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.ResultStatusCrashed, results[0].Status)
}
