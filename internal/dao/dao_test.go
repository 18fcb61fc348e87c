package dao_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
	"github.com/rysavy-ondrej/project-inventor/internal/testutil"
)

func newTestSet(t *testing.T) *dao.Set {
	db := testutil.SetupTestDatabase(t)
	return dao.NewSet(db)
}

func createEnabledTest(t *testing.T, ctx context.Context, set *dao.Set, name string) *models.Test {
	t.Helper()
	created, err := set.Tests.Create(ctx, nil, &models.Test{
		Name:       name,
		State:      models.TestStateEnabled,
		Timeout:    30,
		TestParams: "original",
		KeyRO:      "ro-secret",
		KeyRW:      "rw-secret",
		Created:    time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)
	return created
}

func TestTestDAO_UpdateParamsArchivesOldVersion(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	test := createEnabledTest(t, ctx, set, "archiving-test")

	updated, err := set.Tests.UpdateParams(ctx, nil, test.IDTest, "updated", dao.TxNone)
	require.NoError(t, err)
	assert.Equal(t, test.Version+1, updated.Version)
	assert.Equal(t, "updated", updated.TestParams)

	old, err := set.Tests.GetOldParams(ctx, test.IDTest, nil)
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, test.Version, old[0].Version)
	assert.Equal(t, "original", old[0].TestParams)
}

func TestEventDAO_CreateRejectedWhenTestNotEnabled(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	test, err := set.Tests.Create(ctx, nil, &models.Test{
		Name:    "disabled-test",
		State:   models.TestStateDisabled,
		Timeout: 30,
		Created: time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)

	event, err := set.Events.Create(ctx, nil, &models.Event{
		IDTest: test.IDTest,
		RunAt:  time.Now(),
		Source: models.EventSourceRequest,
	}, dao.TxNone)
	require.NoError(t, err)
	assert.Nil(t, event, "event insertion must be a no-op when the test is not enabled")
}

func TestRunDAO_ExactlyOneWaitingPerTest(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	test := createEnabledTest(t, ctx, set, "one-waiting-test")

	first, err := set.Runs.CreateWaiting(ctx, nil, &models.Run{
		IDTest:  test.IDTest,
		Version: test.Version,
		Planned: time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)
	assert.Equal(t, models.RunStateWaiting, first.State)

	_, err = set.Runs.CreateWaiting(ctx, nil, &models.Run{
		IDTest:  test.IDTest,
		Version: test.Version,
		Planned: time.Now(),
	}, dao.TxNone)
	assert.ErrorIs(t, err, dao.ErrWaitingRunExists)
}

func TestNonceDAO_RejectsReuse(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	require.NoError(t, set.Nonces.Record(ctx, "nonce-1"))
	err := set.Nonces.Record(ctx, "nonce-1")
	assert.ErrorIs(t, err, dao.ErrNonceReused)
}

func TestMultiResultDAO_InitAndAddTest(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	test := createEnabledTest(t, ctx, set, "multi-member-test")

	multi, err := set.MultiResults.Init(ctx, "orchestrator-a", "aggregator-key")
	require.NoError(t, err)
	assert.Empty(t, multi.TestIDs)

	require.NoError(t, set.MultiResults.AddTest(ctx, multi.IDMultiResult, test.IDTest))

	reloaded, err := set.MultiResults.Get(ctx, multi.IDMultiResult)
	require.NoError(t, err)
	assert.Equal(t, models.IntArray{test.IDTest}, reloaded.TestIDs)

	// Adding the same test again must not duplicate the member id.
	require.NoError(t, set.MultiResults.AddTest(ctx, multi.IDMultiResult, test.IDTest))
	reloaded, err = set.MultiResults.Get(ctx, multi.IDMultiResult)
	require.NoError(t, err)
	assert.Equal(t, models.IntArray{test.IDTest}, reloaded.TestIDs)
}

func TestResultDAO_CountRecordsByStatus(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	test := createEnabledTest(t, ctx, set, "counting-test")
	now := time.Now()

	_, err := set.Results.Create(ctx, nil, &models.Result{
		IDTest: test.IDTest, Version: test.Version,
		Planned: now, Started: now, Finished: now,
		Status: models.ResultStatusSuccess,
	}, dao.TxNone)
	require.NoError(t, err)

	_, err = set.Results.Create(ctx, nil, &models.Result{
		IDTest: test.IDTest, Version: test.Version,
		Planned: now, Started: now, Finished: now,
		Status: models.ResultStatusError,
	}, dao.TxNone)
	require.NoError(t, err)

	counter, err := set.Results.CountRecords(ctx)
	require.NoError(t, err)

	counts := map[string]int{}
	counter.Iterate(func(category string, count int) {
		counts[category] = count
	})
	assert.Equal(t, 1, counts["success"])
	assert.Equal(t, 1, counts["error"])
	assert.Equal(t, 2, counts["all"])
}
