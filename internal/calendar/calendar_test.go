package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/calendar"
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
		Name: name, State: models.TestStateEnabled, Timeout: 30, Created: time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)
	return created
}

func TestCalendar_NewRequestWithoutSchedulingFromPlansImmediately(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	test := createEnabledTest(t, ctx, set, "immediate-test")
	_, err := set.Requests.Create(ctx, nil, &models.Request{IDTest: test.IDTest, Reason: models.RequestReasonNew}, dao.TxNone)
	require.NoError(t, err)

	svc := calendar.NewService(set)
	svc.ProcessOnce(ctx)

	requests, err := set.Requests.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, requests, "request must be consumed")

	runs, err := set.Runs.GetByState(ctx, models.RunStateWaiting)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, test.IDTest, runs[0].IDTest)
}

func TestCalendar_NewRequestWithFutureSchedulingFromWaits(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	test, err := set.Tests.Create(ctx, nil, &models.Test{
		Name: "future-test", State: models.TestStateEnabled, Timeout: 30,
		SchedulingFrom: &future, Created: time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)

	_, err = set.Requests.Create(ctx, nil, &models.Request{IDTest: test.IDTest, Reason: models.RequestReasonNew}, dao.TxNone)
	require.NoError(t, err)

	svc := calendar.NewService(set)
	svc.ProcessOnce(ctx)

	events, err := set.Events.GetByTest(ctx, test.IDTest)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventSourceRequest, events[0].Source)
	assert.WithinDuration(t, future, events[0].RunAt, time.Second)

	runs, err := set.Runs.GetByState(ctx, models.RunStateWaiting)
	require.NoError(t, err)
	assert.Empty(t, runs, "no run yet, event is still in the future")
}

func TestCalendar_UpdateRequestDisablingRemovesEvents(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	test := createEnabledTest(t, ctx, set, "disable-test")
	_, err := set.Events.Create(ctx, nil, &models.Event{IDTest: test.IDTest, RunAt: time.Now().Add(time.Hour), Source: models.EventSourceCalendar}, dao.TxNone)
	require.NoError(t, err)

	require.NoError(t, set.Tests.UpdateState(ctx, nil, test.IDTest, models.TestStateDisabled, dao.TxNone))
	_, err = set.Requests.Create(ctx, nil, &models.Request{IDTest: test.IDTest, Reason: models.RequestReasonUpdate}, dao.TxNone)
	require.NoError(t, err)

	svc := calendar.NewService(set)
	svc.ProcessOnce(ctx)

	events, err := set.Events.GetByTest(ctx, test.IDTest)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCalendar_PlannedEventMaterializesRunAndNextOccurrence(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	interval := int64(60)
	test, err := set.Tests.Create(ctx, nil, &models.Test{
		Name: "repeating-test", State: models.TestStateEnabled, Timeout: 30,
		SchedulingInterval: &interval, Created: time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)

	_, err = set.Events.Create(ctx, nil, &models.Event{
		IDTest: test.IDTest, RunAt: time.Now().Add(-time.Second), Source: models.EventSourceCalendar,
	}, dao.TxNone)
	require.NoError(t, err)

	svc := calendar.NewService(set)
	svc.ProcessOnce(ctx)

	runs, err := set.Runs.GetByState(ctx, models.RunStateWaiting)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	events, err := set.Events.GetByTest(ctx, test.IDTest)
	require.NoError(t, err)
	require.Len(t, events, 1, "the next periodic occurrence must be planned")
	assert.Equal(t, models.EventSourceCalendar, events[0].Source)
}

func TestCalendar_RecoveryEventDoesNotChainNextOccurrence(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	interval := int64(60)
	limit := int64(5)
	test, err := set.Tests.Create(ctx, nil, &models.Test{
		Name: "recovery-test", State: models.TestStateEnabled, Timeout: 30,
		SchedulingInterval: &interval, RecoveryAttemptLimit: &limit, Created: time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)

	_, err = set.Events.Create(ctx, nil, &models.Event{
		IDTest: test.IDTest, RunAt: time.Now().Add(-time.Second), Source: models.EventSourceRecovery, RecoveryAttempt: 1,
	}, dao.TxNone)
	require.NoError(t, err)

	svc := calendar.NewService(set)
	svc.ProcessOnce(ctx)

	events, err := set.Events.GetByTest(ctx, test.IDTest)
	require.NoError(t, err)
	assert.Empty(t, events, "a recovery event must never chain into a next periodic occurrence")
}

func TestCalendar_FailedRequestBeyondRecoveryLimitIsDropped(t *testing.T) {
	set := newTestSet(t)
	ctx := context.Background()

	limit := int64(2)
	test, err := set.Tests.Create(ctx, nil, &models.Test{
		Name: "recovery-limit-test", State: models.TestStateEnabled, Timeout: 30,
		RecoveryAttemptLimit: &limit, Created: time.Now(),
	}, dao.TxNone)
	require.NoError(t, err)

	_, err = set.Requests.Create(ctx, nil, &models.Request{
		IDTest: test.IDTest, Reason: models.RequestReasonFailed, RecoveryAttempt: 3,
	}, dao.TxNone)
	require.NoError(t, err)

	svc := calendar.NewService(set)
	svc.ProcessOnce(ctx)

	events, err := set.Events.GetByTest(ctx, test.IDTest)
	require.NoError(t, err)
	assert.Empty(t, events, "recovery attempt beyond the limit must not plan an event")
}
