package stats_test

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

// This exercises the per-table counting and Stats.Record path stats.Service
// drives each hour, without waiting a real hour: Service.snapshotAll is
// unexported, so the boundary behavior itself is covered by
// TestUntilNextHour in boundary_test.go, and this test covers the
// DAO-level building blocks the service composes.
func TestStatsDAO_RecordsOneRowPerCategory(t *testing.T) {
	db := testutil.SetupTestDatabase(t)
	set := dao.NewSet(db)
	ctx := context.Background()
	now := time.Now()

	test, err := set.Tests.Create(ctx, nil, &models.Test{
		Name: "stats-test", State: models.TestStateEnabled, Timeout: 30, Created: now,
	}, dao.TxNone)
	require.NoError(t, err)

	_, err = set.Results.Create(ctx, nil, &models.Result{
		IDTest: test.IDTest, Version: test.Version,
		Planned: now, Started: now, Finished: now,
		Status: models.ResultStatusSuccess,
	}, dao.TxNone)
	require.NoError(t, err)

	counter, err := set.Results.CountRecords(ctx)
	require.NoError(t, err)

	require.NoError(t, set.Stats.Record(ctx, now, "results", counter))

	var value int64
	require.NoError(t, db.GetContext(ctx, &value,
		`SELECT value FROM stats WHERE table_name = 'results' AND category = 'success'`))
	assert.Equal(t, int64(1), value)
}
