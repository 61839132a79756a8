package database

import (
	"context"
	"testing"
	"time"

	"kaptam/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType: "upsert",
		Code:     "ABC234",
		Payload:  `{"code":"ABC234"}`,
	}

	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.Equal(t, models.SyncStatusPending, task.Status)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "ABC234", tasks[0].Code)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncStatusCompleted, "", nil))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	errMsg := "some error"
	require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{TaskType: "delete", Code: "XYZ234", Status: models.SyncStatusFailed, LastError: &errMsg}))
	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "some error", *failed[0].LastError)

	// Retry logic
	task2 := &models.SyncTask{TaskType: "upsert", Code: "RETRY2"}
	require.NoError(t, db.CreateSyncTask(ctx, task2))

	nextRetry := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task2.ID, models.SyncStatusRetry, "temporary error", &nextRetry))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	for _, tk := range tasks {
		assert.NotEqual(t, task2.ID, tk.ID, "task with future retry should not be pending")
	}

	pastRetry := time.Now().Add(-time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task2.ID, models.SyncStatusRetry, "temporary error", &pastRetry))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	found := false
	for _, tk := range tasks {
		if tk.ID == task2.ID {
			found = true
			assert.Equal(t, 2, tk.RetryCount)
		}
	}
	assert.True(t, found)
}

func TestClaimSyncTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "upsert", Code: "ABC234", Payload: `{"code":"ABC234"}`}
	require.NoError(t, db.CreateSyncTask(ctx, task))

	ok, err := db.ClaimSyncTask(ctx, task.ID, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.ClaimSyncTask(ctx, task.ID, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held task cannot be claimed twice")

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks, "claimed task is not polled while the lease runs")

	// lease ran out
	_, err = db.ExecContext(ctx, `UPDATE sync_queue SET next_retry_at = ? WHERE id = ?`, time.Now().UTC().Add(-time.Second), task.ID)
	require.NoError(t, err)
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	ok, err = db.ClaimSyncTask(ctx, task.ID, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil))
	ok, err = db.ClaimSyncTask(ctx, task.ID, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "completed task stays done")
}

func TestHasNewerSyncTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &models.SyncTask{TaskType: "upsert", Code: "ABC234"}
	other := &models.SyncTask{TaskType: "upsert", Code: "XYZ789"}
	require.NoError(t, db.CreateSyncTask(ctx, first))
	require.NoError(t, db.CreateSyncTask(ctx, other))

	newer, err := db.HasNewerSyncTask(ctx, "ABC234", first.ID)
	require.NoError(t, err)
	assert.False(t, newer)

	second := &models.SyncTask{TaskType: "delete", Code: "ABC234"}
	require.NoError(t, db.CreateSyncTask(ctx, second))

	newer, err = db.HasNewerSyncTask(ctx, "ABC234", first.ID)
	require.NoError(t, err)
	assert.True(t, newer)

	newer, err = db.HasNewerSyncTask(ctx, "ABC234", second.ID)
	require.NoError(t, err)
	assert.False(t, newer)
}
