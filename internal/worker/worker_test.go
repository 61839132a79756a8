package worker

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"kaptam/internal/database"
	"kaptam/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSheets struct {
	mu      sync.Mutex
	err     error
	upserts []string
	deletes []string
}

func (f *fakeSheets) UpsertReservation(_ context.Context, r *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, r.Code)
	return nil
}

func (f *fakeSheets) DeleteReservation(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, code)
	return nil
}

func (f *fakeSheets) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts), len(f.deletes)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (string, int, sql.NullTime) {
	t.Helper()
	var (
		status     string
		retryCount int
		nextRetry  sql.NullTime
	)
	err := db.QueryRowContext(context.Background(),
		`SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id,
	).Scan(&status, &retryCount, &nextRetry)
	require.NoError(t, err)
	return status, retryCount, nextRetry
}

func testReservation() *models.Reservation {
	return &models.Reservation{
		Code:       "ABC234",
		Name:       "Aino",
		Controller: models.ControllerNo,
		Items:      []models.Item{{ID: 1, Name: "Catan", Type: models.TypeBoardgame}},
		CreatedAt:  time.Now().UTC(),
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	w := NewSyncWorker(db, sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, "", testReservation()))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	assert.Equal(t, "ABC234", task.Code)
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusCompleted, status)
	assert.Zero(t, retryCount)
	assert.False(t, nextRetry.Valid)
	assert.Equal(t, []string{"ABC234"}, sheets.upserts)
}

func TestProcessTaskDelete(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	w := NewSyncWorker(db, sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskDelete, "XYZ789", nil))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	assert.Equal(t, []string{"XYZ789"}, sheets.deletes)
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	w := NewSyncWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, "ABC234", testReservation()))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusRetry, status)
	assert.Equal(t, 1, retryCount)
	assert.True(t, nextRetry.Valid)

	// not due yet
	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessTaskFailAfterMaxRetries(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sheets := &fakeSheets{err: errors.New("boom")}
	w := NewSyncWorker(db, sheets, client, RetryPolicy{MaxRetries: 1}, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, "ABC234", testReservation()))
	task, ok := w.tryRedis(ctx)
	require.True(t, ok)
	w.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusFailed, status)

	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].LastError)
	assert.Equal(t, "boom", *failed[0].LastError)

	dead, err := client.LRange(ctx, w.deadLetterKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	var deadTask models.SyncTask
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &deadTask))
	assert.Equal(t, task.ID, deadTask.ID)
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	w := NewSyncWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	task := models.SyncTask{TaskType: TaskUpsert, Code: "ABC234", Payload: "{"}
	require.NoError(t, db.CreateSyncTask(ctx, &task))
	w.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.SyncStatusFailed, status)
}

func TestProcessTaskRunsOnce(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	w := NewSyncWorker(db, sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, "", testReservation()))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)

	w.processTask(ctx, &task)
	w.processTask(ctx, &task)
	assert.Zero(t, w.processPending(ctx))

	ups, _ := sheets.counts()
	assert.Equal(t, 1, ups)
}

func TestSyncWorker_DeleteAfterUpsertNotUndone(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sheets := &fakeSheets{}
	w := NewSyncWorker(db, sheets, client, RetryPolicy{}, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, "", testReservation()))
	require.NoError(t, w.EnqueueTask(ctx, TaskDelete, "ABC234", nil))

	// polling sees both rows before the redis copies are popped
	assert.Equal(t, 2, w.processPending(ctx))
	for {
		task, ok := w.tryRedis(ctx)
		if !ok {
			break
		}
		w.processTask(ctx, &task)
	}

	assert.Empty(t, sheets.upserts, "older upsert is superseded by the delete")
	assert.Equal(t, []string{"ABC234"}, sheets.deletes)

	rows, err := db.QueryContext(ctx, `SELECT status FROM sync_queue WHERE code = ?`, "ABC234")
	require.NoError(t, err)
	defer rows.Close()
	n := 0
	for rows.Next() {
		var status string
		require.NoError(t, rows.Scan(&status))
		assert.Equal(t, models.SyncStatusCompleted, status)
		n++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 2, n)
}

func TestSyncWorker_ReportFailed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	w := NewSyncWorker(db, &fakeSheets{}, nil, RetryPolicy{}, &logger)
	assert.Zero(t, w.reportFailed(ctx))
	assert.Empty(t, buf.String())

	dead := models.SyncTask{TaskType: TaskDelete, Code: "DED234", Status: models.SyncStatusFailed}
	require.NoError(t, db.CreateSyncTask(ctx, &dead))

	assert.Equal(t, 1, w.reportFailed(ctx))
	assert.Contains(t, buf.String(), "DED234")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestSyncWorker_EnqueueValidation(t *testing.T) {
	db := newTestDB(t)
	w := NewSyncWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	assert.Error(t, w.EnqueueTask(ctx, "update_status", "ABC234", nil))
	assert.Error(t, w.EnqueueTask(ctx, TaskDelete, "", nil))
	assert.Error(t, w.EnqueueTask(ctx, TaskUpsert, "ABC234", nil))
}

func TestSyncWorker_EnqueueUsesRedis(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	w := NewSyncWorker(db, &fakeSheets{}, client, RetryPolicy{}, nil)
	require.NoError(t, w.EnqueueTask(context.Background(), TaskDelete, "ABC234", nil))

	_, ok := w.tryLocalQueue()
	assert.False(t, ok)
	n, err := client.LLen(context.Background(), w.redisQueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSyncWorker_RedisDownFallsBackToMemory(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	w := NewSyncWorker(db, &fakeSheets{}, client, RetryPolicy{}, nil)
	require.NoError(t, w.EnqueueTask(context.Background(), TaskDelete, "ABC234", nil))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	assert.Equal(t, "ABC234", task.Code)
}

func TestSyncWorker_StartDrainsQueueAndPending(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	w := NewSyncWorker(db, sheets, nil, RetryPolicy{}, nil)
	w.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// one task only in the store, one through the queue
	stored := models.SyncTask{TaskType: TaskDelete, Code: "OLD234", Payload: `{"code":"OLD234"}`}
	require.NoError(t, db.CreateSyncTask(ctx, &stored))
	require.NoError(t, w.EnqueueTask(ctx, TaskUpsert, "ABC234", testReservation()))

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		ups, dels := sheets.counts()
		return ups >= 1 && dels >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	status, _, _ := loadTaskStatus(t, db, stored.ID)
	assert.Equal(t, models.SyncStatusCompleted, status)
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))
	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
	assert.Equal(t, time.Hour, RetryPolicy{}.NextDelay(100), "unbounded policy stops at the ceiling")
}

func TestRetryPolicyDefaultsAndExhausted(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	assert.Equal(t, 5, p.MaxRetries)
	assert.Equal(t, 2*time.Second, p.NextDelay(1))
	assert.Equal(t, time.Minute, p.NextDelay(10))

	assert.False(t, p.Exhausted(4))
	assert.True(t, p.Exhausted(5))
	assert.False(t, RetryPolicy{}.Exhausted(50), "zero MaxRetries never gives up")

	custom := RetryPolicy{MaxRetries: 2, InitialDelay: time.Second}.withDefaults()
	assert.Equal(t, 2, custom.MaxRetries)
	assert.Equal(t, time.Second, custom.NextDelay(1))
}
