package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kaptam/internal/domain"
	"kaptam/internal/metrics"
	"kaptam/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert = "upsert"
	TaskDelete = "delete"
)

// taskPayload is persisted in SyncTask.Payload as JSON.
type taskPayload struct {
	Code        string              `json:"code"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
}

// SyncWorker consumes sync_queue tasks and applies them to the spreadsheet.
type SyncWorker struct {
	store         domain.SyncQueueRepository
	sheets        domain.SheetsWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	lease         time.Duration
	now           func() time.Time
	logger        *zerolog.Logger
}

// NewSyncWorker builds a worker; redisClient may be nil.
func NewSyncWorker(store domain.SyncQueueRepository, sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SyncWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SyncWorker{
		store:         store,
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "kaptam:sheets:queue",
		deadLetterKey: "kaptam:sheets:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		lease:         5 * time.Minute,
		now:           time.Now,
		logger:        logger,
	}
}

// EnqueueTask persists the task and schedules it via redis or the in-memory queue.
func (w *SyncWorker) EnqueueTask(ctx context.Context, taskType, code string, r *models.Reservation) error {
	if taskType != TaskUpsert && taskType != TaskDelete {
		return fmt.Errorf("unknown task type: %q", taskType)
	}
	if code == "" && r != nil {
		code = r.Code
	}
	if code == "" {
		return errors.New("reservation code is required")
	}
	if taskType == TaskUpsert && r == nil {
		return errors.New("reservation is required for upsert")
	}

	payload, err := json.Marshal(taskPayload{Code: code, Reservation: r})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType: taskType,
		Code:     code,
		Payload:  string(payload),
		Status:   models.SyncStatusPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		err := w.pushRedis(ctx, w.redisQueueKey, &task)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, falling back to memory queue")
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left to polling")
	}
	return nil
}

// Start runs the worker loop until ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")
	w.reportFailed(ctx)

	for ctx.Err() == nil {
		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}
		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}
		if n := w.processPending(ctx); n > 0 {
			continue
		}

		timer := time.NewTimer(w.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case t := <-w.queue:
			timer.Stop()
			w.processTask(ctx, &t)
		case <-timer.C:
		}
	}
}

// reportFailed warns about dead tasks left over from earlier runs; they need
// a manual resync of the sheet.
func (w *SyncWorker) reportFailed(ctx context.Context) int {
	failed, err := w.store.GetFailedSyncTasks(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("fetch failed sync tasks")
		return 0
	}
	if len(failed) > 0 {
		codes := make([]string, 0, len(failed))
		for _, t := range failed {
			codes = append(codes, t.Code)
		}
		w.logger.Warn().Int("count", len(failed)).Strs("codes", codes).Msg("failed sync tasks need a resync")
	}
	return len(failed)
}

// processPending handles one batch of due tasks from the store.
func (w *SyncWorker) processPending(ctx context.Context) int {
	tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending sync tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *SyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}

	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

// processTask applies a task once. The same row can arrive from polling and
// from the redis or memory queue; only the consumer that claims it runs it.
func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	claimed, err := w.store.ClaimSyncTask(ctx, task.ID, w.lease)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("claim sync task")
		return
	}
	if !claimed {
		w.logger.Debug().Int64("task_id", task.ID).Msg("sync task already handled")
		return
	}

	// a later task carries the newest state for this code
	newer, err := w.store.HasNewerSyncTask(ctx, task.Code, task.ID)
	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}
	if newer {
		metrics.IncSyncTask("superseded")
		if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "superseded", nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task superseded")
		}
		return
	}

	var payload taskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.apply(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncSyncTask(models.SyncStatusCompleted)
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task completed")
	}
}

func (w *SyncWorker) apply(ctx context.Context, taskType string, payload taskPayload) error {
	switch taskType {
	case TaskUpsert:
		if payload.Reservation == nil {
			return errors.New("reservation payload missing")
		}
		return w.sheets.UpsertReservation(ctx, payload.Reservation)
	case TaskDelete:
		if payload.Code == "" {
			return errors.New("reservation code missing")
		}
		return w.sheets.DeleteReservation(ctx, payload.Code)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncSyncTask(models.SyncStatusRetry)
	next := w.now().Add(w.retryPolicy.NextDelay(attempt))
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Str("code", task.Code).Int("attempt", attempt).Msg("sync task will retry")
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task retry")
	}
}

func (w *SyncWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncSyncTask(models.SyncStatusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("code", task.Code).Msg("sync task failed")
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task failed")
	}

	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
	}
}

func (w *SyncWorker) pushRedis(ctx context.Context, key string, task *models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
