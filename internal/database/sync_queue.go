package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kaptam/internal/models"
)

const syncTaskColumns = `id, task_type, code, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	query := `INSERT INTO sync_queue (task_type, code, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.Code,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

func scanSyncTasks(rows *sql.Rows) ([]models.SyncTask, error) {
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var (
			t       models.SyncTask
			payload sql.NullString
		)
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.Code, &payload, &t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		t.Payload = payload.String
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetPendingSyncTasks returns tasks that are due, oldest first. A processing
// task whose lease ran out is due again.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + `
              FROM sync_queue
              WHERE (status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?))
                 OR (status = 'processing' AND next_retry_at <= ?)
              ORDER BY id ASC LIMIT ?`
	now := time.Now().UTC()
	rows, err := db.QueryContext(ctx, query, now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	return scanSyncTasks(rows)
}

// ClaimSyncTask moves a due task to processing for the length of the lease.
// It reports false when another consumer already holds or finished the task.
func (db *DB) ClaimSyncTask(ctx context.Context, id int64, lease time.Duration) (bool, error) {
	now := time.Now().UTC()
	query := `UPDATE sync_queue SET status = 'processing', next_retry_at = ?
              WHERE id = ? AND (
                  (status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?))
                  OR (status = 'processing' AND next_retry_at <= ?))`
	res, err := db.ExecContext(ctx, query, now.Add(lease), id, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim sync task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// HasNewerSyncTask reports whether a later task exists for the same code.
func (db *DB) HasNewerSyncTask(ctx context.Context, code string, id int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sync_queue WHERE code = ? AND id > ?)`, code, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check newer sync tasks: %w", err)
	}
	return exists, nil
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var (
		query string
		args  []any
	)
	now := time.Now().UTC()
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	switch status {
	case models.SyncStatusRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, now, id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + ` FROM sync_queue WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed sync tasks: %w", err)
	}
	return scanSyncTasks(rows)
}
