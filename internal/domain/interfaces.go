package domain

import (
	"context"
	"time"

	"kaptam/internal/models"
)

// Repository is the reservation store as seen by the service layer.
type Repository interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, code string) (*models.Reservation, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdateReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, code string) error
	ListByDate(ctx context.Context, date string) ([]models.Reservation, error)
	CountByDate(ctx context.Context) (map[string]int, error)
	CountOnDate(ctx context.Context, date, excludeCode string) (int, error)
	CountBoardgameOnDate(ctx context.Context, date string, gameID int64, excludeCode string) (int, error)
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error)
	GetStatistics(ctx context.Context) (*models.Statistics, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// SyncQueueRepository persists spreadsheet sync tasks.
type SyncQueueRepository interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	ClaimSyncTask(ctx context.Context, id int64, lease time.Duration) (bool, error)
	HasNewerSyncTask(ctx context.Context, code string, id int64) (bool, error)
	GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error)
}

// Catalog resolves game ids to catalog entries.
type Catalog interface {
	Boardgame(id int64) (models.Game, bool)
	Videogame(id int64) (models.Game, bool)
	Lookup(itemType string, id int64) (models.Game, bool)
	Copies(id int64) int
}

// RateLimiter counts hits per key inside a fixed window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SheetsWriter interface {
	UpsertReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, code string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, code string, r *models.Reservation) error
}

// Notifier delivers a reservation notice over one channel.
type Notifier interface {
	Name() string
	NotifyReservation(ctx context.Context, kind string, r *models.Reservation) error
}
