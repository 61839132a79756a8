package models

const (
	TypeBoardgame = "boardgame"
	TypeVideogame = "videogame"
)

// Controller preferences sent by the checkout form.
const (
	ControllerGamepad       = "controller"
	ControllerKeyboardMouse = "keyboard-mouse"
	ControllerYes           = "yes"
	ControllerNo            = "no"
)

const (
	// DateLayout формат даты визита
	DateLayout = "2006-01-02"

	// DefaultMaxReservationsPerDate лимит бронирований на одну дату
	DefaultMaxReservationsPerDate = 6

	// DefaultMaxItemsPerReservation максимальный размер корзины
	DefaultMaxItemsPerReservation = 20

	// DefaultRetentionDays сколько дней хранятся бронирования
	DefaultRetentionDays = 60

	// DefaultPageSize размер страницы в админке
	DefaultPageSize = 50

	// MaxPageSize верхняя граница limit
	MaxPageSize = 200

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128
)

const (
	SyncStatusPending    = "pending"
	SyncStatusProcessing = "processing"
	SyncStatusRetry      = "retry"
	SyncStatusCompleted  = "completed"
	SyncStatusFailed     = "failed"
)
