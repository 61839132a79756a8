package service

import (
	"context"
	"time"

	"kaptam/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateReservation(ctx context.Context, r *models.Reservation) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockRepo) GetReservation(ctx context.Context, code string) (*models.Reservation, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}
func (m *mockRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}
func (m *mockRepo) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockRepo) DeleteReservation(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}
func (m *mockRepo) ListByDate(ctx context.Context, date string) ([]models.Reservation, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}
func (m *mockRepo) CountByDate(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}
func (m *mockRepo) CountOnDate(ctx context.Context, date, exclude string) (int, error) {
	args := m.Called(ctx, date, exclude)
	return args.Int(0), args.Error(1)
}
func (m *mockRepo) CountBoardgameOnDate(ctx context.Context, date string, id int64, exclude string) (int, error) {
	args := m.Called(ctx, date, id, exclude)
	return args.Int(0), args.Error(1)
}
func (m *mockRepo) ListReservations(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}
func (m *mockRepo) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Statistics), args.Error(1)
}
func (m *mockRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) EnqueueTask(ctx context.Context, tt string, code string, r *models.Reservation) error {
	return m.Called(ctx, tt, code, r).Error(0)
}

type fakeCatalog struct {
	boardgames map[int64]models.Game
	videogames map[int64]models.Game
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		boardgames: map[int64]models.Game{
			1: {ID: 1, Name: "Catan", Image: "img/catan.jpg"},
			2: {ID: 2, Name: "Azul", Copies: 2},
		},
		videogames: map[int64]models.Game{
			1: {ID: 1, Name: "Tekken 8", Image: "img/tekken.jpg"},
		},
	}
}

func (c *fakeCatalog) Boardgame(id int64) (models.Game, bool) {
	g, ok := c.boardgames[id]
	return g, ok
}

func (c *fakeCatalog) Videogame(id int64) (models.Game, bool) {
	g, ok := c.videogames[id]
	return g, ok
}

func (c *fakeCatalog) Lookup(itemType string, id int64) (models.Game, bool) {
	if itemType == models.TypeBoardgame {
		return c.Boardgame(id)
	}
	return c.Videogame(id)
}

func (c *fakeCatalog) Copies(id int64) int {
	if g, ok := c.boardgames[id]; ok {
		return g.AvailableCopies()
	}
	return 1
}
