package service

import (
	"context"
	"encoding/json"
	"sync"

	"kaptam/internal/domain"
	"kaptam/internal/events"
	"kaptam/internal/metrics"
	"kaptam/internal/models"

	"github.com/rs/zerolog"
)

const (
	SyncTaskUpsert = "upsert"
	SyncTaskDelete = "delete"
)

type ReservationService struct {
	repo         domain.Repository
	admission    *Admission
	codes        *CodeGenerator
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	logger       *zerolog.Logger

	// serializes admission and the write that follows it
	mu sync.Mutex
}

func NewReservationService(
	repo domain.Repository,
	admission *Admission,
	codes *CodeGenerator,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		repo:         repo,
		admission:    admission,
		codes:        codes,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		logger:       logger,
	}
}

// Submit validates, admits and stores a new reservation under a fresh code.
func (s *ReservationService) Submit(ctx context.Context, in ReservationInput) (*models.Reservation, error) {
	in, err := s.admission.Normalize(in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.admission.Admit(ctx, in, nil); err != nil {
		return nil, err
	}

	code, err := s.codes.Generate(ctx)
	if err != nil {
		return nil, err
	}

	r := &models.Reservation{
		Code:           code,
		Items:          in.Items,
		Name:           in.Name,
		Email:          in.Email,
		Controller:     in.Controller,
		AdditionalInfo: in.AdditionalInfo,
		Date:           in.Date,
	}
	if err := s.repo.CreateReservation(ctx, r); err != nil {
		return nil, err
	}

	metrics.IncReservation("created")
	s.logger.Info().Str("code", r.Code).Str("date", r.Date).Int("items", len(r.Items)).Msg("reservation created")
	s.publishEvent(events.EventReservationCreated, r, events.ChangedByCustomer)
	s.enqueueSync(ctx, r, SyncTaskUpsert)
	return r, nil
}

// Get looks a reservation up by its public code.
func (s *ReservationService) Get(ctx context.Context, code string) (*models.Reservation, error) {
	code, ok := NormalizeCode(code)
	if !ok {
		return nil, invalidf("Invalid code format")
	}
	return s.repo.GetReservation(ctx, code)
}

// Update applies the owner's changes.
func (s *ReservationService) Update(ctx context.Context, code string, in ReservationInput) (*models.Reservation, error) {
	return s.update(ctx, code, in, events.ChangedByCustomer)
}

// AdminUpdate applies the admin's changes under the same capacity rules.
func (s *ReservationService) AdminUpdate(ctx context.Context, code string, in ReservationInput) (*models.Reservation, error) {
	return s.update(ctx, code, in, events.ChangedByAdmin)
}

func (s *ReservationService) update(ctx context.Context, code string, in ReservationInput, changedBy string) (*models.Reservation, error) {
	code, ok := NormalizeCode(code)
	if !ok {
		return nil, invalidf("Invalid code format")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetReservation(ctx, code)
	if err != nil {
		return nil, err
	}

	in, err = s.admission.Normalize(in)
	if err != nil {
		return nil, err
	}
	if err := s.admission.Admit(ctx, in, existing); err != nil {
		return nil, err
	}

	r := &models.Reservation{
		Code:           existing.Code,
		Items:          in.Items,
		Name:           in.Name,
		Email:          in.Email,
		Controller:     in.Controller,
		AdditionalInfo: in.AdditionalInfo,
		Date:           in.Date,
		CreatedAt:      existing.CreatedAt,
	}
	if err := s.repo.UpdateReservation(ctx, r); err != nil {
		return nil, err
	}

	metrics.IncReservation("updated")
	s.logger.Info().Str("code", r.Code).Str("changed_by", changedBy).Msg("reservation updated")
	s.publishEvent(events.EventReservationUpdated, r, changedBy)
	s.enqueueSync(ctx, r, SyncTaskUpsert)
	return r, nil
}

// Delete removes a reservation permanently.
func (s *ReservationService) Delete(ctx context.Context, code string) error {
	code, ok := NormalizeCode(code)
	if !ok {
		return invalidf("Invalid code format")
	}

	s.mu.Lock()
	err := s.repo.DeleteReservation(ctx, code)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	metrics.IncReservation("deleted")
	s.logger.Info().Str("code", code).Msg("reservation deleted")
	r := &models.Reservation{Code: code}
	s.publishEvent(events.EventReservationDeleted, r, events.ChangedByAdmin)
	s.enqueueSync(ctx, r, SyncTaskDelete)
	return nil
}

// List returns a page of reservations, newest first.
func (s *ReservationService) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error) {
	if filter.Limit <= 0 {
		filter.Limit = models.DefaultPageSize
	}
	if filter.Limit > models.MaxPageSize {
		filter.Limit = models.MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListReservations(ctx, filter)
}

func (s *ReservationService) Statistics(ctx context.Context) (*models.Statistics, error) {
	return s.repo.GetStatistics(ctx)
}

// DateAvailability returns the number of reservations per visit date.
func (s *ReservationService) DateAvailability(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByDate(ctx)
}

func (s *ReservationService) publishEvent(eventType string, r *models.Reservation, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		Code:      r.Code,
		Date:      r.Date,
		ChangedBy: changedBy,
	}
	if eventType != events.EventReservationDeleted {
		snapshot, err := json.Marshal(r)
		if err != nil {
			s.logger.Error().Err(err).Str("code", r.Code).Msg("encode event snapshot")
			return
		}
		payload.Reservation = snapshot
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("code", r.Code).Msg("publish event error")
	}
}

func (s *ReservationService) enqueueSync(ctx context.Context, r *models.Reservation, taskType string) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, r.Code, r); err != nil {
		s.logger.Error().Err(err).Str("code", r.Code).Str("task", taskType).Msg("sheets enqueue error")
	}
}

