package service

import (
	"context"
	"time"

	"kaptam/internal/metrics"

	"github.com/rs/zerolog"
)

// Pruner deletes reservations created before a cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// RetentionService periodically removes reservations older than the retention window.
type RetentionService struct {
	repo     Pruner
	days     int
	interval time.Duration
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewRetentionService(repo Pruner, days int, interval time.Duration, logger *zerolog.Logger) *RetentionService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RetentionService{
		repo:     repo,
		days:     days,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Start prunes immediately and then on every tick until ctx is done.
func (s *RetentionService) Start(ctx context.Context) {
	s.logger.Info().Int("days", s.days).Dur("interval", s.interval).Msg("retention pruning started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *RetentionService) runOnce(ctx context.Context) {
	if _, err := s.Prune(ctx); err != nil {
		s.logger.Error().Err(err).Msg("retention pruning failed")
	}
}

// Prune deletes expired reservations and returns how many were removed.
func (s *RetentionService) Prune(ctx context.Context) (int, error) {
	if s.days <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -s.days)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddReservations("pruned", n)
		s.logger.Info().Int("deleted", n).Time("cutoff", cutoff).Msg("old reservations pruned")
	}
	return n, nil
}
