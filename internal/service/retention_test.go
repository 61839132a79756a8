package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRetentionService_Prune(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("Cutoff", func(t *testing.T) {
		repo := new(mockRepo)
		s := NewRetentionService(repo, 60, time.Hour, &logger)
		s.now = func() time.Time { return testNow }

		repo.On("DeleteOlderThan", ctx, testNow.AddDate(0, 0, -60)).Return(4, nil).Once()
		n, err := s.Prune(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		repo.AssertExpectations(t)
	})

	t.Run("Error", func(t *testing.T) {
		repo := new(mockRepo)
		s := NewRetentionService(repo, 60, time.Hour, &logger)
		repo.On("DeleteOlderThan", ctx, mock.Anything).Return(0, errors.New("locked")).Once()
		_, err := s.Prune(ctx)
		assert.Error(t, err)
	})

	t.Run("Disabled", func(t *testing.T) {
		repo := new(mockRepo)
		s := NewRetentionService(repo, 0, time.Hour, &logger)
		n, err := s.Prune(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		repo.AssertNotCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything)
	})
}

func TestRetentionService_StartRunsImmediately(t *testing.T) {
	repo := new(mockRepo)
	logger := zerolog.Nop()
	s := NewRetentionService(repo, 60, time.Hour, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(0, nil).Once().Run(func(mock.Arguments) {
		cancel()
	})

	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retention loop did not stop")
	}
	repo.AssertExpectations(t)
}
