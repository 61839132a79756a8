package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCodeGenerator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("Format", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("CodeExists", ctx, mock.Anything).Return(false, nil)
		gen := NewCodeGenerator(repo)

		for i := 0; i < 200; i++ {
			code, err := gen.Generate(ctx)
			require.NoError(t, err)
			assert.Len(t, code, CodeLength)
			for _, c := range code {
				assert.True(t, strings.ContainsRune(CodeAlphabet, c), "unexpected %q in %s", c, code)
			}
			assert.True(t, ValidCode(code))
		}
	})

	t.Run("RetriesOnCollision", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("CodeExists", ctx, mock.Anything).Return(true, nil).Times(3)
		repo.On("CodeExists", ctx, mock.Anything).Return(false, nil).Once()

		_, err := NewCodeGenerator(repo).Generate(ctx)
		require.NoError(t, err)
		repo.AssertNumberOfCalls(t, "CodeExists", 4)
	})

	t.Run("Exhausted", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("CodeExists", ctx, mock.Anything).Return(true, nil)

		_, err := NewCodeGenerator(repo).Generate(ctx)
		assert.ErrorIs(t, err, ErrCodeGenerationExhausted)
		repo.AssertNumberOfCalls(t, "CodeExists", maxCodeAttempts)
	})

	t.Run("StoreError", func(t *testing.T) {
		repo := new(mockRepo)
		boom := errors.New("disk on fire")
		repo.On("CodeExists", ctx, mock.Anything).Return(false, boom).Once()

		_, err := NewCodeGenerator(repo).Generate(ctx)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("RandomFailure", func(t *testing.T) {
		gen := NewCodeGenerator(new(mockRepo))
		gen.random = strings.NewReader("abc")

		_, err := gen.Generate(ctx)
		assert.Error(t, err)
	})
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"ABC234", "ABC234", true},
		{" abc234 ", "ABC234", true},
		{"ABC23", "ABC23", false},
		{"ABC2345", "ABC2345", false},
		{"ABC0O1", "ABC0O1", false},
		{"ABC-23", "ABC-23", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeCode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
