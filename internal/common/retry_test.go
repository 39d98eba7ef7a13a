package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow/finflow/internal/service"
)

func TestWithRetry(t *testing.T) {
	opts := service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("persistent")
		}, opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 3, attempts)
	})

	t.Run("non-retryable errors fail immediately", func(t *testing.T) {
		attempts := 0
		wrapped := errors.New("bad credentials")
		err := WithRetry(context.Background(), func() error {
			attempts++
			return &RetryableError{Err: wrapped, Retryable: false}
		}, opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, wrapped)
		assert.Equal(t, 1, attempts)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error {
			return errors.New("transient")
		}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Minute})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
