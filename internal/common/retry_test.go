package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	fast := Backoff{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, "write", fast, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error is returned unwrapped", func(t *testing.T) {
		calls := 0
		badRequest := errors.New("bad request")
		err := Retry(ctx, "write", fast, func(context.Context) error {
			calls++
			return Permanent(badRequest)
		})
		assert.Equal(t, badRequest, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhaustion keeps the last cause", func(t *testing.T) {
		cause := errors.New("always")
		err := Retry(ctx, "write", fast, func(context.Context) error { return cause })
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "write:")
	})

	t.Run("rate limited failures still retry", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, "write", fast, func(context.Context) error {
			calls++
			if calls == 1 {
				return ErrRateLimited
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := Retry(cctx, "write", Backoff{Attempts: 5, Initial: time.Second}, func(context.Context) error {
			return errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 3}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 300 * time.Millisecond},
		{3, 900 * time.Millisecond},
		{4, time.Second},
		{10, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Delay(tt.attempt), "attempt %d", tt.attempt)
	}

	assert.Equal(t, 100*time.Millisecond, Backoff{}.Delay(1), "defaults apply")
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
