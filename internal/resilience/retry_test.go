package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo(t *testing.T) {
	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastRetry(3), func(ctx context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastRetry(3), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return NewTransientError(eris.New("qdrant: unexpected status 503"), 503)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastRetry(3), func(ctx context.Context) error {
			calls++
			return eris.New("notion: unexpected status 401")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastRetry(3), func(ctx context.Context) error {
			calls++
			return NewTransientError(eris.New("i/o timeout"), 0)
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Do(ctx, fastRetry(5), func(ctx context.Context) error {
			calls++
			cancel()
			return NewTransientError(eris.New("connection reset by peer"), 0)
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("OnRetry fires per retry", func(t *testing.T) {
		cfg := fastRetry(3)
		var attempts []int
		cfg.OnRetry = func(attempt int, err error) {
			attempts = append(attempts, attempt)
		}
		_ = Do(context.Background(), cfg, func(ctx context.Context) error {
			return NewTransientError(eris.New("broken pipe"), 0)
		})
		assert.Equal(t, []int{1, 2}, attempts)
	})
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(eris.New("x"), 500)))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(eris.New("qdrant: unexpected status 503: overloaded")))
	assert.False(t, IsTransient(eris.New("tavily: unexpected status 401: bad key")))
	assert.False(t, IsTransient(eris.New("dossier: eventName is required")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestComputeBackoffCaps(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     10,
		JitterFraction: 0,
	})
	assert.Equal(t, 2*time.Second, computeBackoff(5, cfg))
}
