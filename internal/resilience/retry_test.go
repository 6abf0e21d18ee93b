package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(attempts int) Backoff {
	return Backoff{Attempts: attempts, Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastBackoff(3), "anthropic", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("overloaded"), StatusOverloaded)
		}
		return `{"priority":"Low"}`, nil
	})
	require.NoError(t, err)
	assert.Equal(t, `{"priority":"Low"}`, got)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	overloaded := NewTransientError(errors.New("overloaded"), StatusOverloaded)
	_, err := Retry(context.Background(), fastBackoff(2), "anthropic", func(context.Context) (int, error) {
		calls++
		return 0, overloaded
	})
	assert.ErrorIs(t, err, overloaded)
	assert.Equal(t, 2, calls)
}

func TestRetry_BadRequestNotRetried(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastBackoff(5), "openai", func(context.Context) (int, error) {
		calls++
		return 0, ClassifyStatus(errors.New("invalid model"), 400)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	b := Backoff{Attempts: 5, Initial: time.Hour, Max: time.Hour}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Retry(ctx, b, "anthropic", func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("rate limited"), 429)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Attempts: 4, Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1))
	assert.Equal(t, 300*time.Millisecond, b.Delay(2), "capped at Max")

	b.Jitter = 0.5
	for i := 0; i < 50; i++ {
		d := b.Delay(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestNewBackoff(t *testing.T) {
	assert.Equal(t, DefaultBackoff(), NewBackoff(0, 0, 0))

	b := NewBackoff(5, 100, 50)
	assert.Equal(t, 5, b.Attempts)
	assert.Equal(t, 100*time.Millisecond, b.Initial)
	assert.Equal(t, 100*time.Millisecond, b.Max, "max never below initial")
}
