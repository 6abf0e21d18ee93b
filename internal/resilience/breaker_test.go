package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testBreaker returns a breaker on a controllable clock.
func testBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time, *[]string) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	var changes []string
	b := NewBreaker(BreakerConfig{
		Threshold: threshold,
		Cooldown:  cooldown,
		OnChange: func(from, to BreakerState) {
			changes = append(changes, from.String()+"->"+to.String())
		},
	})
	b.now = func() time.Time { return now }
	return b, &now, &changes
}

var errDown = errors.New("provider down")

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _, changes := testBreaker(2, time.Minute)

	b.record(errDown)
	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.allow())

	b.record(errDown)
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.allow(), ErrCircuitOpen)
	assert.Equal(t, []string{"closed->open"}, *changes)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _, _ := testBreaker(2, time.Minute)

	b.record(errDown)
	b.record(nil)
	b.record(errDown)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_CancellationDoesNotCount(t *testing.T) {
	b, _, _ := testBreaker(1, time.Minute)

	b.record(context.Canceled)
	assert.Equal(t, BreakerClosed, b.State())

	b.record(context.DeadlineExceeded)
	assert.Equal(t, BreakerOpen, b.State(), "a provider timeout counts")
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	b, now, changes := testBreaker(1, time.Minute)
	b.record(errDown)

	*now = now.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.NoError(t, b.allow())

	b.record(errDown)
	assert.Equal(t, BreakerOpen, b.State(), "failed trial reopens")

	*now = now.Add(time.Minute)
	assert.NoError(t, b.allow())
	b.record(nil)
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->open", "open->half-open", "half-open->closed"}, *changes)
}

func TestNewBreakerConfig(t *testing.T) {
	assert.Equal(t, DefaultBreakerConfig(), NewBreakerConfig(0, 0))

	cfg := NewBreakerConfig(5, 10)
	assert.Equal(t, 5, cfg.Threshold)
	assert.Equal(t, 10*time.Second, cfg.Cooldown)
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
