package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Retry calls fn until it succeeds, fails with a non-transient error, ctx
// ends or the schedule runs out. The last error is returned unchanged. op
// names the call in retry logs.
func Retry[T any](ctx context.Context, b Backoff, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b = b.normalized()

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= b.Attempts || ctx.Err() != nil || !IsTransient(err) {
			return zero, err
		}

		delay := b.Delay(attempt - 1)
		zap.L().Warn("resilience: retrying transient failure",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}
