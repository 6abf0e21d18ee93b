// Package resilience guards reasoning provider calls with retry and a circuit
// breaker so a dead provider fails fast into the deterministic fallbacks.
package resilience

import (
	"context"

	"go.uber.org/zap"
)

// Guard pairs a retry schedule with a circuit breaker for one provider. It is
// shared by every concurrent claim run.
type Guard struct {
	name    string
	backoff Backoff
	breaker *Breaker
}

// NewGuard builds a Guard whose breaker logs its state changes.
func NewGuard(name string, backoff Backoff, cfg BreakerConfig) *Guard {
	if cfg.OnChange == nil {
		cfg.OnChange = func(from, to BreakerState) {
			zap.L().Warn("resilience: provider circuit changed state",
				zap.String("provider", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	return &Guard{name: name, backoff: backoff, breaker: NewBreaker(cfg)}
}

// State reports the breaker state.
func (g *Guard) State() BreakerState { return g.breaker.State() }

// Call runs fn through the breaker with retries. A whole retry sequence counts
// as one breaker result, and an open circuit returns ErrCircuitOpen without
// calling fn.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := g.breaker.allow(); err != nil {
		return zero, err
	}
	v, err := Retry(ctx, g.backoff, g.name, fn)
	g.breaker.record(err)
	return v, err
}
