package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is an exponential retry schedule with jitter.
type Backoff struct {
	// Attempts counts every try including the first. 1 disables retries.
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
}

// DefaultBackoff suits interactive provider calls: a claim run cannot wait
// long on one stage.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts:   3,
		Initial:    250 * time.Millisecond,
		Max:        2 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// NewBackoff overrides the default schedule with configured values. Zero or
// negative values keep the default.
func NewBackoff(attempts, initialMs, maxMs int) Backoff {
	b := DefaultBackoff()
	if attempts > 0 {
		b.Attempts = attempts
	}
	if initialMs > 0 {
		b.Initial = time.Duration(initialMs) * time.Millisecond
	}
	if maxMs > 0 {
		b.Max = time.Duration(maxMs) * time.Millisecond
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	return b
}

func (b Backoff) normalized() Backoff {
	d := DefaultBackoff()
	if b.Attempts <= 0 {
		b.Attempts = d.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Multiplier < 1 {
		b.Multiplier = d.Multiplier
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// Delay returns the wait before retry n, counted from zero.
func (b Backoff) Delay(n int) time.Duration {
	b = b.normalized()
	d := math.Min(float64(b.Initial)*math.Pow(b.Multiplier, float64(n)), float64(b.Max))
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	return time.Duration(math.Max(d, 0))
}
