package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	// BreakerHalfOpen lets calls through after the cooldown; the next result
	// closes or reopens the circuit.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen rejects a call while the provider circuit is open.
var ErrCircuitOpen = eris.New("provider circuit is open")

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration
	// Counts decides whether an error counts against the provider. The
	// default ignores caller cancellation.
	Counts   func(err error) bool
	OnChange func(from, to BreakerState)
}

// DefaultBreakerConfig opens after three straight failures for a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 3, Cooldown: time.Minute}
}

// NewBreakerConfig overrides the defaults with configured values. Zero or
// negative values keep the default.
func NewBreakerConfig(threshold, cooldownSecs int) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if threshold > 0 {
		cfg.Threshold = threshold
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}

// Breaker is a consecutive-failure circuit breaker. Safe for concurrent use.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	d := DefaultBreakerConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = d.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = d.Cooldown
	}
	if cfg.Counts == nil {
		cfg.Counts = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// State reports the current state. An open circuit past its cooldown reports
// half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.cooled() {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) cooled() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return nil
	}
	if !b.cooled() {
		return ErrCircuitOpen
	}
	b.setState(BreakerHalfOpen)
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.cfg.Counts(err) {
		b.failures = 0
		if b.state == BreakerHalfOpen {
			b.setState(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.setState(BreakerOpen)
		}
	}
}

func (b *Breaker) setState(to BreakerState) {
	from := b.state
	b.state = to
	if b.cfg.OnChange != nil && from != to {
		b.cfg.OnChange(from, to)
	}
}
