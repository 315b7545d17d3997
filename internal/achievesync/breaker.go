package achievesync

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] while the breaker is open.
var ErrCircuitOpen = errors.New("achievement sync circuit is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero values fall back to defaults.
type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
	Logger       *slog.Logger

	// now is overridden by tests.
	now func() time.Time
}

// Breaker stops calling a failing achievement platform after MaxFailures
// consecutive errors. After ResetTimeout a single trial is let through; its
// outcome closes or re-opens the circuit.
type Breaker struct {
	maxFailures  int
	resetTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu           sync.Mutex
	state        State
	failures     int
	lastFailure  time.Time
	trialRunning bool
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Breaker{
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		logger:       cfg.Logger,
		now:          cfg.now,
	}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.logger.Info("achievement sync circuit half-open")
	case StateHalfOpen:
		if b.trialRunning {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	trial := b.state == StateHalfOpen
	if trial {
		b.trialRunning = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trialRunning = false
	}
	if err != nil {
		b.lastFailure = b.now()
		b.failures++
		if trial || b.failures >= b.maxFailures {
			if b.state != StateOpen {
				b.logger.Warn("achievement sync circuit opened", "consecutive_failures", b.failures)
			}
			b.state = StateOpen
		}
		return err
	}
	if trial {
		b.logger.Info("achievement sync circuit closed")
	}
	b.state = StateClosed
	b.failures = 0
	return nil
}

// State reports the breaker state. An open breaker whose timeout elapsed is
// reported as half-open; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.lastFailure) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}
