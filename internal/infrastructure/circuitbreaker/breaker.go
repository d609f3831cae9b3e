// Package circuitbreaker implements a failure-ratio circuit breaker over a
// sliding sampling window, with a minimum throughput floor and a single
// half-open probe.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without invoking the protected call while the
// circuit is open, or while a half-open probe is already in progress.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the state of the circuit breaker.
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

// Config configures a circuit breaker.
type Config struct {
	// FailureThreshold is the minimum number of failures inside the window
	// before the ratio is considered.
	FailureThreshold int
	// FailureRatio opens the circuit once failures/samples reaches it.
	FailureRatio float64
	// MinimumThroughput is the minimum number of samples inside the window
	// before the circuit may open.
	MinimumThroughput int
	// SamplingWindow is how far back outcomes are counted.
	SamplingWindow time.Duration
	// CoolDown is how long the circuit stays open before a probe is allowed.
	CoolDown time.Duration
	// IsFailure classifies a non-nil error. Errors it rejects count as
	// successes: the protected dependency answered. Nil counts every error.
	IsFailure     func(error) bool
	OnStateChange func(from, to State)
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// DefaultConfig returns a default circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		FailureRatio:      0.6,
		MinimumThroughput: 10,
		SamplingWindow:    60 * time.Second,
		CoolDown:          30 * time.Second,
	}
}

type sample struct {
	at     time.Time
	failed bool
}

// Breaker is safe for concurrent use.
type Breaker struct {
	mu            sync.Mutex
	cfg           Config
	state         State
	samples       []sample
	openedAt      time.Time
	probeInFlight bool
}

// New creates a circuit breaker, filling unset fields from DefaultConfig.
func New(cfg Config) *Breaker {
	d := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = d.FailureThreshold
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = d.FailureRatio
	}
	if cfg.MinimumThroughput <= 0 {
		cfg.MinimumThroughput = d.MinimumThroughput
	}
	if cfg.SamplingWindow <= 0 {
		cfg.SamplingWindow = d.SamplingWindow
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = d.CoolDown
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(error) bool { return true }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Execute runs fn under circuit breaker protection.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	probe, err := b.beforeCall()
	if err != nil {
		return err
	}

	callErr := fn()
	b.afterCall(probe, callErr)
	return callErr
}

// beforeCall reports whether this call is the half-open probe.
func (b *Breaker) beforeCall() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Now()
	switch b.state {
	case StateOpen:
		remaining := b.cfg.CoolDown - now.Sub(b.openedAt)
		if remaining > 0 {
			return false, fmt.Errorf("%w: retry after %s", ErrCircuitOpen, remaining.Round(time.Millisecond))
		}
		b.transitionTo(StateHalfOpen)
		b.probeInFlight = true
		return true, nil
	case StateHalfOpen:
		if b.probeInFlight {
			return false, fmt.Errorf("%w: probe in progress", ErrCircuitOpen)
		}
		b.probeInFlight = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) afterCall(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil && b.cfg.IsFailure(err)
	now := b.cfg.Now()

	if probe {
		b.probeInFlight = false
		if failed {
			b.open(now)
		} else {
			b.transitionTo(StateClosed)
		}
		return
	}

	// Calls admitted before the circuit opened may finish afterwards.
	if b.state != StateClosed {
		return
	}

	b.samples = append(b.samples, sample{at: now, failed: failed})
	b.prune(now)

	total, failures := b.counts()
	if total >= b.cfg.MinimumThroughput &&
		failures >= b.cfg.FailureThreshold &&
		float64(failures)/float64(total) >= b.cfg.FailureRatio {
		b.open(now)
	}
}

func (b *Breaker) open(now time.Time) {
	b.openedAt = now
	b.transitionTo(StateOpen)
}

func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.SamplingWindow)
	i := 0
	for i < len(b.samples) && !b.samples[i].at.After(cutoff) {
		i++
	}
	b.samples = b.samples[i:]
}

func (b *Breaker) counts() (total, failures int) {
	for _, s := range b.samples {
		if s.failed {
			failures++
		}
	}
	return len(b.samples), failures
}

func (b *Breaker) transitionTo(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.samples = b.samples[:0]

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// State returns the current state. An open circuit whose cool-down elapsed
// still reports open until the next call takes the probe.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a point-in-time snapshot of the breaker.
type Stats struct {
	State    State
	Samples  int
	Failures int
	OpenedAt time.Time
}

// GetStats returns current statistics.
func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(b.cfg.Now())
	total, failures := b.counts()
	return Stats{State: b.state, Samples: total, Failures: failures, OpenedAt: b.openedAt}
}
