// Package breaker implements the Agent Core's Circuit Breaker
// (SPEC_FULL.md §4.5): a CLOSED/OPEN/HALF_OPEN state machine guarding the
// publish path to the Bus, in the same mutex-guarded state-machine style the
// teacher uses for session lifecycle transitions (core/session.Manager).
package breaker

import (
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config controls breaker thresholds (spec.md §6 defaults).
type Config struct {
	FailureThreshold int           // consecutive failures before tripping to Open
	OpenDuration     time.Duration // how long Open lasts before allowing a probe
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, OpenDuration: 30 * time.Second}
}

// Breaker is a CLOSED/OPEN/HALF_OPEN circuit breaker. The zero value is not
// usable; construct with New.
type Breaker struct {
	mu sync.Mutex
	cfg Config

	state           State
	consecutiveFail int
	openedAt        time.Time
	probeInFlight   bool

	now func() time.Time // overridable for tests
}

// New creates a Breaker in the Closed state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.OpenDuration < 0 {
		cfg.OpenDuration = DefaultConfig().OpenDuration
	}
	return &Breaker{cfg: cfg, state: Closed, now: time.Now}
}

// Allow reports whether a send attempt may proceed right now. In Open state
// it returns false until OpenDuration has elapsed, at which point it
// transitions to HalfOpen and allows exactly one probe attempt through;
// further calls return false until that probe resolves via Success or
// Failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	case Open:
		if b.now().Sub(b.openedAt) >= b.cfg.OpenDuration {
			b.state = HalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return false
	}
}

// Success records a successful send. From HalfOpen this closes the breaker
// and resets the failure count; from Closed it simply resets the count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFail = 0
	b.probeInFlight = false
	b.state = Closed
}

// Failure records a failed send. From HalfOpen a failed probe re-opens the
// breaker immediately. From Closed, FailureThreshold consecutive failures
// trips it to Open.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false

	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.consecutiveFail++
		if b.consecutiveFail >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.consecutiveFail = 0
}

// State returns the current state, for the agent_breaker_state gauge.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
