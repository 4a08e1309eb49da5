// Package admission implements the Bus's Admission Controller
// (SPEC_FULL.md §4.8): a mutex-guarded inflight counter and overload latch,
// matching the teacher's mutex-guarded manager style (core/session.Manager)
// so the soft/hard/hysteresis comparison and the counter update happen
// atomically together rather than via a bare atomic integer.
package admission

import "sync"

// Decision is the result of TryAdmit.
type Decision int

const (
	Admit Decision = iota
	RejectSoft
	RejectHard
)

// Config controls the admission thresholds (spec.md §6 defaults).
type Config struct {
	MaxInflightSoft    int
	MaxInflightHard    int
	OverloadHysteresis float64 // fraction of soft threshold, default 0.8
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{MaxInflightSoft: 100, MaxInflightHard: 500, OverloadHysteresis: 0.8}
}

// Controller tracks in-flight request count and the latched overload flag.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	inflight int
	overload bool
}

// New creates a Controller with cfg. A zero-value Config falls back to
// DefaultConfig's thresholds for any unset field.
func New(cfg Config) *Controller {
	if cfg.MaxInflightSoft <= 0 {
		cfg.MaxInflightSoft = DefaultConfig().MaxInflightSoft
	}
	if cfg.MaxInflightHard <= 0 {
		cfg.MaxInflightHard = DefaultConfig().MaxInflightHard
	}
	if cfg.OverloadHysteresis <= 0 {
		cfg.OverloadHysteresis = DefaultConfig().OverloadHysteresis
	}
	return &Controller{cfg: cfg}
}

// TryAdmit evaluates and, if admitted, increments inflight in a single
// critical section (§4.7 step 7). Release must be called exactly once for
// every Admit decision, on both success and failure completion of the
// request.
func (c *Controller) TryAdmit() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight >= c.cfg.MaxInflightHard {
		return RejectHard
	}

	decision := Admit
	if c.overload {
		decision = RejectSoft
	}

	if decision == Admit {
		c.inflight++
		if c.inflight >= c.cfg.MaxInflightSoft {
			c.overload = true
		}
	}
	return decision
}

// Release decrements inflight and re-evaluates the overload hysteresis
// latch: it clears only once inflight drops below
// OverloadHysteresis * MaxInflightSoft (invariant 7).
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight > 0 {
		c.inflight--
	}
	watermark := c.cfg.OverloadHysteresis * float64(c.cfg.MaxInflightSoft)
	if c.overload && float64(c.inflight) < watermark {
		c.overload = false
	}
}

// Inflight returns the current in-flight count, for the bus_inflight_messages
// gauge.
func (c *Controller) Inflight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Overload returns the latched overload state, for the bus_overload_mode
// gauge.
func (c *Controller) Overload() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overload
}
