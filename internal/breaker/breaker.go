// Package breaker implements a per-operation-key circuit breaker.
// Breaker state is the only process-wide mutable state in the core: it
// models the health of the remote directory, lives for the process
// lifetime and must stay consistent under concurrent callers.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned instead of invoking the wrapped call while the
// circuit for the key is open.
var ErrOpen = errors.New("breaker: circuit open")

// Status of a single key's circuit.
type Status int

const (
	Closed Status = iota
	Open
	HalfOpen
)

func (s Status) String() string {
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

// Settings configure one key's circuit.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the circuit from closed to open.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before admitting a
	// single trial call.
	Cooldown time.Duration
}

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = defaultFailureThreshold
	}
	if s.Cooldown <= 0 {
		s.Cooldown = defaultCooldown
	}
	return s
}

// StateHook is invoked on every status transition, outside the state lock.
type StateHook func(key string, status Status)

// Registry holds one circuit per operation key. Circuits are created
// lazily on first use and never removed.
type Registry struct {
	mu       sync.Mutex
	circuits map[string]*circuit

	defaults Settings
	perKey   map[string]Settings
	now      func() time.Time
	onState  StateHook
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithKeySettings overrides settings for a single operation key.
func WithKeySettings(key string, s Settings) Option {
	return func(r *Registry) {
		r.perKey[key] = s.withDefaults()
	}
}

// WithStateHook registers a callback observing status transitions.
func WithStateHook(fn StateHook) Option {
	return func(r *Registry) {
		r.onState = fn
	}
}

// New constructs a Registry with the given default settings.
func New(defaults Settings, opts ...Option) *Registry {
	r := &Registry{
		circuits: make(map[string]*circuit),
		defaults: defaults.withDefaults(),
		perKey:   make(map[string]Settings),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type circuit struct {
	mu       sync.Mutex
	settings Settings

	status   Status
	failures int
	openedAt time.Time
	// trialInFlight guards the half-open state: exactly one call may
	// probe the dependency at a time.
	trialInFlight bool
}

func (r *Registry) circuitFor(key string) *circuit {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[key]
	if !ok {
		settings := r.defaults
		if s, ok := r.perKey[key]; ok {
			settings = s
		}
		c = &circuit{settings: settings}
		r.circuits[key] = c
	}
	return c
}

// Do runs fn guarded by the circuit for key. While the circuit is open
// it returns ErrOpen without invoking fn; after the cooldown it admits
// exactly one trial call whose outcome decides the next state.
func (r *Registry) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	c := r.circuitFor(key)

	trial, err := r.admit(c)
	if err != nil {
		return err
	}

	callErr := fn(ctx)
	r.record(key, c, trial, callErr)
	return callErr
}

// Status reports the current status of a key's circuit. Keys never
// used report Closed.
func (r *Registry) Status(key string) Status {
	r.mu.Lock()
	c, ok := r.circuits[key]
	r.mu.Unlock()
	if !ok {
		return Closed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// admit decides whether the call may proceed and reports whether it is
// the half-open trial call.
func (r *Registry) admit(c *circuit) (trial bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case Closed:
		return false, nil
	case Open:
		if r.now().Sub(c.openedAt) < c.settings.Cooldown {
			return false, ErrOpen
		}
		c.status = HalfOpen
		c.trialInFlight = true
		return true, nil
	case HalfOpen:
		if c.trialInFlight {
			return false, ErrOpen
		}
		c.trialInFlight = true
		return true, nil
	}
	return false, nil
}

func (r *Registry) record(key string, c *circuit, trial bool, callErr error) {
	c.mu.Lock()
	prev := c.status
	if trial {
		c.trialInFlight = false
	}
	if callErr == nil {
		// A late success from a call admitted before the circuit opened
		// must not short-circuit the cooldown; only the trial call (or a
		// call in the closed state) resets the circuit.
		if trial || c.status == Closed {
			c.status = Closed
			c.failures = 0
		}
	} else if trial {
		// Failed probe: re-open and restart the cooldown clock.
		c.status = Open
		c.openedAt = r.now()
	} else if c.status == Closed {
		c.failures++
		if c.failures >= c.settings.FailureThreshold {
			c.status = Open
			c.openedAt = r.now()
		}
	}
	next := c.status
	c.mu.Unlock()

	if next != prev && r.onState != nil {
		r.onState(key, next)
	}
}
