// Package breaker provides a circuit breaker for calls to unreliable
// upstreams. A breaker trips open after consecutive failures, rejects calls
// while open, and probes the upstream with a limited number of trial calls
// before closing again.
package breaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the breaker's position in its lifecycle.
type State int

const (
	// StateClosed passes calls through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen rejects calls immediately until the timeout elapses.
	StateOpen
	// StateHalfOpen passes trial calls; successes close the breaker,
	// any failure reopens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultTimeout          = 60 * time.Second
)

// Config controls a breaker's thresholds. Zero values take defaults.
type Config struct {
	// IsExcluded reports whether an error should bypass failure counting.
	// Excluded errors return to the caller without moving the breaker:
	// client mistakes like validation failures say nothing about upstream
	// health.
	IsExcluded func(error) bool

	// FailureThreshold is the number of consecutive failures that trips
	// the breaker open.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the breaker.
	SuccessThreshold int

	// Timeout is how long an open breaker waits before admitting a trial
	// call.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = defaultSuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// OpenError is returned when a call is rejected by an open breaker.
// RetryAfter is the remaining time before a trial call will be admitted.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, retry after %s", e.Name, e.RetryAfter.Round(time.Millisecond))
}

// Breaker guards a single upstream. Safe for concurrent use. The lock is
// never held across the wrapped call, so slow upstreams do not serialize
// callers.
type Breaker struct {
	lastFailure time.Time
	now         func() time.Time
	cfg         Config
	logger      *slog.Logger
	name        string
	failures    int
	successes   int
	state       State
	mu          sync.Mutex
}

// New creates a closed breaker named for the upstream it guards.
func New(name string, cfg Config, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		state:  StateClosed,
		logger: logger,
		now:    time.Now,
	}
}

// Execute runs fn under the breaker. Open breakers reject with *OpenError
// without invoking fn. Errors from fn are returned unchanged; whether they
// count against the breaker depends on Config.IsExcluded.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn()
	b.afterCall(err)
	return err
}

// beforeCall admits or rejects the call, transitioning open to half-open
// when the timeout has elapsed.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		elapsed := b.now().Sub(b.lastFailure)
		if elapsed < b.cfg.Timeout {
			return &OpenError{Name: b.name, RetryAfter: b.cfg.Timeout - elapsed}
		}
		b.transition(StateHalfOpen)
	}
	return nil
}

// afterCall applies the call's outcome to the state machine.
func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.onSuccess()
		return
	}
	if b.cfg.IsExcluded != nil && b.cfg.IsExcluded(err) {
		return
	}
	b.onFailure()
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) onFailure() {
	b.lastFailure = b.now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		// A single failure during probing reopens the breaker.
		b.transition(StateOpen)
	}
}

// transition moves to a new state and resets counters. Callers hold b.mu.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0

	b.logger.Info("circuit breaker state change",
		"breaker", b.name,
		"from", from.String(),
		"to", to.String())
}

// State reports the breaker's current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot is a point-in-time view of a breaker for status reporting.
type Snapshot struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Failures  int    `json:"failures"`
	Successes int    `json:"successes"`
}

// Snapshot returns the breaker's current counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:      b.name,
		State:     b.state.String(),
		Failures:  b.failures,
		Successes: b.successes,
	}
}

// Reset forces the breaker closed and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

// Registry holds named breakers, created lazily with a shared config.
type Registry struct {
	cfg      Config
	logger   *slog.Logger
	breakers map[string]*Breaker
	mu       sync.Mutex
}

// NewRegistry creates a registry whose breakers share cfg.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.cfg, r.logger)
		r.breakers[name] = b
	}
	return b
}

// Snapshots returns the current state of every registered breaker.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps := make([]Snapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		snaps = append(snaps, b.Snapshot())
	}
	return snaps
}

// ResetAll forces every registered breaker closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
