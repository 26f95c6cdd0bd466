// Package circuitbreaker stops calling a failing upstream for a while.
//
// A breaker starts closed. After FailureThreshold consecutive failures it
// opens and rejects calls until the cool-down has passed. It then lets
// MaxHalfOpenRequests probes through: SuccessThreshold successes close it
// again, any failure reopens it. An error that carries a retry hint
// (see RetryHinter) stretches the cool-down to at least that hint.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

// State is the breaker position.
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

var (
	// ErrCircuitOpen is returned without calling the upstream while open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when every half-open probe slot is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// RetryHinter is implemented by errors that know when the upstream will
// accept calls again, e.g. a 429 with Retry-After.
type RetryHinter interface {
	RetryDelay() time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds breaker settings.
type Config struct {
	Name string

	FailureThreshold    int
	SuccessThreshold    int
	Timeout             time.Duration
	MaxHalfOpenRequests int

	// OnStateChange is called after the lock is released.
	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count. The default ignores the
	// caller's own cancellation.
	IsFailure func(error) bool

	Clock timeutil.Clock
}

// DefaultConfig returns the defaults used by New.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
		IsFailure:           notCanceled,
		Clock:               timeutil.NewRealClock(),
	}
}

func notCanceled(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Option configures a breaker.
type Option func(*Config)

func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

// WithTimeout sets the open-state cool-down.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

func WithMaxHalfOpenRequests(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxHalfOpenRequests = n
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) {
		if fn != nil {
			c.IsFailure = fn
		}
	}
}

func WithClock(clock timeutil.Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BREAKER
// ══════════════════════════════════════════════════════════════════════════════

// Counts are lifetime totals plus the current streaks.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	Rejected             int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	config Config

	mu        sync.Mutex
	state     State
	counts    Counts
	openUntil time.Time
	probes    int
}

type transition struct{ from, to State }

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	config := DefaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}
	return &CircuitBreaker{config: config}
}

// Execute calls fn unless the breaker rejects the call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	t, err := cb.admit()
	cb.notify(t)
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.notify(cb.record(err))
	return err
}

// ExecuteWithFallback runs fallback instead of failing when the call was rejected.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return fallback(err)
	}
	return err
}

func (cb *CircuitBreaker) admit() (*transition, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var t *transition
	if cb.state == StateOpen {
		if cb.config.Clock.Now().Before(cb.openUntil) {
			cb.counts.Rejected++
			return nil, ErrCircuitOpen
		}
		t = cb.moveLocked(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.config.MaxHalfOpenRequests {
			cb.counts.Rejected++
			return t, ErrTooManyRequests
		}
		cb.probes++
	}
	return t, nil
}

func (cb *CircuitBreaker) record(err error) *transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}

	if err == nil || !cb.config.IsFailure(err) {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			return cb.moveLocked(StateClosed)
		}
		return nil
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold {
		cooldown := cb.config.Timeout
		var hint RetryHinter
		if errors.As(err, &hint) && hint.RetryDelay() > cooldown {
			cooldown = hint.RetryDelay()
		}
		cb.openUntil = cb.config.Clock.Now().Add(cooldown)
		return cb.moveLocked(StateOpen)
	}
	return nil
}

func (cb *CircuitBreaker) moveLocked(to State) *transition {
	if cb.state == to {
		return nil
	}
	t := &transition{from: cb.state, to: to}
	cb.state = to
	cb.probes = 0
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	return t
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t != nil && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, t.from, t.to)
	}
}

// State returns the position as of the last call. An open breaker whose
// cool-down has passed still reports open until the next call probes.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// OpenUntil is when an open breaker will let a probe through.
func (cb *CircuitBreaker) OpenUntil() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return time.Time{}
	}
	return cb.openUntil
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the breaker and clears every count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	t := cb.moveLocked(StateClosed)
	cb.counts = Counts{}
	cb.openUntil = time.Time{}
	cb.mu.Unlock()
	cb.notify(t)
}

func (cb *CircuitBreaker) Name() string { return cb.config.Name }

// ContentAPIBreaker guards the remote content catalog. Three failed loads
// in a row pause it for a minute, or longer if the API asked for it.
func ContentAPIBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"content-api",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(time.Minute),
		WithOnStateChange(onStateChange),
	)
}
