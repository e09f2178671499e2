// Package resilience guards the external providers with circuit breakers so
// a provider that keeps failing is skipped instead of retried on every
// lookup of a batch.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "b3-tracker/internal/errors"
)

// State is the state of a breaker.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrCircuitOpen is returned while a breaker rejects calls. It wraps
// ErrProviderUnavailable so callers degrade the same way.
var ErrCircuitOpen = fmt.Errorf("%w: circuit breaker open", apperrors.ErrProviderUnavailable)

// Config tunes a breaker.
type Config struct {
	// Failures is the number of consecutive provider failures that opens
	// the breaker. Zero disables it.
	Failures int
	// Cooldown is how long an open breaker rejects calls before letting a
	// probe through.
	Cooldown time.Duration
}

// DefaultConfig returns the breaker defaults.
func DefaultConfig() Config {
	return Config{Failures: 5, Cooldown: 30 * time.Second}
}

// Breaker implements the circuit breaker pattern for one provider.
// Only errors for which apperrors.IsRetryable holds count as failures; an
// unknown ticker is a healthy answer.
type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probing     bool
	total       int64
	rejected    int64
	lastFailure time.Time
	lastErr     string
}

// New creates a closed breaker.
func New(name string, config Config) *Breaker {
	return &Breaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Name returns the provider name.
func (b *Breaker) Name() string {
	return b.name
}

// Do runs fn unless the breaker is open. A nil breaker always runs fn.
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if b == nil {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	if ctx.Err() != nil {
		// a cancelled caller says nothing about the provider
		b.release()
		return err
	}
	b.record(err)
	return err
}

// Call is Do for functions returning a value.
func Call[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func() error {
		v, err := fn()
		out = v
		return err
	})
	return out, err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	if b.config.Failures <= 0 {
		return nil
	}

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.rejected++
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		// one probe at a time
		if b.probing {
			b.rejected++
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.Failures <= 0 {
		return
	}
	b.probing = false

	if err == nil || !apperrors.IsRetryable(err) {
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = b.now()
	b.lastErr = err.Error()
	if b.state == StateHalfOpen || b.failures >= b.config.Failures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// State returns the current state. An open breaker whose cooldown has
// elapsed reports HALF_OPEN.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// Stats is a snapshot of a breaker.
type Stats struct {
	Name        string    `json:"name"`
	State       State     `json:"state"`
	Failures    int       `json:"consecutive_failures"`
	Calls       int64     `json:"calls"`
	Rejected    int64     `json:"rejected"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Stats returns a snapshot of the breaker counters.
func (b *Breaker) Stats() Stats {
	state := b.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:        b.name,
		State:       state,
		Failures:    b.failures,
		Calls:       b.total,
		Rejected:    b.rejected,
		LastFailure: b.lastFailure,
		LastError:   b.lastErr,
	}
}
