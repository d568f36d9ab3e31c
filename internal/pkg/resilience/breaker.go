package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"slothold/internal/pkg/clock"
)

type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half_open"
)

// ErrCircuitOpen is returned (wrapped with the dependency name) when calls
// are being short-circuited.
var ErrCircuitOpen = errors.New("circuit open")

type BreakerOptions struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

func DefaultBreakerOptions() BreakerOptions {
	return BreakerOptions{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

// CircuitBreaker tracks consecutive failures for one named dependency.
// State is process-local and not shared across instances.
type CircuitBreaker struct {
	name string
	opts BreakerOptions
	clk  clock.Clock

	mu            sync.Mutex
	state         CircuitState
	failures      int
	nextAttemptAt time.Time
	trialInFlight bool
}

func NewCircuitBreaker(name string, opts BreakerOptions, clk clock.Clock) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 60 * time.Second
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &CircuitBreaker{
		name:  name,
		opts:  opts,
		clk:   clk,
		state: StateClosed,
	}
}

func (b *CircuitBreaker) Name() string { return b.name }

func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op unless the circuit is open. While open, fallback is used
// when supplied, otherwise the call fails fast with ErrCircuitOpen.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error, fallback func(context.Context, error) error) error {
	if err := b.allow(); err != nil {
		if fallback != nil {
			return fallback(ctx, err)
		}
		return err
	}
	err := op(ctx)
	b.record(err == nil)
	return err
}

func (b *CircuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if !b.clk.Now().Before(b.nextAttemptAt) {
			b.state = StateHalfOpen
			b.trialInFlight = true
			return nil
		}
		return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
	default: // half-open: exactly one trial call at a time
		if !b.trialInFlight {
			b.trialInFlight = true
			return nil
		}
		return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
	}
}

func (b *CircuitBreaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInFlight = false
		if ok {
			b.state = StateClosed
			b.failures = 0
		} else {
			b.trip()
		}
		return
	}

	if ok {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.opts.FailureThreshold {
		b.trip()
	}
}

func (b *CircuitBreaker) trip() {
	b.state = StateOpen
	b.failures = 0
	b.nextAttemptAt = b.clk.Now().Add(b.opts.ResetTimeout)
}
