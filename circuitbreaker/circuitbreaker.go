package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Options tune a CircuitBreaker. Zero values take defaults.
type Options struct {
	MaxFailures  int
	ResetTimeout time.Duration
	// IsFailure decides whether an error counts against the breaker.
	// Caller errors such as rejected credentials should not open it.
	IsFailure func(error) bool
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(name string, from, to State)
}

type CircuitBreaker struct {
	name            string
	opts            Options
	failureCount    int
	lastFailureTime time.Time
	state           State
	probing         bool
	mu              sync.Mutex
	now             func() time.Time
}

func New(name string, opts Options) *CircuitBreaker {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	if opts.IsFailure == nil {
		opts.IsFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		name:  name,
		opts:  opts,
		state: StateClosed,
		now:   time.Now,
	}
}

// Execute runs fn unless the breaker is open. Only one probe call is let
// through while half-open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn(ctx)

	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	from := cb.state

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) <= cb.opts.ResetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.failureCount = 0
	}
	if cb.state == StateHalfOpen {
		if cb.probing {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}

	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	from := cb.state
	wasProbe := cb.state == StateHalfOpen
	if wasProbe {
		cb.probing = false
	}

	if err != nil && cb.opts.IsFailure(err) {
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		if wasProbe || cb.failureCount >= cb.opts.MaxFailures {
			cb.state = StateOpen
		}
	} else {
		cb.failureCount = 0
		if wasProbe {
			cb.state = StateClosed
		}
	}

	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.opts.OnStateChange != nil {
		cb.opts.OnStateChange(cb.name, from, to)
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
