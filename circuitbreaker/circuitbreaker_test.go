package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream failure")

func failing(context.Context) error { return errUpstream }
func succeeding(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New("stripe", Options{MaxFailures: 2, ResetTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, failing); !errors.Is(err, errUpstream) {
			t.Fatalf("Expected upstream error, got %v", err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state, got %s", cb.GetState())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Errorf("Function must not run while open")
	}
}

func TestCircuitBreaker_HalfOpenProbeCloses(t *testing.T) {
	now := time.Now()
	var transitions []State
	cb := New("identity", Options{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		OnStateChange: func(_ string, _, to State) {
			transitions = append(transitions, to)
		},
	})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(context.Background(), failing)
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state")
	}

	now = now.Add(2 * time.Second)
	if err := cb.Execute(context.Background(), succeeding); err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed state after successful probe, got %s", cb.GetState())
	}

	expected := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(expected) {
		t.Fatalf("Expected transitions %v, got %v", expected, transitions)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, expected[i], transitions[i])
		}
	}
}

func TestCircuitBreaker_IgnoresCallerErrors(t *testing.T) {
	errBadCredentials := errors.New("invalid credentials")
	cb := New("identity", Options{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, errBadCredentials) },
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return errBadCredentials })
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Caller errors must not open the breaker, got %s", cb.GetState())
	}
}
