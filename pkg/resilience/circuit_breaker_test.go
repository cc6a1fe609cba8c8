package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func() error { return errBoom })
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("search", Config{FailureThreshold: 3, RecoveryTimeout: time.Minute, SuccessThreshold: 2})

	failN(cb, 2)

	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED after 2 failures, got %s", cb.State())
	}

	failN(cb, 1)

	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN after 3 failures, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("expected ErrCircuitBreakerOpen while OPEN, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("http", Config{FailureThreshold: 3, RecoveryTimeout: time.Minute, SuccessThreshold: 2})

	failN(cb, 2)

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failN(cb, 2)

	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED, success should reset the failure count, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbeAndRecovery(t *testing.T) {
	cb := NewCircuitBreaker("search", Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond, SuccessThreshold: 2})

	failN(cb, 1)

	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	// First call after the recovery timeout is the half-open probe.
	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}

	if cb.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN after one probe success, got %s", cb.State())
	}

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED after success threshold, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("search", Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond, SuccessThreshold: 2})

	failN(cb, 1)
	time.Sleep(20 * time.Millisecond)

	// Single failure while probing goes straight back to OPEN.
	failN(cb, 1)

	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN after HALF_OPEN failure, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("expected rejection right after reopening, got %v", err)
	}
}

func TestCircuitBreakerState_String(t *testing.T) {
	if StateClosed.String() != "CLOSED" || StateOpen.String() != "OPEN" || StateHalfOpen.String() != "HALF_OPEN" {
		t.Fatalf("unexpected state strings: %s %s %s", StateClosed, StateOpen, StateHalfOpen)
	}
}
