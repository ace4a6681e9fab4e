package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGuardPassesResultsThrough(t *testing.T) {
	guard := NewGuard(DefaultConfig())

	if err := guard.Do(context.Background(), "op", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	want := errors.New("upstream down")
	err := guard.Do(context.Background(), "op", func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("Do() error = %v, want wrapped %v", err, want)
	}
}

func TestNilGuardRunsDirectly(t *testing.T) {
	var guard *Guard

	called := false
	if err := guard.Do(context.Background(), "op", func(context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !called {
		t.Error("callback must run even without a guard")
	}
}

func TestGuardOpensAfterRepeatedFailures(t *testing.T) {
	cfg := Config{
		Enabled:          true,
		MinRequests:      3,
		FailureRatio:     0.5,
		OpenTimeout:      time.Minute,
		HalfOpenMaxCalls: 1,
	}
	guard := NewGuard(cfg)

	fail := errors.New("timeout talking to qdrant")
	for i := 0; i < 3; i++ {
		_ = guard.Do(context.Background(), "goldset-compare", func(context.Context) error { return fail })
	}

	calls := 0
	err := guard.Do(context.Background(), "goldset-compare", func(context.Context) error {
		calls++
		return nil
	})
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls != 0 {
		t.Error("open breaker must not invoke the callback")
	}
}

func TestGuardIsolatesOperations(t *testing.T) {
	cfg := Config{
		Enabled:      true,
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenTimeout:  time.Minute,
	}
	guard := NewGuard(cfg)

	fail := errors.New("boom")
	for i := 0; i < 2; i++ {
		_ = guard.Do(context.Background(), "photo-detect", func(context.Context) error { return fail })
	}

	// Failures in one operation must not trip the breaker of another.
	if err := guard.Do(context.Background(), "goldset-compare", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unrelated operation failed: %v", err)
	}
}

func TestGuardIgnoresCallerCancellation(t *testing.T) {
	cfg := Config{
		Enabled:      true,
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenTimeout:  time.Minute,
	}
	guard := NewGuard(cfg)

	for i := 0; i < 5; i++ {
		_ = guard.Do(context.Background(), "op", func(context.Context) error { return context.DeadlineExceeded })
	}

	// Cancellations count as successes, so the circuit stays closed.
	if err := guard.Do(context.Background(), "op", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestGuardDisabledBypassesBreaker(t *testing.T) {
	guard := NewGuard(Config{Enabled: false})

	fail := errors.New("boom")
	for i := 0; i < 20; i++ {
		if err := guard.Do(context.Background(), "op", func(context.Context) error { return fail }); !errors.Is(err, fail) {
			t.Fatalf("Do() error = %v", err)
		}
	}
}
