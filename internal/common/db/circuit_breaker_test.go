package db

import (
	"context"
	"errors"
	"testing"
	"time"

	commonerrors "github.com/psytech/auth-backend/internal/common/errors"
	"github.com/psytech/auth-backend/internal/common/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("", "test", "CRITICAL")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewDBCircuitBreaker(3, time.Second, time.Minute, testLogger(t))
	storeErr := errors.New("connection refused")
	fail := func(context.Context) error { return storeErr }

	for i := 0; i < 3; i++ {
		if err := cb.Call(context.Background(), fail); !errors.Is(err, storeErr) {
			t.Fatalf("call %d: got %v, want store error", i, err)
		}
	}

	if cb.Available() {
		t.Fatal("breaker should be open after reaching the failure threshold")
	}

	err := cb.Call(context.Background(), func(context.Context) error {
		t.Fatal("fn must not run while the circuit is open")
		return nil
	})
	if !errors.Is(err, commonerrors.ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewDBCircuitBreaker(3, time.Second, time.Minute, testLogger(t))
	storeErr := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		_ = cb.Call(context.Background(), func(context.Context) error { return storeErr })
	}
	if err := cb.Call(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("successful call: %v", err)
	}

	// The earlier failures no longer count toward the threshold.
	for i := 0; i < 2; i++ {
		_ = cb.Call(context.Background(), func(context.Context) error { return storeErr })
	}
	if !cb.Available() {
		t.Fatal("breaker opened even though failures were not consecutive")
	}
}

func TestCircuitBreaker_ClosesAfterResetWindow(t *testing.T) {
	cb := NewDBCircuitBreaker(1, time.Second, 10*time.Millisecond, testLogger(t))

	_ = cb.Call(context.Background(), func(context.Context) error { return errors.New("boom") })
	if cb.Available() {
		t.Fatal("breaker should be open immediately after the failure")
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Available() {
		t.Fatal("breaker should close once resetAfter has elapsed")
	}
	if err := cb.Call(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("call after reset: %v", err)
	}
}

func TestCircuitBreaker_AppliesCallTimeout(t *testing.T) {
	cb := NewDBCircuitBreaker(5, 10*time.Millisecond, time.Minute, testLogger(t))

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
}
