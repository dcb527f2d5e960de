// README: Unit tests for the bounded retry loop and transient fault classification.
package order

import (
	"context"
	"errors"
	"testing"
)

// closedConnErr mimics a pgconn error raised before the statement reached
// the server; pgconn.SafeToRetry keys on the SafeToRetry method.
type closedConnErr struct{}

func (closedConnErr) Error() string     { return "conn closed" }
func (closedConnErr) SafeToRetry() bool { return true }

func TestWithRetry_TransientFaultExhaustsToUnavailable(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), func() (int64, error) {
		attempts++
		return 0, closedConnErr{}
	})
	if attempts != retryAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, retryAttempts)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable after exhausted retries", err)
	}
}

func TestWithRetry_PermanentFaultFailsFast(t *testing.T) {
	permanent := errors.New("syntax error at or near")
	attempts := 0
	_, err := withRetry(context.Background(), func() (int64, error) {
		attempts++
		return 0, permanent
	})
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 for a non-transient fault", attempts)
	}
	if !errors.Is(err, permanent) || errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want the permanent fault unwrapped", err)
	}
}

func TestWithRetry_RecoversAfterTransientFault(t *testing.T) {
	attempts := 0
	n, err := withRetry(context.Background(), func() (int64, error) {
		attempts++
		if attempts == 1 {
			return 0, closedConnErr{}
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if n != 1 || attempts != 2 {
		t.Fatalf("n=%d attempts=%d, want the second attempt's result", n, attempts)
	}
}

func TestWithRetry_CancelledContextStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := withRetry(ctx, func() (int64, error) {
		attempts++
		cancel()
		return 0, closedConnErr{}
	})
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 once the context is gone", attempts)
	}
	if err == nil {
		t.Fatal("want the last fault surfaced")
	}
}

func TestIsTransient(t *testing.T) {
	if !isTransient(closedConnErr{}) {
		t.Error("SafeToRetry fault should classify as transient")
	}
	if isTransient(errors.New("duplicate key value")) {
		t.Error("plain error should not classify as transient")
	}
	if isTransient(nil) {
		t.Error("nil should not classify as transient")
	}
}
