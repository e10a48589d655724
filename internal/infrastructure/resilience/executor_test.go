package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func retryOnlyConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor(retryOnlyConfig())

	errUnavailable := errors.New("model server busy")
	attempts := 0
	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errUnavailable
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errUnavailable), RecordFailure: true}
	})

	if err != nil {
		t.Fatalf("Execute() error = %v after %d attempts", err, attempts)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteStopsOnNonRetryableError(t *testing.T) {
	exec := NewExecutor(retryOnlyConfig())

	errBadRequest := errors.New("collection does not exist")
	attempts := 0
	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		attempts++
		return errBadRequest
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})

	if !errors.Is(err, errBadRequest) {
		t.Fatalf("Execute() error = %v, want the original failure", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestExecuteGivesUpAtMaxAttempts(t *testing.T) {
	exec := NewExecutor(retryOnlyConfig())

	errFlaky := errors.New("connection reset")
	attempts := 0
	err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
		attempts++
		return errFlaky
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})

	if !errors.Is(err, errFlaky) {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want max attempts exhausted", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("connection refused")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
			return errDown
		}, classifier)
		if !errors.Is(err, errDown) {
			t.Fatalf("iteration %d: error = %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
		t.Fatal("open circuit must not invoke the dependency")
		return nil
	}, classifier)
	if !IsCircuitOpen(err) {
		t.Fatalf("error = %v, want an open-circuit rejection", err)
	}
}

func TestExecuteBreakersAreScopedPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("backend down")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
			return errDown
		}, classifier)
	}

	// A tripped search breaker must not block the queue.
	err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
		return nil
	}, classifier)
	if err != nil {
		t.Fatalf("unrelated operation blocked: %v", err)
	}
}
