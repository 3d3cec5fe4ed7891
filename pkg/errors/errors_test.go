package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "basic error",
			err:      New(ErrCodeConnectionFailed, "Connection failed"),
			expected: "[SHC1001] ERROR: Connection failed",
		},
		{
			name: "error with suggestions",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithSuggestions("Check network", "Verify credentials"),
			expected: "[SHC1001] ERROR: Connection failed\nSuggestions:\n  1. Check network\n  2. Verify credentials",
		},
		{
			name: "error with context",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithContext("host", "example.com").
				WithContext("port", 443),
			expected: "[SHC1001] ERROR: Connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("database connection refused")

	appErr := Wrap(baseErr, ErrCodeConnectionFailed, "Failed to connect to Snowflake")

	if appErr.Cause != baseErr {
		t.Error("Wrapped error should contain original error as cause")
	}

	if appErr.Code != ErrCodeConnectionFailed {
		t.Errorf("Expected code %s, got %s", ErrCodeConnectionFailed, appErr.Code)
	}

	if Wrap(nil, ErrCodeInternal, "nothing") != nil {
		t.Error("Wrapping nil should return nil")
	}
}

func TestWrapInheritsContext(t *testing.T) {
	inner := New(ErrCodeEmptyCity, "inner").WithContext("city", "Vancouver")
	outer := Wrap(fmt.Errorf("loading: %w", inner), ErrCodeInternal, "outer")

	if outer.Context["city"] != "Vancouver" {
		t.Errorf("Expected inherited context, got %v", outer.Context)
	}
}

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"empty city", EmptyCityError("Vancouver"), ErrEmptyCityResult, true},
		{"no target date", NoTargetDateError("Vancouver", "AM"), ErrNoTargetDateFound, true},
		{"service unavailable", ServiceUnavailableError("model missing", nil), ErrServiceUnavailable, true},
		{"wrapped with fmt", fmt.Errorf("pipeline: %w", EmptyCityError("Denver")), ErrEmptyCityResult, true},
		{"different code", EmptyCityError("Denver"), ErrNoTargetDateFound, false},
		{"plain error", fmt.Errorf("boom"), ErrServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.sentinel); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSQLErrorClassification(t *testing.T) {
	tests := []struct {
		cause error
		want  ErrorCode
	}{
		{fmt.Errorf("Object 'SHIFT_SALES' does not exist or not authorized"), ErrCodeSQLObjectNotFound},
		{fmt.Errorf("Insufficient privileges to operate on table"), ErrCodeSQLPermission},
		{fmt.Errorf("context deadline exceeded"), ErrCodeSQLTimeout},
		{fmt.Errorf("SQL compilation error: syntax error line 1"), ErrCodeSQLSyntax},
		{fmt.Errorf("something else"), ErrCodeSQLExecution},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			err := SQLError("query failed", "SELECT 1", tt.cause)
			if err.Code != tt.want {
				t.Errorf("Expected code %s, got %s", tt.want, err.Code)
			}
		})
	}
}

func TestRetryLogic(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	config := &RetryConfig{
		MaxRetries:   maxAttempts - 1,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
		RetryableError: func(err error) bool {
			return true
		},
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		attempts++
		if attempts < maxAttempts {
			return New(ErrCodeConnectionTimeout, "Timeout").AsRecoverable()
		}
		return nil
	})

	if err != nil {
		t.Error("Expected retry to succeed")
	}

	if attempts != maxAttempts {
		t.Errorf("Expected %d attempts, got %d", maxAttempts, attempts)
	}
}

func TestSingleRetry(t *testing.T) {
	attempts := 0
	retried := 0

	config := SingleRetryConfig(time.Millisecond)
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried++
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		attempts++
		return ServiceUnavailableError("model timeout", nil).AsRecoverable()
	})

	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
	if retried != 1 {
		t.Errorf("Expected OnRetry once, got %d", retried)
	}
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Error("Exhausted retry should still match the original cause")
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0

	err := Retry(context.Background(), SingleRetryConfig(time.Millisecond), func(ctx context.Context) error {
		attempts++
		return New(ErrCodeInvalidInput, "bad input")
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if GetErrorCode(err) != ErrCodeInvalidInput {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestSingleRetrySkipsPermanentServiceErrors(t *testing.T) {
	attempts := 0

	err := Retry(context.Background(), SingleRetryConfig(time.Millisecond), func(ctx context.Context) error {
		attempts++
		return ServiceUnavailableError("Model has no default version", nil)
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt for a permanent failure, got %d", attempts)
	}
	if GetErrorCode(err) != ErrCodeServiceUnavailable {
		t.Errorf("Expected the original error, got %v", err)
	}
	if IsRecoverable(ServiceUnavailableError("x", nil)) {
		t.Error("ServiceUnavailableError must not be recoverable unless marked")
	}
}

func TestRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, SingleRetryConfig(time.Second), func(ctx context.Context) error {
		return ServiceUnavailableError("down", nil).AsRecoverable()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 100*time.Millisecond)
	ctx := context.Background()

	err := cb.Execute(ctx, func() error {
		return fmt.Errorf("failure 1")
	})
	if err == nil {
		t.Error("Expected error")
	}

	// Second failure opens the circuit
	err = cb.Execute(ctx, func() error {
		return fmt.Errorf("failure 2")
	})
	if err == nil {
		t.Error("Expected error")
	}

	err = cb.Execute(ctx, func() error {
		return nil
	})
	if err == nil {
		t.Error("Expected circuit breaker to be open")
	}
	if GetErrorCode(err) != ErrCodeServiceUnavailable {
		t.Errorf("Open circuit should report service unavailable, got %s", GetErrorCode(err))
	}

	time.Sleep(150 * time.Millisecond)

	// Half-open: a success closes it
	err = cb.Execute(ctx, func() error {
		return nil
	})
	if err != nil {
		t.Error("Expected success after reset")
	}

	if cb.GetState() != "closed" {
		t.Errorf("Expected circuit to be closed, got %s", cb.GetState())
	}
}

func TestErrorCodes(t *testing.T) {
	err1 := New(ErrCodeConnectionFailed, "Test")
	if GetErrorCode(err1) != ErrCodeConnectionFailed {
		t.Error("Failed to extract error code from AppError")
	}

	err2 := fmt.Errorf("regular error")
	if GetErrorCode(err2) != ErrCodeInternal {
		t.Error("Should return internal error code for non-AppError")
	}
}

func TestConfigErrorSuggestsSetup(t *testing.T) {
	err := ConfigError("missing account", "snowflake.account")
	if !strings.Contains(err.Error(), "shiftcast setup") {
		t.Errorf("Expected setup suggestion, got %q", err.Error())
	}
}

func BenchmarkErrorCreation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = New(ErrCodeConnectionFailed, "Connection failed").
			WithContext("host", "example.com").
			WithSuggestions("Check connection")
	}
}
