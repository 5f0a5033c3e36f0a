package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestExecuteWithRetry_Success(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastPolicy(3), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExecuteWithRetry_FatalError(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastPolicy(5), func() error {
		calls++
		return fmt.Errorf("400 bad request")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry on fatal), got %d", calls)
	}
}

func TestExecuteWithRetry_RecoversAfterServerErrors(t *testing.T) {
	var retried []ErrorType
	policy := fastPolicy(5)
	policy.OnRetry = func(attempt int, err error, errType ErrorType) {
		retried = append(retried, errType)
	}

	calls := 0
	err := ExecuteWithRetry(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("503 service unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 || retried[0] != ErrorTypeRetryable {
		t.Errorf("unexpected retry callbacks: %v", retried)
	}
}

func TestExecuteWithRetry_ExhaustsAttempts(t *testing.T) {
	cause := errors.New("connection reset by peer")
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastPolicy(3), func() error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteWithRetry_CredentialRefreshFailure(t *testing.T) {
	policy := fastPolicy(3)
	policy.CredentialRefresh = func(context.Context) error { return errors.New("sts down") }

	calls := 0
	err := ExecuteWithRetry(context.Background(), policy, func() error {
		calls++
		return nil
	})
	if err == nil {
		t.Fatal("expected refresh error")
	}
	if calls != 0 {
		t.Errorf("operation should not run when refresh fails, got %d calls", calls)
	}
}

func TestExecuteWithRetry_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	calls := 0
	err := ExecuteWithRetry(ctx, policy, func() error {
		calls++
		// First attempt has zero backoff, so fail on the second
		return fmt.Errorf("connection reset")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected quick return after context cancel, but took %v", elapsed)
	}
	if calls < 1 {
		t.Errorf("expected at least 1 call, got %d", calls)
	}
}

func TestExecuteWithRetry_InsufficientDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	policy := RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
	}

	start := time.Now()
	err := ExecuteWithRetry(ctx, policy, func() error {
		return fmt.Errorf("timeout")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected quick return due to insufficient deadline, but took %v", elapsed)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{errors.New("ExpiredToken: token expired"), ErrorTypeCredential},
		{errors.New("AuthenticationFailed: invalid SAS"), ErrorTypeCredential},
		{errors.New("read tcp: connection reset by peer"), ErrorTypeNetwork},
		{errors.New("unexpected EOF"), ErrorTypeNetwork},
		{errors.New("SlowDown: reduce request rate"), ErrorTypeRetryable},
		{errors.New("ServerBusy"), ErrorTypeRetryable},
		{errors.New("404 not found"), ErrorTypeFatal},
		{errors.New("something odd"), ErrorTypeFatal},
		{context.Canceled, ErrorTypeFatal},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, ErrorTypeName(got), ErrorTypeName(tt.want))
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	if got := CalculateBackoff(0, time.Second, time.Minute); got != 0 {
		t.Errorf("attempt 0 should not wait, got %v", got)
	}
	for attempt := 1; attempt < 40; attempt++ {
		got := CalculateBackoff(attempt, 100*time.Millisecond, 2*time.Second)
		if got < 0 || got >= 2*time.Second {
			t.Errorf("attempt %d: backoff %v outside [0, 2s)", attempt, got)
		}
	}
}
