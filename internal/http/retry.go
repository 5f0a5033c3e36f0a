package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/rescale/record-files/internal/constants"
)

// ErrorType classifies a transfer failure for the retry strategy.
type ErrorType int

const (
	// ErrorTypeSuccess indicates the operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates expired or rejected storage credentials
	ErrorTypeCredential
	// ErrorTypeNetwork indicates a connection level failure
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates a throttled or failing server
	ErrorTypeRetryable
	// ErrorTypeFatal indicates a client error that will not succeed on retry
	ErrorTypeFatal
)

// RetryPolicy holds parameters for ExecuteWithRetry.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// CredentialRefresh, when set, runs before every attempt
	CredentialRefresh func(context.Context) error
	// OnRetry, when set, runs before every retry
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultRetryPolicy returns the policy used by storage uploaders.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   constants.MaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
	}
}

var credentialMarkers = []string{
	"expired", "invalid token", "expiredtoken", "403", "unauthorized",
	"authentication failed", "authenticationfailed", "invalid sas",
	"sas token", "signature not valid", "authorization failure",
}

var networkMarkers = []string{
	"tls handshake timeout", "connection reset", "i/o timeout", "eof",
	"connection refused", "broken pipe", "timeout",
}

var retryableMarkers = []string{
	"requesttimeout", "internalerror", "serviceunavailable", "slowdown",
	"throttl", "429", "500", "502", "503", "504", "server busy",
	"serverbusy", "operationtimeout", "operation timeout", "service unavailable",
}

// ClassifyError determines the retry class of an S3, Azure or gateway error.
// Unknown errors are fatal so they are never retried forever.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeFatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, credentialMarkers):
		return ErrorTypeCredential
	case containsAny(errStr, networkMarkers):
		return ErrorTypeNetwork
	case containsAny(errStr, retryableMarkers):
		return ErrorTypeRetryable
	default:
		return ErrorTypeFatal
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// CalculateBackoff returns exponential backoff with full jitter:
// random(0, min(maxDelay, initialDelay * 2^attempt)).
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	base := maxDelay
	if attempt < 30 {
		if d := time.Duration(1<<uint(attempt)) * initialDelay; d < maxDelay {
			base = d
		}
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// ExecuteWithRetry runs operation until it succeeds, fails fatally or
// exhausts policy.MaxRetries attempts. Credential errors retry after a
// short pause; network and server errors back off exponentially. A context
// deadline shorter than the next backoff ends the loop early.
func ExecuteWithRetry(ctx context.Context, policy RetryPolicy, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if policy.CredentialRefresh != nil {
			if err := policy.CredentialRefresh(ctx); err != nil {
				return fmt.Errorf("credential refresh failed: %w", err)
			}
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		errType := ClassifyError(err)
		if errType == ErrorTypeFatal {
			return err
		}
		if attempt == policy.MaxRetries-1 {
			break
		}

		wait := time.Second
		if errType != ErrorTypeCredential {
			wait = CalculateBackoff(attempt, policy.InitialDelay, policy.MaxDelay)
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return fmt.Errorf("deadline too short for retry: %w", err)
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err, errType)
		}
		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", policy.MaxRetries, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ErrorTypeName returns a human-readable name for an ErrorType.
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
