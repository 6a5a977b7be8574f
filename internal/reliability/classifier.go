// Package reliability classifies downstream failures and paces retries.
package reliability

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableTwirpCode classifies Twirp error codes returned by the room API.
func IsRetryableTwirpCode(code string) bool {
	switch code {
	case "unavailable", "resource_exhausted", "deadline_exceeded", "aborted":
		return true
	default:
		return false
	}
}

// IsTransientNetError reports connection-level failures worth another try.
// Caller cancellation is never transient.
func IsTransientNetError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout() && !errors.Is(err, context.DeadlineExceeded)
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
