package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{404, false},
		{429, true},
		{502, true},
		{503, true},
	}
	for _, tc := range cases {
		if got := IsRetryableHTTPStatus(tc.code); got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsRetryableTwirpCode(t *testing.T) {
	if !IsRetryableTwirpCode("unavailable") {
		t.Fatalf("unavailable should be retryable")
	}
	for _, code := range []string{"not_found", "already_exists", "unauthenticated", ""} {
		if IsRetryableTwirpCode(code) {
			t.Fatalf("IsRetryableTwirpCode(%q) = true, want false", code)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransientNetError(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", fmt.Errorf("send request: %w", refused), true},
		{"timeout", timeoutErr{}, true},
		{"canceled", fmt.Errorf("send: %w", context.Canceled), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsTransientNetError(tc.err); got != tc.want {
			t.Fatalf("IsTransientNetError(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 150 * time.Millisecond
	capDur := time.Second
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(1, base, capDur); got != 300*time.Millisecond {
		t.Fatalf("attempt 1 = %v, want 300ms", got)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
