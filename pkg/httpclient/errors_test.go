package httpclient

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *RetryableError
		expected string
	}{
		{
			name: "error_with_retry_after",
			err: &RetryableError{
				StatusCode: 429,
				Message:    "rate limit exceeded",
				RetryAfter: 30 * time.Second,
			},
			expected: "HTTP 429: rate limit exceeded (retry after 30s)",
		},
		{
			name: "error_without_retry_after",
			err: &RetryableError{
				StatusCode: 500,
				Message:    "internal server error",
			},
			expected: "HTTP 500: internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRetryableError_Unwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	err := &RetryableError{StatusCode: 503, Message: "unavailable", Err: underlying}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is() should match the wrapped error")
	}

	wrapped := fmt.Errorf("request failed: %w", err)
	var retryErr *RetryableError
	if !errors.As(wrapped, &retryErr) {
		t.Error("errors.As() should recover *RetryableError through wrapping")
	}
}
