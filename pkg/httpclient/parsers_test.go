package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func headerFromMap(m map[string]string) http.Header {
	h := http.Header{}
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

func TestParseOpenAIHeaders(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected RateLimitInfo
	}{
		{
			name:     "empty_headers",
			headers:  map[string]string{},
			expected: RateLimitInfo{},
		},
		{
			name: "retry_after_seconds",
			headers: map[string]string{
				"Retry-After": "30",
			},
			expected: RateLimitInfo{RetryAfter: 30 * time.Second},
		},
		{
			name: "retry_after_invalid",
			headers: map[string]string{
				"Retry-After": "not-a-number",
			},
			expected: RateLimitInfo{},
		},
		{
			name: "remaining_counters",
			headers: map[string]string{
				"x-ratelimit-remaining-requests": "42",
				"x-ratelimit-remaining-tokens":   "9000",
			},
			expected: RateLimitInfo{RequestsRemaining: 42, TokensRemaining: 9000},
		},
		{
			name: "reset_time_unix",
			headers: map[string]string{
				"x-ratelimit-reset-requests": "1700000000",
			},
			expected: RateLimitInfo{ResetTime: 1700000000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOpenAIHeaders(headerFromMap(tt.headers))
			if got != tt.expected {
				t.Errorf("ParseOpenAIHeaders() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestParseAnthropicHeaders(t *testing.T) {
	resetAt := time.Now().Add(time.Minute).UTC().Truncate(time.Second)

	tests := []struct {
		name     string
		headers  map[string]string
		expected RateLimitInfo
	}{
		{
			name:     "empty_headers",
			headers:  map[string]string{},
			expected: RateLimitInfo{},
		},
		{
			name: "retry_after",
			headers: map[string]string{
				"retry-after": "12",
			},
			expected: RateLimitInfo{RetryAfter: 12 * time.Second},
		},
		{
			name: "reset_rfc3339",
			headers: map[string]string{
				"anthropic-ratelimit-requests-reset": resetAt.Format(time.RFC3339),
			},
			expected: RateLimitInfo{ResetTime: resetAt.Unix()},
		},
		{
			name: "remaining_counters",
			headers: map[string]string{
				"anthropic-ratelimit-requests-remaining":      "5",
				"anthropic-ratelimit-input-tokens-remaining":  "1000",
				"anthropic-ratelimit-output-tokens-remaining": "2000",
			},
			expected: RateLimitInfo{
				RequestsRemaining:     5,
				InputTokensRemaining:  1000,
				OutputTokensRemaining: 2000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAnthropicHeaders(headerFromMap(tt.headers))
			if got != tt.expected {
				t.Errorf("ParseAnthropicHeaders() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestParseGeminiHeaders(t *testing.T) {
	got := ParseGeminiHeaders(headerFromMap(map[string]string{"Retry-After": "7"}))
	if got.RetryAfter != 7*time.Second {
		t.Errorf("ParseGeminiHeaders() RetryAfter = %v, want 7s", got.RetryAfter)
	}

	got = ParseGeminiHeaders(http.Header{})
	if got != (RateLimitInfo{}) {
		t.Errorf("ParseGeminiHeaders() = %+v, want zero value", got)
	}
}
