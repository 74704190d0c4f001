package taddy

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsQuotaExhausted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"http 429", &APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}, true},
		{"credits exceeded", &APIError{Message: "Monthly credits exceeded for this plan"}, true},
		{"quota exceeded", &APIError{Message: "QUOTA EXCEEDED"}, true},
		{"rate limit", &APIError{Message: "Rate Limit hit, retry later"}, true},
		{"too many requests text", &APIError{Message: "HTTP 429: Too Many Requests - quota exceeded"}, true},
		{"credits_exceeded marker", &APIError{Message: "CREDITS_EXCEEDED"}, true},
		{"wrapped api error", fmt.Errorf("fetch: %w", &APIError{StatusCode: 429, Message: "x"}), true},
		{"plain message error", errors.New("rate limit reached"), true},
		{"ordinary server error", &APIError{StatusCode: 500, Message: "internal error"}, false},
		{"schema error", &APIError{Message: `Cannot query field "rssUrl"`}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsQuotaExhausted(tt.err); got != tt.want {
				t.Errorf("IsQuotaExhausted(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsSchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"cannot query field", &APIError{Message: `Cannot query field "rssUrl" on type "Query"`}, true},
		{"unknown argument", &APIError{Message: `Unknown argument "seriesUuidForLookup"`}, true},
		{"validation marker", &APIError{Message: "GRAPHQL_VALIDATION_FAILED: bad query"}, true},
		{"wrapped", fmt.Errorf("series: %w", &APIError{Message: "Cannot query field x"}), true},
		{"quota", &APIError{StatusCode: 429, Message: "too many requests"}, false},
		{"plain error", errors.New("Cannot query field"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSchemaMismatch(tt.err); got != tt.want {
				t.Errorf("IsSchemaMismatch(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if isTransient(&APIError{StatusCode: 503, Message: "unavailable"}) != true {
		t.Error("Expected 5xx to be transient")
	}
	if isTransient(&APIError{StatusCode: 429, Message: "too many requests"}) {
		t.Error("Expected quota error to not be transient")
	}
	if isTransient(&APIError{Message: "Cannot query field x"}) {
		t.Error("Expected schema mismatch to not be transient")
	}
	if !isTransient(errors.New("dial tcp: connection refused")) {
		t.Error("Expected transport error to be transient")
	}
}
