package taddy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// QuotaExceededMessage is the canonical error message surfaced when the remote
// provider signals quota exhaustion. The orchestrator matches on this exact
// string to abort a run, so it must never change.
const QuotaExceededMessage = "CREDITS_EXCEEDED"

// APIError is an error returned by the remote transcript API, either at the
// HTTP layer (non-2xx status) or inside a query response's errors list.
type APIError struct {
	// StatusCode is the HTTP status, 0 when the failure was query-level.
	StatusCode int

	// Message is the remote error text.
	Message string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("taddy api: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("taddy api: %s", e.Message)
}

// schemaMismatchMarkers are error substrings indicating the remote schema
// rejected the shape of our query (schema drift), which triggers fallback
// lookup strategies rather than a hard failure.
var schemaMismatchMarkers = []string{
	"Cannot query field",
	"Unknown argument",
	"GRAPHQL_VALIDATION_FAILED",
}

// IsSchemaMismatch reports whether err indicates the remote API rejected the
// query shape (e.g., a field or argument we use no longer exists).
func IsSchemaMismatch(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		for _, marker := range schemaMismatchMarkers {
			if strings.Contains(apiErr.Message, marker) {
				return true
			}
		}
		return false
	}

	return false
}

// quotaMarkers are matched case-insensitively against error text. The provider
// has no structured quota header, so detection is by status code and message.
var quotaMarkers = []string{
	"credits exceeded",
	"quota exceeded",
	"rate limit",
	"too many requests",
	"credits_exceeded",
}

// IsQuotaExhausted reports whether err indicates the provider is rejecting
// requests until quota resets (HTTP 429 or a recognizable message).
func IsQuotaExhausted(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return IsQuotaExhaustedMessage(apiErr.Message)
	}

	return IsQuotaExhaustedMessage(err.Error())
}

// IsQuotaExhaustedMessage reports whether a bare message looks like quota
// exhaustion. Exposed separately because the orchestrator re-checks persisted
// error strings, not live error values.
func IsQuotaExhaustedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isTransient reports whether err is worth retrying: transport failures and
// server-side 5xx responses. Schema mismatches and quota errors are not
// transient; retrying them only burns attempts.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsSchemaMismatch(err) || IsQuotaExhausted(err) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}

	// Anything that never produced an API response (DNS, connect, timeout).
	return true
}
