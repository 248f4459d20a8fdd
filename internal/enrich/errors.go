package enrich

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/oncospatial/litsync/internal/domain"
)

// APIError represents an error returned by a model provider API.
type APIError struct {
	// Provider is the name of the model provider (e.g., "gemini", "openai").
	Provider string
	// StatusCode is the HTTP status code returned by the API.
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type or status classification from the API.
	Type string
	// Code is the provider-specific error code (if available).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap maps the error onto the domain sentinels so callers can branch
// with errors.Is without knowing provider wire formats. Quota exhaustion
// takes precedence over plain rate limiting.
func (e *APIError) Unwrap() error {
	if e.IsQuota() {
		return domain.ErrQuotaExceeded
	}
	if e.IsAuth() {
		return domain.ErrAuthFailed
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	return nil
}

// IsQuota reports whether the error signals a spent budget rather than a
// momentary rate limit. Gemini reports RESOURCE_EXHAUSTED, OpenAI uses
// the insufficient_quota code. Bare 429 messages are deliberately not
// sniffed: per-minute limits also say "quota" and must stay retryable.
func (e *APIError) IsQuota() bool {
	return e.Type == "RESOURCE_EXHAUSTED" ||
		e.Code == "insufficient_quota" ||
		strings.Contains(strings.ToLower(e.Message), "exceeded your current quota")
}

// IsAuth reports whether the provider rejected the credentials. Bad or
// expired keys fail every request identically, so retrying or escalating
// is pointless.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized ||
		e.StatusCode == http.StatusForbidden
}

// IsTransient reports whether a retry may succeed: rate limiting (429),
// server errors (5xx), and network errors (StatusCode 0 means no HTTP
// response was received). Quota exhaustion is never transient; retrying
// a spent budget only burns time.
func (e *APIError) IsTransient() bool {
	if e.IsQuota() {
		return false
	}
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// ParseError indicates the provider returned 200 but the payload did not
// conform to the expected annotation shape.
type ParseError struct {
	// Provider is the name of the model provider.
	Provider string
	// Reason describes what was wrong with the payload.
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed annotation: %s", e.Provider, e.Reason)
}

// Unwrap maps the error to the malformed-response sentinel.
func (e *ParseError) Unwrap() error {
	return domain.ErrMalformedResponse
}

// isTransientError reports whether err is worth retrying against the
// same provider.
func isTransientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	return false
}
