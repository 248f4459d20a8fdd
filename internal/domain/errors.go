package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions. Typed errors below unwrap to
// these so callers can branch with errors.Is without knowing the concrete
// type.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrMissingIdentifier indicates a record carries neither a DOI nor a
	// primary source ID. Per-record data error: skip the record, keep the
	// batch.
	ErrMissingIdentifier = errors.New("missing identifier")

	// ErrRateLimited indicates a request was rejected by a provider's
	// rate limiter. Transient; retry with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExceeded indicates a provider reported a hard quota stop.
	// Systemic: the remaining enrichment phase must halt, preserving work
	// already done.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrAuthFailed indicates a provider rejected the credentials.
	// Systemic: no record in the batch can succeed, so the phase must
	// halt rather than degrade every record.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrMalformedResponse indicates a provider response could not be
	// parsed into the expected structured shape.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")
)

// MissingIdentifierError reports a record with no usable identity key.
type MissingIdentifierError struct {
	DOI  string
	PMID string
}

// Error implements the error interface.
func (e *MissingIdentifierError) Error() string {
	return fmt.Sprintf("record has no usable identifier (doi=%q, pmid=%q)", e.DOI, e.PMID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *MissingIdentifierError) Unwrap() error {
	return ErrMissingIdentifier
}

// RateLimitError provides details about a rate limit rejection.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about an external API failure.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}
