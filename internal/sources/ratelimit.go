// Package sources provides the shared HTTP plumbing for the pipeline's
// external collaborators: a token-bucket rate limiter and a retrying HTTP
// client that honors Retry-After hints.
package sources

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket limiter for controlling request rates to
// external APIs. Safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter with a sustained rate of ratePerSecond
// and the given burst size.
//
// Reference configurations:
//   - NCBI E-utilities: NewRateLimiter(3, 3) without an API key
//   - Notion: NewRateLimiter(3, 3)
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until a request is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed without waiting, consuming a
// token when it may.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetRate updates the sustained rate while preserving the burst size. Used
// to back off dynamically when an API advertises a lower limit.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
}
