package readwise

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy describes how the client retries transient failures. It is
// passed in explicitly rather than hard-coded so tests can drive the client
// with a fake sleeper and a tiny schedule.
type RetryPolicy struct {
	// MaxAttempts bounds the total tries per page, first call included.
	MaxAttempts int

	// BaseDelay is the first back-off wait; it doubles each attempt.
	BaseDelay time.Duration

	// MaxDelay caps the grown delay. Zero means uncapped.
	MaxDelay time.Duration

	// JitterPercent randomizes each delay by ±N% to avoid lockstep retries.
	JitterPercent uint64

	// DefaultRetryAfter is used for a 429 without a Retry-After header.
	DefaultRetryAfter time.Duration

	// MaxRateLimitWaits bounds how many consecutive 429s the client will
	// honour before giving up on the page.
	MaxRateLimitWaits int
}

// DefaultRetryPolicy matches the remote service's published limits closely
// enough for interactive use.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       4,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          8 * time.Second,
		JitterPercent:     20,
		DefaultRetryAfter: 30 * time.Second,
		MaxRateLimitWaits: 5,
	}
}

// backoff builds the delay schedule for one page fetch. A fresh schedule is
// created per call so attempts on different pages never share state.
func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.BaseDelay)
	if p.JitterPercent > 0 {
		b = retry.WithJitterPercent(p.JitterPercent, b)
	}
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return b
}
