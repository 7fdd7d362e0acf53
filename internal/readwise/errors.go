package readwise

import (
	"fmt"
	"time"

	"github.com/readstash/readstash/internal/common"
)

// RateLimitedError reports an HTTP 429. RetryAfter carries the
// server-specified wait, or the client's default when the header is absent.
// The client honours it internally, so callers only see this error when a
// context deadline cuts the wait short.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// TransientError reports a network failure or a 5xx response. The client
// retries these with exponential back-off; once the attempt budget is
// exhausted the last TransientError is surfaced to the caller.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient failure: %v", e.Err)
	}
	return fmt.Sprintf("transient failure: http %d", e.Status)
}

func (e *TransientError) Unwrap() error { return common.ErrTransient }

// MalformedResponseError reports a 2xx response whose body could not be
// decoded. It is fatal for the page and is not retried: the payload will
// not get better on a second read.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return common.ErrMalformedResponse }
