// Package readwise implements the HTTP client for the remote highlight
// service: authenticated paginated GETs, typed failures, and rate-limit
// aware retries. The client holds no persistent state; retry counters are
// scoped to a single FetchPage call.
package readwise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/readstash/readstash/internal/common"
	"github.com/readstash/readstash/internal/logging"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://readwise.io/api/v2"

	defaultPageSize    = 100
	maxResponseBytes   = 10 * 1024 * 1024
	defaultHTTPTimeout = 30 * time.Second
)

// SleepFunc waits for d or until ctx is done. Injected in tests so retry
// schedules run against a fake clock.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepReal(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client fetches pages from the remote service.
type Client struct {
	http     *http.Client
	baseURL  string
	token    string
	policy   RetryPolicy
	pageSize int
	log      logging.Logger
	sleep    SleepFunc
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger attaches a structured logger for retry diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithPageSize overrides the requested page size.
func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = n }
}

// WithSleep replaces the back-off sleeper. Test seam.
func WithSleep(s SleepFunc) Option {
	return func(c *Client) { c.sleep = s }
}

// NewClient returns a Client authenticated with the given bearer token.
// An empty baseURL selects the public API.
func NewClient(baseURL, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http:     &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:  baseURL,
		token:    token,
		policy:   DefaultRetryPolicy(),
		pageSize: defaultPageSize,
		sleep:    sleepReal,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage retrieves one page of the requested collection.
//
// Rate limiting (429) is absorbed by sleeping for the server-specified
// duration and retrying the same page, up to the policy's wait budget.
// Transient failures (network errors, 5xx) retry with jittered exponential
// back-off up to MaxAttempts. Unauthorized and malformed responses are
// returned immediately.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	var (
		schedule  = c.policy.backoff()
		attempts  int
		rateWaits int
	)

	for {
		page, err := c.fetchOnce(ctx, req)
		if err == nil {
			return page, nil
		}

		var rle *RateLimitedError
		var te *TransientError
		switch {
		case errors.As(err, &rle):
			rateWaits++
			if c.policy.MaxRateLimitWaits > 0 && rateWaits > c.policy.MaxRateLimitWaits {
				return nil, err
			}
			if c.log != nil {
				c.log.Warn(ctx, "rate limited, waiting",
					"resource", req.Resource, "retry_after", rle.RetryAfter)
			}
			if serr := c.sleep(ctx, rle.RetryAfter); serr != nil {
				return nil, err
			}

		case errors.As(err, &te):
			attempts++
			if attempts >= c.policy.MaxAttempts {
				return nil, err
			}
			wait, stop := schedule.Next()
			if stop {
				return nil, err
			}
			if c.log != nil {
				c.log.Warn(ctx, "transient failure, retrying",
					"resource", req.Resource, "attempt", attempts, "wait", wait, "error", err)
			}
			if serr := c.sleep(ctx, wait); serr != nil {
				return nil, err
			}

		default:
			return nil, err
		}

		if ctx.Err() != nil {
			return nil, err
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, req PageRequest) (*Page, error) {
	u, err := url.Parse(fmt.Sprintf("%s/%s/", c.baseURL, req.Resource))
	if err != nil {
		return nil, fmt.Errorf("bad base url: %w", err)
	}

	q := u.Query()
	q.Set("page_size", strconv.Itoa(c.pageSize))
	if !req.UpdatedAfter.IsZero() {
		q.Set("updated__gt", req.UpdatedAfter.UTC().Format(time.RFC3339))
	}
	if req.PageCursor != "" {
		q.Set("page_cursor", req.PageCursor)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+c.token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("http %d: %w", resp.StatusCode, common.ErrUnauthorized)

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitedError{RetryAfter: c.retryAfter(resp)}

	case resp.StatusCode >= 500:
		return nil, &TransientError{Status: resp.StatusCode}

	default:
		return nil, &MalformedResponseError{Err: fmt.Errorf("unexpected http %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	var payload pagePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}

	return &Page{
		Count:      payload.Count,
		NextCursor: payload.NextCursor,
		Results:    payload.Results,
	}, nil
}

// retryAfter reads the Retry-After header, falling back to the policy
// default when absent or unparsable.
func (c *Client) retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return c.policy.DefaultRetryAfter
	}
	secs, err := strconv.Atoi(h)
	if err != nil || secs < 0 {
		return c.policy.DefaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
