package readwise

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readstash/readstash/internal/common"
)

// noSleep records requested waits without actually sleeping.
func noSleep(slept *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		DefaultRetryAfter: 7 * time.Second,
		MaxRateLimitWaits: 2,
	}
}

func TestFetchPage_Success(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"count": 2,
			"next_page_cursor": "cur-2",
			"results": [{"id": 1}, {"id": 2}]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok123", WithRetryPolicy(testPolicy()))
	page, err := c.FetchPage(context.Background(), PageRequest{
		Resource:     ResourceHighlights,
		UpdatedAfter: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		PageCursor:   "cur-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Token tok123", gotAuth)
	assert.Contains(t, gotQuery, "page_cursor=cur-1")
	assert.Contains(t, gotQuery, "updated__gt=2026-02-01T12%3A00%3A00Z")
	assert.Equal(t, 2, page.Count)
	assert.Equal(t, "cur-2", page.NextCursor)
	assert.Len(t, page.Results, 2)
}

func TestFetchPage_LastPageHasEmptyCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 0, "next_page_cursor": "", "results": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", WithRetryPolicy(testPolicy()))
	page, err := c.FetchPage(context.Background(), PageRequest{Resource: ResourceBooks})
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	assert.Empty(t, page.Results)
}

func TestFetchPage_Unauthorized_NoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", WithRetryPolicy(testPolicy()))
	_, err := c.FetchPage(context.Background(), PageRequest{Resource: ResourceHighlights})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "unauthorized must not be retried")
}

func TestFetchPage_TransientRecoversWithinBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"count": 1, "next_page_cursor": "", "results": [{"id": 9}]}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := NewClient(srv.URL, "tok", WithRetryPolicy(testPolicy()), WithSleep(noSleep(&slept)))

	page, err := c.FetchPage(context.Background(), PageRequest{Resource: ResourceHighlights})
	require.NoError(t, err)
	assert.Len(t, page.Results, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, slept, 2, "two back-off waits expected")
}

func TestFetchPage_TransientExhaustsBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := NewClient(srv.URL, "tok", WithRetryPolicy(testPolicy()), WithSleep(noSleep(&slept)))

	_, err := c.FetchPage(context.Background(), PageRequest{Resource: ResourceBooks})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransient)

	var te *TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "MaxAttempts bounds total tries")
}

func TestFetchPage_RateLimited_HonoursRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"count": 0, "next_page_cursor": "", "results": []}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := NewClient(srv.URL, "tok", WithRetryPolicy(testPolicy()), WithSleep(noSleep(&slept)))

	_, err := c.FetchPage(context.Background(), PageRequest{Resource: ResourceHighlights})
	require.NoError(t, err)
	require.Len(t, slept, 1)
	assert.Equal(t, 3*time.Second, slept[0], "server-specified wait must win")
}

func TestFetchPage_RateLimited_DefaultWaitWhenHeaderMissing(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"count": 0, "next_page_cursor": "", "results": []}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := NewClient(srv.URL, "tok", WithRetryPolicy(testPolicy()), WithSleep(noSleep(&slept)))

	_, err := c.FetchPage(context.Background(), PageRequest{Resource: ResourceHighlights})
	require.NoError(t, err)
	require.Len(t, slept, 1)
	assert.Equal(t, 7*time.Second, slept[0])
}

func TestFetchPage_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", WithRetryPolicy(testPolicy()))
	_, err := c.FetchPage(context.Background(), PageRequest{Resource: ResourceBooks})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestFetchPage_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, "tok",
		WithRetryPolicy(testPolicy()),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}))

	_, err := c.FetchPage(ctx, PageRequest{Resource: ResourceHighlights})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransient, "original failure surfaces, not the cancellation")
}
