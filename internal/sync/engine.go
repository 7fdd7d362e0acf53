// Package sync walks the remote collections page by page and mirrors them
// into the local store. One run is sequential: scopes in order, pages in
// order, each page committed atomically together with the watermark that
// makes it durable. Cancellation and deadline checks happen only at page
// boundaries, so a stopped run never leaves a torn page behind.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/readstash/readstash/internal/common"
	"github.com/readstash/readstash/internal/logging"
	"github.com/readstash/readstash/internal/models"
	"github.com/readstash/readstash/internal/normalize"
	"github.com/readstash/readstash/internal/readwise"
	"github.com/readstash/readstash/internal/store"
)

// Fetcher retrieves one page of a remote collection. The readwise client
// satisfies it; tests substitute scripted fakes.
type Fetcher interface {
	FetchPage(ctx context.Context, req readwise.PageRequest) (*readwise.Page, error)
}

// Store is the slice of the local store the engine needs.
type Store interface {
	Watermark(ctx context.Context, scope string) (*models.Watermark, error)
	ResetWatermark(ctx context.Context, scope string) error
	CommitPage(ctx context.Context, w store.PageWrite) (store.CommitResult, error)
	BeginBatch(ctx context.Context, scope string, startedAt time.Time) (int64, error)
	FinishBatch(ctx context.Context, b *models.Batch) error
}

// DefaultScopes is the order a full run walks the collections: parents
// before children, so freshly fetched highlights rarely land orphaned.
var DefaultScopes = []readwise.Resource{readwise.ResourceBooks, readwise.ResourceHighlights}

// Engine drives sync runs. It is safe for concurrent use, but only one run
// executes at a time: a second Run while one is active fails fast with
// ErrSyncInProgress.
type Engine struct {
	fetcher Fetcher
	store   Store
	log     logging.Logger
	events  EventSink

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	ceiling time.Duration

	commitRetries int
	commitBackoff time.Duration
	strict        bool

	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvents installs a progress sink.
func WithEvents(s EventSink) Option { return func(e *Engine) { e.events = s } }

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithSleep substitutes the commit-retry sleeper, for tests.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = f }
}

// WithRunCeiling caps a run's duration. When the ceiling passes, the run
// stops at the next page boundary and reports partial. Zero means no cap.
func WithRunCeiling(d time.Duration) Option { return func(e *Engine) { e.ceiling = d } }

// WithCommitRetries sets how many times a failed page commit is re-attempted
// before the run gives up.
func WithCommitRetries(n int) Option { return func(e *Engine) { e.commitRetries = n } }

// WithStrict makes any invalid record abort the page instead of being
// skipped and counted.
func WithStrict(strict bool) Option { return func(e *Engine) { e.strict = strict } }

// NewEngine wires a sync engine over a fetcher and a store.
func NewEngine(f Fetcher, s Store, log logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		fetcher:       f,
		store:         s,
		log:           log,
		events:        NopSink{},
		now:           time.Now,
		commitRetries: 2,
		commitBackoff: 500 * time.Millisecond,
	}
	e.sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run syncs the given scopes in order. With full=true each scope's watermark
// is discarded first, so the whole collection is re-fetched; local
// augmentations survive either way.
//
// Run always returns a report describing what actually happened. Pages
// committed before a failure stay committed; the returned error, if any, is
// the failure that stopped the run.
func (e *Engine) Run(ctx context.Context, scopes []readwise.Resource, full bool) (*Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, common.ErrSyncInProgress
	}
	defer e.running.Store(false)

	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	deadline := time.Time{}
	if e.ceiling > 0 {
		deadline = e.now().Add(e.ceiling)
	}

	report := &Report{}
	var firstErr error
	for _, res := range scopes {
		sr, err := e.runScope(ctx, res, full, deadline)
		report.merge(sr)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		// A hard failure in one scope does not stop the others unless the
		// context itself is gone.
		if ctx.Err() != nil {
			break
		}
	}
	return report, firstErr
}

func (e *Engine) runScope(ctx context.Context, res readwise.Resource, full bool, deadline time.Time) (ScopeReport, error) {
	scope := res.Scope()
	sr := ScopeReport{Scope: scope}
	runStart := e.now().UTC()

	if full {
		if err := e.store.ResetWatermark(ctx, scope); err != nil {
			return e.fail(sr, "reset watermark", err)
		}
	}

	prev, err := e.store.Watermark(ctx, scope)
	if err != nil {
		return e.fail(sr, "read watermark", err)
	}
	var base models.Watermark
	if prev != nil {
		base = *prev
	}

	batchID, err := e.store.BeginBatch(ctx, scope, runStart)
	if err != nil {
		return e.fail(sr, "begin batch", err)
	}

	req := readwise.PageRequest{
		Resource:     res,
		UpdatedAfter: base.UpdatedAfter,
		PageCursor:   base.PageCursor,
	}
	// The incremental floor for when this crawl completes. A resumed crawl
	// keeps the interrupted crawl's start, so nothing changed in between
	// slips under the floor.
	crawlStart := runStart
	if base.PageCursor != "" && !base.CrawlStartedAt.IsZero() {
		crawlStart = base.CrawlStartedAt
		e.log.Info(ctx, "resuming interrupted crawl", "scope", scope, "cursor", base.PageCursor)
	}

	var lastCommit time.Time
	for {
		if err := ctx.Err(); err != nil {
			sr.Status = StatusPartial
			sr.Reason = "cancelled"
			e.finishBatch(scope, batchID, runStart, lastCommit, sr)
			e.events.RunFailed(scope, sr.Reason, err)
			return sr, err
		}
		if !deadline.IsZero() && !e.now().Before(deadline) {
			sr.Status = StatusPartial
			sr.Reason = "run ceiling reached"
			e.finishBatch(scope, batchID, runStart, lastCommit, sr)
			e.events.RunCompleted(scope, sr)
			return sr, nil
		}

		page, err := e.fetcher.FetchPage(ctx, req)
		if err != nil {
			return e.failRun(sr, scope, batchID, runStart, lastCommit, fetchReason(err), err)
		}
		sr.Pages++
		sr.Fetched += len(page.Results)
		e.events.PageFetched(scope, sr.Pages, len(page.Results))

		recs, err := normalize.Records(res, page.Results, e.strict)
		if err != nil {
			return e.failRun(sr, scope, batchID, runStart, lastCommit, "invalid record", err)
		}
		sr.Skipped += recs.Skipped
		for _, rej := range recs.Rejects {
			e.log.Warn(ctx, "record skipped", "scope", scope, "id", rej.ID, "fields", rej.Fields)
		}

		next := models.Watermark{
			Scope:          scope,
			UpdatedAfter:   base.UpdatedAfter,
			PageCursor:     page.NextCursor,
			CrawlStartedAt: crawlStart,
			AdvancedAt:     e.now().UTC(),
		}
		if page.NextCursor == "" {
			// Final page: the collection as of the crawl's start is fully
			// local, so the next incremental run only needs changes after
			// that.
			next.UpdatedAfter = crawlStart
			next.CrawlStartedAt = time.Time{}
		}

		cres, err := e.commitWithRetry(ctx, store.PageWrite{
			Books:         recs.Books,
			BookTags:      recs.BookTags,
			Highlights:    recs.Highlights,
			HighlightTags: recs.HighlightTags,
			Watermark:     next,
			BatchID:       batchID,
		})
		if err != nil {
			return e.failRun(sr, scope, batchID, runStart, lastCommit, "page commit failed", err)
		}
		lastCommit = e.now().UTC()
		sr.Upserted += cres.Upserted
		sr.Versioned += cres.Versioned
		sr.Unchanged += cres.Unchanged
		sr.Watermark = &next
		e.events.PageCommitted(scope, sr.Pages, cres, next)

		if page.NextCursor == "" {
			break
		}
		req.PageCursor = page.NextCursor
	}

	sr.Status = StatusSucceeded
	e.finishBatch(scope, batchID, runStart, lastCommit, sr)
	e.events.RunCompleted(scope, sr)
	return sr, nil
}

// commitWithRetry re-attempts a failed page commit a bounded number of
// times. Only store-level commit failures are retried; anything else is a
// bug and surfaces immediately.
func (e *Engine) commitWithRetry(ctx context.Context, w store.PageWrite) (store.CommitResult, error) {
	var lastErr error
	for attempt := 0; attempt <= e.commitRetries; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.commitBackoff); err != nil {
				return store.CommitResult{}, err
			}
			e.log.Warn(ctx, "retrying page commit", "attempt", attempt+1, "error", lastErr)
		}
		res, err := e.store.CommitPage(ctx, w)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, common.ErrCommitFailed) {
			return store.CommitResult{}, err
		}
		lastErr = err
	}
	return store.CommitResult{}, lastErr
}

func (e *Engine) fail(sr ScopeReport, what string, err error) (ScopeReport, error) {
	sr.Status = StatusFailed
	sr.Reason = what
	e.events.RunFailed(sr.Scope, what, err)
	return sr, fmt.Errorf("%s %s: %w", sr.Scope, what, err)
}

// failRun finalizes the batch row before reporting, so an aborted run still
// leaves an honest audit trail. Pages committed so far stay committed.
func (e *Engine) failRun(sr ScopeReport, scope string, batchID int64, runStart, lastCommit time.Time, reason string, err error) (ScopeReport, error) {
	// Partial means the watermark advanced: at least one page committed,
	// even if every record on it was empty or unchanged.
	if sr.Watermark != nil {
		sr.Status = StatusPartial
	} else {
		sr.Status = StatusFailed
	}
	sr.Reason = reason
	e.finishBatch(scope, batchID, runStart, lastCommit, sr)
	e.events.RunFailed(scope, reason, err)
	return sr, fmt.Errorf("%s: %s: %w", scope, reason, err)
}

func (e *Engine) finishBatch(scope string, batchID int64, runStart, lastCommit time.Time, sr ScopeReport) {
	status := models.BatchSucceeded
	switch sr.Status {
	case StatusPartial:
		status = models.BatchPartial
	case StatusFailed:
		status = models.BatchFailed
	}
	// Finalize with the background context: the run's context may already be
	// cancelled, and the audit row should land regardless.
	ctx := context.Background()
	err := e.store.FinishBatch(ctx, &models.Batch{
		ID:        batchID,
		Scope:     scope,
		StartedAt: runStart,
		EndedAt:   e.now().UTC(),
		WriteTime: lastCommit,
		Pages:     sr.Pages,
		Upserted:  sr.Upserted,
		Skipped:   sr.Skipped,
		Status:    status,
	})
	if err != nil {
		e.log.Error(ctx, "finalize batch", "scope", scope, "batch", batchID, "error", err)
	}
}

func fetchReason(err error) string {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, common.ErrMalformedResponse):
		return "malformed response"
	case errors.Is(err, common.ErrTransient):
		return "retries exhausted"
	default:
		return "fetch failed"
	}
}
