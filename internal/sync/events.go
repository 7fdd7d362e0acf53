package sync

import (
	"context"

	"github.com/readstash/readstash/internal/logging"
	"github.com/readstash/readstash/internal/models"
	"github.com/readstash/readstash/internal/store"
)

// EventSink receives progress notifications at page boundaries. Implementations
// must be cheap: the engine calls them synchronously between pages.
type EventSink interface {
	PageFetched(scope string, page int, records int)
	PageCommitted(scope string, page int, res store.CommitResult, w models.Watermark)
	RunCompleted(scope string, sr ScopeReport)
	RunFailed(scope string, reason string, err error)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) PageFetched(string, int, int)                                    {}
func (NopSink) PageCommitted(string, int, store.CommitResult, models.Watermark) {}
func (NopSink) RunCompleted(string, ScopeReport)                                {}
func (NopSink) RunFailed(string, string, error)                                 {}

// LogSink reports progress through the application logger.
type LogSink struct {
	Log logging.Logger
}

func (s LogSink) PageFetched(scope string, page int, records int) {
	s.Log.Debug(context.Background(), "page fetched",
		"scope", scope, "page", page, "records", records)
}

func (s LogSink) PageCommitted(scope string, page int, res store.CommitResult, w models.Watermark) {
	s.Log.Info(context.Background(), "page committed",
		"scope", scope, "page", page,
		"upserted", res.Upserted, "versioned", res.Versioned, "unchanged", res.Unchanged,
		"cursor", w.PageCursor)
}

func (s LogSink) RunCompleted(scope string, sr ScopeReport) {
	s.Log.Info(context.Background(), "sync completed",
		"scope", scope, "pages", sr.Pages, "upserted", sr.Upserted,
		"skipped", sr.Skipped, "status", sr.Status)
}

func (s LogSink) RunFailed(scope string, reason string, err error) {
	s.Log.Error(context.Background(), "sync failed",
		"scope", scope, "reason", reason, "error", err)
}
