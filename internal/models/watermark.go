package models

import "time"

// Watermark records how far a sync scope has progressed.
//
// Lifecycle: absent (never synced) → advancing monotonically → persisted
// until a full resync explicitly resets it to absent. It advances only in
// the same transaction that commits a page of records, so a crash can never
// separate "records written" from "watermark advanced".
type Watermark struct {
	// Scope identifies the resource kind, e.g. "books" or "highlights".
	Scope string

	// UpdatedAfter is the incremental-fetch floor for the next run. It is
	// set to the start time of a run only when that run walks the whole
	// collection to the end, and is zero before the first completed run.
	UpdatedAfter time.Time

	// PageCursor is the opaque resume cursor of a crawl that is still
	// mid-collection. Empty once a run reaches the final page.
	PageCursor string

	// CrawlStartedAt is when the crawl holding PageCursor began. A
	// resumed crawl uses it as the eventual incremental floor, so changes
	// made while the crawl was interrupted are not lost. Zero between
	// crawls.
	CrawlStartedAt time.Time

	// AdvancedAt is when the watermark last moved.
	AdvancedAt time.Time
}

// IsZero reports whether the watermark carries no position at all,
// i.e. the scope has never completed any page.
func (w Watermark) IsZero() bool {
	return w.UpdatedAfter.IsZero() && w.PageCursor == ""
}
