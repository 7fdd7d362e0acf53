// Package models defines the domain records mirrored from the remote
// highlight service plus the local-only records layered on top.
//
// Remote-assigned identifiers are used as primary keys throughout, so
// upserts are keyed by identity and never by content. Fields split into two
// disjoint groups: remote-owned fields are overwritten on every sync, while
// local-owned fields (and the whole Augmentation record) are never touched
// by sync writes.
package models

// Book is the aggregate root the remote service groups highlights under.
// Despite the name it covers every source kind: articles, tweets, podcast
// episodes, videos. The category field tells them apart.
type Book struct {
	// UserBookID is the remote-assigned identifier. Stable, never reused.
	UserBookID int64

	Title         string
	Author        string
	ReadableTitle string

	// Source is the one-word origin, e.g. "kindle", "reader", "twitter".
	Source   string
	Category string

	CoverImageURL string
	SourceURL     string
	ReadwiseURL   string
	UniqueURL     string
	ExternalID    string
	ASIN          string

	Summary      string
	DocumentNote string

	// IsDeleted mirrors the remote deletion flag. Rows are never removed
	// locally because of it; downstream consumers filter.
	IsDeleted bool

	// Validated is false when the normalizer had to coerce or discard part
	// of the raw payload. ValidationErrors holds the per-field reasons.
	Validated        bool
	ValidationErrors map[string]string

	// BatchID links the sync batch that last wrote this row.
	BatchID int64
}

// BookTag is a remote-assigned tag on a Book. Tag ids are unique per
// application, names recur, so grouping happens by name.
type BookTag struct {
	ID         int64
	Name       string
	UserBookID int64
	BatchID    int64
}
