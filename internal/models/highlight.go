package models

import "time"

// Highlight is a single text excerpt saved by the user. All fields except
// Orphaned are remote-owned and overwritten on re-sync.
type Highlight struct {
	// ID is the remote-assigned identifier. Stable, never reused.
	ID int64

	// BookID references the parent Book (non-owning, by foreign key).
	BookID int64

	Text string

	// Note is the note attached on the remote service. Local notes live in
	// Augmentation and survive re-syncs independently.
	Note string

	// Location meaning depends on LocationType: kindle location, time
	// offset, page, order.
	Location     int64
	LocationType string
	EndLocation  int64

	Color       string
	URL         string
	ReadwiseURL string
	ExternalID  string

	HighlightedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	IsFavorite bool
	IsDiscard  bool
	IsDeleted  bool

	// Orphaned is local-owned: set by the store when the parent book is
	// absent from the local mirror, cleared when it appears. The row itself
	// is retained.
	Orphaned bool

	Validated        bool
	ValidationErrors map[string]string

	BatchID int64
}

// HighlightTag is a remote-assigned tag on a Highlight.
type HighlightTag struct {
	ID          int64
	Name        string
	HighlightID int64
	BatchID     int64
}
