package models

import "time"

// Augmentation is the local-only annotation attached to a synced highlight.
// It is owned entirely by this tool: sync never reads, writes, or uploads
// it. At most one augmentation exists per highlight.
//
// An augmentation must reference an existing highlight row. When the remote
// record disappears the augmentation stays until the user deletes it
// explicitly; there is no cascade.
type Augmentation struct {
	// ID is generated locally (uuid).
	ID string

	HighlightID int64

	// Note is the user's local note, independent of the remote note field.
	Note string

	// Tags are local tags, unrelated to the remote tag tables.
	Tags []string

	Pinned bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
