package readwise

import (
	"encoding/json"
	"time"
)

// Resource is the remote collection a fetch targets.
type Resource string

const (
	ResourceBooks      Resource = "books"
	ResourceHighlights Resource = "highlights"
)

// Scope returns the string used to key the sync watermark for this resource.
func (r Resource) Scope() string { return string(r) }

// PageRequest addresses one page of a collection.
//
// UpdatedAfter narrows the fetch to records changed since that instant
// (incremental mode); the zero time means "from the beginning".
// PageCursor resumes a crawl mid-collection; empty means the first page.
type PageRequest struct {
	Resource     Resource
	UpdatedAfter time.Time
	PageCursor   string
}

// Page is one page of raw records in remote order. NextCursor is empty on
// the final page of the collection.
type Page struct {
	Count      int
	NextCursor string
	Results    []json.RawMessage
}

// pagePayload matches the wire shape of a paginated list response.
type pagePayload struct {
	Count      int               `json:"count"`
	NextCursor string            `json:"next_page_cursor"`
	Results    []json.RawMessage `json:"results"`
}
