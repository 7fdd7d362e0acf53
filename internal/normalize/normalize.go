// Package normalize maps raw remote payloads into validated domain records.
//
// Validation happens in two grades, the way the upstream data demands:
// a record missing its identity (or undecodable as JSON) is rejected and
// skipped; a record with a fixable defect — unparseable timestamp, missing
// optional field — is coerced, kept, and flagged with Validated=false plus
// per-field reasons, so nothing silently disappears from the mirror.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/readstash/readstash/internal/models"
	"github.com/readstash/readstash/internal/readwise"
)

// ValidationError describes why a single raw record was rejected. It never
// aborts a page unless strict mode is on.
type ValidationError struct {
	Resource string
	ID       int64
	Fields   map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, reason := range e.Fields {
		parts = append(parts, f+": "+reason)
	}
	return fmt.Sprintf("invalid %s record (id=%d): %s", e.Resource, e.ID, strings.Join(parts, "; "))
}

// PageRecords is the normalized output for one fetched page. Books may
// carry nested highlights on the wire; those are flattened here with the
// parent id stamped on, so the store only ever sees flat records.
type PageRecords struct {
	Books         []*models.Book
	BookTags      []models.BookTag
	Highlights    []*models.Highlight
	HighlightTags []models.HighlightTag

	// Skipped counts rejected raw records. Rejects holds their reasons.
	Skipped int
	Rejects []*ValidationError
}

// Records normalizes a page of raw payloads for the given resource.
//
// With strict=false (the default policy) invalid records are skipped and
// counted. With strict=true the first rejection is returned as an error and
// the page must not be committed.
func Records(resource readwise.Resource, raws []json.RawMessage, strict bool) (*PageRecords, error) {
	out := &PageRecords{}

	for _, raw := range raws {
		var verr *ValidationError
		switch resource {
		case readwise.ResourceBooks:
			verr = appendBook(out, raw)
		case readwise.ResourceHighlights:
			verr = appendHighlight(out, raw, 0)
		default:
			return nil, fmt.Errorf("unknown resource %q", resource)
		}
		if verr != nil {
			if strict {
				return nil, verr
			}
			out.Skipped++
			out.Rejects = append(out.Rejects, verr)
		}
	}

	return out, nil
}

type bookPayload struct {
	UserBookID    int64  `json:"user_book_id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	ReadableTitle string `json:"readable_title"`
	Source        string `json:"source"`
	Category      string `json:"category"`
	CoverImageURL string `json:"cover_image_url"`
	SourceURL     string `json:"source_url"`
	ReadwiseURL   string `json:"readwise_url"`
	UniqueURL     string `json:"unique_url"`
	ExternalID    string `json:"external_id"`
	ASIN          string `json:"asin"`
	Summary       string `json:"summary"`
	DocumentNote  string `json:"document_note"`
	IsDeleted     bool   `json:"is_deleted"`

	BookTags   json.RawMessage   `json:"book_tags"`
	Highlights []json.RawMessage `json:"highlights"`
}

type highlightPayload struct {
	ID            int64  `json:"id"`
	BookID        int64  `json:"book_id"`
	Text          string `json:"text"`
	Note          string `json:"note"`
	Location      int64  `json:"location"`
	LocationType  string `json:"location_type"`
	EndLocation   int64  `json:"end_location"`
	Color         string `json:"color"`
	URL           string `json:"url"`
	ReadwiseURL   string `json:"readwise_url"`
	ExternalID    string `json:"external_id"`
	HighlightedAt string `json:"highlighted_at"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	IsFavorite    bool   `json:"is_favorite"`
	IsDiscard     bool   `json:"is_discard"`
	IsDeleted     bool   `json:"is_deleted"`

	Tags json.RawMessage `json:"tags"`
}

type tagPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func appendBook(out *PageRecords, raw json.RawMessage) *ValidationError {
	var p bookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return &ValidationError{Resource: "book", Fields: map[string]string{"_": err.Error()}}
	}
	if p.UserBookID <= 0 {
		return &ValidationError{Resource: "book", Fields: map[string]string{
			"user_book_id": "missing or non-positive identifier",
		}}
	}

	b := &models.Book{
		UserBookID:       p.UserBookID,
		Title:            p.Title,
		Author:           p.Author,
		ReadableTitle:    p.ReadableTitle,
		Source:           p.Source,
		Category:         p.Category,
		CoverImageURL:    p.CoverImageURL,
		SourceURL:        p.SourceURL,
		ReadwiseURL:      p.ReadwiseURL,
		UniqueURL:        p.UniqueURL,
		ExternalID:       p.ExternalID,
		ASIN:             p.ASIN,
		Summary:          p.Summary,
		DocumentNote:     p.DocumentNote,
		IsDeleted:        p.IsDeleted,
		Validated:        true,
		ValidationErrors: map[string]string{},
	}
	if p.Title == "" && p.ReadableTitle == "" {
		flag(b.ValidationErrors, &b.Validated, "title", "book has no title")
	}

	for _, tp := range decodeTags(p.BookTags, "book_tags", b.ValidationErrors, &b.Validated) {
		out.BookTags = append(out.BookTags, models.BookTag{
			ID:         tp.ID,
			Name:       tp.Name,
			UserBookID: p.UserBookID,
		})
	}

	out.Books = append(out.Books, b)

	// Export-shaped payloads nest highlights under the book. Flatten them
	// with the parent id stamped on; a bad nested highlight is rejected
	// individually, same as a top-level one.
	for _, rawH := range p.Highlights {
		if verr := appendHighlight(out, rawH, p.UserBookID); verr != nil {
			out.Skipped++
			out.Rejects = append(out.Rejects, verr)
		}
	}

	return nil
}

func appendHighlight(out *PageRecords, raw json.RawMessage, parentBookID int64) *ValidationError {
	var p highlightPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return &ValidationError{Resource: "highlight", Fields: map[string]string{"_": err.Error()}}
	}
	if p.ID <= 0 {
		return &ValidationError{Resource: "highlight", Fields: map[string]string{
			"id": "missing or non-positive identifier",
		}}
	}

	h := &models.Highlight{
		ID:               p.ID,
		BookID:           p.BookID,
		Text:             p.Text,
		Note:             p.Note,
		Location:         p.Location,
		LocationType:     p.LocationType,
		EndLocation:      p.EndLocation,
		Color:            p.Color,
		URL:              p.URL,
		ReadwiseURL:      p.ReadwiseURL,
		ExternalID:       p.ExternalID,
		IsFavorite:       p.IsFavorite,
		IsDiscard:        p.IsDiscard,
		IsDeleted:        p.IsDeleted,
		Validated:        true,
		ValidationErrors: map[string]string{},
	}

	// A nested highlight must agree with its parent book; the parent wins.
	if parentBookID > 0 && p.BookID != parentBookID {
		if p.BookID != 0 {
			flag(h.ValidationErrors, &h.Validated, "book_id",
				fmt.Sprintf("book_id %d does not match parent book %d", p.BookID, parentBookID))
		}
		h.BookID = parentBookID
	}
	if h.BookID <= 0 {
		return &ValidationError{Resource: "highlight", ID: p.ID, Fields: map[string]string{
			"book_id": "missing parent book reference",
		}}
	}

	if p.Text == "" {
		flag(h.ValidationErrors, &h.Validated, "text", "highlight has no text")
	}

	h.HighlightedAt = parseTime(p.HighlightedAt, "highlighted_at", h.ValidationErrors, &h.Validated)
	h.CreatedAt = parseTime(p.CreatedAt, "created_at", h.ValidationErrors, &h.Validated)
	h.UpdatedAt = parseTime(p.UpdatedAt, "updated_at", h.ValidationErrors, &h.Validated)

	for _, tp := range decodeTags(p.Tags, "tags", h.ValidationErrors, &h.Validated) {
		out.HighlightTags = append(out.HighlightTags, models.HighlightTag{
			ID:          tp.ID,
			Name:        tp.Name,
			HighlightID: p.ID,
		})
	}

	out.Highlights = append(out.Highlights, h)
	return nil
}

// decodeTags tolerates a missing or non-list tags field: the record keeps an
// empty tag set and is flagged, matching the skip-nothing-fixable policy.
func decodeTags(raw json.RawMessage, field string, errs map[string]string, validated *bool) []tagPayload {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var tags []tagPayload
	if err := json.Unmarshal(raw, &tags); err != nil {
		flag(errs, validated, field, "field is not a list of tags")
		return nil
	}
	out := tags[:0]
	for _, tp := range tags {
		if tp.ID <= 0 {
			flag(errs, validated, field, "tag without identifier dropped")
			continue
		}
		out = append(out, tp)
	}
	return out
}

// timeLayouts covers the timestamp shapes the remote service emits: RFC3339
// with and without fractional seconds, and naive local-less stamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseTime(s, field string, errs map[string]string, validated *bool) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	flag(errs, validated, field, fmt.Sprintf("unparseable timestamp %q", s))
	return time.Time{}
}

func flag(errs map[string]string, validated *bool, field, reason string) {
	errs[field] = reason
	*validated = false
}
