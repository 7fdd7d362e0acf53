package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readstash/readstash/internal/readwise"
)

func raws(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}

func TestRecords_ValidHighlight(t *testing.T) {
	got, err := Records(readwise.ResourceHighlights, raws(`{
		"id": 11,
		"book_id": 5,
		"text": "The map is not the territory.",
		"note": "korzybski",
		"location": 1042,
		"location_type": "location",
		"color": "yellow",
		"highlighted_at": "2026-01-15T08:30:00Z",
		"updated_at": "2026-01-16T09:00:00.123456Z",
		"is_favorite": true,
		"tags": [{"id": 3, "name": "thinking"}]
	}`), false)
	require.NoError(t, err)

	require.Len(t, got.Highlights, 1)
	h := got.Highlights[0]
	assert.Equal(t, int64(11), h.ID)
	assert.Equal(t, int64(5), h.BookID)
	assert.True(t, h.Validated)
	assert.Empty(t, h.ValidationErrors)
	assert.True(t, h.IsFavorite)
	assert.Equal(t, time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC), h.HighlightedAt)

	require.Len(t, got.HighlightTags, 1)
	assert.Equal(t, int64(3), got.HighlightTags[0].ID)
	assert.Equal(t, "thinking", got.HighlightTags[0].Name)
	assert.Equal(t, int64(11), got.HighlightTags[0].HighlightID)
	assert.Zero(t, got.Skipped)
}

func TestRecords_MissingIdentifierIsSkippedNotFatal(t *testing.T) {
	got, err := Records(readwise.ResourceHighlights, raws(
		`{"book_id": 5, "text": "no id"}`,
		`{"id": 12, "book_id": 5, "text": "fine"}`,
	), false)
	require.NoError(t, err)

	assert.Equal(t, 1, got.Skipped)
	require.Len(t, got.Rejects, 1)
	assert.Contains(t, got.Rejects[0].Fields, "id")
	require.Len(t, got.Highlights, 1)
	assert.Equal(t, int64(12), got.Highlights[0].ID)
}

func TestRecords_StrictModeAborts(t *testing.T) {
	_, err := Records(readwise.ResourceHighlights, raws(
		`{"book_id": 5, "text": "no id"}`,
	), true)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "highlight", verr.Resource)
}

func TestRecords_CoercibleDefectsAreKeptAndFlagged(t *testing.T) {
	got, err := Records(readwise.ResourceHighlights, raws(`{
		"id": 13,
		"book_id": 5,
		"text": "",
		"updated_at": "yesterday-ish",
		"tags": "oops"
	}`), false)
	require.NoError(t, err)

	require.Len(t, got.Highlights, 1)
	h := got.Highlights[0]
	assert.False(t, h.Validated)
	assert.Contains(t, h.ValidationErrors, "text")
	assert.Contains(t, h.ValidationErrors, "updated_at")
	assert.Contains(t, h.ValidationErrors, "tags")
	assert.True(t, h.UpdatedAt.IsZero())
	assert.Zero(t, got.Skipped, "coercible records are not skipped")
}

func TestRecords_NaiveTimestampAccepted(t *testing.T) {
	got, err := Records(readwise.ResourceHighlights, raws(`{
		"id": 14, "book_id": 5, "text": "x",
		"created_at": "2024-11-09T10:15:38.428687"
	}`), false)
	require.NoError(t, err)
	h := got.Highlights[0]
	assert.True(t, h.Validated)
	assert.Equal(t, 2024, h.CreatedAt.Year())
}

func TestRecords_BookWithNestedHighlightsIsFlattened(t *testing.T) {
	got, err := Records(readwise.ResourceBooks, raws(`{
		"user_book_id": 7,
		"title": "Thinking in Systems",
		"author": "Donella Meadows",
		"category": "books",
		"book_tags": [{"id": 21, "name": "systems"}],
		"highlights": [
			{"id": 31, "book_id": 7, "text": "stocks and flows", "tags": [{"id": 41, "name": "models"}]},
			{"id": 32, "book_id": 999, "text": "wrong parent gets corrected"},
			{"text": "nested without id is rejected"}
		]
	}`), false)
	require.NoError(t, err)

	require.Len(t, got.Books, 1)
	assert.Equal(t, int64(7), got.Books[0].UserBookID)
	assert.True(t, got.Books[0].Validated)

	require.Len(t, got.BookTags, 1)
	assert.Equal(t, int64(7), got.BookTags[0].UserBookID)

	require.Len(t, got.Highlights, 2)
	assert.Equal(t, int64(7), got.Highlights[0].BookID)

	// The mismatched child is kept, repointed at the parent, and flagged.
	fixed := got.Highlights[1]
	assert.Equal(t, int64(7), fixed.BookID)
	assert.False(t, fixed.Validated)
	assert.Contains(t, fixed.ValidationErrors, "book_id")

	require.Len(t, got.HighlightTags, 1)
	assert.Equal(t, int64(31), got.HighlightTags[0].HighlightID)

	assert.Equal(t, 1, got.Skipped, "nested highlight without id is skipped")
}

func TestRecords_BookWithoutTitleFlagged(t *testing.T) {
	got, err := Records(readwise.ResourceBooks, raws(`{"user_book_id": 8}`), false)
	require.NoError(t, err)
	require.Len(t, got.Books, 1)
	assert.False(t, got.Books[0].Validated)
	assert.Contains(t, got.Books[0].ValidationErrors, "title")
}

func TestRecords_UndecodableRecordIsSkipped(t *testing.T) {
	got, err := Records(readwise.ResourceBooks, raws(`[1,2,3]`, `{"user_book_id": 9, "title": "ok"}`), false)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Skipped)
	require.Len(t, got.Books, 1)
}
