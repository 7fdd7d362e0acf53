package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readstash/readstash/internal/common"
	"github.com/readstash/readstash/internal/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testBook(id int64) *models.Book {
	return &models.Book{
		UserBookID:       id,
		Title:            "Thinking in Systems",
		Author:           "Donella Meadows",
		Category:         "books",
		Validated:        true,
		ValidationErrors: map[string]string{},
	}
}

func testHighlight(id, bookID int64) *models.Highlight {
	return &models.Highlight{
		ID:               id,
		BookID:           bookID,
		Text:             "A system is more than the sum of its parts.",
		UpdatedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Validated:        true,
		ValidationErrors: map[string]string{},
	}
}

func wm(scope, cursor string) models.Watermark {
	return models.Watermark{
		Scope:      scope,
		PageCursor: cursor,
		AdvancedAt: time.Now().UTC(),
	}
}

func count(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestCommitPage_InsertThenIdempotentRecommit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	page := PageWrite{
		Books:      []*models.Book{testBook(7)},
		Highlights: []*models.Highlight{testHighlight(31, 7)},
		HighlightTags: []models.HighlightTag{
			{ID: 41, Name: "systems", HighlightID: 31},
		},
		Watermark: wm("highlights", "cur-1"),
		BatchID:   1,
	}

	res, err := s.CommitPage(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	assert.Zero(t, res.Versioned)

	// Same page again: nothing changes, nothing is versioned.
	res, err = s.CommitPage(ctx, page)
	require.NoError(t, err)
	assert.Zero(t, res.Upserted)
	assert.Equal(t, 2, res.Unchanged)

	assert.Equal(t, 1, count(t, s, "books"))
	assert.Equal(t, 1, count(t, s, "highlights"))
	assert.Equal(t, 1, count(t, s, "highlight_tags"))
	assert.Equal(t, 0, count(t, s, "highlight_versions"))
}

func TestCommitPage_UpdateVersionsPriorState(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	h := testHighlight(31, 7)
	_, err := s.CommitPage(ctx, PageWrite{
		Books:      []*models.Book{testBook(7)},
		Highlights: []*models.Highlight{h},
		Watermark:  wm("highlights", "cur-1"),
		BatchID:    1,
	})
	require.NoError(t, err)

	changed := testHighlight(31, 7)
	changed.Text = "Purposes are deduced from behavior, not from rhetoric."
	changed.UpdatedAt = h.UpdatedAt.Add(time.Hour)

	res, err := s.CommitPage(ctx, PageWrite{
		Highlights: []*models.Highlight{changed},
		Watermark:  wm("highlights", "cur-2"),
		BatchID:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.Equal(t, 1, res.Versioned)

	// The live row holds the new text, the version table the old.
	var text string
	require.NoError(t, s.db.QueryRow(`SELECT text FROM highlights WHERE id = 31`).Scan(&text))
	assert.Equal(t, changed.Text, text)

	var oldText string
	var version int
	require.NoError(t, s.db.QueryRow(
		`SELECT text, version FROM highlight_versions WHERE id = 31`).Scan(&oldText, &version))
	assert.Equal(t, h.Text, oldText)
	assert.Equal(t, 1, version)
}

func TestCommitPage_PreservesLocalAugmentation(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.CommitPage(ctx, PageWrite{
		Books:      []*models.Book{testBook(7)},
		Highlights: []*models.Highlight{testHighlight(31, 7)},
		Watermark:  wm("highlights", "cur-1"),
		BatchID:    1,
	})
	require.NoError(t, err)

	require.NoError(t, s.SaveAugmentation(ctx, &models.Augmentation{
		HighlightID: 31,
		Note:        "my note",
		Tags:        []string{"keep-me"},
	}))

	// Re-sync with updated remote text.
	changed := testHighlight(31, 7)
	changed.Text = "updated remote text"
	_, err = s.CommitPage(ctx, PageWrite{
		Highlights: []*models.Highlight{changed},
		Watermark:  wm("highlights", "cur-2"),
		BatchID:    2,
	})
	require.NoError(t, err)

	a, err := s.Augmentation(ctx, 31)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "my note", a.Note)
	assert.Equal(t, []string{"keep-me"}, a.Tags)

	var text string
	require.NoError(t, s.db.QueryRow(`SELECT text FROM highlights WHERE id = 31`).Scan(&text))
	assert.Equal(t, "updated remote text", text)
}

func TestCommitPage_TagReplacementDropsStaleTags(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.CommitPage(ctx, PageWrite{
		Books:      []*models.Book{testBook(7)},
		Highlights: []*models.Highlight{testHighlight(31, 7)},
		HighlightTags: []models.HighlightTag{
			{ID: 41, Name: "old", HighlightID: 31},
		},
		Watermark: wm("highlights", "cur-1"),
	})
	require.NoError(t, err)

	changed := testHighlight(31, 7)
	changed.Text = "new text so the row updates"
	_, err = s.CommitPage(ctx, PageWrite{
		Highlights: []*models.Highlight{changed},
		HighlightTags: []models.HighlightTag{
			{ID: 42, Name: "new", HighlightID: 31},
		},
		Watermark: wm("highlights", "cur-2"),
	})
	require.NoError(t, err)

	var name string
	require.NoError(t, s.db.QueryRow(
		`SELECT name FROM highlight_tags WHERE highlight_id = 31`).Scan(&name))
	assert.Equal(t, "new", name)
	assert.Equal(t, 1, count(t, s, "highlight_tags"))
}

func TestCommitPage_TagRenameOnUnchangedRecordIsMirrored(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.CommitPage(ctx, PageWrite{
		Books:      []*models.Book{testBook(7)},
		Highlights: []*models.Highlight{testHighlight(31, 7)},
		HighlightTags: []models.HighlightTag{
			{ID: 41, Name: "old", HighlightID: 31},
		},
		Watermark: wm("highlights", "cur-1"),
	})
	require.NoError(t, err)

	// Same highlight, byte-identical; only the tag name changed remotely.
	res, err := s.CommitPage(ctx, PageWrite{
		Highlights: []*models.Highlight{testHighlight(31, 7)},
		HighlightTags: []models.HighlightTag{
			{ID: 41, Name: "renamed", HighlightID: 31},
		},
		Watermark: wm("highlights", "cur-2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged, "record itself is untouched")

	var name string
	require.NoError(t, s.db.QueryRow(
		`SELECT name FROM highlight_tags WHERE id = 41`).Scan(&name))
	assert.Equal(t, "renamed", name, "tags are remote-owned and follow every page")
}

func TestCommitPage_BookTagChangeOnUnchangedBookIsMirrored(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.CommitPage(ctx, PageWrite{
		Books:     []*models.Book{testBook(7)},
		BookTags:  []models.BookTag{{ID: 51, Name: "toread", UserBookID: 7}},
		Watermark: wm("books", "cur-1"),
	})
	require.NoError(t, err)

	_, err = s.CommitPage(ctx, PageWrite{
		Books:     []*models.Book{testBook(7)},
		BookTags:  []models.BookTag{{ID: 52, Name: "finished", UserBookID: 7}},
		Watermark: wm("books", "cur-2"),
	})
	require.NoError(t, err)

	var name string
	require.NoError(t, s.db.QueryRow(
		`SELECT name FROM book_tags WHERE user_book_id = 7`).Scan(&name))
	assert.Equal(t, "finished", name)
	assert.Equal(t, 1, count(t, s, "book_tags"))
}

func TestCommitPage_FullResyncRestoresLocallyDeletedRow(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	page := PageWrite{
		Books: []*models.Book{testBook(7)},
		Highlights: []*models.Highlight{
			testHighlight(31, 7),
			testHighlight(32, 7),
		},
		Watermark: wm("highlights", ""),
	}
	_, err := s.CommitPage(ctx, page)
	require.NoError(t, err)

	// Someone deletes a row out from under the mirror.
	_, err = s.db.Exec(`DELETE FROM highlights WHERE id = 31`)
	require.NoError(t, err)
	require.Equal(t, 1, count(t, s, "highlights"))

	// A full resync re-walks the collection and re-commits the same pages.
	require.NoError(t, s.ResetWatermark(ctx, "highlights"))
	res, err := s.CommitPage(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted, "deleted highlight re-inserted")
	assert.Equal(t, 2, res.Unchanged, "book and surviving highlight untouched")

	// The row is back and nothing was duplicated.
	assert.Equal(t, 2, count(t, s, "highlights"))
	assert.Equal(t, 1, count(t, s, "books"))
	var text string
	require.NoError(t, s.db.QueryRow(`SELECT text FROM highlights WHERE id = 31`).Scan(&text))
	assert.Equal(t, testHighlight(31, 7).Text, text)
}

func TestCommitPage_OrphanFlagSetAndCleared(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	// Highlight arrives before its parent book.
	_, err := s.CommitPage(ctx, PageWrite{
		Highlights: []*models.Highlight{testHighlight(31, 7)},
		Watermark:  wm("highlights", "cur-1"),
	})
	require.NoError(t, err)

	var orphaned bool
	require.NoError(t, s.db.QueryRow(`SELECT orphaned FROM highlights WHERE id = 31`).Scan(&orphaned))
	assert.True(t, orphaned, "highlight without a parent book must be flagged, not dropped")

	// Parent arrives later; the flag clears even though the highlight row
	// itself is unchanged in this page.
	_, err = s.CommitPage(ctx, PageWrite{
		Books:     []*models.Book{testBook(7)},
		Watermark: wm("books", "cur-1"),
	})
	require.NoError(t, err)

	require.NoError(t, s.db.QueryRow(`SELECT orphaned FROM highlights WHERE id = 31`).Scan(&orphaned))
	assert.False(t, orphaned)
}

func TestWatermark_LifecycleAndReset(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	w, err := s.Watermark(ctx, "highlights")
	require.NoError(t, err)
	assert.Nil(t, w, "never-synced scope has no watermark")

	_, err = s.CommitPage(ctx, PageWrite{
		Highlights: []*models.Highlight{testHighlight(31, 7)},
		Watermark: models.Watermark{
			Scope:        "highlights",
			UpdatedAfter: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			PageCursor:   "cur-9",
			AdvancedAt:   time.Now().UTC(),
		},
	})
	require.NoError(t, err)

	w, err = s.Watermark(ctx, "highlights")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "cur-9", w.PageCursor)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), w.UpdatedAfter)

	require.NoError(t, s.ResetWatermark(ctx, "highlights"))
	w, err = s.Watermark(ctx, "highlights")
	require.NoError(t, err)
	assert.Nil(t, w, "full resync puts the scope back to never-synced")
}

func TestSaveAugmentation_RequiresExistingHighlight(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := s.SaveAugmentation(ctx, &models.Augmentation{HighlightID: 999, Note: "dangling"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoSuchHighlight)
}

func TestDeleteAugmentation_IsExplicitAndIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.CommitPage(ctx, PageWrite{
		Highlights: []*models.Highlight{testHighlight(31, 7)},
		Watermark:  wm("highlights", ""),
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveAugmentation(ctx, &models.Augmentation{HighlightID: 31, Note: "n"}))

	require.NoError(t, s.DeleteAugmentation(ctx, 31))
	a, err := s.Augmentation(ctx, 31)
	require.NoError(t, err)
	assert.Nil(t, a)

	require.NoError(t, s.DeleteAugmentation(ctx, 31))
}

func TestBatches_BeginAndFinish(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Second)
	id, err := s.BeginBatch(ctx, "highlights", start)
	require.NoError(t, err)

	require.NoError(t, s.FinishBatch(ctx, &models.Batch{
		ID:       id,
		EndedAt:  start.Add(2 * time.Second),
		Pages:    3,
		Upserted: 40,
		Skipped:  1,
		Status:   models.BatchSucceeded,
	}))

	b, err := s.Batch(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "highlights", b.Scope)
	assert.Equal(t, models.BatchSucceeded, b.Status)
	assert.Equal(t, 3, b.Pages)
	assert.Equal(t, 40, b.Upserted)
	assert.Equal(t, 1, b.Skipped)

	recent, err := s.RecentBatches(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}
