package store

import (
	"context"
	"fmt"
	"time"

	"github.com/readstash/readstash/internal/common"
	"github.com/readstash/readstash/internal/dbx"
	"github.com/readstash/readstash/internal/models"
)

// PageWrite is everything one page commit carries: the normalized records
// and the watermark value that becomes durable with them.
type PageWrite struct {
	Books         []*models.Book
	BookTags      []models.BookTag
	Highlights    []*models.Highlight
	HighlightTags []models.HighlightTag

	Watermark models.Watermark
	BatchID   int64
}

// CommitResult reports what a page commit actually changed.
type CommitResult struct {
	// Upserted counts inserted plus updated records.
	Upserted int
	// Versioned counts prior record states snapshotted because an update
	// changed remote-owned fields.
	Versioned int
	// Unchanged counts records identical to the local row; they are left
	// untouched so repeat syncs write nothing.
	Unchanged int
}

// CommitPage applies one fetched page atomically: record upserts, version
// snapshots, tag replacement, orphan reconciliation, and the watermark
// advance all commit together or not at all. Any failure rolls the whole
// page back and surfaces as a StoreCommitFailure for the engine to retry.
func (s *Store) CommitPage(ctx context.Context, w PageWrite) (CommitResult, error) {
	var res CommitResult
	now := timeToDB(time.Now())

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, b := range w.Books {
			cur, err := getBook(ctx, tx, b.UserBookID)
			if err != nil {
				return err
			}
			if cur != nil && remoteBookEqual(cur, b) {
				res.Unchanged++
			} else {
				if cur != nil {
					if err := versionBook(ctx, tx, cur, w.BatchID, now); err != nil {
						return err
					}
					res.Versioned++
				}
				if err := upsertBook(ctx, tx, b, w.BatchID); err != nil {
					return err
				}
				res.Upserted++
			}
			// Tags are remote-owned and can change independently of the
			// record's own columns, so they are reconciled every time the
			// record appears in a page.
			if err := replaceBookTags(ctx, tx, b.UserBookID, w.BookTags, w.BatchID); err != nil {
				return err
			}
		}

		highlightIDs := make([]int64, 0, len(w.Highlights))
		for _, h := range w.Highlights {
			highlightIDs = append(highlightIDs, h.ID)

			cur, err := getHighlight(ctx, tx, h.ID)
			if err != nil {
				return err
			}
			if cur != nil && remoteHighlightEqual(cur, h) {
				res.Unchanged++
			} else {
				if cur != nil {
					if err := versionHighlight(ctx, tx, cur, w.BatchID, now); err != nil {
						return err
					}
					res.Versioned++
				}
				if err := upsertHighlight(ctx, tx, h, w.BatchID); err != nil {
					return err
				}
				res.Upserted++
			}
			if err := replaceHighlightTags(ctx, tx, h.ID, w.HighlightTags, w.BatchID); err != nil {
				return err
			}
		}

		if err := refreshOrphans(ctx, tx, highlightIDs); err != nil {
			return err
		}

		return setWatermark(ctx, tx, w.Watermark)
	})
	if err != nil {
		return CommitResult{}, fmt.Errorf("%w: %v", common.ErrCommitFailed, err)
	}
	return res, nil
}

// replaceBookTags swaps a book's remote tag set for the one just fetched,
// so tags removed remotely disappear locally too.
func replaceBookTags(ctx context.Context, tx dbx.DBTX, bookID int64, tags []models.BookTag, batchID int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM book_tags WHERE user_book_id = ?`, bookID); err != nil {
		return fmt.Errorf("clear book tags %d: %w", bookID, err)
	}
	for _, t := range tags {
		if t.UserBookID != bookID {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO book_tags (id, name, user_book_id, batch_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				user_book_id = excluded.user_book_id,
				batch_id = excluded.batch_id`,
			t.ID, t.Name, t.UserBookID, batchID); err != nil {
			return fmt.Errorf("insert book tag %d: %w", t.ID, err)
		}
	}
	return nil
}

func replaceHighlightTags(ctx context.Context, tx dbx.DBTX, highlightID int64, tags []models.HighlightTag, batchID int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM highlight_tags WHERE highlight_id = ?`, highlightID); err != nil {
		return fmt.Errorf("clear highlight tags %d: %w", highlightID, err)
	}
	for _, t := range tags {
		if t.HighlightID != highlightID {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO highlight_tags (id, name, highlight_id, batch_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				highlight_id = excluded.highlight_id,
				batch_id = excluded.batch_id`,
			t.ID, t.Name, t.HighlightID, batchID); err != nil {
			return fmt.Errorf("insert highlight tag %d: %w", t.ID, err)
		}
	}
	return nil
}
