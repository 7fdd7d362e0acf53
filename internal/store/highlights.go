package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/readstash/readstash/internal/dbx"
	"github.com/readstash/readstash/internal/models"
)

const highlightColumns = `id, book_id, text, note, location, location_type,
	end_location, color, url, readwise_url, external_id, highlighted_at,
	created_at, updated_at, is_favorite, is_discard, is_deleted, orphaned,
	validated, validation_errors, batch_id`

func scanHighlight(row *sql.Row) (*models.Highlight, error) {
	var h models.Highlight
	var verrs, highlightedAt, createdAt, updatedAt string
	err := row.Scan(&h.ID, &h.BookID, &h.Text, &h.Note, &h.Location, &h.LocationType,
		&h.EndLocation, &h.Color, &h.URL, &h.ReadwiseURL, &h.ExternalID,
		&highlightedAt, &createdAt, &updatedAt, &h.IsFavorite, &h.IsDiscard,
		&h.IsDeleted, &h.Orphaned, &h.Validated, &verrs, &h.BatchID)
	if err != nil {
		return nil, err
	}
	h.HighlightedAt = timeFromDB(highlightedAt)
	h.CreatedAt = timeFromDB(createdAt)
	h.UpdatedAt = timeFromDB(updatedAt)
	h.ValidationErrors = errsFromDB(verrs)
	return &h, nil
}

func getHighlight(ctx context.Context, tx dbx.DBTX, id int64) (*models.Highlight, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+highlightColumns+` FROM highlights WHERE id = ?`, id)
	h, err := scanHighlight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get highlight %d: %w", id, err)
	}
	return h, nil
}

func remoteHighlightEqual(a, b *models.Highlight) bool {
	return a.BookID == b.BookID &&
		a.Text == b.Text &&
		a.Note == b.Note &&
		a.Location == b.Location &&
		a.LocationType == b.LocationType &&
		a.EndLocation == b.EndLocation &&
		a.Color == b.Color &&
		a.URL == b.URL &&
		a.ReadwiseURL == b.ReadwiseURL &&
		a.ExternalID == b.ExternalID &&
		a.HighlightedAt.Equal(b.HighlightedAt) &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.IsFavorite == b.IsFavorite &&
		a.IsDiscard == b.IsDiscard &&
		a.IsDeleted == b.IsDeleted &&
		a.Validated == b.Validated &&
		errsToDB(a.ValidationErrors) == errsToDB(b.ValidationErrors)
}

// upsertHighlight writes remote-owned columns only. The orphaned column is
// local-owned: it is set on insert and deliberately absent from the update
// list, the store recomputes it afterwards.
func upsertHighlight(ctx context.Context, tx dbx.DBTX, h *models.Highlight, batchID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO highlights (`+highlightColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			book_id = excluded.book_id,
			text = excluded.text,
			note = excluded.note,
			location = excluded.location,
			location_type = excluded.location_type,
			end_location = excluded.end_location,
			color = excluded.color,
			url = excluded.url,
			readwise_url = excluded.readwise_url,
			external_id = excluded.external_id,
			highlighted_at = excluded.highlighted_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_favorite = excluded.is_favorite,
			is_discard = excluded.is_discard,
			is_deleted = excluded.is_deleted,
			validated = excluded.validated,
			validation_errors = excluded.validation_errors,
			batch_id = excluded.batch_id`,
		h.ID, h.BookID, h.Text, h.Note, h.Location, h.LocationType,
		h.EndLocation, h.Color, h.URL, h.ReadwiseURL, h.ExternalID,
		timeToDB(h.HighlightedAt), timeToDB(h.CreatedAt), timeToDB(h.UpdatedAt),
		h.IsFavorite, h.IsDiscard, h.IsDeleted,
		h.Validated, errsToDB(h.ValidationErrors), batchID)
	if err != nil {
		return fmt.Errorf("upsert highlight %d: %w", h.ID, err)
	}
	return nil
}

func versionHighlight(ctx context.Context, tx dbx.DBTX, cur *models.Highlight, batchID int64, now string) error {
	var version int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM highlight_versions WHERE id = ?`, cur.ID)
	if err := row.Scan(&version); err != nil {
		return fmt.Errorf("next highlight version %d: %w", cur.ID, err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO highlight_versions (id, version, versioned_at, batch_id,
			book_id, text, note, location, location_type, end_location, color,
			url, readwise_url, external_id, highlighted_at, created_at,
			updated_at, is_favorite, is_discard, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cur.ID, version, now, batchID,
		cur.BookID, cur.Text, cur.Note, cur.Location, cur.LocationType,
		cur.EndLocation, cur.Color, cur.URL, cur.ReadwiseURL, cur.ExternalID,
		timeToDB(cur.HighlightedAt), timeToDB(cur.CreatedAt), timeToDB(cur.UpdatedAt),
		cur.IsFavorite, cur.IsDiscard, cur.IsDeleted)
	if err != nil {
		return fmt.Errorf("version highlight %d: %w", cur.ID, err)
	}
	return nil
}

// refreshOrphans recomputes the orphaned flag for the given highlights and
// clears it on any previously orphaned row whose parent book has since
// arrived.
func refreshOrphans(ctx context.Context, tx dbx.DBTX, ids []int64) error {
	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `
			UPDATE highlights
			SET orphaned = NOT EXISTS (
				SELECT 1 FROM books b WHERE b.user_book_id = highlights.book_id
			)
			WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("refresh orphan flag %d: %w", id, err)
		}
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE highlights
		SET orphaned = 0
		WHERE orphaned = 1
		  AND EXISTS (SELECT 1 FROM books b WHERE b.user_book_id = highlights.book_id)`)
	if err != nil {
		return fmt.Errorf("clear stale orphan flags: %w", err)
	}
	return nil
}
