package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/readstash/readstash/internal/dbx"
	"github.com/readstash/readstash/internal/models"
)

const bookColumns = `user_book_id, title, author, readable_title, source, category,
	cover_image_url, source_url, readwise_url, unique_url, external_id, asin,
	summary, document_note, is_deleted, validated, validation_errors, batch_id`

func scanBook(row *sql.Row) (*models.Book, error) {
	var b models.Book
	var verrs string
	err := row.Scan(&b.UserBookID, &b.Title, &b.Author, &b.ReadableTitle, &b.Source,
		&b.Category, &b.CoverImageURL, &b.SourceURL, &b.ReadwiseURL, &b.UniqueURL,
		&b.ExternalID, &b.ASIN, &b.Summary, &b.DocumentNote, &b.IsDeleted,
		&b.Validated, &verrs, &b.BatchID)
	if err != nil {
		return nil, err
	}
	b.ValidationErrors = errsFromDB(verrs)
	return &b, nil
}

func getBook(ctx context.Context, tx dbx.DBTX, id int64) (*models.Book, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE user_book_id = ?`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return b, nil
}

// remoteBookEqual compares only the remote-owned fields plus the validation
// verdict; batch ids never count as a change.
func remoteBookEqual(a, b *models.Book) bool {
	return a.Title == b.Title &&
		a.Author == b.Author &&
		a.ReadableTitle == b.ReadableTitle &&
		a.Source == b.Source &&
		a.Category == b.Category &&
		a.CoverImageURL == b.CoverImageURL &&
		a.SourceURL == b.SourceURL &&
		a.ReadwiseURL == b.ReadwiseURL &&
		a.UniqueURL == b.UniqueURL &&
		a.ExternalID == b.ExternalID &&
		a.ASIN == b.ASIN &&
		a.Summary == b.Summary &&
		a.DocumentNote == b.DocumentNote &&
		a.IsDeleted == b.IsDeleted &&
		a.Validated == b.Validated &&
		errsToDB(a.ValidationErrors) == errsToDB(b.ValidationErrors)
}

// upsertBook writes remote-owned columns only; it never inserts or updates
// anything a sync must not touch.
func upsertBook(ctx context.Context, tx dbx.DBTX, b *models.Book, batchID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_book_id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			readable_title = excluded.readable_title,
			source = excluded.source,
			category = excluded.category,
			cover_image_url = excluded.cover_image_url,
			source_url = excluded.source_url,
			readwise_url = excluded.readwise_url,
			unique_url = excluded.unique_url,
			external_id = excluded.external_id,
			asin = excluded.asin,
			summary = excluded.summary,
			document_note = excluded.document_note,
			is_deleted = excluded.is_deleted,
			validated = excluded.validated,
			validation_errors = excluded.validation_errors,
			batch_id = excluded.batch_id`,
		b.UserBookID, b.Title, b.Author, b.ReadableTitle, b.Source, b.Category,
		b.CoverImageURL, b.SourceURL, b.ReadwiseURL, b.UniqueURL, b.ExternalID,
		b.ASIN, b.Summary, b.DocumentNote, b.IsDeleted, b.Validated,
		errsToDB(b.ValidationErrors), batchID)
	if err != nil {
		return fmt.Errorf("upsert book %d: %w", b.UserBookID, err)
	}
	return nil
}

// versionBook snapshots the current remote-owned values of a book that is
// about to change.
func versionBook(ctx context.Context, tx dbx.DBTX, cur *models.Book, batchID int64, now string) error {
	var version int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM book_versions WHERE user_book_id = ?`,
		cur.UserBookID)
	if err := row.Scan(&version); err != nil {
		return fmt.Errorf("next book version %d: %w", cur.UserBookID, err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO book_versions (user_book_id, version, versioned_at, batch_id,
			title, author, readable_title, source, category, cover_image_url,
			source_url, readwise_url, unique_url, external_id, asin, summary,
			document_note, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cur.UserBookID, version, now, batchID,
		cur.Title, cur.Author, cur.ReadableTitle, cur.Source, cur.Category,
		cur.CoverImageURL, cur.SourceURL, cur.ReadwiseURL, cur.UniqueURL,
		cur.ExternalID, cur.ASIN, cur.Summary, cur.DocumentNote, cur.IsDeleted)
	if err != nil {
		return fmt.Errorf("version book %d: %w", cur.UserBookID, err)
	}
	return nil
}
