package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/readstash/readstash/internal/dbx"
	"github.com/readstash/readstash/internal/models"
)

// Watermark returns the persisted watermark for a scope, or nil when the
// scope has never been synced.
func (s *Store) Watermark(ctx context.Context, scope string) (*models.Watermark, error) {
	return getWatermark(ctx, s.db, scope)
}

// ResetWatermark drops the watermark for a scope, putting it back in the
// never-synced state. Used by full resync only.
func (s *Store) ResetWatermark(ctx context.Context, scope string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_watermarks WHERE scope = ?`, scope)
	if err != nil {
		return fmt.Errorf("reset watermark %q: %w", scope, err)
	}
	return nil
}

func getWatermark(ctx context.Context, tx dbx.DBTX, scope string) (*models.Watermark, error) {
	var w models.Watermark
	var updatedAfter, crawlStartedAt, advancedAt string
	err := tx.QueryRowContext(ctx, `
		SELECT scope, updated_after, page_cursor, crawl_started_at, advanced_at
		FROM sync_watermarks WHERE scope = ?`, scope).
		Scan(&w.Scope, &updatedAfter, &w.PageCursor, &crawlStartedAt, &advancedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark %q: %w", scope, err)
	}
	w.UpdatedAfter = timeFromDB(updatedAfter)
	w.CrawlStartedAt = timeFromDB(crawlStartedAt)
	w.AdvancedAt = timeFromDB(advancedAt)
	return &w, nil
}

// setWatermark runs inside the page transaction so the watermark and the
// page's records commit together or not at all.
func setWatermark(ctx context.Context, tx dbx.DBTX, w models.Watermark) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_watermarks (scope, updated_after, page_cursor, crawl_started_at, advanced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET
			updated_after = excluded.updated_after,
			page_cursor = excluded.page_cursor,
			crawl_started_at = excluded.crawl_started_at,
			advanced_at = excluded.advanced_at`,
		w.Scope, timeToDB(w.UpdatedAfter), w.PageCursor, timeToDB(w.CrawlStartedAt), timeToDB(w.AdvancedAt))
	if err != nil {
		return fmt.Errorf("set watermark %q: %w", w.Scope, err)
	}
	return nil
}
