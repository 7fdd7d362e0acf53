package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/readstash/readstash/internal/models"
)

// BeginBatch records the start of a sync run and returns its id.
func (s *Store) BeginBatch(ctx context.Context, scope string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_batches (scope, started_at, status)
		VALUES (?, ?, ?)`,
		scope, timeToDB(startedAt), models.BatchRunning)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("begin batch id: %w", err)
	}
	return id, nil
}

// FinishBatch finalizes the bookkeeping row for a run, whatever its outcome.
func (s *Store) FinishBatch(ctx context.Context, b *models.Batch) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_batches
		SET ended_at = ?, write_time = ?, pages = ?, upserted = ?, skipped = ?, status = ?
		WHERE id = ?`,
		timeToDB(b.EndedAt), timeToDB(b.WriteTime), b.Pages, b.Upserted, b.Skipped,
		b.Status, b.ID)
	if err != nil {
		return fmt.Errorf("finish batch %d: %w", b.ID, err)
	}
	return nil
}

// Batch returns one run's bookkeeping row.
func (s *Store) Batch(ctx context.Context, id int64) (*models.Batch, error) {
	var b models.Batch
	var startedAt, endedAt, writeTime string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scope, started_at, ended_at, write_time, pages, upserted, skipped, status
		FROM sync_batches WHERE id = ?`, id).
		Scan(&b.ID, &b.Scope, &startedAt, &endedAt, &writeTime,
			&b.Pages, &b.Upserted, &b.Skipped, &b.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %d: %w", id, err)
	}
	b.StartedAt = timeFromDB(startedAt)
	b.EndedAt = timeFromDB(endedAt)
	b.WriteTime = timeFromDB(writeTime)
	return &b, nil
}

// RecentBatches lists the latest runs, newest first.
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]models.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, started_at, ended_at, write_time, pages, upserted, skipped, status
		FROM sync_batches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []models.Batch
	for rows.Next() {
		var b models.Batch
		var startedAt, endedAt, writeTime string
		if err := rows.Scan(&b.ID, &b.Scope, &startedAt, &endedAt, &writeTime,
			&b.Pages, &b.Upserted, &b.Skipped, &b.Status); err != nil {
			return nil, err
		}
		b.StartedAt = timeFromDB(startedAt)
		b.EndedAt = timeFromDB(endedAt)
		b.WriteTime = timeFromDB(writeTime)
		out = append(out, b)
	}
	return out, rows.Err()
}
