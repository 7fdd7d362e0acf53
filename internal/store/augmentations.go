package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/readstash/readstash/internal/common"
	"github.com/readstash/readstash/internal/models"
)

// Augmentation returns the local annotation for a highlight, or nil when
// none exists.
func (s *Store) Augmentation(ctx context.Context, highlightID int64) (*models.Augmentation, error) {
	var a models.Augmentation
	var tags, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, highlight_id, note, tags, pinned, created_at, updated_at
		FROM local_augmentations WHERE highlight_id = ?`, highlightID).
		Scan(&a.ID, &a.HighlightID, &a.Note, &tags, &a.Pinned, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get augmentation for %d: %w", highlightID, err)
	}
	_ = json.Unmarshal([]byte(tags), &a.Tags)
	a.CreatedAt = timeFromDB(createdAt)
	a.UpdatedAt = timeFromDB(updatedAt)
	return &a, nil
}

// SaveAugmentation creates or updates the annotation for a highlight. The
// highlight must exist locally; annotating an unknown id is an error
// rather than a silent dangling row.
func (s *Store) SaveAugmentation(ctx context.Context, a *models.Augmentation) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM highlights WHERE id = ?)`, a.HighlightID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check highlight %d: %w", a.HighlightID, err)
	}
	if !exists {
		return fmt.Errorf("highlight %d: %w", a.HighlightID, common.ErrNoSuchHighlight)
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	if a.Tags == nil {
		tags = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO local_augmentations (id, highlight_id, note, tags, pinned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(highlight_id) DO UPDATE SET
			note = excluded.note,
			tags = excluded.tags,
			pinned = excluded.pinned,
			updated_at = excluded.updated_at`,
		a.ID, a.HighlightID, a.Note, string(tags), a.Pinned,
		timeToDB(a.CreatedAt), timeToDB(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save augmentation for %d: %w", a.HighlightID, err)
	}
	return nil
}

// DeleteAugmentation removes the annotation for a highlight. Deleting a
// missing annotation is not an error; the operation is idempotent. This is
// the only way augmentation rows disappear — sync never cascades into them.
func (s *Store) DeleteAugmentation(ctx context.Context, highlightID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM local_augmentations WHERE highlight_id = ?`, highlightID)
	if err != nil {
		return fmt.Errorf("delete augmentation for %d: %w", highlightID, err)
	}
	return nil
}
