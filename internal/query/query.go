// Package query is the read-only view over the local mirror. It never
// writes: sync owns remote-owned rows, the store owns augmentations.
package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/readstash/readstash/internal/common"
	"github.com/readstash/readstash/internal/models"
)

// Service answers read queries against the mirror database.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// HighlightFilter narrows a highlight listing. Zero values mean "no
// constraint"; deleted and discarded rows are excluded unless asked for.
type HighlightFilter struct {
	ID          int64
	BookID      int64
	Tag         string
	Color       string
	Favorites   bool
	Pinned      bool
	Orphaned    bool
	WithDeleted bool
	// Search matches a substring of the highlight text or note.
	Search string
	Limit  int
}

// HighlightRow is a highlight joined with its book context, remote tags and
// local augmentation.
type HighlightRow struct {
	models.Highlight
	BookTitle  string
	BookAuthor string
	Tags       []string
	Local      *models.Augmentation
}

// Highlights lists highlights matching the filter, newest first.
func (s *Service) Highlights(ctx context.Context, f HighlightFilter) ([]HighlightRow, error) {
	q := sq.Select(
		"h.id", "h.book_id", "h.text", "h.note",
		"h.location", "h.location_type", "h.color",
		"h.highlighted_at", "h.updated_at",
		"h.is_favorite", "h.is_discard", "h.is_deleted", "h.orphaned", "h.validated",
		"COALESCE(b.title, '')", "COALESCE(b.author, '')",
		"a.id", "a.note", "a.tags", "a.pinned", "a.created_at", "a.updated_at",
	).
		From("highlights h").
		LeftJoin("books b ON b.user_book_id = h.book_id").
		LeftJoin("local_augmentations a ON a.highlight_id = h.id").
		OrderBy("h.highlighted_at DESC", "h.id DESC")

	if !f.WithDeleted {
		q = q.Where(sq.Eq{"h.is_deleted": 0, "h.is_discard": 0})
	}
	if f.ID != 0 {
		q = q.Where(sq.Eq{"h.id": f.ID})
	}
	if f.BookID != 0 {
		q = q.Where(sq.Eq{"h.book_id": f.BookID})
	}
	if f.Color != "" {
		q = q.Where(sq.Eq{"h.color": f.Color})
	}
	if f.Favorites {
		q = q.Where(sq.Eq{"h.is_favorite": 1})
	}
	if f.Pinned {
		q = q.Where(sq.Eq{"a.pinned": 1})
	}
	if f.Orphaned {
		q = q.Where(sq.Eq{"h.orphaned": 1})
	}
	if f.Tag != "" {
		// Remote tags and local augmentation tags both count.
		q = q.Where(sq.Or{
			sq.Expr("EXISTS (SELECT 1 FROM highlight_tags t WHERE t.highlight_id = h.id AND t.name = ?)", f.Tag),
			sq.Expr("EXISTS (SELECT 1 FROM json_each(COALESCE(a.tags, '[]')) j WHERE j.value = ?)", f.Tag),
		})
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where(sq.Or{sq.Like{"h.text": like}, sq.Like{"h.note": like}})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build highlight query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list highlights: %w", err)
	}
	defer rows.Close()

	var out []HighlightRow
	var ids []int64
	for rows.Next() {
		hr, err := scanHighlightRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *hr)
		ids = append(ids, hr.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, out, ids); err != nil {
		return nil, err
	}
	return out, nil
}

// Highlight returns one highlight with full context.
func (s *Service) Highlight(ctx context.Context, id int64) (*HighlightRow, error) {
	rows, err := s.Highlights(ctx, HighlightFilter{ID: id, WithDeleted: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("highlight %d: %w", id, common.ErrNotFound)
	}
	return &rows[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHighlightRow(r scanner) (*HighlightRow, error) {
	var hr HighlightRow
	var highlightedAt, updatedAt string
	var augID, augNote, augTags, augCreated, augUpdated sql.NullString
	var augPinned sql.NullBool

	err := r.Scan(
		&hr.ID, &hr.BookID, &hr.Text, &hr.Note,
		&hr.Location, &hr.LocationType, &hr.Color,
		&highlightedAt, &updatedAt,
		&hr.IsFavorite, &hr.IsDiscard, &hr.IsDeleted, &hr.Orphaned, &hr.Validated,
		&hr.BookTitle, &hr.BookAuthor,
		&augID, &augNote, &augTags, &augPinned, &augCreated, &augUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("scan highlight: %w", err)
	}
	hr.HighlightedAt = parseTime(highlightedAt)
	hr.UpdatedAt = parseTime(updatedAt)

	if augID.Valid {
		a := &models.Augmentation{
			ID:          augID.String,
			HighlightID: hr.ID,
			Note:        augNote.String,
			Pinned:      augPinned.Bool,
			CreatedAt:   parseTime(augCreated.String),
			UpdatedAt:   parseTime(augUpdated.String),
		}
		if augTags.Valid {
			_ = json.Unmarshal([]byte(augTags.String), &a.Tags)
		}
		hr.Local = a
	}
	return &hr, nil
}

// attachTags loads remote tag names for the listed highlights in one query.
func (s *Service) attachTags(ctx context.Context, hrs []HighlightRow, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	sqlStr, args, err := sq.Select("highlight_id", "name").
		From("highlight_tags").
		Where(sq.Eq{"highlight_id": ids}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	tags := map[int64][]string{}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		tags[id] = append(tags[id], name)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range hrs {
		hrs[i].Tags = tags[hrs[i].ID]
	}
	return nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
