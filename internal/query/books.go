package query

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/readstash/readstash/internal/models"
)

// BookFilter narrows a book listing.
type BookFilter struct {
	Category string
	Source   string
	// Search matches a substring of the title or author.
	Search      string
	WithDeleted bool
	Limit       int
}

// BookRow is a book with its tag names and highlight count.
type BookRow struct {
	models.Book
	Tags       []string
	Highlights int
}

// Books lists books matching the filter, ordered by title.
func (s *Service) Books(ctx context.Context, f BookFilter) ([]BookRow, error) {
	q := sq.Select(
		"b.user_book_id", "b.title", "b.author", "b.source", "b.category",
		"b.readwise_url", "b.is_deleted", "b.validated",
		"(SELECT COUNT(*) FROM highlights h WHERE h.book_id = b.user_book_id AND h.is_deleted = 0)",
	).
		From("books b").
		OrderBy("b.title")

	if !f.WithDeleted {
		q = q.Where(sq.Eq{"b.is_deleted": 0})
	}
	if f.Category != "" {
		q = q.Where(sq.Eq{"b.category": f.Category})
	}
	if f.Source != "" {
		q = q.Where(sq.Eq{"b.source": f.Source})
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where(sq.Or{sq.Like{"b.title": like}, sq.Like{"b.author": like}})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build book query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var out []BookRow
	var ids []int64
	for rows.Next() {
		var br BookRow
		if err := rows.Scan(
			&br.UserBookID, &br.Title, &br.Author, &br.Source, &br.Category,
			&br.ReadwiseURL, &br.IsDeleted, &br.Validated, &br.Highlights,
		); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, br)
		ids = append(ids, br.UserBookID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachBookTags(ctx, out, ids); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) attachBookTags(ctx context.Context, brs []BookRow, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	sqlStr, args, err := sq.Select("user_book_id", "name").
		From("book_tags").
		Where(sq.Eq{"user_book_id": ids}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("load book tags: %w", err)
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
	for i := range brs {
		brs[i].Tags = tags[brs[i].UserBookID]
	}
	return nil
}
