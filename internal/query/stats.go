package query

import (
	"context"
	"fmt"
)

// Stats is the mirror health summary shown by the status command.
type Stats struct {
	Books         int
	Highlights    int
	Orphaned      int
	Invalid       int
	Augmentations int
	Versions      int
}

// Stats counts what the mirror currently holds.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM books WHERE is_deleted = 0),
			(SELECT COUNT(*) FROM highlights WHERE is_deleted = 0),
			(SELECT COUNT(*) FROM highlights WHERE orphaned = 1),
			(SELECT COUNT(*) FROM highlights WHERE validated = 0)
				+ (SELECT COUNT(*) FROM books WHERE validated = 0),
			(SELECT COUNT(*) FROM local_augmentations),
			(SELECT COUNT(*) FROM highlight_versions)
				+ (SELECT COUNT(*) FROM book_versions)`)
	if err := row.Scan(&st.Books, &st.Highlights, &st.Orphaned, &st.Invalid,
		&st.Augmentations, &st.Versions); err != nil {
		return nil, fmt.Errorf("mirror stats: %w", err)
	}
	return &st, nil
}
