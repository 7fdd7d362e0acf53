package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/readstash/readstash/internal/query"
)

// jsonDump is the top-level shape of a JSON export.
type jsonDump struct {
	ExportedAt time.Time  `json:"exported_at"`
	Books      []jsonBook `json:"books"`
	Orphans    []jsonHL   `json:"orphaned_highlights,omitempty"`
}

type jsonBook struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Author   string   `json:"author,omitempty"`
	Category string   `json:"category,omitempty"`
	Source   string   `json:"source,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	HLs      []jsonHL `json:"highlights"`
}

type jsonHL struct {
	ID            int64      `json:"id"`
	BookID        int64      `json:"book_id,omitempty"`
	Text          string     `json:"text"`
	Note          string     `json:"note,omitempty"`
	Location      int64      `json:"location,omitempty"`
	Color         string     `json:"color,omitempty"`
	HighlightedAt *time.Time `json:"highlighted_at,omitempty"`
	Favorite      bool       `json:"favorite,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	LocalNote     string     `json:"local_note,omitempty"`
	LocalTags     []string   `json:"local_tags,omitempty"`
	Pinned        bool       `json:"pinned,omitempty"`
}

// JSON streams the whole mirror to w as one indented document.
func (e *Exporter) JSON(ctx context.Context, w io.Writer) error {
	books, err := e.q.Books(ctx, query.BookFilter{})
	if err != nil {
		return err
	}

	dump := jsonDump{ExportedAt: e.now().UTC()}
	for _, b := range books {
		hs, err := e.q.Highlights(ctx, query.HighlightFilter{BookID: b.UserBookID})
		if err != nil {
			return err
		}
		jb := jsonBook{
			ID:       b.UserBookID,
			Title:    b.Title,
			Author:   b.Author,
			Category: b.Category,
			Source:   b.Source,
			Tags:     b.Tags,
			HLs:      make([]jsonHL, 0, len(hs)),
		}
		for i := len(hs) - 1; i >= 0; i-- {
			jb.HLs = append(jb.HLs, toJSONHL(hs[i], false))
		}
		dump.Books = append(dump.Books, jb)
	}

	orphans, err := e.q.Highlights(ctx, query.HighlightFilter{Orphaned: true})
	if err != nil {
		return err
	}
	for i := len(orphans) - 1; i >= 0; i-- {
		dump.Orphans = append(dump.Orphans, toJSONHL(orphans[i], true))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}
	return nil
}

func toJSONHL(h query.HighlightRow, withBookID bool) jsonHL {
	out := jsonHL{
		ID:       h.ID,
		Text:     h.Text,
		Note:     h.Note,
		Location: h.Location,
		Color:    h.Color,
		Favorite: h.IsFavorite,
		Tags:     h.Tags,
	}
	if withBookID {
		out.BookID = h.BookID
	}
	if !h.HighlightedAt.IsZero() {
		t := h.HighlightedAt
		out.HighlightedAt = &t
	}
	if h.Local != nil {
		out.LocalNote = h.Local.Note
		out.LocalTags = h.Local.Tags
		out.Pinned = h.Local.Pinned
	}
	return out
}
