package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/readstash/readstash/internal/query"
)

var (
	lsBook      int64
	lsTag       string
	lsColor     string
	lsFavorites bool
	lsPinned    bool
	lsSearch    string
	lsLimit     int
	lsJSON      bool
	lsBooksMode bool
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List highlights (or books with --books)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		svc := query.NewService(a.store.DB())

		if lsBooksMode {
			books, err := svc.Books(ctx, query.BookFilter{Search: lsSearch, Limit: lsLimit})
			if err != nil {
				return err
			}
			if lsJSON {
				return json.NewEncoder(os.Stdout).Encode(books)
			}
			for _, b := range books {
				line := fmt.Sprintf("%-8d %s", b.UserBookID, b.Title)
				if b.Author != "" {
					line += " — " + b.Author
				}
				line += fmt.Sprintf(" (%d highlights)", b.Highlights)
				if len(b.Tags) > 0 {
					line += "  [" + strings.Join(b.Tags, ", ") + "]"
				}
				fmt.Println(line)
			}
			return nil
		}

		rows, err := svc.Highlights(ctx, query.HighlightFilter{
			BookID:    lsBook,
			Tag:       lsTag,
			Color:     lsColor,
			Favorites: lsFavorites,
			Pinned:    lsPinned,
			Search:    lsSearch,
			Limit:     lsLimit,
		})
		if err != nil {
			return err
		}
		if lsJSON {
			return json.NewEncoder(os.Stdout).Encode(rows)
		}
		for _, h := range rows {
			printHighlightLine(h)
		}
		return nil
	},
}

func init() {
	f := lsCmd.Flags()
	f.Int64Var(&lsBook, "book", 0, "only highlights from this book id")
	f.StringVar(&lsTag, "tag", "", "only highlights carrying this tag (remote or local)")
	f.StringVar(&lsColor, "color", "", "only highlights with this color")
	f.BoolVar(&lsFavorites, "favorites", false, "only remote favorites")
	f.BoolVar(&lsPinned, "pinned", false, "only locally pinned highlights")
	f.StringVar(&lsSearch, "search", "", "substring match on text or note")
	f.IntVar(&lsLimit, "limit", 50, "maximum rows (0 = all)")
	f.BoolVar(&lsJSON, "json", false, "emit JSON instead of text")
	f.BoolVar(&lsBooksMode, "books", false, "list books instead of highlights")
}

func printHighlightLine(h query.HighlightRow) {
	text := strings.ReplaceAll(h.Text, "\n", " ")
	if len(text) > 100 {
		text = text[:100] + "…"
	}
	marks := ""
	if h.IsFavorite {
		marks += "★"
	}
	if h.Local != nil && h.Local.Pinned {
		marks += "📌"
	}
	if h.Orphaned {
		marks += "?"
	}
	book := h.BookTitle
	if book == "" {
		book = fmt.Sprintf("(book %d missing)", h.BookID)
	}
	fmt.Printf("%-10d %-2s %s — %s\n", h.ID, marks, text, book)
}
