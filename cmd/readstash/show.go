package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/readstash/readstash/internal/query"
)

var showCmd = &cobra.Command{
	Use:   "show <highlight-id>",
	Short: "Show one highlight in full, including local annotations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid highlight id %q", args[0])
		}
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := query.NewService(a.store.DB()).Highlight(ctx, id)
		if err != nil {
			return err
		}

		fmt.Printf("highlight %d\n", h.ID)
		if h.BookTitle != "" {
			fmt.Printf("book:        %s — %s (id %d)\n", h.BookTitle, h.BookAuthor, h.BookID)
		} else {
			fmt.Printf("book:        %d (not synced locally)\n", h.BookID)
		}
		fmt.Println()
		for _, line := range strings.Split(h.Text, "\n") {
			fmt.Printf("  %s\n", line)
		}
		fmt.Println()
		if h.Note != "" {
			fmt.Printf("remote note: %s\n", h.Note)
		}
		if len(h.Tags) > 0 {
			fmt.Printf("tags:        %s\n", strings.Join(h.Tags, ", "))
		}
		if h.Color != "" {
			fmt.Printf("color:       %s\n", h.Color)
		}
		if h.Location > 0 {
			fmt.Printf("location:    %d (%s)\n", h.Location, h.LocationType)
		}
		if !h.HighlightedAt.IsZero() {
			fmt.Printf("highlighted: %s\n", h.HighlightedAt.Format(time.RFC3339))
		}
		if h.IsFavorite {
			fmt.Println("favorite:    yes")
		}
		if h.Orphaned {
			fmt.Println("orphaned:    parent book not in the local mirror")
		}
		if !h.Validated {
			fmt.Println("validated:   no (record arrived with defects)")
		}
		if h.Local != nil {
			fmt.Println()
			if h.Local.Note != "" {
				fmt.Printf("local note:  %s\n", h.Local.Note)
			}
			if len(h.Local.Tags) > 0 {
				fmt.Printf("local tags:  %s\n", strings.Join(h.Local.Tags, ", "))
			}
			if h.Local.Pinned {
				fmt.Println("pinned:      yes")
			}
		}
		return nil
	},
}
