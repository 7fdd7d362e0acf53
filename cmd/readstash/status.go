package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/readstash/readstash/internal/query"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mirror contents, sync position and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		svc := query.NewService(a.store.DB())
		stats, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("database: %s\n", a.cfg.DBPath)
		fmt.Printf("books: %d  highlights: %d  local notes: %d\n",
			stats.Books, stats.Highlights, stats.Augmentations)
		if stats.Orphaned > 0 {
			fmt.Printf("orphaned highlights: %d (see 'readstash orphans')\n", stats.Orphaned)
		}
		if stats.Invalid > 0 {
			fmt.Printf("records with validation issues: %d\n", stats.Invalid)
		}
		if stats.Versions > 0 {
			fmt.Printf("archived record versions: %d\n", stats.Versions)
		}

		for _, scope := range []string{"books", "highlights"} {
			w, err := a.store.Watermark(ctx, scope)
			if err != nil {
				return err
			}
			switch {
			case w == nil:
				fmt.Printf("%s: never synced\n", scope)
			case w.PageCursor != "":
				fmt.Printf("%s: crawl interrupted, will resume mid-collection\n", scope)
			default:
				fmt.Printf("%s: synced through %s\n", scope, w.UpdatedAfter.Format(time.RFC3339))
			}
		}

		batches, err := a.store.RecentBatches(ctx, 5)
		if err != nil {
			return err
		}
		if len(batches) > 0 {
			fmt.Println("recent runs:")
			for _, b := range batches {
				fmt.Printf("  #%d %-11s %-9s pages=%d upserted=%d skipped=%d started=%s\n",
					b.ID, b.Scope, b.Status, b.Pages, b.Upserted, b.Skipped,
					b.StartedAt.Format("2006-01-02 15:04"))
			}
		}
		return nil
	},
}
