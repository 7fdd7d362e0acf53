package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/readstash/readstash/internal/query"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List highlights whose book is missing from the mirror",
	Long: `Highlights can arrive before their book has been synced, or the
book fetch may have failed partway. Such highlights are kept and
flagged rather than dropped; a later sync that brings the book in
clears the flag automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := query.NewService(a.store.DB()).Highlights(ctx, query.HighlightFilter{Orphaned: true})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("no orphaned highlights")
			return nil
		}
		for _, h := range rows {
			printHighlightLine(h)
		}
		fmt.Printf("%d orphaned; run 'readstash sync --books' to fetch missing books\n", len(rows))
		return nil
	},
}
