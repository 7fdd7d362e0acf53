package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/readstash/readstash/internal/export"
	"github.com/readstash/readstash/internal/query"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the mirror to markdown files or a JSON dump",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		ex := export.New(query.NewService(a.store.DB()), a.log)
		switch exportFormat {
		case "md", "markdown":
			dir := exportOut
			if dir == "" {
				dir = "export"
			}
			n, err := ex.Markdown(ctx, dir)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d files to %s\n", n, dir)
			return nil
		case "json":
			if exportOut == "" || exportOut == "-" {
				return ex.JSON(ctx, os.Stdout)
			}
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := ex.JSON(ctx, f); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", exportOut)
			return nil
		default:
			return fmt.Errorf("unknown format %q (want md or json)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "md", "md or json")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (md) or file (json, - for stdout)")
}
