package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/readstash/readstash/internal/models"
)

// The note, tag and favorite commands edit the local augmentation attached
// to a highlight. Augmentations are owned by this tool and never synced, so
// they survive any re-sync untouched.

var noteRemove bool

var noteCmd = &cobra.Command{
	Use:   "note <highlight-id> [text]",
	Short: "Attach a local note to a highlight",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editAugmentation(cmd, args[0], func(a *models.Augmentation) {
			if noteRemove {
				a.Note = ""
				return
			}
			a.Note = strings.Join(args[1:], " ")
		})
	},
}

var tagRemove bool

var tagCmd = &cobra.Command{
	Use:   "tag <highlight-id> [tag ...]",
	Short: "Set local tags on a highlight",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editAugmentation(cmd, args[0], func(a *models.Augmentation) {
			if tagRemove {
				a.Tags = nil
				return
			}
			a.Tags = args[1:]
		})
	},
}

var favoriteUnset bool

var favoriteCmd = &cobra.Command{
	Use:   "favorite <highlight-id>",
	Short: "Pin a highlight locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editAugmentation(cmd, args[0], func(a *models.Augmentation) {
			a.Pinned = !favoriteUnset
		})
	},
}

func init() {
	noteCmd.Flags().BoolVar(&noteRemove, "rm", false, "remove the local note")
	tagCmd.Flags().BoolVar(&tagRemove, "rm", false, "remove all local tags")
	favoriteCmd.Flags().BoolVar(&favoriteUnset, "unset", false, "unpin instead")
}

// editAugmentation loads the highlight's augmentation (or starts an empty
// one), applies the edit, and saves or deletes depending on what is left.
func editAugmentation(cmd *cobra.Command, rawID string, edit func(*models.Augmentation)) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid highlight id %q", rawID)
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return applyAugmentationEdit(ctx, a, id, edit)
}

func applyAugmentationEdit(ctx context.Context, a *app, id int64, edit func(*models.Augmentation)) error {
	aug, err := a.store.Augmentation(ctx, id)
	if err != nil {
		return err
	}
	if aug == nil {
		aug = &models.Augmentation{HighlightID: id}
	}
	edit(aug)

	// An augmentation with nothing left in it is just noise.
	if aug.Note == "" && len(aug.Tags) == 0 && !aug.Pinned {
		return a.store.DeleteAugmentation(ctx, id)
	}
	return a.store.SaveAugmentation(ctx, aug)
}
