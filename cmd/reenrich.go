package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReenrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reenrich",
		Short: "Backfills missing ISBNs and covers from Google Books",
		Long: `Runs one re-enrichment sweep over records lacking an ISBN or a cover
image. Only empty columns are filled; existing values are never overwritten.`,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			res, err := appInstance.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if res.TotalChecked == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "nothing to backfill")
			} else {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "checked %d records, updated %d, skipped %d\n",
					res.TotalChecked, res.UpdatedCount, res.Skipped)
			}
			if err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			return nil
		}),
	}
}
