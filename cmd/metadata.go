package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Backfill client/server side info for mods that lack it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		missing := a.store.MissingSides()
		if len(missing) == 0 {
			fmt.Println("All mods have side metadata.")
			return nil
		}
		fmt.Printf("Fetching metadata for %d mods...\n", len(missing))

		report, err := a.reconciler.Run(cmd.Context())
		for _, it := range report.Failed() {
			fmt.Printf("  %s: %v\n", it.Slug, it.Err)
		}
		fmt.Printf("Updated %d/%d mods\n", report.Updated, len(missing))
		return err
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}
