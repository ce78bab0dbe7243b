package cmd

import (
	"fmt"

	"modstacker/collection"
	"modstacker/ui"

	"github.com/spf13/cobra"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the compatibility matrix",
	Long:  `Prints every category as a table of mods against target versions.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		snap := a.store.Snapshot()
		if arg, _ := cmd.Flags().GetString("category"); arg != "" {
			idx, err := resolveCategory(a.store, arg)
			if err != nil {
				return err
			}
			snap = collection.Collection{
				Categories:     []collection.Category{snap.Categories[idx]},
				TargetVersions: snap.TargetVersions,
			}
		}
		fmt.Print(ui.RenderMatrix(snap))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tableCmd)
	tableCmd.Flags().StringP("category", "c", "", "Only show this category (index or name)")
}
