package cmd

import (
	"errors"
	"fmt"

	"modstacker/db"
	"modstacker/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rollbackCmd represents the rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the collection from its most recent snapshot",
	Long: `Restore the collection from its most recent snapshot.

Every save to the SQLite backend first snapshots the previous collection.
Rolling back restores the newest snapshot and removes it from history, so
repeated rollbacks walk further back. Use --list to see what is stored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		if a.sqlite == nil {
			return fmt.Errorf("rollback needs the sqlite storage backend (current: %s)", a.cfg.StorageBackend)
		}

		if list, _ := cmd.Flags().GetBool("list"); list {
			snaps, err := a.sqlite.Snapshots(cmd.Context())
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Println("No snapshots stored.")
				return nil
			}
			for _, s := range snaps {
				fmt.Printf("%4d  %s  %d categories, %d mods\n",
					s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04:05"), s.Categories, s.Mods)
			}
			return nil
		}

		restored, err := a.sqlite.Rollback(cmd.Context())
		if errors.Is(err, db.ErrNoSnapshot) {
			logger.Log.Warnw("Nothing to roll back", zap.Error(err))
			fmt.Println("No snapshots to roll back to.")
			return nil
		}
		if err != nil {
			return err
		}
		a.store.Replace(restored)

		fmt.Printf("Restored %d categories with %d mods (target versions: %v)\n",
			len(restored.Categories), restored.ModCount(), restored.TargetVersions)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
	rollbackCmd.Flags().Bool("list", false, "List stored snapshots instead of rolling back")
}
