package cmd

import (
	"fmt"
	"strings"

	"modstacker/versions"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"versions"},
	Short:   "Manage target Minecraft versions",
}

var versionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List target versions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		for i, v := range a.store.Versions() {
			fmt.Printf("%d  %s\n", i, v)
		}
		return nil
	},
}

var versionAddCmd = &cobra.Command{
	Use:   "add <version>",
	Short: "Add a target version (resets all check results)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.AddVersion(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Target versions: %s\n", strings.Join(a.store.Versions(), ", "))
		return nil
	},
}

var versionRemoveCmd = &cobra.Command{
	Use:   "remove <index|version>",
	Short: "Remove a target version (resets all check results)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		idx, err := resolveVersionIndex(a.store.Versions(), args[0])
		if err != nil {
			return err
		}
		removed, err := a.store.RemoveVersion(cmd.Context(), idx)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %s. Target versions: %s\n", removed, strings.Join(a.store.Versions(), ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.AddCommand(versionListCmd, versionAddCmd, versionRemoveCmd)
}

// resolveVersionIndex accepts a version string present in current, or an index.
// Strings containing a dot are always treated as versions.
func resolveVersionIndex(current []string, arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, ".") {
		for i, v := range current {
			if v == arg {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: %s is not a target version", versions.ErrIndexOutOfRange, arg)
	}
	return parseIndex(arg)
}
