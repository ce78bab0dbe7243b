package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "modstacker",
	Short: "Plan Fabric mod collections and check them against Minecraft versions",
	Long: `ModStacker keeps categorised collections of Modrinth mods and checks
which of them have releases for each target Minecraft version.

Run without a subcommand to start the local HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
