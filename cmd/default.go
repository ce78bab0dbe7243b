package cmd

import (
	"github.com/spf13/cobra"
)

// defaultCmd represents the command that runs when no subcommand is specified
var defaultCmd = &cobra.Command{
	Use:    "default",
	Short:  "Default command when no subcommand is provided",
	Long:   `Runs the serve command.`,
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		serveCmd.SetContext(cmd.Context())
		return serveCmd.RunE(serveCmd, []string{})
	},
}

func init() {
	rootCmd.AddCommand(defaultCmd)
	// A bare invocation behaves like "modstacker default".
	rootCmd.RunE = defaultCmd.RunE
}
