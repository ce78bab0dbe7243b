package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"categories"},
	Short:   "Manage categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		for i, c := range a.store.Snapshot().Categories {
			fmt.Printf("%d  %-24s %d mods\n", i, c.Name, len(c.Mods))
		}
		return nil
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a category",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		idx, err := a.store.AddCategory(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
			if err := a.store.RenameCategory(cmd.Context(), idx, strings.TrimSpace(args[0])); err != nil {
				return err
			}
		}
		fmt.Printf("Added category %d\n", idx)
		return nil
	},
}

var categoryRenameCmd = &cobra.Command{
	Use:   "rename <index|name> <new name>",
	Short: "Rename a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		idx, err := resolveCategory(a.store, args[0])
		if err != nil {
			return err
		}
		return a.store.RenameCategory(cmd.Context(), idx, strings.TrimSpace(args[1]))
	},
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete <index|name>",
	Short: "Delete a category and its mods",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		idx, err := resolveCategory(a.store, args[0])
		if err != nil {
			return err
		}
		count, err := a.store.ModCount(idx)
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		if count > 0 && !yes {
			name := a.store.Snapshot().Categories[idx].Name
			prompt := fmt.Sprintf("Delete category %q with %d mods? [y/N] ", name, count)
			if !confirm(os.Stdin, os.Stdout, prompt) {
				fmt.Println("Aborted.")
				return nil
			}
		}
		return a.store.DeleteCategory(cmd.Context(), idx)
	},
}

var categoryExportCmd = &cobra.Command{
	Use:   "export <index|name>",
	Short: "Print Modrinth links for checked mods with at least one supported version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		idx, err := resolveCategory(a.store, args[0])
		if err != nil {
			return err
		}
		links, err := a.store.ExportLinks(idx)
		if err != nil {
			return err
		}
		for _, l := range links {
			fmt.Println(l)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoryCmd)
	categoryCmd.AddCommand(categoryListCmd, categoryAddCmd, categoryRenameCmd, categoryDeleteCmd, categoryExportCmd)
	categoryDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
