package cmd

import (
	"fmt"
	"strings"

	"modstacker/collection"
	"modstacker/ui"

	"github.com/spf13/cobra"
)

var modCmd = &cobra.Command{
	Use:     "mod",
	Aliases: []string{"mods"},
	Short:   "Search for, add, move and remove mods",
}

var modSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search Modrinth for Fabric mods",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		a.remoteMu.Lock()
		results, err := a.client.SearchMods(cmd.Context(), strings.Join(args, " "))
		a.remoteMu.Unlock()
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%-28s %-32s %s\n", r.Slug, ui.Truncate(r.Title, 32), ui.Truncate(r.Description, 60))
		}
		return nil
	},
}

var modAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Add a mod to a category and check it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		idx, err := targetCategory(a.store, categoryFlag(cmd))
		if err != nil {
			return err
		}
		a.remoteMu.Lock()
		project, err := a.client.GetProject(cmd.Context(), args[0])
		a.remoteMu.Unlock()
		if err != nil {
			return err
		}
		if err := a.store.AddMod(cmd.Context(), project.AsSearchResult(), idx); err != nil {
			return err
		}

		// The add hook scheduled a check; wait for it so the row is complete.
		a.checker.Wait()
		mod, _, ok := a.store.FindMod(project.Slug)
		if !ok {
			return nil
		}
		fmt.Printf("Added %s to %s\n", mod.Title, a.store.Snapshot().Categories[idx].Name)
		printModRow(mod, a.store.Versions())
		return nil
	},
}

var modRemoveCmd = &cobra.Command{
	Use:   "remove <slug>",
	Short: "Remove a mod from the collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		_, idx, ok := a.store.FindMod(args[0])
		if !ok {
			return fmt.Errorf("mod %q is not in the collection", args[0])
		}
		return a.store.RemoveMod(cmd.Context(), idx, args[0])
	},
}

var modMoveCmd = &cobra.Command{
	Use:   "move <slug> <index|name>",
	Short: "Move a mod to another category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), ".")
		if err != nil {
			return err
		}
		defer a.close()

		_, from, ok := a.store.FindMod(args[0])
		if !ok {
			return fmt.Errorf("mod %q is not in the collection", args[0])
		}
		to, err := resolveCategory(a.store, args[1])
		if err != nil {
			return err
		}
		return a.store.MoveMod(cmd.Context(), args[0], from, to)
	},
}

func init() {
	rootCmd.AddCommand(modCmd)
	modCmd.AddCommand(modSearchCmd, modAddCmd, modRemoveCmd, modMoveCmd)
	modAddCmd.Flags().StringP("category", "c", "0", "Target category (index or name)")
}

func categoryFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("category")
	if v == "" {
		return "0"
	}
	return v
}

func printModRow(mod collection.Mod, targets []string) {
	cells := make([]string, 0, len(targets))
	for _, v := range targets {
		cells = append(cells, v+"="+ui.Mark(mod, v))
	}
	fmt.Printf("  %s [%s] %s\n", mod.Slug, ui.SideBadge(mod), strings.Join(cells, " "))
}
