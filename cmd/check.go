package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"modstacker/collection"
	"modstacker/compat"
	"modstacker/logger"
	"modstacker/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var checkCmd = &cobra.Command{
	Use:   "check [slug...]",
	Short: "Check mods against the target versions",
	Long: `Checks which target Minecraft versions each mod has a Fabric release for.

Without arguments every mod in the collection is checked, one request at a
time, with a progress display. Results already in the compatibility cache
are reused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := bootstrap(ctx, ".")
		if err != nil {
			return err
		}
		defer a.close()

		reset, _ := cmd.Flags().GetBool("reset")
		plain, _ := cmd.Flags().GetBool("plain")
		showDiff, _ := cmd.Flags().GetBool("diff")

		if reset {
			if err := a.store.ResetChecks(ctx); err != nil {
				return err
			}
		}
		before := a.store.Snapshot()

		if len(args) > 0 {
			err = checkSlugs(ctx, a, args)
		} else if plain {
			err = checkAllPlain(ctx, a)
		} else {
			err = checkAllTUI(ctx, a)
		}
		if err != nil {
			return err
		}

		if showDiff {
			if d := ui.MatrixDiff(before, a.store.Snapshot()); d != "" {
				fmt.Print(d)
			} else {
				fmt.Println("No changes.")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("reset", false, "Clear all check results and the cache first")
	checkCmd.Flags().Bool("plain", false, "Print progress lines instead of the interactive display")
	checkCmd.Flags().Bool("diff", false, "Print a diff of the compatibility matrix before and after")
}

func checkSlugs(ctx context.Context, a *app, slugs []string) error {
	for _, slug := range slugs {
		res, err := a.checker.CheckMod(ctx, slug)
		if err != nil && res.SaveErr == nil {
			return fmt.Errorf("%s: %w", slug, err)
		}
		fmt.Println(formatResult(res, a.store.Versions()))
		if res.SaveErr != nil {
			return res.SaveErr
		}
	}
	return nil
}

func checkAllPlain(ctx context.Context, a *app) error {
	report, err := a.checker.CheckAll(ctx, func(p compat.Progress) {
		fmt.Printf("[%s] %s\n", p, p.Slug)
	})
	if err != nil && report.Total == 0 {
		return err
	}
	fmt.Println(summarize(report))
	return err
}

func formatResult(res compat.Result, versions []string) string {
	if res.Err != nil {
		return fmt.Sprintf("%s: check failed: %v", res.Slug, res.Err)
	}
	mod := collection.Mod{Checked: true, Versions: res.Versions}
	line := res.Slug + ":"
	for _, v := range versions {
		line += " " + v + "=" + ui.Mark(mod, v)
	}
	if res.Cached {
		line += " (cached)"
	}
	return line
}

func summarize(r compat.Report) string {
	s := fmt.Sprintf("Checked %d/%d mods: %d from cache, %d failed",
		len(r.Results), r.Total, r.CacheHits(), len(r.Failed()))
	if r.Err != nil {
		s += " (cancelled)"
	}
	return s
}

func checkAllTUI(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialCheckModel(a.store.Versions(), cancel)
	progress := m.progressChan

	done, err := a.checker.Start(ctx, func(p compat.Progress) {
		progress <- checkProgressMsg{Progress: p}
	})
	if err != nil {
		return err
	}
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		report := <-done
		progress <- checkDoneMsg{Report: report}
		close(progress)
	}()

	if _, err := tea.NewProgram(m).Run(); err != nil {
		logger.Log.Errorw("Failed to run check display", zap.Error(err))
		cancel()
	}
	// Keep the checker from blocking on a display that is gone.
	go func() {
		for range progress {
		}
	}()
	<-finished
	return nil
}
