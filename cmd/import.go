package cmd

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modstacker/collection"
	"modstacker/logger"
	"modstacker/modrinth"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-add mods from a name list or a mods directory",
}

var importNamesCmd = &cobra.Command{
	Use:   "names <file>",
	Short: "Add the top search hit for each mod name in a file",
	Long: `Reads one mod name per line (blank lines and lines starting with # are
ignored), searches Modrinth for each and adds the best match.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := readModNames(args[0])
		if err != nil {
			return err
		}
		return runImport(cmd, func(ctx context.Context, imp *importer, idx int) importSummary {
			return imp.importNames(ctx, names, idx)
		})
	},
}

var importDirCmd = &cobra.Command{
	Use:   "dir <path>",
	Short: "Identify .jar/.zip files by hash and add their projects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := scanModFiles(args[0])
		if err != nil {
			return err
		}
		return runImport(cmd, func(ctx context.Context, imp *importer, idx int) importSummary {
			return imp.importFiles(ctx, files, idx)
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importNamesCmd, importDirCmd)
	importCmd.PersistentFlags().StringP("category", "c", "0", "Target category (index or name)")
}

func runImport(cmd *cobra.Command, run func(context.Context, *importer, int) importSummary) error {
	a, err := bootstrap(cmd.Context(), ".")
	if err != nil {
		return err
	}
	defer a.close()

	idx, err := targetCategory(a.store, categoryFlag(cmd))
	if err != nil {
		return err
	}
	imp := &importer{
		store:  a.store,
		lookup: a.client,
		lock:   a.remoteMu,
		delay:  a.cfg.ImportDelay(),
		log:    logger.Named("import"),
	}
	sum := run(cmd.Context(), imp, idx)
	fmt.Println(sum.String())
	return nil
}

// importLookup is the registry surface bulk imports need.
type importLookup interface {
	Search(ctx context.Context, query string, limit int) ([]modrinth.SearchHit, error)
	GetVersionByHash(ctx context.Context, hash string) (*modrinth.Version, error)
	GetProject(ctx context.Context, slug string) (*modrinth.Project, error)
}

type importer struct {
	store  *collection.Store
	lookup importLookup
	lock   sync.Locker
	delay  time.Duration
	log    *zap.SugaredLogger
}

type importSummary struct {
	Added     []string
	Duplicate []string
	NotFound  []string
	Failed    []string
}

func (s importSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d mods", len(s.Added))
	if n := len(s.Duplicate); n > 0 {
		fmt.Fprintf(&b, ", %d already present", n)
	}
	if n := len(s.NotFound); n > 0 {
		fmt.Fprintf(&b, ", %d not found (%s)", n, strings.Join(s.NotFound, ", "))
	}
	if n := len(s.Failed); n > 0 {
		fmt.Fprintf(&b, ", %d failed", n)
	}
	return b.String()
}

// importNames adds the first search hit for every name. Lookups are spaced
// by delay and serialised with the rest of the registry traffic.
func (imp *importer) importNames(ctx context.Context, names []string, category int) importSummary {
	var sum importSummary
	for i, name := range names {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && !sleepCtx(ctx, imp.delay) {
			break
		}

		imp.lock.Lock()
		hits, err := imp.lookup.Search(ctx, name, 1)
		imp.lock.Unlock()
		if err != nil {
			imp.log.Warnw("Search failed", zap.String("name", name), zap.Error(err))
			sum.Failed = append(sum.Failed, name)
			continue
		}
		if len(hits) == 0 {
			sum.NotFound = append(sum.NotFound, name)
			continue
		}
		imp.add(ctx, hits[0].AsSearchResult(), category, &sum)
	}
	return sum
}

// importFiles resolves each file by its SHA1 and adds the owning project.
func (imp *importer) importFiles(ctx context.Context, files []string, category int) importSummary {
	var sum importSummary
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && !sleepCtx(ctx, imp.delay) {
			break
		}
		name := filepath.Base(path)

		hash, err := calculateSHA1(path)
		if err != nil {
			imp.log.Warnw("Failed to calculate hash", zap.String("file", name), zap.Error(err))
			sum.Failed = append(sum.Failed, name)
			continue
		}

		project, err := imp.resolveHash(ctx, hash)
		if errors.Is(err, modrinth.ErrNotFound) {
			imp.log.Debugw("Mod not found on Modrinth by hash", zap.String("file", name))
			sum.NotFound = append(sum.NotFound, name)
			continue
		}
		if err != nil {
			imp.log.Warnw("Failed to resolve file", zap.String("file", name), zap.Error(err))
			sum.Failed = append(sum.Failed, name)
			continue
		}
		imp.add(ctx, project.AsSearchResult(), category, &sum)
	}
	return sum
}

func (imp *importer) resolveHash(ctx context.Context, hash string) (*modrinth.Project, error) {
	imp.lock.Lock()
	defer imp.lock.Unlock()

	version, err := imp.lookup.GetVersionByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return imp.lookup.GetProject(ctx, version.ProjectID)
}

func (imp *importer) add(ctx context.Context, res collection.SearchResult, category int, sum *importSummary) {
	err := imp.store.AddMod(ctx, res, category)
	switch {
	case err == nil:
		imp.log.Infow("Imported mod", zap.String("slug", res.Slug), zap.String("title", res.Title))
		sum.Added = append(sum.Added, res.Slug)
	case errors.Is(err, collection.ErrDuplicateMod):
		sum.Duplicate = append(sum.Duplicate, res.Slug)
	case errors.Is(err, collection.ErrPersistence):
		// Kept in memory; the next successful save persists it.
		imp.log.Warnw("Imported mod but failed to save", zap.String("slug", res.Slug), zap.Error(err))
		sum.Added = append(sum.Added, res.Slug)
	default:
		imp.log.Warnw("Failed to add mod", zap.String("slug", res.Slug), zap.Error(err))
		sum.Failed = append(sum.Failed, res.Slug)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// readModNames returns the non-empty, non-comment lines of path.
func readModNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, sc.Err()
}

// scanModFiles lists .jar and .zip files under root, skipping "versions"
// directories.
func scanModFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "versions" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".jar" || ext == ".zip" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func calculateSHA1(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha1.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
