package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"modstacker/collection"
	"modstacker/compat"
	"modstacker/config"
	"modstacker/db"
	"modstacker/logger"
	"modstacker/metadata"
	"modstacker/modrinth"

	"go.uber.org/zap"
)

// registry is what the core components need from Modrinth.
type registry interface {
	compat.VersionSupportFetcher
	metadata.ProjectMetadataFetcher
}

// app bundles everything a command needs. All registry traffic from the
// checker, the reconciler and bulk imports shares remoteMu.
type app struct {
	cfg        config.Config
	client     *modrinth.Client
	sqlite     *db.SQLiteGateway
	store      *collection.Store
	checker    *compat.Checker
	reconciler *metadata.Reconciler
	remoteMu   *sync.Mutex
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(ctx context.Context, path string) (*app, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Log.Errorw("Failed to load configuration", zap.Error(err))
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	client, err := modrinth.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Modrinth client: %w", err)
	}

	gw, sqlite, err := openGateway(cfg)
	if err != nil {
		logger.Log.Errorw("Failed to open storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
		return nil, err
	}

	a := newApp(cfg, gw, client)
	a.client = client
	a.sqlite = sqlite

	if err := a.store.Load(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	logger.Log.Infow("Collection loaded",
		zap.String("backend", cfg.StorageBackend),
		zap.Int("categories", a.store.CategoryCount()),
		zap.Int("mods", a.store.TotalMods()),
		zap.Strings("versions", a.store.Versions()),
	)
	return a, nil
}

func openGateway(cfg config.Config) (collection.Gateway, *db.SQLiteGateway, error) {
	switch cfg.StorageBackend {
	case config.BackendJSON:
		fg := db.NewFileGateway(cfg.CollectionFilePath, logger.Named("store"))
		logger.Log.Infow("Using collection file", zap.String("path", fg.Path()))
		return fg, nil, nil
	default:
		g, err := db.Open(cfg.DatabasePath, logger.Named("db"))
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	}
}

// newApp wires the store, checker and reconciler around gw and remote.
// Newly added mods are checked in the background.
func newApp(cfg config.Config, gw collection.Gateway, remote registry) *app {
	lock := &sync.Mutex{}
	store := collection.NewStore(gw, logger.Named("store"), collection.WithDefaultVersions(cfg.TargetVersions()))
	checker := compat.NewChecker(store, remote, logger.Named("compat"),
		compat.WithDelay(cfg.APIDelay()),
		compat.WithRemoteLock(lock),
	)
	reconciler := metadata.NewReconciler(store, remote, logger.Named("metadata"),
		metadata.WithDelay(cfg.MetadataDelay()),
		metadata.WithRemoteLock(lock),
	)
	store.OnModAdded(checker.Schedule)

	return &app{
		cfg:        cfg,
		store:      store,
		checker:    checker,
		reconciler: reconciler,
		remoteMu:   lock,
	}
}

// close waits for background checks and releases storage.
func (a *app) close() {
	a.checker.Wait()
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			logger.Log.Warnw("Failed to close database", zap.Error(err))
		}
	}
}

// parseIndex parses a zero-based index argument.
func parseIndex(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid index %q", arg)
	}
	return n, nil
}

// resolveCategory accepts either an index or a category name (case-insensitive).
func resolveCategory(store *collection.Store, arg string) (int, error) {
	if n, err := parseIndex(arg); err == nil {
		if n >= store.CategoryCount() {
			return 0, fmt.Errorf("%w: %d", collection.ErrCategoryIndex, n)
		}
		return n, nil
	}
	for i, cat := range store.Snapshot().Categories {
		if strings.EqualFold(cat.Name, strings.TrimSpace(arg)) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no category named %q", arg)
}

// targetCategory resolves the category a new mod goes to. An empty
// collection resolves to 0 so AddMod can create the first category.
func targetCategory(store *collection.Store, arg string) (int, error) {
	if store.CategoryCount() == 0 {
		return 0, nil
	}
	return resolveCategory(store, arg)
}
