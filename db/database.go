package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"modstacker/collection"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SnapshotLimit is how many previous collection states are kept for rollback.
const SnapshotLimit = 20

var ErrNoSnapshot = errors.New("no collection snapshot to roll back to")

// SQLiteGateway stores the collection in SQLite through gorm. Every save
// replaces all rows in one transaction and snapshots the previous state.
type SQLiteGateway struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// Open connects to the SQLite database at dbPath and migrates the schema.
func Open(dbPath string, log *zap.SugaredLogger) (*SQLiteGateway, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	db, err := gorm.Open(gormlite.Open(dbPath), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	err = db.AutoMigrate(&CategoryRecord{}, &ModRecord{}, &TargetVersionRecord{}, &CollectionState{}, &CollectionSnapshot{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	log.Infow("Database initialized", zap.String("path", dbPath))
	return &SQLiteGateway{db: db, log: log}, nil
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      false,
			Colorful:                  true,
		},
	)
}

func (g *SQLiteGateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load returns the stored collection, or the seed collection if nothing
// has ever been saved.
func (g *SQLiteGateway) Load(ctx context.Context) (collection.Collection, error) {
	var state CollectionState
	err := g.db.WithContext(ctx).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		g.log.Info("No stored collection found, using seed collection")
		return collection.Seed(), nil
	}
	if err != nil {
		return collection.Collection{}, fmt.Errorf("failed to read collection state: %w", err)
	}
	return readCollection(g.db.WithContext(ctx))
}

func readCollection(tx *gorm.DB) (collection.Collection, error) {
	var cats []CategoryRecord
	err := tx.Order("position").
		Preload("Mods", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Find(&cats).Error
	if err != nil {
		return collection.Collection{}, fmt.Errorf("failed to read categories: %w", err)
	}

	var versions []TargetVersionRecord
	if err := tx.Order("position").Find(&versions).Error; err != nil {
		return collection.Collection{}, fmt.Errorf("failed to read target versions: %w", err)
	}

	c := collection.Collection{
		Categories:     make([]collection.Category, 0, len(cats)),
		TargetVersions: make([]string, 0, len(versions)),
	}
	for _, rec := range cats {
		cat := collection.Category{Name: rec.Name, ShowExport: rec.ShowExport, Mods: make([]collection.Mod, 0, len(rec.Mods))}
		for _, m := range rec.Mods {
			if m.Versions == nil {
				m.Versions = map[string]bool{}
			}
			cat.Mods = append(cat.Mods, collection.Mod{
				Title:      m.Title,
				Slug:       m.Slug,
				IconURL:    m.IconURL,
				ClientSide: collection.Side(m.ClientSide),
				ServerSide: collection.Side(m.ServerSide),
				Checked:    m.Checked,
				Checking:   m.Checking,
				Versions:   m.Versions,
			})
		}
		c.Categories = append(c.Categories, cat)
	}
	for _, v := range versions {
		c.TargetVersions = append(c.TargetVersions, v.Version)
	}
	return c, nil
}

// Save replaces the stored collection with c.
func (g *SQLiteGateway) Save(ctx context.Context, c collection.Collection) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := g.snapshotLocked(tx, c); err != nil {
			return err
		}
		return writeCollection(tx, c)
	})
}

// snapshotLocked records the currently stored collection if one exists and
// differs from next, then prunes old snapshots.
func (g *SQLiteGateway) snapshotLocked(tx *gorm.DB, next collection.Collection) error {
	var count int64
	if err := tx.Model(&CollectionState{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to read collection state: %w", err)
	}
	if count == 0 {
		return nil
	}

	prev, err := readCollection(tx)
	if err != nil {
		return err
	}
	prevJSON, err := json.Marshal(prev)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}
	if string(prevJSON) == string(nextJSON) {
		return nil
	}

	snap := CollectionSnapshot{Payload: string(prevJSON), Categories: len(prev.Categories), Mods: prev.ModCount()}
	if err := tx.Create(&snap).Error; err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	var ids []uint
	err = tx.Model(&CollectionSnapshot{}).Unscoped().Order("id DESC").Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("failed to list old snapshots: %w", err)
	}
	if len(ids) > SnapshotLimit {
		stale := ids[SnapshotLimit:]
		if err := tx.Unscoped().Delete(&CollectionSnapshot{}, stale).Error; err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
	}
	return nil
}

func writeCollection(tx *gorm.DB, c collection.Collection) error {
	for _, model := range []interface{}{&ModRecord{}, &CategoryRecord{}, &TargetVersionRecord{}} {
		if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clear %T: %w", model, err)
		}
	}

	if len(c.Categories) > 0 {
		cats := make([]CategoryRecord, 0, len(c.Categories))
		for i, cat := range c.Categories {
			rec := CategoryRecord{Position: i, Name: cat.Name, ShowExport: cat.ShowExport}
			for j, m := range cat.Mods {
				rec.Mods = append(rec.Mods, ModRecord{
					Position:   j,
					Slug:       m.Slug,
					Title:      m.Title,
					IconURL:    m.IconURL,
					ClientSide: string(m.ClientSide),
					ServerSide: string(m.ServerSide),
					Checked:    m.Checked,
					Checking:   m.Checking,
					Versions:   m.Versions,
				})
			}
			cats = append(cats, rec)
		}
		if err := tx.Create(&cats).Error; err != nil {
			return fmt.Errorf("failed to write categories: %w", err)
		}
	}

	if len(c.TargetVersions) > 0 {
		versions := make([]TargetVersionRecord, 0, len(c.TargetVersions))
		for i, v := range c.TargetVersions {
			versions = append(versions, TargetVersionRecord{Position: i, Version: v})
		}
		if err := tx.Create(&versions).Error; err != nil {
			return fmt.Errorf("failed to write target versions: %w", err)
		}
	}

	state := CollectionState{ID: 1, SavedAt: time.Now()}
	if err := tx.Save(&state).Error; err != nil {
		return fmt.Errorf("failed to write collection state: %w", err)
	}
	return nil
}

// SnapshotInfo describes one stored snapshot, newest first in Snapshots.
type SnapshotInfo struct {
	ID         uint
	CreatedAt  time.Time
	Categories int
	Mods       int
}

func (g *SQLiteGateway) Snapshots(ctx context.Context) ([]SnapshotInfo, error) {
	var snaps []CollectionSnapshot
	if err := g.db.WithContext(ctx).Order("id DESC").Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	out := make([]SnapshotInfo, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, SnapshotInfo{ID: s.ID, CreatedAt: s.CreatedAt, Categories: s.Categories, Mods: s.Mods})
	}
	return out, nil
}

// Rollback restores the most recent snapshot, removes it from history and
// returns the restored collection.
func (g *SQLiteGateway) Rollback(ctx context.Context) (collection.Collection, error) {
	var restored collection.Collection
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snap CollectionSnapshot
		err := tx.Order("id DESC").First(&snap).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoSnapshot
		}
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(snap.Payload), &restored); err != nil {
			return fmt.Errorf("failed to decode snapshot %d: %w", snap.ID, err)
		}
		if err := writeCollection(tx, restored); err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&snap).Error; err != nil {
			return fmt.Errorf("failed to delete snapshot %d: %w", snap.ID, err)
		}
		g.log.Infow("Collection rolled back",
			zap.Uint("snapshot", snap.ID),
			zap.Int("categories", len(restored.Categories)),
			zap.Int("mods", restored.ModCount()),
		)
		return nil
	})
	if err != nil {
		return collection.Collection{}, err
	}
	return restored, nil
}
