package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modstacker/collection"

	"go.uber.org/zap"
)

// FileGateway stores the collection as one indented JSON document, the
// mods.json layout used by the web front end.
type FileGateway struct {
	path string
	log  *zap.SugaredLogger
}

func NewFileGateway(path string, log *zap.SugaredLogger) *FileGateway {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &FileGateway{path: path, log: log}
}

func (g *FileGateway) Path() string { return g.path }

// Load reads the file, or returns the seed collection if it does not exist.
func (g *FileGateway) Load(_ context.Context) (collection.Collection, error) {
	data, err := os.ReadFile(g.path)
	if errors.Is(err, os.ErrNotExist) {
		g.log.Infow("Collection file not found, using seed collection", zap.String("path", g.path))
		return collection.Seed(), nil
	}
	if err != nil {
		return collection.Collection{}, fmt.Errorf("failed to read '%s': %w", g.path, err)
	}

	var c collection.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return collection.Collection{}, fmt.Errorf("failed to decode '%s': %w", g.path, err)
	}
	return c, nil
}

// Save writes through a temp file in the same directory and renames it over
// the target, so readers never see a partial document.
func (g *FileGateway) Save(_ context.Context, c collection.Collection) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(g.path), ".mods-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write '%s': %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close '%s': %w", tmpName, err)
	}
	if err := os.Rename(tmpName, g.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace '%s': %w", g.path, err)
	}
	return nil
}
