package db

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"modstacker/collection"
)

func TestFileGatewaySeedsWhenMissing(t *testing.T) {
	g := NewFileGateway(filepath.Join(t.TempDir(), "mods.json"), nil)
	c, err := g.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(c, collection.Seed()) {
		t.Errorf("expected seed, got %+v", c)
	}
}

func TestFileGatewayRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mods.json")
	g := NewFileGateway(path, nil)
	ctx := context.Background()

	if err := g.Save(ctx, sample()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := g.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, sample()) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	raw, _ := os.ReadFile(path)
	for _, field := range []string{`"targetVersions"`, `"showExport"`, `"icon_url"`, `"client_side"`, `"checking"`} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("expected %s in file", field)
		}
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestFileGatewayReadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mods.json")
	doc := `{"categories":[{"name":"Perf","mods":[{"title":"Sodium","slug":"sodium","icon_url":"","checked":false,"versions":{}}]}],"targetVersions":["1.21.1"]}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := NewFileGateway(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Categories[0].Mods[0].ClientSide != "" {
		t.Error("absent side should load as empty so metadata backfill can fill it")
	}
}

func TestFileGatewayCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mods.json")
	os.WriteFile(path, []byte("{not json"), 0644)
	if _, err := NewFileGateway(path, nil).Load(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}
