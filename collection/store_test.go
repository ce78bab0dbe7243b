package collection

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type recordingGateway struct {
	mu      sync.Mutex
	stored  Collection
	saves   int
	saveErr error
	loadErr error
}

func (g *recordingGateway) Load(_ context.Context) (Collection, error) {
	if g.loadErr != nil {
		return Collection{}, g.loadErr
	}
	return g.stored.Clone(), nil
}

func (g *recordingGateway) Save(_ context.Context, c Collection) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.saveErr != nil {
		return g.saveErr
	}
	g.stored = c.Clone()
	return nil
}

func (g *recordingGateway) saveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}

func newTestStore(t *testing.T, c Collection) (*Store, *recordingGateway) {
	t.Helper()
	gw := &recordingGateway{stored: c}
	s := NewStore(gw, zap.NewNop().Sugar())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return s, gw
}

func sampleCollection() Collection {
	return Collection{
		Categories: []Category{
			{Name: "Performance", Mods: []Mod{
				{Title: "Sodium", Slug: "sodium", ClientSide: SideRequired, ServerSide: SideUnsupported,
					Checked: true, Versions: map[string]bool{"1.21.1": true, "1.21.4": false}},
				{Title: "Lithium", Slug: "lithium", ClientSide: SideOptional, ServerSide: SideOptional},
			}},
			{Name: "Visuals", Mods: []Mod{
				{Title: "Iris", Slug: "iris", ClientSide: SideRequired, ServerSide: SideUnsupported, Checking: true},
			}},
		},
		TargetVersions: []string{"1.21.4", "1.21.1"},
	}
}

func TestLoadNormalisesState(t *testing.T) {
	c := sampleCollection()
	c.Categories[1].Mods = append(c.Categories[1].Mods, Mod{Slug: "sodium", Title: "Sodium again"})
	s, _ := newTestStore(t, c)

	if got := s.Versions(); !reflect.DeepEqual(got, []string{"1.21.1", "1.21.4"}) {
		t.Errorf("versions not sorted on load: %v", got)
	}
	iris, _, ok := s.FindMod("iris")
	if !ok {
		t.Fatal("iris missing after load")
	}
	if iris.Checking {
		t.Error("stale checking flag should be cleared on load")
	}
	if s.TotalMods() != 3 {
		t.Errorf("duplicate slug should be dropped on load, have %d mods", s.TotalMods())
	}
}

func TestLoadAppliesDefaultVersions(t *testing.T) {
	gw := &recordingGateway{stored: Collection{Categories: []Category{{Name: "A"}}}}
	s := NewStore(gw, zap.NewNop().Sugar(), WithDefaultVersions([]string{"1.21.4", "1.21.1"}))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := s.Versions(); !reflect.DeepEqual(got, []string{"1.21.1", "1.21.4"}) {
		t.Errorf("Versions() = %v", got)
	}
}

func TestLoadError(t *testing.T) {
	gw := &recordingGateway{loadErr: errors.New("disk on fire")}
	s := NewStore(gw, zap.NewNop().Sugar())
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
}

func TestVersionChangesResetChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("add", func(t *testing.T) {
		s, gw := newTestStore(t, sampleCollection())
		s.cache.Put(CacheKey{Slug: "sodium", Versions: "1.21.1_1.21.4"}, map[string]bool{"1.21.1": true})

		if err := s.AddVersion(ctx, "1.21.2"); err != nil {
			t.Fatalf("AddVersion failed: %v", err)
		}
		assertAllReset(t, s)
		if gw.saveCount() != 1 {
			t.Errorf("expected 1 save, got %d", gw.saveCount())
		}
	})

	t.Run("remove", func(t *testing.T) {
		s, gw := newTestStore(t, sampleCollection())
		s.cache.Put(CacheKey{Slug: "sodium", Versions: "1.21.1_1.21.4"}, map[string]bool{"1.21.1": true})

		removed, err := s.RemoveVersion(ctx, 1)
		if err != nil {
			t.Fatalf("RemoveVersion failed: %v", err)
		}
		if removed != "1.21.4" {
			t.Errorf("removed %q, want 1.21.4", removed)
		}
		assertAllReset(t, s)
		if gw.saveCount() != 1 {
			t.Errorf("expected 1 save, got %d", gw.saveCount())
		}
	})

	t.Run("rejected add leaves state", func(t *testing.T) {
		s, gw := newTestStore(t, sampleCollection())
		if err := s.AddVersion(ctx, "1.21.1"); err == nil {
			t.Fatal("expected duplicate error")
		}
		sodium, _, _ := s.FindMod("sodium")
		if !sodium.Checked {
			t.Error("rejected add must not reset checks")
		}
		if gw.saveCount() != 0 {
			t.Errorf("rejected add must not save, got %d saves", gw.saveCount())
		}
	})
}

func assertAllReset(t *testing.T, s *Store) {
	t.Helper()
	snap := s.Snapshot()
	for _, c := range snap.Categories {
		for _, m := range c.Mods {
			if m.Checked || len(m.Versions) != 0 {
				t.Errorf("mod %s not reset: checked=%v versions=%v", m.Slug, m.Checked, m.Versions)
			}
		}
	}
	if s.CacheLen() != 0 {
		t.Errorf("cache not cleared, %d entries", s.CacheLen())
	}
}

func TestAddCategoryAndDelete(t *testing.T) {
	ctx := context.Background()
	s, gw := newTestStore(t, sampleCollection())

	idx, err := s.AddCategory(ctx)
	if err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}
	if idx != 2 {
		t.Errorf("new category index = %d, want 2", idx)
	}
	snap := s.Snapshot()
	if snap.Categories[2].Name != DefaultCategoryName || len(snap.Categories[2].Mods) != 0 {
		t.Errorf("unexpected new category: %+v", snap.Categories[2])
	}

	n, err := s.ModCount(0)
	if err != nil || n != 2 {
		t.Errorf("ModCount(0) = %d, %v", n, err)
	}

	if err := s.DeleteCategory(ctx, 0); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
	if _, _, ok := s.FindMod("sodium"); ok {
		t.Error("mods of a deleted category should be gone")
	}
	if err := s.DeleteCategory(ctx, 9); !errors.Is(err, ErrCategoryIndex) {
		t.Errorf("expected ErrCategoryIndex, got %v", err)
	}
	if gw.saveCount() != 2 {
		t.Errorf("expected 2 saves, got %d", gw.saveCount())
	}
}

func TestAddMod(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults and hook", func(t *testing.T) {
		s, gw := newTestStore(t, sampleCollection())
		var scheduled []string
		s.OnModAdded(func(slug string) { scheduled = append(scheduled, slug) })

		err := s.AddMod(ctx, SearchResult{Title: "Fabric API", Slug: "fabric-api", IconURL: "https://cdn/icon.png"}, 1)
		if err != nil {
			t.Fatalf("AddMod failed: %v", err)
		}
		m, ci, ok := s.FindMod("fabric-api")
		if !ok || ci != 1 {
			t.Fatalf("mod not added to category 1 (found=%v, ci=%d)", ok, ci)
		}
		if m.ClientSide != SideRequired || m.ServerSide != SideRequired {
			t.Errorf("sides should default to required, got %s/%s", m.ClientSide, m.ServerSide)
		}
		if m.Checked || m.Checking || len(m.Versions) != 0 {
			t.Errorf("new mod should be unchecked: %+v", m)
		}
		if !reflect.DeepEqual(scheduled, []string{"fabric-api"}) {
			t.Errorf("check not scheduled: %v", scheduled)
		}
		if gw.saveCount() != 1 {
			t.Errorf("expected 1 save, got %d", gw.saveCount())
		}
	})

	t.Run("duplicate anywhere is a no-op", func(t *testing.T) {
		s, gw := newTestStore(t, sampleCollection())
		before := s.Snapshot()

		err := s.AddMod(ctx, SearchResult{Title: "Iris", Slug: "iris"}, 0)
		if !errors.Is(err, ErrDuplicateMod) {
			t.Fatalf("expected ErrDuplicateMod, got %v", err)
		}
		if !reflect.DeepEqual(before, s.Snapshot()) {
			t.Error("collection changed after duplicate add")
		}
		if gw.saveCount() != 0 {
			t.Errorf("duplicate add must not save, got %d", gw.saveCount())
		}
	})

	t.Run("creates a category when empty", func(t *testing.T) {
		s, _ := newTestStore(t, Collection{TargetVersions: []string{"1.21.1"}})
		if err := s.AddMod(ctx, SearchResult{Slug: "sodium", ClientSide: SideOptional}, 0); err != nil {
			t.Fatalf("AddMod failed: %v", err)
		}
		snap := s.Snapshot()
		if len(snap.Categories) != 1 || snap.Categories[0].Name != DefaultCategoryName {
			t.Fatalf("expected an auto-created category, got %+v", snap.Categories)
		}
		if snap.Categories[0].Mods[0].ClientSide != SideOptional {
			t.Error("explicit side should be kept")
		}
	})

	t.Run("out of range index on empty collection changes nothing", func(t *testing.T) {
		s, gw := newTestStore(t, Collection{TargetVersions: []string{"1.21.1"}})
		var scheduled []string
		s.OnModAdded(func(slug string) { scheduled = append(scheduled, slug) })

		err := s.AddMod(ctx, SearchResult{Slug: "sodium"}, 3)
		if !errors.Is(err, ErrCategoryIndex) {
			t.Fatalf("expected ErrCategoryIndex, got %v", err)
		}
		if n := s.CategoryCount(); n != 0 {
			t.Errorf("expected no categories in memory, got %d", n)
		}
		if gw.saveCount() != 0 || len(scheduled) != 0 {
			t.Errorf("rejected add must not save or schedule (saves=%d, scheduled=%v)", gw.saveCount(), scheduled)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		s, _ := newTestStore(t, sampleCollection())
		if err := s.AddMod(ctx, SearchResult{Title: "x"}, 0); !errors.Is(err, ErrInvalidMod) {
			t.Errorf("expected ErrInvalidMod, got %v", err)
		}
		if err := s.AddMod(ctx, SearchResult{Slug: "x"}, 7); !errors.Is(err, ErrCategoryIndex) {
			t.Errorf("expected ErrCategoryIndex, got %v", err)
		}
	})
}

func TestMoveMod(t *testing.T) {
	ctx := context.Background()

	t.Run("moves by slug", func(t *testing.T) {
		s, gw := newTestStore(t, sampleCollection())
		if err := s.MoveMod(ctx, "sodium", 0, 1); err != nil {
			t.Fatalf("MoveMod failed: %v", err)
		}
		_, ci, _ := s.FindMod("sodium")
		if ci != 1 {
			t.Errorf("sodium in category %d, want 1", ci)
		}
		snap := s.Snapshot()
		if len(snap.Categories[0].Mods) != 1 || len(snap.Categories[1].Mods) != 2 {
			t.Errorf("unexpected sizes after move: %d/%d", len(snap.Categories[0].Mods), len(snap.Categories[1].Mods))
		}
		if snap.Categories[1].Mods[1].Slug != "sodium" {
			t.Error("moved mod should be appended to the target")
		}
		if gw.saveCount() != 1 {
			t.Errorf("expected 1 save, got %d", gw.saveCount())
		}
	})

	t.Run("same category is a no-op", func(t *testing.T) {
		s, gw := newTestStore(t, sampleCollection())
		if err := s.MoveMod(ctx, "sodium", 0, 0); err != nil {
			t.Fatalf("MoveMod failed: %v", err)
		}
		if gw.saveCount() != 0 {
			t.Errorf("no-op move must not save")
		}
	})

	t.Run("errors", func(t *testing.T) {
		s, _ := newTestStore(t, sampleCollection())
		if err := s.MoveMod(ctx, "iris", 0, 1); !errors.Is(err, ErrDuplicateMod) {
			t.Errorf("expected ErrDuplicateMod when target holds slug, got %v", err)
		}
		if err := s.MoveMod(ctx, "ghost", 0, 1); !errors.Is(err, ErrModNotFound) {
			t.Errorf("expected ErrModNotFound, got %v", err)
		}
		if err := s.MoveMod(ctx, "sodium", 0, 5); !errors.Is(err, ErrCategoryIndex) {
			t.Errorf("expected ErrCategoryIndex, got %v", err)
		}
	})
}

func TestRemoveAndRename(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, sampleCollection())

	if err := s.RemoveMod(ctx, 0, "lithium"); err != nil {
		t.Fatalf("RemoveMod failed: %v", err)
	}
	if _, _, ok := s.FindMod("lithium"); ok {
		t.Error("lithium should be removed")
	}
	if err := s.RemoveMod(ctx, 0, "lithium"); !errors.Is(err, ErrModNotFound) {
		t.Errorf("expected ErrModNotFound, got %v", err)
	}

	if err := s.RenameCategory(ctx, 1, "Shaders"); err != nil {
		t.Fatalf("RenameCategory failed: %v", err)
	}
	if s.Snapshot().Categories[1].Name != "Shaders" {
		t.Error("rename not applied")
	}
}

func TestPersistenceFailureKeepsMutation(t *testing.T) {
	s, gw := newTestStore(t, sampleCollection())
	gw.saveErr = errors.New("read-only filesystem")

	_, err := s.AddCategory(context.Background())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if s.CategoryCount() != 3 {
		t.Errorf("mutation should survive a failed save, have %d categories", s.CategoryCount())
	}
}

func TestExportLinks(t *testing.T) {
	s, _ := newTestStore(t, sampleCollection())
	links, err := s.ExportLinks(0)
	if err != nil {
		t.Fatalf("ExportLinks failed: %v", err)
	}
	if !reflect.DeepEqual(links, []string{"https://modrinth.com/mod/sodium"}) {
		t.Errorf("ExportLinks = %v", links)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, _ := newTestStore(t, sampleCollection())
	snap := s.Snapshot()
	snap.Categories[0].Mods[0].Versions["1.21.4"] = true
	snap.Categories[0].Name = "changed"

	again := s.Snapshot()
	if again.Categories[0].Name != "Performance" || again.Categories[0].Mods[0].Versions["1.21.4"] {
		t.Error("snapshot mutation leaked into the store")
	}
}

func TestMetadataHelpers(t *testing.T) {
	c := sampleCollection()
	c.Categories[0].Mods[1].ServerSide = ""
	s, gw := newTestStore(t, c)

	if got := s.MissingSides(); !reflect.DeepEqual(got, []string{"lithium"}) {
		t.Fatalf("MissingSides() = %v", got)
	}
	if !s.ApplyMetadata("lithium", SideMetadata{ClientSide: SideOptional, ServerSide: SideRequired, Title: "Lithium!"}) {
		t.Fatal("ApplyMetadata returned false")
	}
	m, _, _ := s.FindMod("lithium")
	if m.ServerSide != SideRequired || m.Title != "Lithium!" {
		t.Errorf("metadata not applied: %+v", m)
	}
	if gw.saveCount() != 0 {
		t.Error("ApplyMetadata must not save")
	}
	if s.ApplyMetadata("ghost", SideMetadata{}) {
		t.Error("ApplyMetadata on unknown slug should return false")
	}
}

func TestCollectionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mod     Mod
		wantErr bool
	}{
		{"complete", Mod{Slug: "sodium", ClientSide: SideRequired, ServerSide: SideUnsupported}, false},
		{"unset sides", Mod{Slug: "sodium"}, false},
		{"unknown is a Modrinth value", Mod{Slug: "sodium", ClientSide: SideUnknown, ServerSide: SideOptional}, false},
		{"missing slug", Mod{Title: "Sodium"}, true},
		{"bad client side", Mod{Slug: "sodium", ClientSide: "client"}, true},
		{"bad server side", Mod{Slug: "sodium", ServerSide: "REQUIRED"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Collection{Categories: []Category{{Name: "A", Mods: []Mod{tt.mod}}}}
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMod) {
				t.Errorf("error should wrap ErrInvalidMod, got %v", err)
			}
		})
	}
}
