package cmd

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"modstacker/collection"
	"modstacker/config"
	"modstacker/versions"
)

type fakeRegistry struct {
	mu      sync.Mutex
	calls   int
	support map[string]map[string]bool
	meta    map[string]collection.SideMetadata
}

func (f *fakeRegistry) FetchVersionSupport(_ context.Context, slug string, versions []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]bool, len(versions))
	for _, v := range versions {
		out[v] = f.support[slug][v]
	}
	return out, nil
}

func (f *fakeRegistry) FetchProjectMetadata(_ context.Context, slug string) (collection.SideMetadata, error) {
	meta, ok := f.meta[slug]
	if !ok {
		return collection.SideMetadata{}, errors.New("not_found")
	}
	return meta, nil
}

type memGateway struct {
	mu    sync.Mutex
	c     collection.Collection
	saves int
}

func (g *memGateway) Load(context.Context) (collection.Collection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.c, nil
}

func (g *memGateway) Save(_ context.Context, c collection.Collection) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.c = c
	g.saves++
	return nil
}

func testConfig() config.Config {
	return config.Config{
		DefaultTargetVersions: "1.21.1,1.21.4",
		MinecraftLoader:       "fabric",
	}
}

func newTestApp(t *testing.T, c collection.Collection, reg *fakeRegistry) (*app, *memGateway) {
	t.Helper()
	gw := &memGateway{c: c}
	a := newApp(testConfig(), gw, reg)
	if err := a.store.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(a.close)
	return a, gw
}

func TestNewAppAppliesDefaultVersions(t *testing.T) {
	a, _ := newTestApp(t, collection.Collection{Categories: []collection.Category{{Name: "A"}}}, &fakeRegistry{})
	got := a.store.Versions()
	if len(got) != 2 || got[0] != "1.21.1" || got[1] != "1.21.4" {
		t.Errorf("versions = %v", got)
	}
}

func TestNewAppSchedulesCheckOnAdd(t *testing.T) {
	reg := &fakeRegistry{support: map[string]map[string]bool{"sodium": {"1.21.1": true}}}
	a, _ := newTestApp(t, collection.Seed(), reg)

	if err := a.store.AddMod(context.Background(), collection.SearchResult{Slug: "sodium", Title: "Sodium"}, 0); err != nil {
		t.Fatalf("AddMod: %v", err)
	}
	a.checker.Wait()

	mod, _, _ := a.store.FindMod("sodium")
	if !mod.Checked || !mod.Versions["1.21.1"] {
		t.Errorf("mod not checked after add: %+v", mod)
	}
}

func TestNewAppSharesRemoteLock(t *testing.T) {
	reg := &fakeRegistry{meta: map[string]collection.SideMetadata{"lithium": {ClientSide: collection.SideOptional, ServerSide: collection.SideOptional}}}
	a, _ := newTestApp(t, collection.Collection{
		Categories:     []collection.Category{{Name: "A", Mods: []collection.Mod{{Slug: "lithium"}}}},
		TargetVersions: []string{"1.21.1"},
	}, reg)

	a.remoteMu.Lock()
	done := make(chan struct{})
	go func() {
		a.reconciler.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("reconciler ran while the remote lock was held")
	case <-time.After(20 * time.Millisecond):
	}
	a.remoteMu.Unlock()
	<-done

	mod, _, _ := a.store.FindMod("lithium")
	if mod.ClientSide != collection.SideOptional {
		t.Errorf("metadata not applied: %+v", mod)
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{" 3 ", 3, false},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseIndex(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("parseIndex(%q) = %d, %v", tt.in, got, err)
			}
		})
	}
}

func TestResolveCategory(t *testing.T) {
	a, _ := newTestApp(t, collection.Seed(), &fakeRegistry{})

	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"visuals", 1, false},
		{"Performance", 0, false},
		{"5", 0, true},
		{"Audio", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := resolveCategory(a.store, tt.arg)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("resolveCategory(%q) = %d, %v", tt.arg, got, err)
			}
		})
	}
}

func TestTargetCategoryOnEmptyCollection(t *testing.T) {
	a, _ := newTestApp(t, collection.Collection{Categories: []collection.Category{}}, &fakeRegistry{})

	idx, err := targetCategory(a.store, "Performance")
	if err != nil || idx != 0 {
		t.Fatalf("targetCategory() = %d, %v; want 0, nil", idx, err)
	}
	if err := a.store.AddMod(context.Background(), collection.SearchResult{Slug: "sodium", Title: "Sodium"}, idx); err != nil {
		t.Fatalf("AddMod: %v", err)
	}
	if a.store.CategoryCount() != 1 {
		t.Errorf("CategoryCount = %d, want 1", a.store.CategoryCount())
	}
}

func TestResolveVersionIndex(t *testing.T) {
	current := []string{"1.21.1", "1.21.4"}
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"1.21.4", 1, false},
		{"1", 1, false},
		{"1.20", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := resolveVersionIndex(current, tt.arg)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("resolveVersionIndex(%q) = %d, %v", tt.arg, got, err)
			}
		})
	}
	if _, err := resolveVersionIndex(current, "1.20"); !errors.Is(err, versions.ErrIndexOutOfRange) {
		t.Errorf("unknown version error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out strings.Builder
		if got := confirm(strings.NewReader(tt.in), &out, "ok? "); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if out.String() != "ok? " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}
