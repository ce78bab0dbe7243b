package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"modstacker/versions"

	"go.uber.org/zap"
)

var (
	ErrCategoryIndex = errors.New("category index out of range")
	ErrDuplicateMod  = errors.New("mod already in collection")
	ErrModNotFound   = errors.New("mod not found")
	ErrInvalidMod    = errors.New("mod has no slug")
	ErrPersistence   = errors.New("failed to persist collection")
	ErrNoVersions    = errors.New("no target versions configured")
	ErrCheckInFlight = errors.New("compatibility check already in flight")
)

// Gateway is the durable save/load of the whole collection.
type Gateway interface {
	Load(ctx context.Context) (Collection, error)
	Save(ctx context.Context, c Collection) error
}

// Store owns the collection, its version set and the compatibility cache.
// Every committed mutation ends with a save through the Gateway. Saves are
// not debounced. A failed save leaves the in-memory mutation in place and
// returns an error wrapping ErrPersistence.
type Store struct {
	mu         sync.Mutex
	categories []Category
	versions   *versions.Set
	cache      *Cache

	saveMu  sync.Mutex
	gateway Gateway
	log     *zap.SugaredLogger

	defaultVersions []string
	onModAdded      func(slug string)
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultVersions sets the versions applied when a loaded collection has none.
func WithDefaultVersions(v []string) Option {
	return func(s *Store) {
		s.defaultVersions = v
	}
}

// NewStore creates an empty store. Call Load to populate it from the gateway.
func NewStore(gw Gateway, log *zap.SugaredLogger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Store{
		versions: &versions.Set{},
		cache:    NewCache(),
		gateway:  gw,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnModAdded registers fn to run after a mod is added and saved. The
// compatibility checker uses it to schedule the initial check.
func (s *Store) OnModAdded(fn func(slug string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onModAdded = fn
}

// Load replaces the in-memory state with the gateway's collection.
func (s *Store) Load(ctx context.Context) error {
	if s.gateway == nil {
		return nil
	}
	c, err := s.gateway.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	s.Replace(c)
	return nil
}

// Replace installs c as the current state without saving it. Stale
// checking flags are cleared and duplicate slugs after the first are dropped.
func (s *Store) Replace(c Collection) {
	set, err := versions.NewSet(c.TargetVersions)
	if err != nil {
		s.log.Warnw("Skipped invalid stored target versions", zap.Error(err))
	}
	if set.Empty() && len(s.defaultVersions) > 0 {
		set, err = versions.NewSet(s.defaultVersions)
		if err != nil {
			s.log.Warnw("Skipped invalid default target versions", zap.Error(err))
		}
	}

	seen := make(map[string]bool)
	categories := make([]Category, 0, len(c.Categories))
	for _, cat := range c.Categories {
		cat = cat.clone()
		mods := cat.Mods[:0]
		for _, m := range cat.Mods {
			if seen[m.Slug] {
				s.log.Warnw("Dropping duplicate mod from loaded collection",
					zap.String("slug", m.Slug),
					zap.String("category", cat.Name),
				)
				continue
			}
			seen[m.Slug] = true
			m.Checking = false
			mods = append(mods, m)
		}
		cat.Mods = mods
		categories = append(categories, cat)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = categories
	s.versions = set
	s.cache.Clear()
}

// Save writes the current state through the gateway.
func (s *Store) Save(ctx context.Context) error {
	if s.gateway == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snapshot := s.Snapshot()
	if err := s.gateway.Save(ctx, snapshot); err != nil {
		s.log.Errorw("Failed to save collection", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Snapshot returns a deep copy of the collection.
func (s *Store) Snapshot() Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Collection {
	return Collection{
		Categories:     Collection{Categories: s.categories}.Clone().Categories,
		TargetVersions: s.versions.Values(),
	}
}

// Versions returns the ordered target versions.
func (s *Store) Versions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions.Values()
}

// CacheLen returns the number of memoized compatibility results.
func (s *Store) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// AddVersion inserts a target version and resets every check.
func (s *Store) AddVersion(ctx context.Context, raw string) error {
	s.mu.Lock()
	if err := s.versions.Add(raw); err != nil {
		s.mu.Unlock()
		return err
	}
	s.resetLocked()
	s.mu.Unlock()

	s.log.Infow("Added target version", zap.String("version", strings.TrimSpace(raw)))
	return s.Save(ctx)
}

// RemoveVersion removes the target version at index and resets every check.
func (s *Store) RemoveVersion(ctx context.Context, index int) (string, error) {
	s.mu.Lock()
	removed, err := s.versions.Remove(index)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.resetLocked()
	s.mu.Unlock()

	s.log.Infow("Removed target version", zap.String("version", removed))
	return removed, s.Save(ctx)
}

// ResetChecks clears every mod's check state and the cache, then saves.
func (s *Store) ResetChecks(ctx context.Context) error {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	return s.Save(ctx)
}

func (s *Store) resetLocked() {
	for ci := range s.categories {
		for mi := range s.categories[ci].Mods {
			m := &s.categories[ci].Mods[mi]
			m.Checked = false
			m.Versions = map[string]bool{}
		}
	}
	s.cache.Clear()
}

// AddCategory appends an empty category and returns its index.
func (s *Store) AddCategory(ctx context.Context) (int, error) {
	s.mu.Lock()
	idx := s.addCategoryLocked()
	s.mu.Unlock()
	return idx, s.Save(ctx)
}

func (s *Store) addCategoryLocked() int {
	s.categories = append(s.categories, Category{Name: DefaultCategoryName, Mods: []Mod{}})
	return len(s.categories) - 1
}

// RenameCategory changes a category's name.
func (s *Store) RenameCategory(ctx context.Context, index int, name string) error {
	s.mu.Lock()
	if err := s.checkCategoryLocked(index); err != nil {
		s.mu.Unlock()
		return err
	}
	s.categories[index].Name = name
	s.mu.Unlock()
	return s.Save(ctx)
}

// SetShowExport toggles a category's export panel flag.
func (s *Store) SetShowExport(ctx context.Context, index int, show bool) error {
	s.mu.Lock()
	if err := s.checkCategoryLocked(index); err != nil {
		s.mu.Unlock()
		return err
	}
	s.categories[index].ShowExport = show
	s.mu.Unlock()
	return s.Save(ctx)
}

// ModCount returns the number of mods in a category, so callers can ask
// for confirmation before DeleteCategory.
func (s *Store) ModCount(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCategoryLocked(index); err != nil {
		return 0, err
	}
	return len(s.categories[index].Mods), nil
}

// TotalMods returns the number of mods across all categories.
func (s *Store) TotalMods() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.categories {
		n += len(c.Mods)
	}
	return n
}

// CategoryCount returns the number of categories.
func (s *Store) CategoryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.categories)
}

// DeleteCategory removes a category and all of its mods.
func (s *Store) DeleteCategory(ctx context.Context, index int) error {
	s.mu.Lock()
	if err := s.checkCategoryLocked(index); err != nil {
		s.mu.Unlock()
		return err
	}
	removed := s.categories[index]
	s.categories = append(s.categories[:index], s.categories[index+1:]...)
	s.mu.Unlock()

	s.log.Infow("Deleted category", zap.String("category", removed.Name), zap.Int("mods", len(removed.Mods)))
	return s.Save(ctx)
}

// AddMod adds a search result to the category at index. The slug must not
// exist anywhere in the collection. An empty collection gets a category first.
func (s *Store) AddMod(ctx context.Context, res SearchResult, index int) error {
	if res.Slug == "" {
		return ErrInvalidMod
	}

	s.mu.Lock()
	if len(s.categories) == 0 {
		// Only the category about to be created is addressable.
		if index != 0 {
			s.mu.Unlock()
			return fmt.Errorf("%w: %d (have 0)", ErrCategoryIndex, index)
		}
		s.addCategoryLocked()
	} else if err := s.checkCategoryLocked(index); err != nil {
		s.mu.Unlock()
		return err
	}
	if ci, _, ok := s.findLocked(res.Slug); ok {
		name := s.categories[ci].Name
		s.mu.Unlock()
		s.log.Warnw("Mod already added", zap.String("slug", res.Slug), zap.String("category", name))
		return fmt.Errorf("%w: %s", ErrDuplicateMod, res.Slug)
	}
	s.categories[index].Mods = append(s.categories[index].Mods, Mod{
		Title:      res.Title,
		Slug:       res.Slug,
		IconURL:    res.IconURL,
		ClientSide: res.ClientSide.OrRequired(),
		ServerSide: res.ServerSide.OrRequired(),
		Versions:   map[string]bool{},
	})
	hook := s.onModAdded
	s.mu.Unlock()

	s.log.Infow("Added mod", zap.String("slug", res.Slug), zap.Int("category", index))
	err := s.Save(ctx)
	if hook != nil {
		hook(res.Slug)
	}
	return err
}

// RemoveMod deletes a mod from the category at index.
func (s *Store) RemoveMod(ctx context.Context, index int, slug string) error {
	s.mu.Lock()
	if err := s.checkCategoryLocked(index); err != nil {
		s.mu.Unlock()
		return err
	}
	mods := s.categories[index].Mods
	mi := indexBySlug(mods, slug)
	if mi < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModNotFound, slug)
	}
	s.categories[index].Mods = append(mods[:mi], mods[mi+1:]...)
	s.mu.Unlock()

	s.log.Infow("Removed mod", zap.String("slug", slug), zap.Int("category", index))
	return s.Save(ctx)
}

// MoveMod transfers the mod with slug from one category to another. The mod
// is looked up by slug because callers may hold a stale copy.
func (s *Store) MoveMod(ctx context.Context, slug string, from, to int) error {
	if from == to {
		return nil
	}

	s.mu.Lock()
	if err := s.checkCategoryLocked(from); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.checkCategoryLocked(to); err != nil {
		s.mu.Unlock()
		return err
	}
	if indexBySlug(s.categories[to].Mods, slug) >= 0 {
		s.mu.Unlock()
		s.log.Warnw("Mod already in target category", zap.String("slug", slug), zap.Int("category", to))
		return fmt.Errorf("%w: %s", ErrDuplicateMod, slug)
	}
	src := s.categories[from].Mods
	mi := indexBySlug(src, slug)
	if mi < 0 {
		s.mu.Unlock()
		s.log.Warnw("Mod not found in source category", zap.String("slug", slug), zap.Int("category", from))
		return fmt.Errorf("%w: %s", ErrModNotFound, slug)
	}
	mod := src[mi]
	s.categories[from].Mods = append(src[:mi], src[mi+1:]...)
	s.categories[to].Mods = append(s.categories[to].Mods, mod)
	s.mu.Unlock()

	s.log.Infow("Moved mod", zap.String("slug", slug), zap.Int("from", from), zap.Int("to", to))
	return s.Save(ctx)
}

// FindMod returns a copy of the mod with slug and the index of its category.
func (s *Store) FindMod(slug string) (Mod, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ci, mi, ok := s.findLocked(slug)
	if !ok {
		return Mod{}, -1, false
	}
	return s.categories[ci].Mods[mi].clone(), ci, true
}

// Slugs returns every mod slug in collection order.
func (s *Store) Slugs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.categories {
		for _, m := range c.Mods {
			out = append(out, m.Slug)
		}
	}
	return out
}

// ExportLinks returns Modrinth links for every checked mod in the category
// that supports at least one target version.
func (s *Store) ExportLinks(index int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCategoryLocked(index); err != nil {
		return nil, err
	}
	links := []string{}
	for _, m := range s.categories[index].Mods {
		if m.Checked && m.SupportsAny() {
			links = append(links, "https://modrinth.com/mod/"+m.Slug)
		}
	}
	return links, nil
}

func (s *Store) checkCategoryLocked(index int) error {
	if index < 0 || index >= len(s.categories) {
		return fmt.Errorf("%w: %d (have %d)", ErrCategoryIndex, index, len(s.categories))
	}
	return nil
}

func (s *Store) findLocked(slug string) (int, int, bool) {
	for ci, c := range s.categories {
		if mi := indexBySlug(c.Mods, slug); mi >= 0 {
			return ci, mi, true
		}
	}
	return -1, -1, false
}

func (s *Store) modLocked(slug string) *Mod {
	ci, mi, ok := s.findLocked(slug)
	if !ok {
		return nil
	}
	return &s.categories[ci].Mods[mi]
}

func indexBySlug(mods []Mod, slug string) int {
	for i, m := range mods {
		if m.Slug == slug {
			return i
		}
	}
	return -1
}
