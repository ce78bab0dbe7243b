package collection

import (
	"maps"

	"modstacker/versions"
)

// CacheKey identifies a memoized compatibility result.
type CacheKey struct {
	Slug     string
	Versions string
}

func NewCacheKey(slug string, set *versions.Set) CacheKey {
	return CacheKey{Slug: slug, Versions: set.Key()}
}

func (k CacheKey) String() string {
	return k.Slug + "_" + k.Versions
}

// Cache maps (slug, version set) to the last successful compatibility result.
// Entries are never partially invalidated: a version set change drops all of them.
// Not safe for concurrent use; Store serialises access.
type Cache struct {
	entries map[CacheKey]map[string]bool
}

func NewCache() *Cache {
	return &Cache{entries: make(map[CacheKey]map[string]bool)}
}

// Get returns a copy of the cached mapping.
func (c *Cache) Get(key CacheKey) (map[string]bool, bool) {
	v, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return maps.Clone(v), true
}

// Put stores a copy of result.
func (c *Cache) Put(key CacheKey, result map[string]bool) {
	c.entries[key] = maps.Clone(result)
}

func (c *Cache) Clear() {
	clear(c.entries)
}

func (c *Cache) Len() int {
	return len(c.entries)
}
