package collection

import (
	"fmt"
	"maps"
)

// CheckTicket is handed out by BeginCheck and returned to FinishCheck once
// the remote call settles.
type CheckTicket struct {
	Slug     string
	Key      CacheKey
	Versions []string
	// CacheHit is set when the result came from the cache; the check is
	// already complete and FinishCheck must not be called.
	CacheHit bool
	Result   map[string]bool
}

// BeginCheck moves the mod from unchecked/checked to checking. On a cache
// hit the cached mapping is applied and the mod goes straight to checked.
func (s *Store) BeginCheck(slug string) (CheckTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.versions.Empty() {
		return CheckTicket{}, ErrNoVersions
	}
	m := s.modLocked(slug)
	if m == nil {
		return CheckTicket{}, fmt.Errorf("%w: %s", ErrModNotFound, slug)
	}
	if m.Checking {
		return CheckTicket{}, fmt.Errorf("%w: %s", ErrCheckInFlight, slug)
	}

	t := CheckTicket{
		Slug:     slug,
		Key:      NewCacheKey(slug, s.versions),
		Versions: s.versions.Values(),
	}
	if cached, ok := s.cache.Get(t.Key); ok {
		m.Versions = cached
		m.Checked = true
		t.CacheHit = true
		t.Result = maps.Clone(cached)
		return t, nil
	}
	m.Checking = true
	return t, nil
}

// FinishCheck applies the outcome of a remote check. A successful result is
// cached; a failed one leaves the mod with no versions and no cache entry.
// Either way the mod ends up checked. If the version set changed while the
// call was in flight the result is stale: it is neither cached nor applied
// and the mod stays unchecked. It reports whether the result was applied.
func (s *Store) FinishCheck(t CheckTicket, result map[string]bool, checkErr error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := t.Key == NewCacheKey(t.Slug, s.versions)
	applied := map[string]bool{}
	if checkErr == nil {
		for _, v := range t.Versions {
			applied[v] = result[v]
		}
		if current {
			s.cache.Put(t.Key, applied)
		}
	}

	m := s.modLocked(t.Slug)
	if m == nil {
		return false
	}
	m.Checking = false
	if !current {
		return false
	}
	m.Versions = applied
	m.Checked = true
	return true
}

// AbandonCheck releases a ticket whose remote call never settled, e.g.
// because the caller went away. Only the checking flag is cleared; the mod
// keeps whatever result it had before BeginCheck.
func (s *Store) AbandonCheck(t CheckTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.modLocked(t.Slug); m != nil {
		m.Checking = false
	}
}
