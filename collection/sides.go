package collection

// MissingSides returns the slugs of mods lacking client or server side
// metadata, in collection order.
func (s *Store) MissingSides() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.categories {
		for _, m := range c.Mods {
			if m.MissingSides() {
				out = append(out, m.Slug)
			}
		}
	}
	return out
}

// ApplyMetadata overwrites the side fields of the mod with slug, and its
// icon and title when meta carries non-empty values. It does not save.
func (s *Store) ApplyMetadata(slug string, meta SideMetadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.modLocked(slug)
	if m == nil {
		return false
	}
	m.ClientSide = meta.ClientSide
	m.ServerSide = meta.ServerSide
	if meta.IconURL != "" {
		m.IconURL = meta.IconURL
	}
	if meta.Title != "" {
		m.Title = meta.Title
	}
	return true
}
