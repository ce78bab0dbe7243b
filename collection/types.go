// Package collection owns the categories/mods aggregate, its target version
// set and the compatibility cache scoped to it.
package collection

import (
	"fmt"
	"maps"
)

// Side describes whether a mod is needed on the client or server.
type Side string

const (
	SideRequired    Side = "required"
	SideOptional    Side = "optional"
	SideUnsupported Side = "unsupported"
	SideUnknown     Side = "unknown"
)

// Valid reports whether s is one of the values Modrinth uses.
func (s Side) Valid() bool {
	switch s {
	case SideRequired, SideOptional, SideUnsupported, SideUnknown:
		return true
	}
	return false
}

// OrRequired returns s, or SideRequired when s is empty.
func (s Side) OrRequired() Side {
	if s == "" {
		return SideRequired
	}
	return s
}

// CheckState is the per-mod compatibility check lifecycle.
type CheckState int

const (
	Unchecked CheckState = iota
	Checking
	Checked
)

func (s CheckState) String() string {
	switch s {
	case Checking:
		return "checking"
	case Checked:
		return "checked"
	default:
		return "unchecked"
	}
}

// Mod is one mod's membership in a category. Slug is unique across the
// whole collection.
type Mod struct {
	Title      string          `json:"title"`
	Slug       string          `json:"slug"`
	IconURL    string          `json:"icon_url"`
	ClientSide Side            `json:"client_side"`
	ServerSide Side            `json:"server_side"`
	Checked    bool            `json:"checked"`
	Versions   map[string]bool `json:"versions"`
	Checking   bool            `json:"checking"`
}

func (m Mod) State() CheckState {
	switch {
	case m.Checking:
		return Checking
	case m.Checked:
		return Checked
	default:
		return Unchecked
	}
}

// MissingSides reports whether either side field is unset.
func (m Mod) MissingSides() bool {
	return m.ClientSide == "" || m.ServerSide == ""
}

// SupportsAny reports whether at least one target version is supported.
func (m Mod) SupportsAny() bool {
	for _, ok := range m.Versions {
		if ok {
			return true
		}
	}
	return false
}

func (m Mod) clone() Mod {
	c := m
	c.Versions = maps.Clone(m.Versions)
	if c.Versions == nil {
		c.Versions = map[string]bool{}
	}
	return c
}

// Category is a named, ordered group of mods.
type Category struct {
	Name       string `json:"name"`
	Mods       []Mod  `json:"mods"`
	ShowExport bool   `json:"showExport"`
}

func (c Category) clone() Category {
	out := c
	out.Mods = make([]Mod, len(c.Mods))
	for i, m := range c.Mods {
		out.Mods[i] = m.clone()
	}
	return out
}

// Collection is the persisted shape of the whole aggregate.
type Collection struct {
	Categories     []Category `json:"categories"`
	TargetVersions []string   `json:"targetVersions"`
}

// ModCount returns the number of mods across all categories.
func (c Collection) ModCount() int {
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Mods)
	}
	return n
}

// Validate reports the first mod without a slug or with a side value
// Modrinth does not use. Unset sides are allowed; they get backfilled.
func (c Collection) Validate() error {
	for _, cat := range c.Categories {
		for _, m := range cat.Mods {
			if m.Slug == "" {
				return fmt.Errorf("%w in category %q", ErrInvalidMod, cat.Name)
			}
			for _, side := range []Side{m.ClientSide, m.ServerSide} {
				if side != "" && !side.Valid() {
					return fmt.Errorf("%w: %s has side %q", ErrInvalidMod, m.Slug, side)
				}
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c Collection) Clone() Collection {
	out := Collection{
		Categories:     make([]Category, len(c.Categories)),
		TargetVersions: append([]string{}, c.TargetVersions...),
	}
	for i, cat := range c.Categories {
		out.Categories[i] = cat.clone()
	}
	return out
}

// SearchResult is a registry search hit that can be added as a Mod.
type SearchResult struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	IconURL     string `json:"icon_url"`
	ClientSide  Side   `json:"client_side,omitempty"`
	ServerSide  Side   `json:"server_side,omitempty"`
}

// SideMetadata is the project metadata used to backfill missing side fields.
type SideMetadata struct {
	ClientSide Side   `json:"client_side"`
	ServerSide Side   `json:"server_side"`
	IconURL    string `json:"icon_url"`
	Title      string `json:"title"`
}

// DefaultCategoryName is the name given to categories created by AddCategory.
const DefaultCategoryName = "New Category"

// Seed is the collection used when nothing has been stored yet.
func Seed() Collection {
	return Collection{
		Categories: []Category{
			{Name: "Performance", Mods: []Mod{}},
			{Name: "Visuals", Mods: []Mod{}},
		},
		TargetVersions: []string{"1.21.1", "1.21.2", "1.21.3", "1.21.4"},
	}
}
