package modrinth

import "modstacker/collection"

// Project represents a Modrinth project.
type Project struct {
	Slug        string `json:"slug"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
	ProjectType string `json:"project_type"`
	ClientSide  string `json:"client_side"`
	ServerSide  string `json:"server_side"`
}

func (p Project) SideMetadata() collection.SideMetadata {
	return collection.SideMetadata{
		ClientSide: collection.Side(p.ClientSide).OrRequired(),
		ServerSide: collection.Side(p.ServerSide).OrRequired(),
		IconURL:    p.IconURL,
		Title:      p.Title,
	}
}

// AsSearchResult converts a project lookup (e.g. from a file hash) into
// something addMod accepts.
func (p Project) AsSearchResult() collection.SearchResult {
	return collection.SearchResult{
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		IconURL:     p.IconURL,
		ClientSide:  collection.Side(p.ClientSide).OrRequired(),
		ServerSide:  collection.Side(p.ServerSide).OrRequired(),
	}
}

// Version represents a Modrinth project version (simplified).
type Version struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	Name          string   `json:"name"`
	VersionNumber string   `json:"version_number"`
	GameVersions  []string `json:"game_versions"`
	Loaders       []string `json:"loaders"`
	Files         []File   `json:"files"`
}

// File represents a file within a Modrinth version (simplified).
type File struct {
	Filename string            `json:"filename"`
	URL      string            `json:"url"`
	Primary  bool              `json:"primary"`
	Size     int               `json:"size"`
	Hashes   map[string]string `json:"hashes"`
}

type SearchResponse struct {
	Hits      []SearchHit `json:"hits"`
	TotalHits int         `json:"total_hits"`
}

type SearchHit struct {
	ProjectID   string `json:"project_id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
	ClientSide  string `json:"client_side"`
	ServerSide  string `json:"server_side"`
}

func (h SearchHit) AsSearchResult() collection.SearchResult {
	return collection.SearchResult{
		Title:       h.Title,
		Slug:        h.Slug,
		Description: h.Description,
		IconURL:     h.IconURL,
		ClientSide:  collection.Side(h.ClientSide).OrRequired(),
		ServerSide:  collection.Side(h.ServerSide).OrRequired(),
	}
}
