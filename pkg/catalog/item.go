package catalog

import "strings"

// Author is a manifest author entry.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	Orcid       string `json:"orcid,omitempty"`
}

// Citation is a manifest citation entry.
type Citation struct {
	Text string `json:"text"`
	DOI  string `json:"doi,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Manifest is the descriptive part of an artifact.
type Manifest struct {
	Name          string     `json:"name,omitempty"`
	Description   string     `json:"description,omitempty"`
	Type          string     `json:"type,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Covers        []string   `json:"covers,omitempty"`
	Documentation string     `json:"documentation,omitempty"`
	Icon          string     `json:"icon,omitempty"`
	IDEmoji       string     `json:"id_emoji,omitempty"`
	License       string     `json:"license,omitempty"`
	GitRepo       string     `json:"git_repo,omitempty"`
	Authors       []Author   `json:"authors,omitempty"`
	Cite          []Citation `json:"cite,omitempty"`
}

// Version is one published version of an artifact.
type Version struct {
	Version   string    `json:"version"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// ResourceItem is one catalog entry.
type ResourceItem struct {
	// ID is namespaced, e.g. "bioimage-io/affable-shark".
	ID   string `json:"id"`
	Kind Kind   `json:"type"`

	Manifest *Manifest `json:"manifest,omitempty"`

	DownloadCount Count `json:"download_count"`
	ViewCount     Count `json:"view_count"`

	LastModified Timestamp `json:"last_modified"`
	CreatedAt    Timestamp `json:"created_at"`

	Versions []Version `json:"versions,omitempty"`
}

// Name returns the display name, falling back to "Unnamed <Kind>".
func (r ResourceItem) Name() string {
	if r.Manifest != nil && strings.TrimSpace(r.Manifest.Name) != "" {
		return r.Manifest.Name
	}
	return "Unnamed " + r.Kind.Title()
}

// Tags returns the manifest tags (never nil).
func (r ResourceItem) Tags() []string {
	if r.Manifest == nil || r.Manifest.Tags == nil {
		return []string{}
	}
	return r.Manifest.Tags
}

// Downloads returns the download count clamped at zero.
func (r ResourceItem) Downloads() int64 {
	if r.DownloadCount < 0 {
		return 0
	}
	return int64(r.DownloadCount)
}

// Alias returns the short id after the last "/".
func (r ResourceItem) Alias() string {
	return SplitID(r.ID).Alias
}

// Workspace returns the namespace part of the id.
func (r ResourceItem) Workspace() string {
	return SplitID(r.ID).Workspace
}

// LatestVersion returns the most recent version name, or "" when the item
// lists no versions.
func (r ResourceItem) LatestVersion() string {
	if len(r.Versions) == 0 {
		return ""
	}
	return r.Versions[len(r.Versions)-1].Version
}

// ArtifactID is a namespaced artifact identifier.
type ArtifactID struct {
	Workspace string
	Alias     string
}

// SplitID splits "<workspace>/<alias>". An id without "/" has no workspace.
func SplitID(id string) ArtifactID {
	i := strings.LastIndexByte(id, '/')
	if i < 0 {
		return ArtifactID{Alias: id}
	}
	return ArtifactID{Workspace: id[:i], Alias: id[i+1:]}
}
