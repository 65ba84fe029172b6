// Package detail assembles the data of a resource detail page: the
// artifact, its rendered documentation, versions, cover images and the
// download and rdf.yaml links.
package detail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	// NoDocumentation is shown when the manifest names no documentation file.
	NoDocumentation = "No documentation found."

	// DocumentationFailed is shown when the documentation cannot be fetched.
	DocumentationFailed = "Failed to fetch documentation."

	// RDFFile is the resource description file of every artifact.
	RDFFile = "rdf.yaml"
)

// ErrInvalidID is returned for an empty resource id.
var ErrInvalidID = errors.New("resource id is required")

// Store is the part of the artifact API the detail page needs.
// *client.Client implements it.
type Store interface {
	GetArtifact(ctx context.Context, id, version string) (*catalog.ResourceItem, error)
	GetFile(ctx context.Context, id, path string) ([]byte, error)
	FileURL(id, path string) string
	DownloadURL(id, version string) string
}

// DocStatus tells how Documentation was obtained.
type DocStatus string

const (
	DocOK      DocStatus = "ok"
	DocMissing DocStatus = "missing"
	DocFailed  DocStatus = "failed"
)

// Detail is everything shown on a detail page.
type Detail struct {
	Item *catalog.ResourceItem `json:"item"`

	// Documentation is the markdown source or a fallback message
	Documentation     string    `json:"documentation"`
	DocumentationHTML string    `json:"documentation_html"`
	DocStatus         DocStatus `json:"doc_status"`

	// Versions newest first
	Versions      []catalog.Version `json:"versions"`
	LatestVersion *catalog.Version  `json:"latest_version,omitempty"`

	CoverURLs   []string `json:"cover_urls"`
	IconURL     string   `json:"icon_url,omitempty"`
	DownloadURL string   `json:"download_url"`
	RDFURL      string   `json:"rdf_url"`
}

// Source is the rdf.yaml of a resource.
type Source struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Raw string `json:"raw"`

	Document   map[string]any `json:"document,omitempty"`
	Summary    *RDFSummary    `json:"summary,omitempty"`
	ParseError string         `json:"parse_error,omitempty"`
}

// RDFSummary holds the commonly displayed rdf.yaml fields.
type RDFSummary struct {
	FormatVersion string   `yaml:"format_version" json:"format_version,omitempty"`
	Type          string   `yaml:"type" json:"type,omitempty"`
	Name          string   `yaml:"name" json:"name,omitempty"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	License       string   `yaml:"license" json:"license,omitempty"`
	Tags          []string `yaml:"tags" json:"tags,omitempty"`
	Authors       []struct {
		Name        string `yaml:"name" json:"name"`
		Affiliation string `yaml:"affiliation" json:"affiliation,omitempty"`
	} `yaml:"authors" json:"authors,omitempty"`
}

// Service loads detail pages.
type Service struct {
	store     Store
	workspace string
	logger    zerolog.Logger
}

// NewService creates a service. Bare aliases are qualified with workspace.
func NewService(store Store, workspace string) *Service {
	return &Service{
		store:     store,
		workspace: workspace,
		logger:    log.With().Str("component", "detail").Logger(),
	}
}

func (s *Service) qualify(id string) (string, error) {
	id = strings.Trim(strings.TrimSpace(id), "/")
	if id == "" {
		return "", ErrInvalidID
	}
	if !strings.Contains(id, "/") && s.workspace != "" {
		id = s.workspace + "/" + id
	}
	return id, nil
}

// Load fetches the artifact and its documentation. A documentation failure
// does not fail the page; it yields DocumentationFailed.
func (s *Service) Load(ctx context.Context, id, version string) (*Detail, error) {
	id, err := s.qualify(id)
	if err != nil {
		return nil, err
	}

	item, err := s.store.GetArtifact(ctx, id, version)
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", id, err)
	}
	if item.ID == "" {
		item.ID = id
	}

	d := &Detail{
		Item:        item,
		Versions:    slices.Clone(item.Versions),
		CoverURLs:   []string{},
		DownloadURL: s.store.DownloadURL(item.ID, version),
		RDFURL:      s.store.FileURL(item.ID, RDFFile),
	}
	slices.Reverse(d.Versions)
	if len(d.Versions) > 0 {
		latest := d.Versions[0]
		d.LatestVersion = &latest
	}

	if m := item.Manifest; m != nil {
		for _, cover := range m.Covers {
			if u := s.store.FileURL(item.ID, cover); u != "" {
				d.CoverURLs = append(d.CoverURLs, u)
			}
		}
		d.IconURL = s.store.FileURL(item.ID, m.Icon)
	}

	s.loadDocumentation(ctx, d)
	return d, nil
}

func (s *Service) loadDocumentation(ctx context.Context, d *Detail) {
	docPath := ""
	if d.Item.Manifest != nil {
		docPath = strings.TrimSpace(d.Item.Manifest.Documentation)
	}

	var resolve resolveFunc
	switch {
	case docPath == "":
		d.Documentation, d.DocStatus = NoDocumentation, DocMissing
	default:
		data, err := s.store.GetFile(ctx, d.Item.ID, docPath)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("id", d.Item.ID).
				Str("documentation", docPath).
				Msg("Failed to fetch documentation")
			d.Documentation, d.DocStatus = DocumentationFailed, DocFailed
			break
		}
		d.Documentation, d.DocStatus = string(data), DocOK
		resolve = s.relativeTo(d.Item.ID, docPath)
	}

	rendered, err := renderMarkdown([]byte(d.Documentation), resolve)
	if err != nil {
		s.logger.Warn().Err(err).Str("id", d.Item.ID).Msg("Failed to render documentation")
		d.DocumentationHTML = ""
		return
	}
	d.DocumentationHTML = rendered
}

// relativeTo resolves references against the directory of the
// documentation file. A documentation file addressed by an absolute URL
// resolves against that URL instead of the artifact.
func (s *Service) relativeTo(id, docPath string) resolveFunc {
	if base, err := url.Parse(docPath); err == nil && (base.Scheme == "http" || base.Scheme == "https") {
		return func(ref string) string {
			u, err := url.Parse(ref)
			if err != nil {
				return ref
			}
			return base.ResolveReference(u).String()
		}
	}

	dir := ""
	if i := strings.LastIndexByte(docPath, '/'); i >= 0 {
		dir = docPath[:i+1]
	}
	return func(ref string) string {
		return s.store.FileURL(id, dir+strings.TrimPrefix(ref, "./"))
	}
}

// Source fetches and decodes rdf.yaml. Invalid YAML is reported in
// ParseError while Raw still carries the text.
func (s *Service) Source(ctx context.Context, id string) (*Source, error) {
	id, err := s.qualify(id)
	if err != nil {
		return nil, err
	}

	data, err := s.store.GetFile(ctx, id, RDFFile)
	if err != nil {
		return nil, fmt.Errorf("fetch %s of %s: %w", RDFFile, id, err)
	}

	src := &Source{
		ID:  id,
		URL: s.store.FileURL(id, RDFFile),
		Raw: string(data),
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		src.ParseError = err.Error()
		return src, nil
	}
	src.Document = doc

	var summary RDFSummary
	if err := yaml.Unmarshal(data, &summary); err == nil {
		src.Summary = &summary
	}
	return src, nil
}
