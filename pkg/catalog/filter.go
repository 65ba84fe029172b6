package catalog

import (
	"encoding/json"
	"strings"
)

// Filter restricts a listing query. Only Kind is interpreted by this module;
// keywords and tags are passed through to the upstream API.
type Filter struct {
	Kind     Kind
	Keywords string
	Tags     []string
}

type manifestFilter struct {
	Tags []string `json:"tags,omitempty"`
}

type filterDoc struct {
	Type     Kind            `json:"type,omitempty"`
	Manifest *manifestFilter `json:"manifest,omitempty"`
}

// FiltersJSON returns the value of the "filters" query parameter, or "" when
// the filter restricts nothing.
func (f Filter) FiltersJSON() string {
	doc := filterDoc{Type: f.Kind}
	if tags := f.cleanTags(); len(tags) > 0 {
		doc.Manifest = &manifestFilter{Tags: tags}
	}
	if doc.Type == "" && doc.Manifest == nil {
		return ""
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

// KeywordsParam returns the value of the "keywords" query parameter.
func (f Filter) KeywordsParam() string {
	return strings.Join(strings.Fields(f.Keywords), ",")
}

func (f Filter) cleanTags() []string {
	var tags []string
	for _, t := range f.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
