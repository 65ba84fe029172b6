// Package aggregate derives the dashboard figures from fetched items:
// per-kind counts, the most downloaded resources and the kind distribution.
//
// Every function is pure. Inputs are never modified and equal inputs yield
// equal outputs.
package aggregate

import (
	"fmt"
	"slices"

	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
)

// DefaultLimit is the length of the popularity ranking.
const DefaultLimit = 10

// TopScope selects which items compete in the popularity ranking.
type TopScope string

const (
	// ScopeModels ranks models only.
	ScopeModels TopScope = "models"

	// ScopeAllKinds ranks every fetched item regardless of kind.
	//
	// Deprecated: download counts of different kinds are not comparable.
	// Kept for dashboards that still show the mixed ranking.
	ScopeAllKinds TopScope = "all"
)

// ParseScope parses a scope name. The empty string selects ScopeModels.
func ParseScope(s string) (TopScope, error) {
	switch TopScope(s) {
	case "", ScopeModels:
		return ScopeModels, nil
	case ScopeAllKinds:
		return ScopeAllKinds, nil
	default:
		return "", fmt.Errorf("unknown top scope %q (want %q or %q)", s, ScopeModels, ScopeAllKinds)
	}
}

// Options tunes Aggregate.
type Options struct {
	Scope TopScope
	Limit int
}

// PopularEntry is one row of the popularity ranking.
type PopularEntry struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Kind     catalog.Kind `json:"kind"`
	Usage    int64        `json:"usage"`
	LastUsed string       `json:"last_used"`
}

// KindCount is one slice of the distribution.
type KindCount struct {
	Kind  catalog.Kind `json:"kind"`
	Count int          `json:"count"`
	// Share of the grand total in percent
	Share float64 `json:"share"`
}

// AggregatedCounts is recomputed on every reload.
type AggregatedCounts struct {
	PerKind      map[catalog.Kind]int `json:"per_kind"`
	Top          []PopularEntry       `json:"top"`
	Distribution []KindCount          `json:"distribution"`
	GrandTotal   int                  `json:"grand_total"`
}

// Aggregate computes all figures for itemsByKind.
func Aggregate(itemsByKind map[catalog.Kind][]catalog.ResourceItem, opts Options) AggregatedCounts {
	if opts.Scope == "" {
		opts.Scope = ScopeModels
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	perKind := PerKind(itemsByKind)
	distribution, grandTotal := Distribution(perKind)

	var candidates []catalog.ResourceItem
	switch opts.Scope {
	case ScopeAllKinds:
		for _, kind := range catalog.AllKinds {
			candidates = append(candidates, itemsByKind[kind]...)
		}
	default:
		candidates = itemsByKind[catalog.KindModel]
	}

	return AggregatedCounts{
		PerKind:      perKind,
		Top:          TopByPopularity(candidates, opts.Limit),
		Distribution: distribution,
		GrandTotal:   grandTotal,
	}
}

// PerKind counts the items of every kind. All four kinds are present in the
// result; absent kinds count 0.
func PerKind(itemsByKind map[catalog.Kind][]catalog.ResourceItem) map[catalog.Kind]int {
	counts := make(map[catalog.Kind]int, len(catalog.AllKinds))
	for _, kind := range catalog.AllKinds {
		counts[kind] = len(itemsByKind[kind])
	}
	return counts
}

// Distribution returns the non-zero counts in fixed kind order and their sum.
func Distribution(perKind map[catalog.Kind]int) ([]KindCount, int) {
	distribution := []KindCount{}
	grandTotal := 0
	for _, kind := range catalog.AllKinds {
		if n := perKind[kind]; n > 0 {
			distribution = append(distribution, KindCount{Kind: kind, Count: n})
			grandTotal += n
		}
	}
	for i := range distribution {
		distribution[i].Share = float64(distribution[i].Count) * 100 / float64(grandTotal)
	}
	return distribution, grandTotal
}

// TopByPopularity ranks items by download count, highest first. Ties keep
// their input order. At most limit entries are returned.
func TopByPopularity(items []catalog.ResourceItem, limit int) []PopularEntry {
	ranked := slices.Clone(items)
	slices.SortStableFunc(ranked, func(a, b catalog.ResourceItem) int {
		switch da, db := a.Downloads(), b.Downloads(); {
		case da > db:
			return -1
		case da < db:
			return 1
		default:
			return 0
		}
	})

	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	top := make([]PopularEntry, 0, len(ranked))
	for _, item := range ranked {
		top = append(top, PopularEntry{
			ID:       item.ID,
			Name:     item.Name(),
			Kind:     item.Kind,
			Usage:    item.Downloads(),
			LastUsed: item.LastModified.Date(),
		})
	}
	return top
}
