// Package search matches free-text queries against regency names.
package search

import (
	"strings"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
)

// Result is one matching regency.
type Result struct {
	Name     string            `json:"name"`
	Province string            `json:"province"`
	Bounds   types.BoundingBox `json:"bounds"`
}

// Index holds lower-cased regency names for substring matching.
type Index struct {
	entries []entry
}

type entry struct {
	folded string
	result Result
}

// NewIndex builds an index in collection order.
func NewIndex(regencies []types.Regency) *Index {
	idx := &Index{entries: make([]entry, 0, len(regencies))}
	for _, r := range regencies {
		idx.entries = append(idx.entries, entry{
			folded: strings.ToLower(r.Name),
			result: Result{Name: r.Name, Province: r.Province, Bounds: r.Bounds()},
		})
	}
	return idx
}

// Len returns the number of indexed regencies.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Match returns regencies whose name contains query, ignoring case. Empty and
// whitespace-only queries match nothing.
func (idx *Index) Match(query string) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || idx == nil {
		return []Result{}
	}

	out := make([]Result, 0)
	for _, e := range idx.entries {
		if strings.Contains(e.folded, q) {
			out = append(out, e.result)
		}
	}
	return out
}
