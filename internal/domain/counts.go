package domain

import (
	"sort"
	"strings"
)

// CountKey addresses one cell of a count table. Dimensions a table does not
// use are left at their zero value.
type CountKey struct {
	Neighborhood string
	Type         string
	Season       Season
}

// CountTable is a flat table of occurrence counts keyed by composite key.
// Missing keys read as zero.
type CountTable struct {
	counts map[CountKey]int
}

// NewCountTable returns an empty table.
func NewCountTable() *CountTable {
	return &CountTable{counts: map[CountKey]int{}}
}

// Inc adds one to the cell at k.
func (t *CountTable) Inc(k CountKey) { t.Add(k, 1) }

// Add adds n to the cell at k.
func (t *CountTable) Add(k CountKey, n int) {
	if t.counts == nil {
		t.counts = map[CountKey]int{}
	}
	t.counts[k] += n
}

// Get returns the count at k, or zero.
func (t *CountTable) Get(k CountKey) int {
	if t == nil {
		return 0
	}
	return t.counts[k]
}

// Len is the number of non-empty cells.
func (t *CountTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.counts)
}

// Sum returns the total over all cells.
func (t *CountTable) Sum() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, c := range t.counts {
		n += c
	}
	return n
}

// Keys returns every key in deterministic order: by neighbourhood, then type,
// then season.
func (t *CountTable) Keys() []CountKey {
	if t == nil {
		return nil
	}
	keys := make([]CountKey, 0, len(t.counts))
	for k := range t.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if c := strings.Compare(a.Neighborhood, b.Neighborhood); c != 0 {
			return c < 0
		}
		if c := strings.Compare(a.Type, b.Type); c != 0 {
			return c < 0
		}
		return a.Season < b.Season
	})
	return keys
}

// Neighborhoods returns the distinct neighbourhood keys in sorted order.
func (t *CountTable) Neighborhoods() []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range t.Keys() {
		if !seen[k.Neighborhood] {
			seen[k.Neighborhood] = true
			out = append(out, k.Neighborhood)
		}
	}
	return out
}
