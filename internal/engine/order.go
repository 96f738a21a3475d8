package engine

import (
	"sort"
	"strings"

	"costboard/internal/profile"
)

// Order is the display priority of major categories. Names listed in the
// same group share a rank; names outside every group sort after all ranked
// names, alphabetically.
type Order struct {
	rank  map[string]int
	alias map[string]int
	size  int
}

// NewOrder builds an Order from groups of aliases, highest priority first.
func NewOrder(groups [][]string) Order {
	o := Order{rank: make(map[string]int), alias: make(map[string]int), size: len(groups)}
	for i, g := range groups {
		for j, name := range g {
			name = strings.TrimSpace(name)
			if _, dup := o.rank[name]; dup || name == "" {
				continue
			}
			o.rank[name] = i
			o.alias[name] = j
		}
	}
	return o
}

// DefaultOrder is the order of the built-in profile.
func DefaultOrder() Order {
	return NewOrder(profile.Default().Categories)
}

// SortKey returns the rank of name and whether it is part of the order.
// Unknown names all get the same rank, one past the last group.
func (o Order) SortKey(name string) (rank int, known bool) {
	if r, ok := o.rank[name]; ok {
		return r, true
	}
	return o.size, false
}

// Less reports whether a is displayed before b.
func (o Order) Less(a, b string) bool {
	ra, _ := o.SortKey(a)
	rb, _ := o.SortKey(b)
	if ra != rb {
		return ra < rb
	}
	if aa, ab := o.alias[a], o.alias[b]; aa != ab {
		return aa < ab
	}
	return a < b
}

// Sort orders names in place.
func (o Order) Sort(names []string) {
	sort.SliceStable(names, func(i, j int) bool { return o.Less(names[i], names[j]) })
}
