// Package assign turns classified records into a catalog with stable ids.
//
// Group order is pinned-first groups in declared order, then every other
// group by descending member count (ties by discovery order), then
// pinned-last groups in declared order. Group ids run 1..G in that order
// with order_num = id-1. Sites are numbered 1..N walking the groups in
// order, each group's members kept in classification order.
package assign

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/bookmerge/internal/catalog"
)

// Options controls group ordering and visibility.
type Options struct {
	// PinnedFirst groups sort before all others, in this order.
	PinnedFirst []string

	// PinnedLast groups sort after all others, in this order.
	PinnedLast []string

	// Declared groups always exist, even with no members. Pinned groups
	// exist only when they have members or are declared.
	Declared []string

	// Visibility maps a group name to is_public. Missing names are public.
	Visibility map[string]int
}

// VisibilityFrom builds Options.Visibility from merged source groups.
func VisibilityFrom(groups []catalog.GroupMeta) map[string]int {
	m := make(map[string]int, len(groups))
	for _, g := range groups {
		if _, ok := m[g.Name]; !ok {
			m[g.Name] = g.IsPublic
		}
	}
	return m
}

// Assign builds the catalog. configs are attached unchanged. The result
// always satisfies catalog.Validate; a violation is returned as an error.
func Assign(classified []catalog.Classified, opts Options, configs catalog.Configs) (*catalog.Catalog, error) {
	members := make(map[string][]catalog.Classified)
	var discovered []string
	for _, c := range classified {
		if c.Group == "" {
			return nil, fmt.Errorf("assign: record %q has no group", c.Record.URL)
		}
		if _, ok := members[c.Group]; !ok {
			discovered = append(discovered, c.Group)
		}
		members[c.Group] = append(members[c.Group], c)
	}
	for _, name := range opts.Declared {
		if _, ok := members[name]; !ok {
			members[name] = nil
			discovered = append(discovered, name)
		}
	}

	counts := make(map[string]int, len(members))
	for name, m := range members {
		counts[name] = len(m)
	}
	order := OrderGroups(discovered, counts, opts)

	groups := make([]catalog.Group, len(order))
	for i, name := range order {
		public := 1
		if v, ok := opts.Visibility[name]; ok {
			public = v
		}
		groups[i] = catalog.Group{ID: int64(i + 1), Name: name, OrderNum: i, IsPublic: public}
	}

	sites, _ := numberSites(groups, members, 1)

	cat := &catalog.Catalog{
		Groups:  groups,
		Sites:   sites,
		Configs: append(catalog.Configs{}, configs...),
	}
	if errs := cat.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("assign: produced inconsistent catalog: %w", errors.Join(errs...))
	}
	return cat, nil
}

// OrderGroups sorts the discovered group names. discovered must hold each
// name once, in discovery order.
func OrderGroups(discovered []string, counts map[string]int, opts Options) []string {
	first := rank(opts.PinnedFirst)
	last := rank(opts.PinnedLast)
	discovery := rank(discovered)

	tier := func(name string) int {
		if _, ok := first[name]; ok {
			return 0
		}
		if _, ok := last[name]; ok {
			return 2
		}
		return 1
	}

	out := append([]string(nil), discovered...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ta, tb := tier(a), tier(b)
		if ta != tb {
			return ta < tb
		}
		switch ta {
		case 0:
			return first[a] < first[b]
		case 2:
			return last[a] < last[b]
		}
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return discovery[a] < discovery[b]
	})
	return out
}

// numberSites lays out members group by group. next is the first site id to
// hand out; the returned value is the id after the last one used.
func numberSites(groups []catalog.Group, members map[string][]catalog.Classified, next int64) ([]catalog.Site, int64) {
	sites := []catalog.Site{}
	for _, g := range groups {
		for pos, c := range members[g.Name] {
			r := c.Record
			sites = append(sites, catalog.Site{
				ID:          next,
				GroupID:     g.ID,
				Name:        r.Name,
				URL:         r.URL,
				Icon:        r.Icon,
				Description: r.Description,
				Notes:       r.Notes,
				OrderNum:    pos,
				IsPublic:    r.IsPublic,
			})
			next++
		}
	}
	return sites, next
}

func rank(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		if _, ok := m[n]; !ok {
			m[n] = i
		}
	}
	return m
}
