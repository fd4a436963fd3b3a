// Package merge consolidates snapshots into one deduplicated record list.
//
// Sources are always given in precedence order, highest first. The first
// source to mention a URL (or config key, or group name) wins outright; there
// is no field-level merging.
package merge

import (
	"fmt"

	"github.com/roach88/bookmerge/internal/catalog"
	"github.com/roach88/bookmerge/internal/snapshot"
)

// SourceStats counts what one source contributed.
type SourceStats struct {
	Name        string `json:"name"`
	Records     int    `json:"records"`
	Contributed int    `json:"contributed"`
	Duplicates  int    `json:"duplicates"`
	Configs     int    `json:"configs"`
}

// Result is the merged view of all sources.
type Result struct {
	Records []catalog.Record
	Groups  []catalog.GroupMeta
	Configs catalog.Configs
	Stats   []SourceStats
}

// Records deduplicates by URL. The output keeps first-seen order. The second
// return value holds per-source statistics in input order.
func Records(sources ...[]catalog.Record) ([]catalog.Record, []SourceStats) {
	seen := make(map[string]bool)
	var out []catalog.Record
	stats := make([]SourceStats, len(sources))

	for i, recs := range sources {
		stats[i].Records = len(recs)
		for _, rec := range recs {
			if stats[i].Name == "" {
				stats[i].Name = rec.Source
			}
			if seen[rec.URL] {
				stats[i].Duplicates++
				continue
			}
			seen[rec.URL] = true
			out = append(out, rec)
			stats[i].Contributed++
		}
	}
	return out, stats
}

// Configs merges key/value maps; earlier maps win, no key is dropped.
func Configs(sources ...catalog.Configs) catalog.Configs {
	var out catalog.Configs
	for _, cfgs := range sources {
		for _, kv := range cfgs {
			out.Add(kv.Key, kv.Value)
		}
	}
	return out
}

// Groups merges source group metadata by name; earlier sources win.
func Groups(sources ...[]catalog.GroupMeta) []catalog.GroupMeta {
	seen := make(map[string]bool)
	var out []catalog.GroupMeta
	for _, groups := range sources {
		for _, g := range groups {
			if g.Name == "" || seen[g.Name] {
				continue
			}
			seen[g.Name] = true
			out = append(out, g)
		}
	}
	return out
}

// Snapshots merges loaded snapshots. snaps is the site precedence order.
// configOrder optionally names the snapshots in config precedence order;
// when empty the site order is used. Every snapshot must appear in
// configOrder exactly once if it is given.
func Snapshots(snaps []*snapshot.Snapshot, configOrder []string) (*Result, error) {
	if len(snaps) == 0 {
		return nil, fmt.Errorf("merge: no snapshots")
	}

	recs := make([][]catalog.Record, len(snaps))
	groups := make([][]catalog.GroupMeta, len(snaps))
	byName := make(map[string]*snapshot.Snapshot, len(snaps))
	for i, s := range snaps {
		recs[i] = s.Records
		groups[i] = s.Groups
		byName[s.Name] = s
	}

	cfgSnaps, err := configPrecedence(snaps, byName, configOrder)
	if err != nil {
		return nil, err
	}
	cfgs := make([]catalog.Configs, len(cfgSnaps))
	for i, s := range cfgSnaps {
		cfgs[i] = s.Configs
	}

	records, stats := Records(recs...)
	for i, s := range snaps {
		stats[i].Name = s.Name
		stats[i].Configs = len(s.Configs)
	}

	return &Result{
		Records: records,
		Groups:  Groups(groups...),
		Configs: Configs(cfgs...),
		Stats:   stats,
	}, nil
}

func configPrecedence(snaps []*snapshot.Snapshot, byName map[string]*snapshot.Snapshot, order []string) ([]*snapshot.Snapshot, error) {
	if len(order) == 0 {
		return snaps, nil
	}
	if len(order) != len(snaps) {
		return nil, fmt.Errorf("merge: config precedence names %d source(s), have %d", len(order), len(snaps))
	}
	out := make([]*snapshot.Snapshot, 0, len(order))
	used := make(map[string]bool, len(order))
	for _, name := range order {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("merge: config precedence names unknown source %q", name)
		}
		if used[name] {
			return nil, fmt.Errorf("merge: config precedence names %q twice", name)
		}
		used[name] = true
		out = append(out, s)
	}
	return out, nil
}
