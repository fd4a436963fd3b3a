package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/bookmerge/internal/catalog"
)

// MockOptions controls the TypeScript mock output.
type MockOptions struct {
	// PerGroup caps the sites emitted per group. Default 5.
	PerGroup int

	// NameLimit truncates site names to this many runes. Default 80.
	NameLimit int

	// ImportPath is the module the Group and Site types come from.
	// Default "./http".
	ImportPath string

	// Timestamp fills created_at and updated_at.
	// Default "2024-01-01T00:00:00Z".
	Timestamp string
}

func (o MockOptions) withDefaults() MockOptions {
	if o.PerGroup <= 0 {
		o.PerGroup = 5
	}
	if o.NameLimit <= 0 {
		o.NameLimit = 80
	}
	if o.ImportPath == "" {
		o.ImportPath = "./http"
	}
	if o.Timestamp == "" {
		o.Timestamp = "2024-01-01T00:00:00Z"
	}
	return o
}

// Mock writes a TypeScript module with mockGroups, mockSites and
// mockConfigs. Only the first PerGroup sites of each group are included.
func Mock(w io.Writer, c *catalog.Catalog, opts MockOptions) error {
	opts = opts.withDefaults()
	counts := c.MemberCounts()
	ts := tsString(opts.Timestamp)

	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
		bw.WriteByte('\n')
	}

	p("// Generated by bookmerge. Do not edit.")
	p("")
	p("import { Group, Site } from %s;", tsString(opts.ImportPath))
	p("")

	p("export const mockGroups: Group[] = [")
	for _, g := range c.Groups {
		p("  {")
		p("    id: %d,", g.ID)
		p("    name: %s,", tsString(g.Name))
		p("    order_num: %d,", g.OrderNum)
		p("    is_public: %d,", g.IsPublic)
		p("    created_at: %s,", ts)
		p("    updated_at: %s,", ts)
		p("  }, // %d sites", counts[g.ID])
	}
	p("];")
	p("")

	p("export const mockSites: Site[] = [")
	for _, g := range c.Groups {
		for _, s := range limit(c.SitesIn(g.ID), opts.PerGroup) {
			p("  {")
			p("    id: %d,", s.ID)
			p("    group_id: %d,", s.GroupID)
			p("    name: %s,", tsString(truncateRunes(s.Name, opts.NameLimit)))
			p("    url: %s,", tsString(s.URL))
			p("    icon: %s,", tsString(s.Icon))
			p("    description: %s,", tsString(s.Description))
			p("    notes: %s,", tsString(s.Notes))
			p("    order_num: %d,", s.OrderNum)
			p("    is_public: %d,", s.IsPublic)
			p("    created_at: %s,", ts)
			p("    updated_at: %s,", ts)
			p("  },")
		}
	}
	p("];")
	p("")

	p("export const mockConfigs: Record<string, string> = {")
	for _, kv := range c.Configs {
		p("  %s: %s,", tsString(kv.Key), tsString(kv.Value))
	}
	p("};")

	return bw.Flush()
}

var tsEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
)

func tsString(s string) string {
	return "'" + tsEscaper.Replace(s) + "'"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func limit(sites []catalog.Site, n int) []catalog.Site {
	if len(sites) > n {
		return sites[:n]
	}
	return sites
}
