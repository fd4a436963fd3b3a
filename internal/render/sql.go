package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/bookmerge/internal/catalog"
)

// SQLOptions controls the script header.
type SQLOptions struct {
	// Title is written into the header comment. Defaults to
	// "bookmerge catalog import".
	Title string
}

// SQL writes an insert script that replaces the groups, sites and configs
// tables. Ids are explicit so the script reproduces the catalog exactly.
func SQL(w io.Writer, c *catalog.Catalog, opts SQLOptions) error {
	title := opts.Title
	if title == "" {
		title = "bookmerge catalog import"
	}

	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
		bw.WriteByte('\n')
	}

	p("-- ================================")
	p("-- %s", oneLine(title))
	p("-- ================================")
	p("")
	p("PRAGMA foreign_keys = OFF;")
	p("")
	p("DELETE FROM sites;")
	p("DELETE FROM groups;")
	p("DELETE FROM configs;")
	p("")
	p("DELETE FROM sqlite_sequence WHERE name='groups';")
	p("DELETE FROM sqlite_sequence WHERE name='sites';")
	p("")

	p("-- groups (%d)", len(c.Groups))
	for _, g := range c.Groups {
		p("INSERT INTO groups (id, name, order_num, is_public) VALUES (%d, %s, %d, %d);",
			g.ID, sqlString(g.Name), g.OrderNum, g.IsPublic)
	}
	p("")

	p("-- sites (%d)", len(c.Sites))
	for _, s := range c.Sites {
		p("INSERT INTO sites (id, group_id, name, url, icon, description, notes, order_num, is_public) VALUES (%d, %d, %s, %s, %s, %s, %s, %d, %d);",
			s.ID, s.GroupID, sqlString(s.Name), sqlString(s.URL), sqlString(s.Icon),
			sqlString(s.Description), sqlString(s.Notes), s.OrderNum, s.IsPublic)
	}
	p("")

	p("-- configs (%d)", len(c.Configs))
	for _, kv := range c.Configs {
		p("INSERT INTO configs (key, value) VALUES (%s, %s);", sqlString(kv.Key), sqlString(kv.Value))
	}
	p("")
	p("PRAGMA foreign_keys = ON;")

	return bw.Flush()
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
