package classify

import (
	"strings"

	"github.com/roach88/bookmerge/internal/catalog"
)

// DefaultMaxRootQuery is the query length below which a homepage URL with a
// query string still counts as a root. Trivial tracking parameters stay
// under it.
const DefaultMaxRootQuery = 20

// RootDomainDetector recognizes bare homepage URLs and routes them to Group.
type RootDomainDetector struct {
	Group string

	// MaxQuery is the exclusive upper bound on query length; zero means
	// DefaultMaxRootQuery.
	MaxQuery int
}

// IsRoot reports whether rawURL points at a site's homepage: the path,
// with trailing slashes trimmed, is empty and the query is absent or short.
// Malformed URLs are not roots.
func (d *RootDomainDetector) IsRoot(rawURL string) bool {
	u, ok := parseURL(rawURL)
	if !ok {
		return false
	}
	if strings.TrimRight(u.EscapedPath(), "/") != "" {
		return false
	}
	limit := d.MaxQuery
	if limit <= 0 {
		limit = DefaultMaxRootQuery
	}
	return u.RawQuery == "" || len(u.RawQuery) < limit
}

// Label implements Labeler.
func (d *RootDomainDetector) Label(rec catalog.Record) (string, bool) {
	if d.Group == "" || !d.IsRoot(rec.URL) {
		return "", false
	}
	return d.Group, true
}
