package classify

import (
	"net/url"
	"strings"

	"github.com/roach88/bookmerge/internal/catalog"
)

// DomainSet is a curated list of domains routed to one label.
type DomainSet struct {
	Label   string
	Domains []string
}

// DomainClassifier overrides classification for URLs whose host belongs to
// one of its sets. Sets are consulted in order.
type DomainClassifier struct {
	sets []normalizedSet
}

type normalizedSet struct {
	label   string
	exact   map[string]bool
	domains []string
}

// NewDomainClassifier normalizes the candidate domains (lower case, no
// leading "www.", no surrounding dots).
func NewDomainClassifier(sets ...DomainSet) *DomainClassifier {
	dc := &DomainClassifier{}
	for _, s := range sets {
		ns := normalizedSet{label: s.Label, exact: make(map[string]bool, len(s.Domains))}
		for _, d := range s.Domains {
			d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
			d = strings.TrimPrefix(d, "www.")
			if d == "" || ns.exact[d] {
				continue
			}
			ns.exact[d] = true
			ns.domains = append(ns.domains, d)
		}
		dc.sets = append(dc.sets, ns)
	}
	return dc
}

// Label implements Labeler.
func (dc *DomainClassifier) Label(rec catalog.Record) (string, bool) {
	return dc.Match(rec.URL)
}

// Match returns the label of the first set containing the URL's domain.
// Malformed URLs never match.
func (dc *DomainClassifier) Match(rawURL string) (string, bool) {
	domain := Domain(rawURL)
	if domain == "" {
		return "", false
	}
	for _, s := range dc.sets {
		if s.matches(domain) {
			return s.label, true
		}
	}
	return "", false
}

func (s normalizedSet) matches(domain string) bool {
	if s.exact[domain] {
		return true
	}
	for _, d := range s.domains {
		if strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// Domain extracts the comparable domain of rawURL: lower-cased host without
// port and without a leading "www.". Returns "" when the URL does not parse
// or has no host.
func Domain(rawURL string) string {
	u, ok := parseURL(rawURL)
	if !ok {
		return ""
	}
	return Host(u)
}

// Host returns the normalized host of a parsed URL.
func Host(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func parseURL(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}
