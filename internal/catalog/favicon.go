package catalog

import (
	"net/url"
	"strings"
)

// DefaultIconAPI is the favicon service template used when icons are filled in.
const DefaultIconAPI = "https://www.faviconextractor.com/favicon/{domain}?larger=true"

// FaviconURL substitutes the host of rawURL into template's {domain}
// placeholder. Returns "" when rawURL has no host.
func FaviconURL(template, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	if template == "" {
		template = DefaultIconAPI
	}
	return strings.ReplaceAll(template, "{domain}", u.Host)
}
