package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Non-navigational href schemes that never lead to a crawlable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:"}

// BaseOf returns the scheme+host origin of rawURL, which bounds a crawl.
func BaseOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url has no host")
	}
	return u.Scheme + "://" + u.Host, nil
}

// IsInDomain reports whether href, found on pageURL, stays inside the crawl
// origin. Empty hrefs, fragment-only hrefs and non-navigational schemes are
// rejected; malformed input fails closed.
func IsInDomain(href, pageURL, origin string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}

	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return false
	}
	resolved := base.ResolveReference(ref)

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return resolved.Host == originURL.Host
}

// Normalize resolves href against pageURL into the canonical absolute form
// used as the crawl's deduplication key: fragment dropped, empty path set to
// "/", and a single trailing slash stripped unless the URL is exactly the
// origin root. Malformed input returns ok=false.
func Normalize(href, pageURL string) (string, bool) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}

	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = u.Path[:len(u.Path)-1]
	}

	return u.String(), true
}
