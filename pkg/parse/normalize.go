// Package parse extracts links, images, and metadata from HTML pages and
// normalizes the URLs they reference.
package parse

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for deduplication: lowercased scheme
// and host, default ports stripped, trailing path slash removed (except
// for the root), empty path mapped to "/", fragment and query dropped.
// The input URL is not modified.
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	if host, port, err := net.SplitHostPort(normalized.Host); err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	switch {
	case normalized.Path == "":
		normalized.Path = "/"
	case len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/"):
		normalized.Path = strings.TrimSuffix(normalized.Path, "/")
	}

	normalized.Fragment = ""
	normalized.RawQuery = ""

	return normalized.String()
}

// ParseAndNormalize parses urlStr with url.ParseRequestURI (a scheme is
// required) and returns both the normalized string and the parsed URL.
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(urlStr)
	if err != nil {
		return "", nil, err
	}
	return NormalizeURL(parsed), parsed, nil
}

// Resolve resolves a possibly-relative reference against base and
// returns the normalized absolute URL. Returns "" when ref cannot be
// parsed or resolves to a non-HTTP scheme.
func Resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return NormalizeURL(resolved)
}
