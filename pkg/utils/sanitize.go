package utils

import (
	"regexp"
	"strings"
)

var (
	invalidFilenameChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	consecutiveUnderscores = regexp.MustCompile(`_+`)
	leadingSlashes         = regexp.MustCompile(`^/+`)
)

// Cap keeps derived names well under common filesystem limits.
const maxFilenameLength = 100

// SanitizeFilename rewrites name so it is safe to use as a single path
// component: characters that are invalid on Windows or Unix become
// underscores, runs of underscores collapse, and the result is capped
// at maxFilenameLength bytes. An empty result becomes "untitled".
func SanitizeFilename(name string) string {
	s := invalidFilenameChars.ReplaceAllString(name, "_")
	s = consecutiveUnderscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_ ")

	if len(s) > maxFilenameLength {
		// Byte truncation may split a multi-byte rune, which is
		// acceptable here since the trim below drops stray bytes
		// only when they are underscores or spaces.
		s = strings.Trim(s[:maxFilenameLength], "_ ")
	}

	if s == "" {
		return "untitled"
	}
	return s
}

// CleanFilename derives a flat local filename from a resource URL by
// stripping the scheme and domain and flattening the remaining path with
// underscores. The final path segment is kept verbatim as the file name.
func CleanFilename(rawURL, domain string) string {
	idx := strings.LastIndex(rawURL, "/")
	if idx < 0 {
		return rawURL
	}
	filename := rawURL[idx+1:]
	dir := rawURL[:idx+1]

	dir = strings.Replace(dir, "wp-content/", "", 1)
	dir = strings.TrimPrefix(dir, "https://")
	dir = strings.TrimPrefix(dir, "http://")
	dir = strings.Replace(dir, domain, "", 1)
	dir = leadingSlashes.ReplaceAllString(dir, "")
	dir = strings.ReplaceAll(dir, "/", "_")
	return dir + filename
}
