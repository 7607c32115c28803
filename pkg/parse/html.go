package parse

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// ParseHTML parses a fetched page body into a goquery document.
func ParseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrParsing, err)
	}
	return doc, nil
}

// ExtractLinks returns the normalized absolute URLs of all anchor hrefs
// in the document, resolved against base. Fragment-only anchors,
// javascript: pseudo-links, and unparseable hrefs are skipped.
// Duplicates are removed, preserving first-seen order.
func ExtractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		resolved := Resolve(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})

	return links
}

// ExtractImages returns the normalized absolute URLs of all img srcs in
// the document, resolved against base. Inline data: URIs are skipped.
// Duplicates are removed, preserving first-seen order.
func ExtractImages(doc *goquery.Document, base *url.URL) []string {
	var images []string
	seen := make(map[string]struct{})

	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return
		}
		resolved := Resolve(base, src)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		images = append(images, resolved)
	})

	return images
}

// Title returns the trimmed text of the document's <title> element.
func Title(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}
