package parse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// Selector describes where one metadata field lives in a page: a CSS
// selector, and optionally an attribute to read instead of the element
// text.
type Selector struct {
	CSS  string
	Attr string
}

// Cleaner post-processes one extracted raw value.
type Cleaner func(string) string

// MetadataExtractor pulls named fields out of HTML documents using a
// selector map. Extraction is best effort: a missing element or failing
// selector yields an absent field, never an error.
type MetadataExtractor struct {
	selectors map[string]Selector
	cleaners  map[string]Cleaner
	log       *logrus.Entry
}

// NewMetadataExtractor creates an extractor over the given selector map.
func NewMetadataExtractor(selectors map[string]Selector, log *logrus.Entry) *MetadataExtractor {
	return &MetadataExtractor{
		selectors: selectors,
		cleaners:  make(map[string]Cleaner),
		log:       log,
	}
}

// SetCleaner registers a post-processing function for one field.
func (e *MetadataExtractor) SetCleaner(field string, fn Cleaner) {
	e.cleaners[field] = fn
}

// Extract applies every selector to the document and returns the fields
// that produced a non-empty value. Fields whose selector matches nothing
// are logged at debug level and omitted.
func (e *MetadataExtractor) Extract(doc *goquery.Document) map[string]string {
	out := make(map[string]string, len(e.selectors))

	for field, sel := range e.selectors {
		match := doc.Find(sel.CSS).First()
		if match.Length() == 0 {
			e.log.WithField("field", field).Debug("Metadata selector matched nothing")
			continue
		}

		var raw string
		if sel.Attr != "" {
			raw, _ = match.Attr(sel.Attr)
		} else {
			raw = match.Text()
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if clean, ok := e.cleaners[field]; ok {
			raw = clean(raw)
		}
		if raw != "" {
			out[field] = raw
		}
	}

	return out
}
