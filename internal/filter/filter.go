// Package filter derives the displayed subset of listings from a search text
// and a dietary tag.
package filter

import (
	"net/url"
	"strings"

	"github.com/erazemk/leftoverlink/internal/model"
)

// Query holds the two filter inputs. The zero value matches everything.
type Query struct {
	Search string
	Tag    string
}

// ParseQuery reads the "q" and "tag" parameters.
func ParseQuery(values url.Values) Query {
	return Query{Search: values.Get("q"), Tag: values.Get("tag")}
}

// Needle returns the lowercased, trimmed search text, or "" when the text
// filter is disabled.
func (q Query) Needle() string {
	return strings.ToLower(strings.TrimSpace(q.Search))
}

// TagFilter returns the tag to filter on, or "" when the tag filter is disabled.
func (q Query) TagFilter() string {
	if q.Tag == model.TagAll {
		return ""
	}
	return q.Tag
}

// Active reports whether the query excludes anything.
func (q Query) Active() bool {
	return q.Needle() != "" || q.TagFilter() != ""
}

// Matches reports whether a single listing passes both filters.
func (q Query) Matches(l model.Listing) bool {
	return matches(l, q.Needle(), q.TagFilter())
}

func matches(l model.Listing, needle, tag string) bool {
	if needle != "" &&
		!strings.Contains(strings.ToLower(l.Title), needle) &&
		!strings.Contains(strings.ToLower(l.Description), needle) {
		return false
	}
	if tag != "" && !l.HasTag(tag) {
		return false
	}
	return true
}

// Apply returns the listings that pass q, in their original order.
// The input slice is never modified.
func Apply(listings []model.Listing, q Query) []model.Listing {
	needle, tag := q.Needle(), q.TagFilter()
	result := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if matches(l, needle, tag) {
			result = append(result, l)
		}
	}
	return result
}
