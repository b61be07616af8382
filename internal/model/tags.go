package model

import (
	"slices"
	"strings"
)

// Dietary tags offered when posting a listing. Other tags are accepted as-is.
const (
	TagVegetarian = "Vegetarian"
	TagVegan      = "Vegan"
	TagGlutenFree = "Gluten-Free"
	TagNutFree    = "Nut-Free"
)

// TagAll is the filter value that disables tag filtering.
const TagAll = "All"

// DietaryTags lists the tag vocabulary in display order.
var DietaryTags = []string{TagVegetarian, TagVegan, TagGlutenFree, TagNutFree}

// FilterTags returns the tags offered by the filter bar, "All" first.
func FilterTags() []string {
	return append([]string{TagAll}, DietaryTags...)
}

// IsKnownTag reports whether tag belongs to the vocabulary.
func IsKnownTag(tag string) bool {
	return slices.Contains(DietaryTags, tag)
}

// NormalizeTags trims tags, drops empty ones and removes duplicates while
// keeping the first occurrence's position.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}
