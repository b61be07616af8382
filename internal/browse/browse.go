// Package browse keeps a filtered view of the listing store up to date as
// the store, the search text or the selected tag change.
package browse

import (
	"sync"

	"github.com/erazemk/leftoverlink/internal/filter"
	"github.com/erazemk/leftoverlink/internal/model"
	"github.com/erazemk/leftoverlink/internal/store"
)

// Source publishes the full listing collection.
type Source interface {
	Subscribe(fn func([]model.Listing)) func()
}

// Browser recomputes the filtered listings whenever any input changes.
// Only the latest value of each input is used.
type Browser struct {
	mu          sync.Mutex
	all         []model.Listing
	query       filter.Query
	view        *store.Feed
	closeOnce   sync.Once
	unsubscribe func()
}

// New subscribes to source and starts with query applied.
func New(source Source, query filter.Query) *Browser {
	b := &Browser{
		query: query,
		view:  store.NewFeed(nil, nil),
	}
	b.unsubscribe = source.Subscribe(b.onListings)
	return b
}

func (b *Browser) onListings(listings []model.Listing) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = listings
	b.recompute()
}

// recompute must be called with b.mu held.
func (b *Browser) recompute() {
	b.view.Publish(filter.Apply(b.all, b.query))
}

// SetSearchText replaces the search text.
func (b *Browser) SetSearchText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.query.Search = text
	b.recompute()
}

// SetTag replaces the selected tag. "" and model.TagAll clear the filter.
func (b *Browser) SetTag(tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tag == model.TagAll {
		tag = ""
	}
	b.query.Tag = tag
	b.recompute()
}

// ToggleTag selects tag, or clears the tag filter when tag is already
// selected or is model.TagAll.
func (b *Browser) ToggleTag(tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tag == model.TagAll || tag == b.query.Tag {
		b.query.Tag = ""
	} else {
		b.query.Tag = tag
	}
	b.recompute()
}

// Query returns the current filter inputs.
func (b *Browser) Query() filter.Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.query
}

// Listings returns the current filtered listings.
func (b *Browser) Listings() []model.Listing {
	return b.view.Current()
}

// Subscribe calls fn with the current filtered listings and with every
// recomputation after that. fn must not call back into the Browser.
func (b *Browser) Subscribe(fn func([]model.Listing)) func() {
	return b.view.Subscribe(fn)
}

// Close detaches the browser from its source.
func (b *Browser) Close() {
	b.closeOnce.Do(b.unsubscribe)
}
