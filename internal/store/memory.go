package store

import (
	"context"
	"slices"
	"sync"

	"github.com/erazemk/leftoverlink/internal/model"
)

// MemoryRepository keeps listings in a slice for the life of the process.
type MemoryRepository struct {
	mu       sync.Mutex
	listings []model.Listing
	feed     *Feed
	recorder Recorder
}

// NewMemoryRepository creates a repository holding seed, which must already
// be newest first.
func NewMemoryRepository(seed []model.Listing, recorder Recorder) *MemoryRepository {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	listings := make([]model.Listing, 0, len(seed))
	for _, l := range seed {
		listings = append(listings, l.Clone())
	}
	recorder.RecordListings(len(listings))
	return &MemoryRepository{
		listings: listings,
		feed:     NewFeed(listings, recorder),
		recorder: recorder,
	}
}

// Add inserts listing at the front of the collection.
func (r *MemoryRepository) Add(_ context.Context, listing model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing = listing.Clone()
	if listing.ID == "" {
		listing.ID = model.NewID()
	}
	if r.indexOf(listing.ID) >= 0 {
		return ErrDuplicateID
	}

	r.listings = slices.Insert(r.listings, 0, listing)
	r.recorder.RecordMutation(OpAdd, len(r.listings))
	r.feed.Publish(r.listings)
	return nil
}

// Delete removes the listing with id, if present.
func (r *MemoryRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}

	r.listings = slices.Delete(r.listings, i, i+1)
	r.recorder.RecordMutation(OpDelete, len(r.listings))
	r.feed.Publish(r.listings)
	return true, nil
}

// Refresh re-emits the current collection.
func (r *MemoryRepository) Refresh(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recorder.RecordMutation(OpRefresh, len(r.listings))
	r.feed.Publish(r.listings)
	return nil
}

// Listings returns a copy of the current collection.
func (r *MemoryRepository) Listings() []model.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.listings)
}

// Get returns the listing with id.
func (r *MemoryRepository) Get(id string) (model.Listing, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return model.Listing{}, false
	}
	return r.listings[i].Clone(), true
}

// Subscribe delivers the current collection and every later one to fn.
func (r *MemoryRepository) Subscribe(fn func([]model.Listing)) func() {
	return r.feed.Subscribe(fn)
}

func (r *MemoryRepository) indexOf(id string) int {
	return slices.IndexFunc(r.listings, func(l model.Listing) bool { return l.ID == id })
}
