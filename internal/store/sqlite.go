package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"

	"github.com/erazemk/leftoverlink/internal/model"
)

// SQLRepository keeps listings in the SQLite listings table. Reads are
// served from a cached copy kept in step with every mutation.
type SQLRepository struct {
	mu       sync.Mutex
	db       *sql.DB
	listings []model.Listing
	feed     *Feed
	recorder Recorder
}

// NewSQLRepository loads the existing rows and returns a repository over db.
func NewSQLRepository(ctx context.Context, db *sql.DB, recorder Recorder) (*SQLRepository, error) {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	listings, err := ListListings(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("loading listings: %w", err)
	}
	recorder.RecordListings(len(listings))
	return &SQLRepository{
		db:       db,
		listings: listings,
		feed:     NewFeed(listings, recorder),
		recorder: recorder,
	}, nil
}

// Add inserts listing as the newest row.
func (r *SQLRepository) Add(ctx context.Context, listing model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.ID == "" {
		listing.ID = model.NewID()
	}
	existing, err := GetListing(ctx, r.db, listing.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateID
	}

	if err := InsertListing(ctx, r.db, listing); err != nil {
		return err
	}
	if err := r.reload(ctx); err != nil {
		return err
	}
	r.recorder.RecordMutation(OpAdd, len(r.listings))
	r.feed.Publish(r.listings)
	return nil
}

// Delete removes the row with id, if present.
func (r *SQLRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := DeleteListing(ctx, r.db, id)
	if err != nil || !removed {
		return false, err
	}
	r.listings = slices.DeleteFunc(slices.Clone(r.listings), func(l model.Listing) bool { return l.ID == id })
	r.recorder.RecordMutation(OpDelete, len(r.listings))
	r.feed.Publish(r.listings)
	return true, nil
}

// Refresh re-emits the current collection without touching the database.
func (r *SQLRepository) Refresh(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recorder.RecordMutation(OpRefresh, len(r.listings))
	r.feed.Publish(r.listings)
	return nil
}

// Listings returns a copy of the current collection.
func (r *SQLRepository) Listings() []model.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.listings)
}

// Get returns the listing with id.
func (r *SQLRepository) Get(id string) (model.Listing, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.listings, func(l model.Listing) bool { return l.ID == id })
	if i < 0 {
		return model.Listing{}, false
	}
	return r.listings[i].Clone(), true
}

// Subscribe delivers the current collection and every later one to fn.
func (r *SQLRepository) Subscribe(fn func([]model.Listing)) func() {
	return r.feed.Subscribe(fn)
}

func (r *SQLRepository) reload(ctx context.Context) error {
	listings, err := ListListings(ctx, r.db)
	if err != nil {
		return fmt.Errorf("reloading listings: %w", err)
	}
	r.listings = listings
	return nil
}
