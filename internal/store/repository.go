package store

import (
	"context"
	"errors"

	"github.com/erazemk/leftoverlink/internal/model"
)

// ErrDuplicateID is returned when a listing's ID is already held by the store.
var ErrDuplicateID = errors.New("listing id already exists")

// Repository is the single source of truth for live listings.
// Listings are kept newest first.
type Repository interface {
	// Add inserts a listing at the front. An empty ID is filled in.
	Add(ctx context.Context, listing model.Listing) error
	// Delete removes the listing with id. Unknown ids are a no-op and
	// report false.
	Delete(ctx context.Context, id string) (bool, error)
	// Refresh re-emits the current collection unchanged.
	Refresh(ctx context.Context) error
	// Listings returns the current collection.
	Listings() []model.Listing
	// Get returns one listing by id.
	Get(id string) (model.Listing, bool)
	// Subscribe delivers the current collection and every later one.
	Subscribe(fn func([]model.Listing)) func()
}
