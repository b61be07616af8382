package api

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/leftoverlink/internal/model"
)

// listingView is the JSON shape of a listing.
type listingView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	DietaryTags []string  `json:"dietary_tags"`
	HasImage    bool      `json:"has_image"`
	ImageSize   string    `json:"image_size,omitempty"`
	PostedBy    string    `json:"posted_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	TimeAgo     string    `json:"time_ago"`
}

func newListingView(l model.Listing, now time.Time) listingView {
	v := listingView{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Location:    l.Location,
		DietaryTags: l.DietaryTags,
		HasImage:    l.HasImage(),
		PostedBy:    l.PostedBy,
		CreatedAt:   l.CreatedAt,
		TimeAgo:     model.TimeAgo(l.CreatedAt, now),
	}
	if v.DietaryTags == nil {
		v.DietaryTags = []string{}
	}
	if v.HasImage {
		v.ImageSize = humanize.Bytes(uint64(len(l.ImageData)))
	}
	return v
}

func newListingViews(listings []model.Listing, now time.Time) []listingView {
	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, newListingView(l, now))
	}
	return views
}
