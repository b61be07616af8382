package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Listing represents one food item available for pickup.
// Listings are immutable once created.
type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	DietaryTags []string  `json:"dietary_tags"`
	ImageData   []byte    `json:"-"`
	ImageMIME   string    `json:"image_mime,omitempty"`
	PostedBy    string    `json:"posted_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewListing builds a listing with a fresh ID and the current time.
func NewListing(title, description, location string, tags []string, image []byte) Listing {
	return Listing{
		ID:          NewID(),
		Title:       title,
		Description: description,
		Location:    location,
		DietaryTags: tags,
		ImageData:   image,
		CreatedAt:   time.Now(),
	}
}

// NewID returns a new random listing ID.
func NewID() string {
	return uuid.NewString()
}

// HasImage reports whether the listing carries a photo.
func (l Listing) HasImage() bool {
	return len(l.ImageData) > 0
}

// HasTag reports whether the listing carries exactly the given tag.
func (l Listing) HasTag(tag string) bool {
	return slices.Contains(l.DietaryTags, tag)
}

// Clone returns a copy that shares no slices with l.
func (l Listing) Clone() Listing {
	c := l
	c.DietaryTags = slices.Clone(l.DietaryTags)
	c.ImageData = slices.Clone(l.ImageData)
	return c
}

// ValidationError reports a required listing field that was left empty.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Validate checks that title, description and location are not blank.
func Validate(l Listing) error {
	fields := []struct {
		name  string
		value string
	}{
		{"title", l.Title},
		{"description", l.Description},
		{"location", l.Location},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name}
		}
	}
	return nil
}
