package store

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/leftoverlink/internal/model"
)

// SeedListings returns the demo listings shown on a fresh install, in
// display order.
func SeedListings(now time.Time) []model.Listing {
	seed := []struct {
		title, description, location string
		tags                         []string
		age                          time.Duration
	}{
		{"Leftover Pasta", "Delicious penne pasta with marinara sauce and veggies.", "Dorm A",
			[]string{model.TagVegetarian}, time.Hour},
		{"Half a Pizza", "Half of a pepperoni pizza from last night.", "Apartment 3C",
			[]string{model.TagNutFree}, 2 * time.Hour},
		{"Gluten-free Muffins", "Freshly baked gluten-free banana muffins.", "Library Cafe",
			[]string{model.TagGlutenFree}, 24 * time.Hour},
		{"Vegan Salad", "Mixed greens with quinoa and chickpeas.", "Dorm B",
			[]string{model.TagVegan}, 90 * time.Minute},
		{"Fruit Bowl", "Assorted seasonal fruits.", "Student Center",
			[]string{model.TagVegetarian, model.TagNutFree}, 5 * time.Hour},
	}

	listings := make([]model.Listing, 0, len(seed))
	for _, s := range seed {
		l := model.NewListing(s.title, s.description, s.location, s.tags, nil)
		l.CreatedAt = now.Add(-s.age)
		listings = append(listings, l)
	}
	return listings
}

// Seed adds listings to repo so that they end up in the given display order.
func Seed(ctx context.Context, repo Repository, listings []model.Listing) error {
	for i := len(listings) - 1; i >= 0; i-- {
		if err := repo.Add(ctx, listings[i]); err != nil {
			return fmt.Errorf("seeding %q: %w", listings[i].Title, err)
		}
	}
	return nil
}
