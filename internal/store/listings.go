package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/erazemk/leftoverlink/internal/model"
)

const listingColumns = `id, title, description, location, dietary_tags, image, image_mime, posted_by, created_at`

// InsertListing stores a new listing row. Rows are read back newest first.
func InsertListing(ctx context.Context, db *sql.DB, l model.Listing) error {
	tags, err := json.Marshal(tagsOrEmpty(l.DietaryTags))
	if err != nil {
		return fmt.Errorf("encoding dietary tags: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Description, l.Location, string(tags),
		nullBytes(l.ImageData), nullString(l.ImageMIME), nullString(l.PostedBy), l.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating listing: %w", err)
	}
	return nil
}

// GetListing returns a listing by ID, or nil if it does not exist.
func GetListing(ctx context.Context, db *sql.DB, id string) (*model.Listing, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id,
	)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	return l, nil
}

// ListListings returns every listing, most recently inserted first.
func ListListings(ctx context.Context, db *sql.DB) ([]model.Listing, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings ORDER BY seq DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// DeleteListing removes a listing and reports whether a row was deleted.
func DeleteListing(ctx context.Context, db *sql.DB, id string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting listing: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("counting deleted listings: %w", err)
	}
	return n > 0, nil
}

// GetListingImage returns a listing's image data and MIME type.
func GetListingImage(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM listings WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting listing image: %w", err)
	}
	return image, mime.String, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*model.Listing, error) {
	l := &model.Listing{}
	var tags string
	var mime, postedBy sql.NullString
	if err := row.Scan(&l.ID, &l.Title, &l.Description, &l.Location, &tags,
		&l.ImageData, &mime, &postedBy, &l.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &l.DietaryTags); err != nil {
		return nil, fmt.Errorf("decoding dietary tags of %s: %w", l.ID, err)
	}
	l.ImageMIME = mime.String
	l.PostedBy = postedBy.String
	return l, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
