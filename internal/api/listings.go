package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/leftoverlink/internal/filter"
	"github.com/erazemk/leftoverlink/internal/imaging"
	"github.com/erazemk/leftoverlink/internal/model"
	"github.com/erazemk/leftoverlink/internal/store"
)

// ListingsHandler handles listing endpoints.
type ListingsHandler struct {
	Repo          store.Repository
	MaxImageBytes int
}

type createListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	DietaryTags []string `json:"dietary_tags"`
	Image       []byte   `json:"image,omitempty"`
}

// List handles GET /api/listings.
func (h *ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := filter.ParseQuery(r.URL.Query())
	listings := filter.Apply(h.Repo.Listings(), q)
	jsonResponse(w, http.StatusOK, newListingViews(listings, time.Now()))
}

// Create handles POST /api/listings.
func (h *ListingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	// Base64 grows the photo by a third; leave room for the text fields.
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.MaxImageBytes)*4/3+64<<10)

	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	listing := model.NewListing(req.Title, req.Description, req.Location, model.NormalizeTags(req.DietaryTags), nil)
	if err := model.Validate(listing); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if claims := GetClaims(r.Context()); claims != nil {
		listing.PostedBy = claims.Resident
	}

	var imageSize string
	if len(req.Image) > 0 {
		photo, err := imaging.Normalize(req.Image, h.MaxImageBytes)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid image: "+err.Error())
			return
		}
		listing.ImageData = photo.Data
		listing.ImageMIME = photo.MIME
		imageSize = photo.Size()
	}

	if err := h.Repo.Add(r.Context(), listing); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			jsonError(w, http.StatusConflict, "listing already exists")
			return
		}
		slog.Error("failed to add listing", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create listing")
		return
	}

	slog.Info("listing posted", "id", listing.ID, "title", listing.Title, "by", listing.PostedBy, "image", imageSize)
	jsonResponse(w, http.StatusCreated, newListingView(listing, time.Now()))
}

// Get handles GET /api/listings/{id}.
func (h *ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.Repo.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "listing not found")
		return
	}
	jsonResponse(w, http.StatusOK, newListingView(listing, time.Now()))
}

// Delete handles DELETE /api/listings/{id}. Unknown ids are not an error.
func (h *ListingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := h.Repo.Delete(r.Context(), id)
	if err != nil {
		slog.Error("failed to delete listing", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete listing")
		return
	}
	if removed {
		slog.Info("listing deleted", "id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/listings/refresh.
func (h *ListingsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.Refresh(r.Context()); err != nil {
		slog.Error("failed to refresh listings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to refresh listings")
		return
	}
	h.List(w, r)
}

// Image handles GET /api/listings/{id}/image.
func (h *ListingsHandler) Image(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.Repo.Get(r.PathValue("id"))
	if !ok || !listing.HasImage() {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}
	writeImage(w, listing.ImageData, listing.ImageMIME)
}

// Thumbnail handles GET /api/listings/{id}/thumbnail.
func (h *ListingsHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.Repo.Get(r.PathValue("id"))
	if !ok || !listing.HasImage() {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	thumb, err := imaging.Thumbnail(listing.ImageData, imaging.ThumbnailSize)
	if err != nil {
		slog.Error("failed to render thumbnail", "id", listing.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to render thumbnail")
		return
	}
	writeImage(w, thumb.Data, thumb.MIME)
}

// Tags handles GET /api/tags.
func (h *ListingsHandler) Tags(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, model.FilterTags())
}

func writeImage(w http.ResponseWriter, data []byte, mime string) {
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// Listings are immutable, so their photos never change.
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}
