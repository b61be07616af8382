package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/leftoverlink/internal/store"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, repo store.Repository, jwtSecret string, maxImageBytes int) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	listingsHandler := &ListingsHandler{Repo: repo, MaxImageBytes: maxImageBytes}

	authMW := AuthMiddleware(jwtSecret, db)

	// Public: login, browsing.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/tags", listingsHandler.Tags)
	mux.HandleFunc("GET /api/listings", listingsHandler.List)
	mux.HandleFunc("GET /api/listings/stream", listingsHandler.Stream)
	mux.HandleFunc("POST /api/listings/refresh", listingsHandler.Refresh)
	mux.HandleFunc("GET /api/listings/{id}", listingsHandler.Get)
	mux.HandleFunc("GET /api/listings/{id}/image", listingsHandler.Image)
	mux.HandleFunc("GET /api/listings/{id}/thumbnail", listingsHandler.Thumbnail)

	// Residents: posting and removing.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /api/listings", authMW(http.HandlerFunc(listingsHandler.Create)))
	mux.Handle("DELETE /api/listings/{id}", authMW(http.HandlerFunc(listingsHandler.Delete)))

	return mux
}
