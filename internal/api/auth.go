package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/leftoverlink/internal/auth"
	"github.com/erazemk/leftoverlink/internal/store"
)

// MaxNameLength is the longest resident name accepted at login.
const MaxNameLength = 64

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
}

type loginRequest struct {
	Name     string `json:"name"`
	Passcode string `json:"passcode"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || req.Passcode == "" {
		jsonError(w, http.StatusBadRequest, "name and passcode required")
		return
	}
	if len(name) > MaxNameLength {
		jsonError(w, http.StatusBadRequest, "name too long")
		return
	}

	hash, err := store.GetPasscodeHash(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to load passcode hash", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if hash == "" {
		jsonError(w, http.StatusServiceUnavailable, "sign-in is not configured")
		return
	}

	if err := auth.CheckPasscode(hash, req.Passcode); err != nil {
		if errors.Is(err, auth.ErrPasscodeMismatch) {
			slog.Warn("login failed", "name", name, "remote", r.RemoteAddr)
			jsonError(w, http.StatusUnauthorized, "invalid passcode")
			return
		}
		slog.Error("failed to check passcode", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, name)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("resident signed in", "name", name)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expiresAt := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expiresAt); err != nil {
		slog.Error("failed to revoke token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}

	slog.Info("resident signed out", "name", claims.Resident)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "signed out"})
}
