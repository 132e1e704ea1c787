package handler

import (
	"net/http"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/api/middleware"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/session"
)

// ElevationHandler handles the per-user elevation session endpoints.
type ElevationHandler struct {
	sessions *session.Manager
}

// NewElevationHandler creates a new ElevationHandler.
func NewElevationHandler(sessions *session.Manager) *ElevationHandler {
	return &ElevationHandler{sessions: sessions}
}

// Temporary grants the caller temporary elevation.
func (h *ElevationHandler) Temporary(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	var req domain.GrantTemporaryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	elevSession, err := h.sessions.GrantTemporary(r.Context(), user, req.Seconds)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, elevSession)
}

// Session grants the caller elevation for the rest of their logon session.
func (h *ElevationHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	elevSession, err := h.sessions.GrantSession(r.Context(), user)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, elevSession)
}

// Revoke drops the caller's elevation. Revoking while not elevated succeeds.
func (h *ElevationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	h.sessions.Revoke(r.Context(), user)
	respondJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// Logoff clears the caller's elevation when their logon session ends.
func (h *ElevationHandler) Logoff(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	h.sessions.Logoff(user)
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// Status reports the caller's elevation state and what policy allows.
func (h *ElevationHandler) Status(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	status, err := h.sessions.Status(r.Context(), user)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
