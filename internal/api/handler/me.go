package handler

import (
	"net/http"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/api/middleware"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage"
)

// MeHandler lets a user inspect and choose among their assigned profiles.
type MeHandler struct {
	store storage.Storage
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(store storage.Storage) *MeHandler {
	return &MeHandler{store: store}
}

// MePolicy is the caller's view of their own policy.
type MePolicy struct {
	ActiveProfileID string            `json:"active_profile_id,omitempty"`
	Profiles        []*domain.Profile `json:"profiles"`
}

// SelectProfileRequest chooses the caller's active profile.
type SelectProfileRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
}

// Get returns the profiles assigned to the caller and which one is active.
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	profiles, err := h.store.ProfilesForUser(r.Context(), user)
	if err != nil {
		respondError(w, err)
		return
	}
	activeID, err := h.store.GetActiveProfileID(r.Context(), user)
	if err != nil {
		respondError(w, err)
		return
	}
	if activeID == "" && len(profiles) > 0 {
		activeID = profiles[0].ID
	}

	respondJSON(w, http.StatusOK, &MePolicy{ActiveProfileID: activeID, Profiles: profiles})
}

// Select sets the caller's active profile. The profile must be assigned to
// the caller.
func (h *MeHandler) Select(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	var req SelectProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.ProfileID == "" {
		respondError(w, domain.ErrInvalidParameter)
		return
	}

	if err := h.store.SetActiveProfile(r.Context(), user, req.ProfileID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"active_profile_id": req.ProfileID})
}
