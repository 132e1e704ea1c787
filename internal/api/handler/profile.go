package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/validation"
)

// ProfileHandler handles elevation profile endpoints.
type ProfileHandler struct {
	store storage.Storage
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(store storage.Storage) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// Create creates a new profile.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := validation.ValidateProfileRequest(req.Name, req.DefaultElevationKind, req.ElevationMethod, req.Temporary); err != nil {
		var errs validation.ValidationErrors
		if errors.As(err, &errs) {
			respondValidationErrors(w, errs)
			return
		}
		respondError(w, err)
		return
	}

	now := time.Now().UTC()
	profile := &domain.Profile{
		ID:                   generateID(),
		Name:                 req.Name,
		Description:          req.Description,
		DefaultElevationKind: req.DefaultElevationKind,
		ElevationMethod:      req.ElevationMethod,
		Temporary:            req.Temporary,
		Session:              req.Session,
		PromptSecureDesktop:  req.PromptSecureDesktop,
		RuleIDs:              req.RuleIDs,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := h.store.CreateProfile(r.Context(), profile); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, profile)
}

// Get returns a profile by id.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// List returns all profiles.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.ListProfiles(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profiles)
}

// Update replaces a profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := validation.ValidateProfileRequest(req.Name, req.DefaultElevationKind, req.ElevationMethod, req.Temporary); err != nil {
		var errs validation.ValidationErrors
		if errors.As(err, &errs) {
			respondValidationErrors(w, errs)
			return
		}
		respondError(w, err)
		return
	}

	existing, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	profile := &domain.Profile{
		ID:                   id,
		Name:                 req.Name,
		Description:          req.Description,
		DefaultElevationKind: req.DefaultElevationKind,
		ElevationMethod:      req.ElevationMethod,
		Temporary:            req.Temporary,
		Session:              req.Session,
		PromptSecureDesktop:  req.PromptSecureDesktop,
		RuleIDs:              req.RuleIDs,
		CreatedAt:            existing.CreatedAt,
		UpdatedAt:            time.Now().UTC(),
	}

	if err := h.store.UpdateProfile(r.Context(), profile); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// Delete removes a profile and its assignments.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteProfile(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
