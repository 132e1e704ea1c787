package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage"
)

// AssignmentHandler handles profile-to-user assignment endpoints.
type AssignmentHandler struct {
	store storage.Storage
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(store storage.Storage) *AssignmentHandler {
	return &AssignmentHandler{store: store}
}

// List returns every assignment.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.store.ListAssignments(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assignments)
}

// Get returns the assignment of one profile.
func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	assignment, err := h.store.GetAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assignment)
}

// Set replaces the users assigned to a profile.
func (h *AssignmentHandler) Set(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "id")

	var users []domain.User
	if err := decodeJSON(r, &users); err != nil {
		respondError(w, err)
		return
	}
	for _, user := range users {
		if user.AccountSID == "" || user.DomainSID == "" {
			respondError(w, domain.ErrInvalidParameter)
			return
		}
	}

	if err := h.store.SetAssignment(r.Context(), profileID, users); err != nil {
		respondError(w, err)
		return
	}

	assignment, err := h.store.GetAssignment(r.Context(), profileID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assignment)
}

// Users returns every user that has at least one profile assigned.
func (h *AssignmentHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}
