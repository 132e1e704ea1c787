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

// RuleHandler handles elevation rule endpoints.
type RuleHandler struct {
	store storage.Storage
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(store storage.Storage) *RuleHandler {
	return &RuleHandler{store: store}
}

// Create creates a new rule.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := validation.ValidateRuleRequest(req.Name, req.ElevationKind, req.Asker, req.Target); err != nil {
		var errs validation.ValidationErrors
		if errors.As(err, &errs) {
			respondValidationErrors(w, errs)
			return
		}
		respondError(w, err)
		return
	}

	now := time.Now().UTC()
	rule := &domain.Rule{
		ID:            generateID(),
		Name:          req.Name,
		ElevationKind: req.ElevationKind,
		Asker:         req.Asker,
		Target:        req.Target,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.store.CreateRule(r.Context(), rule); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

// Get returns a rule by id.
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.store.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// List returns all rules.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListRules(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rules)
}

// Update replaces a rule.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.UpdateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := validation.ValidateRuleRequest(req.Name, req.ElevationKind, req.Asker, req.Target); err != nil {
		var errs validation.ValidationErrors
		if errors.As(err, &errs) {
			respondValidationErrors(w, errs)
			return
		}
		respondError(w, err)
		return
	}

	existing, err := h.store.GetRule(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	rule := &domain.Rule{
		ID:            id,
		Name:          req.Name,
		ElevationKind: req.ElevationKind,
		Asker:         req.Asker,
		Target:        req.Target,
		CreatedAt:     existing.CreatedAt,
		UpdatedAt:     time.Now().UTC(),
	}

	if err := h.store.UpdateRule(r.Context(), rule); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// Delete removes a rule. A rule still referenced by a profile cannot be
// deleted.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
