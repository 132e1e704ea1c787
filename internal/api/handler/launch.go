package handler

import (
	"net/http"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/api/middleware"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/identity"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/launch"
)

// LaunchHandler handles elevated launch requests.
type LaunchHandler struct {
	service *launch.Service
	apps    identity.ApplicationResolver
}

// NewLaunchHandler creates a new LaunchHandler.
func NewLaunchHandler(service *launch.Service, apps identity.ApplicationResolver) *LaunchHandler {
	return &LaunchHandler{service: service, apps: apps}
}

// Launch starts a program with elevated rights on behalf of the caller.
func (h *LaunchHandler) Launch(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		respondError(w, domain.ErrUnauthorized)
		return
	}

	var req domain.LaunchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	asker := domain.ApplicationIdentity{User: user}
	if pid := req.StartupInfo; pid != nil && pid.ParentPID != 0 {
		if resolved, err := h.apps.FromProcess(r.Context(), pid.ParentPID); err == nil {
			asker = resolved
			asker.User = user
		}
	}

	resp, err := h.service.Launch(r.Context(), req, asker, user)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
