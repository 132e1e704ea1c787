package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/audit"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
)

// LogHandler exposes the just-in-time elevation audit trail.
type LogHandler struct {
	service *audit.Service
}

// NewLogHandler creates a new LogHandler.
func NewLogHandler(service *audit.Service) *LogHandler {
	return &LogHandler{service: service}
}

// Query returns one page of audit entries. Filters, sorting and paging come
// from query parameters.
func (h *LogHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := domain.AuditQuery{
		SortColumn:     r.URL.Query().Get("sort_column"),
		SortDescending: r.URL.Query().Get("sort_descending") == "true",
	}

	var err error
	if q.PageNumber, err = intParam(r, "page_number"); err != nil {
		respondError(w, err)
		return
	}
	if q.PageSize, err = intParam(r, "page_size"); err != nil {
		respondError(w, err)
		return
	}
	if q.StartTime, err = timeParam(r, "start_time"); err != nil {
		respondError(w, err)
		return
	}
	if q.EndTime, err = timeParam(r, "end_time"); err != nil {
		respondError(w, err)
		return
	}

	accountSID := r.URL.Query().Get("account_sid")
	domainSID := r.URL.Query().Get("domain_sid")
	if accountSID != "" || domainSID != "" {
		if accountSID == "" || domainSID == "" {
			respondError(w, domain.ErrInvalidParameter)
			return
		}
		q.User = &domain.User{AccountSID: accountSID, DomainSID: domainSID}
	}

	page, err := h.service.Query(r.Context(), q)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Get returns a single audit entry by id.
func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, domain.ErrInvalidParameter)
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ErrInvalidParameter
	}
	return n, nil
}

func timeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.ErrInvalidParameter
	}
	return ts, nil
}
