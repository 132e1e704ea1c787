// Package api wires the HTTP surface: the per-user agent endpoints and the
// API-key-protected administrative endpoints.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/api/handler"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/api/middleware"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/audit"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/identity"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/launch"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/session"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage"
)

// Deps carries everything the router needs.
type Deps struct {
	Store        storage.Storage
	Sessions     *session.Manager
	Launcher     *launch.Service
	Audit        *audit.Service
	Callers      identity.CallerResolver
	Applications identity.ApplicationResolver
	BootstrapKey string
	RateLimit    int
	Logger       *slog.Logger
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(deps.Logger))
	if deps.RateLimit > 0 {
		r.Use(httprate.LimitByIP(deps.RateLimit, time.Minute))
	}

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Per-user agent surface: caller identity required.
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Caller(deps.Callers))

		elevationHandler := handler.NewElevationHandler(deps.Sessions)
		r.Post("/elevate/temporary", elevationHandler.Temporary)
		r.Post("/elevate/session", elevationHandler.Session)
		r.Post("/revoke", elevationHandler.Revoke)
		r.Post("/logoff", elevationHandler.Logoff)
		r.Get("/status", elevationHandler.Status)

		launchHandler := handler.NewLaunchHandler(deps.Launcher, deps.Applications)
		r.Post("/launch", launchHandler.Launch)

		meHandler := handler.NewMeHandler(deps.Store)
		r.Get("/policy/me", meHandler.Get)
		r.Put("/policy/me", meHandler.Select)

		logHandler := handler.NewLogHandler(deps.Audit)
		r.Get("/log/jit", logHandler.Query)
		r.Get("/log/jit/{id}", logHandler.Get)
	})

	// Administrative surface: API key required.
	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(deps.Store, deps.BootstrapKey))

		keyHandler := handler.NewAPIKeyHandler(deps.Store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		profileHandler := handler.NewProfileHandler(deps.Store)
		r.Post("/profiles", profileHandler.Create)
		r.Get("/profiles", profileHandler.List)
		r.Get("/profiles/{id}", profileHandler.Get)
		r.Put("/profiles/{id}", profileHandler.Update)
		r.Delete("/profiles/{id}", profileHandler.Delete)

		assignmentHandler := handler.NewAssignmentHandler(deps.Store)
		r.Get("/assignments", assignmentHandler.List)
		r.Get("/profiles/{id}/assignment", assignmentHandler.Get)
		r.Put("/profiles/{id}/assignment", assignmentHandler.Set)
		r.Get("/users", assignmentHandler.Users)

		ruleHandler := handler.NewRuleHandler(deps.Store)
		r.Post("/rules", ruleHandler.Create)
		r.Get("/rules", ruleHandler.List)
		r.Get("/rules/{id}", ruleHandler.Get)
		r.Put("/rules/{id}", ruleHandler.Update)
		r.Delete("/rules/{id}", ruleHandler.Delete)

		logHandler := handler.NewLogHandler(deps.Audit)
		r.Get("/log/jit", logHandler.Query)
		r.Get("/log/jit/{id}", logHandler.Get)
	})

	return r
}
