package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/api"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/audit"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/config"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/identity"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/launch"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/policy"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/session"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage/sql"
)

// noopExecutor rejects launches until a platform executor is plugged in.
// Policy evaluation, sessions and the audit trail all work without one.
type noopExecutor struct{}

func (noopExecutor) Launch(context.Context, domain.LaunchRequest, domain.User, domain.ElevationMethod) (*domain.LaunchResponse, error) {
	return nil, fmt.Errorf("%w: no process executor configured", domain.ErrInternal)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.Log.Level)

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if err := os.MkdirAll("data", 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	sessions := session.NewManager(store, logger)
	defer sessions.Close()

	engine := policy.NewEngine(store, logger)
	apps := identity.FileResolver{}
	launcher := launch.NewService(store, engine, sessions, apps, noopExecutor{}, logger)
	auditService := audit.NewService(store, logger)

	router := api.NewRouter(api.Deps{
		Store:        store,
		Sessions:     sessions,
		Launcher:     launcher,
		Audit:        auditService,
		Callers:      identity.HeaderResolver{},
		Applications: apps,
		BootstrapKey: cfg.Auth.BootstrapAPIKey,
		RateLimit:    cfg.Server.RateLimit,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting elevation service", "addr", cfg.Server.Addr())

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
