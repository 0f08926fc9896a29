// Package main implements the entry point for the taskwire scheduler, the
// producer side of the task-events pipeline: on each timer-binding trigger it
// materializes due recurring templates into task instances and publishes the
// resulting events. It also serves the owner-scoped template management API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/api/middleware"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/platform/logger"
	"github.com/taskwire/taskwire/internal/platform/postgres"
	"github.com/taskwire/taskwire/internal/publisher"
	"github.com/taskwire/taskwire/internal/scheduler"
	"github.com/taskwire/taskwire/internal/service/identity"
	"github.com/taskwire/taskwire/internal/sidecar"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("scheduler failed: %v", err)
	}
}

// run loads configuration, wires every dependency explicitly, and serves
// until a shutdown signal arrives.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)
	appLogger.Info("scheduler configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"catch_up_limit", cfg.Scheduler.CatchUpLimit)

	db, err := setupDatabase(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("error closing database connection", "error", err)
		}
	}()

	if err := postgres.MigrateUp(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	templates := postgres.NewPostgresTemplateStore(db, appLogger)
	instances := postgres.NewPostgresTaskInstanceStore(db, appLogger)

	sidecarClient := sidecar.NewClient(cfg.Sidecar)
	pub := publisher.New(sidecarClient, cfg.Sidecar, appLogger)

	generator := scheduler.NewGenerator(templates, instances, pub, cfg.Scheduler, appLogger)
	schedulerHandler := scheduler.NewHandler(generator, appLogger)
	templateHandler := api.NewTemplateHandler(templates, appLogger)

	verifier, err := identity.NewVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	router := setupRouter(schedulerHandler, templateHandler, authMiddleware)
	return serveHTTP(ctx, cfg, router, appLogger)
}

// setupDatabase opens the connection pool and verifies it answers.
func setupDatabase(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	appLogger.Info("database connection established")
	return db, nil
}

// setupRouter registers the timer-trigger route, health, and the owner-scoped
// template management API.
func setupRouter(
	schedulerHandler *scheduler.Handler,
	templateHandler *api.TemplateHandler,
	authMiddleware *middleware.AuthMiddleware,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	r.Post(scheduler.TriggerRoute, schedulerHandler.HandleTrigger)
	r.Get("/healthz", schedulerHandler.HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		r.Get("/templates", templateHandler.ListTemplates)
		r.Post("/templates", templateHandler.CreateTemplate)
		r.Get("/templates/{id}", templateHandler.GetTemplate)
		r.Post("/templates/{id}/enable", templateHandler.EnableTemplate)
		r.Post("/templates/{id}/disable", templateHandler.DisableTemplate)
	})

	return r
}

// serveHTTP runs the server with graceful shutdown on SIGINT/SIGTERM.
func serveHTTP(ctx context.Context, cfg *config.Config, router http.Handler, appLogger *slog.Logger) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		appLogger.Info("starting scheduler server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server failed", "error", err)
			cancelServer()
		}
	}()

	select {
	case <-shutdownCh:
		appLogger.Info("shutdown signal received")
	case <-serverCtx.Done():
		appLogger.Info("server context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	appLogger.Info("scheduler shutdown completed")
	return nil
}
