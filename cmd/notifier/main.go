// Package main implements the entry point for the taskwire notifier, the
// consumer side of the task-events pipeline: it subscribes to the task-events
// topic through the sidecar and turns delivered events into user
// notifications exactly once.
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

	"github.com/taskwire/taskwire/internal/api/middleware"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/notifier"
	"github.com/taskwire/taskwire/internal/platform/logger"
	"github.com/taskwire/taskwire/internal/platform/postgres"
	"github.com/taskwire/taskwire/internal/sidecar"
	"github.com/taskwire/taskwire/internal/statestore"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("notifier failed: %v", err)
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
	appLogger.Info("notifier configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"topic", cfg.Sidecar.TaskEventsTopic,
		"max_attempts", cfg.Notifier.MaxAttempts)

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

	sidecarClient := sidecar.NewClient(cfg.Sidecar)
	markers := statestore.NewAccessor(sidecarClient, cfg.Sidecar.StateStoreName)
	conversations := statestore.NewConversationStore(markers, appLogger)
	records := postgres.NewPostgresNotificationStore(db, appLogger)
	sender := notifier.NewLogSender(appLogger)

	service := notifier.NewService(db, records, markers, conversations, sender, cfg.Notifier, appLogger)
	handler := notifier.NewHandler(service, appLogger)

	router := setupRouter(cfg, handler, appLogger)
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

// setupRouter registers sidecar-facing routes: the subscription declaration,
// the event delivery endpoint, and health.
func setupRouter(cfg *config.Config, handler *notifier.Handler, appLogger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	r.Get("/subscribe", sidecar.SubscriptionsHandler([]sidecar.Subscription{
		{Topic: cfg.Sidecar.TaskEventsTopic, Route: notifier.TaskEventsRoute},
	}))
	r.Post(notifier.TaskEventsRoute, handler.HandleTaskEvents)
	r.Get("/healthz", handler.HandleHealth)

	appLogger.Info("subscriptions declared",
		"topic", cfg.Sidecar.TaskEventsTopic,
		"route", notifier.TaskEventsRoute)
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
		appLogger.Info("starting notifier server", "port", cfg.Server.Port)
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

	appLogger.Info("notifier shutdown completed")
	return nil
}
