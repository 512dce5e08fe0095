package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/rpattn/issueimport/internal/config"
	"github.com/rpattn/issueimport/internal/db"
	"github.com/rpattn/issueimport/internal/export"
	"github.com/rpattn/issueimport/internal/importer"
	"github.com/rpattn/issueimport/internal/middleware"
	"github.com/rpattn/issueimport/internal/notification"
	"github.com/rpattn/issueimport/internal/repository"
	"github.com/rpattn/issueimport/internal/staging"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.DB, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	issueRepo := repository.NewIssueRepository(conn.Pool)
	userRepo := repository.NewUserRepository(conn.Pool)
	projectRepo := repository.NewProjectRepository(conn.Pool)
	versionRepo := repository.NewVersionRepository(conn.Pool)
	categoryRepo := repository.NewCategoryRepository(conn.Pool)
	lookupRepo := repository.NewLookupRepository(conn.Pool)
	stagingRepo := repository.NewStagingRepository(conn.Pool)
	importLogRepo := repository.NewImportLogRepository(conn.Pool)

	// Create services
	dispatcher := notification.NewLogDispatcher(cfg.NotifiedEvents)
	importService := importer.NewService(
		issueRepo, userRepo, projectRepo, versionRepo, categoryRepo,
		lookupRepo, importLogRepo, dispatcher,
	)
	stagingService := staging.NewService(stagingRepo)
	exportService := export.NewService()

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	wrap := func(h http.Handler) http.Handler {
		return corsHandler.Handler(middleware.LoggingMiddleware(middleware.IdentityMiddleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("/import/stage", wrap(importer.NewStageHTTPHandler(importService, stagingService)))
	mux.Handle("/import/run", wrap(importer.NewRunHTTPHandler(importService, stagingService)))
	mux.Handle("/import/export", wrap(export.NewHTTPHandler(exportService)))
	mux.Handle("/import/logs", wrap(importer.NewLogsHTTPHandler(importLogRepo)))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting import server on %s", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
