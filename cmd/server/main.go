package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerylCAtieno/docmind-api/internal/analyzer"
	"github.com/BerylCAtieno/docmind-api/internal/config"
	"github.com/BerylCAtieno/docmind-api/internal/db"
	"github.com/BerylCAtieno/docmind-api/internal/handlers"
	"github.com/BerylCAtieno/docmind-api/internal/repository"
	"github.com/BerylCAtieno/docmind-api/internal/router"
	"github.com/BerylCAtieno/docmind-api/internal/services"
	"github.com/BerylCAtieno/docmind-api/internal/storage"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	// Run migrations
	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// Initialize database
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close()

	ctx := context.Background()

	// Initialize object storage
	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", "error", err, "driver", cfg.StorageDriver)
	}

	// Initialize model provider
	llm, err := analyzer.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize analyzer", "error", err, "provider", cfg.LLMProvider)
	}

	// Initialize session service
	repo := repository.NewRepository(database)
	sessionService := services.NewService(repo, store, llm, cfg, logger)

	// Setup HTTP router
	checkers := map[string]handlers.HealthChecker{
		"database": handlers.CheckFunc(repo.Ping),
		"storage":  handlers.CheckFunc(store.Ping),
	}
	handler := router.NewRouter(sessionService, checkers, cfg, logger)

	// Analysis and chat wait on the model, so writes get the model timeout plus headroom.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("Starting server",
			"port", cfg.Port,
			"provider", cfg.LLMProvider,
			"storage", cfg.StorageDriver,
			"postgres", cfg.IsPostgres())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
