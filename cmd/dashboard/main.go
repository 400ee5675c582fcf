package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/todaytrend/trend-dashboard/internal/analysis"
	"github.com/todaytrend/trend-dashboard/internal/api"
	"github.com/todaytrend/trend-dashboard/internal/config"
	"github.com/todaytrend/trend-dashboard/internal/couchdb"
	"github.com/todaytrend/trend-dashboard/internal/dashboard"
	"github.com/todaytrend/trend-dashboard/internal/digest"
	"github.com/todaytrend/trend-dashboard/internal/notifications"
	"github.com/todaytrend/trend-dashboard/internal/scheduler"
	"github.com/todaytrend/trend-dashboard/internal/storage"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting TodayTrend dashboard")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize CouchDB client
	client, err := couchdb.NewClient(couchdb.Options{
		BaseURL:  cfg.CouchDBURL,
		Database: cfg.CouchDBName,
		Username: cfg.CouchDBUsername,
		Password: cfg.CouchDBPassword,
		Timeout:  cfg.CouchDBTimeout,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize CouchDB client: %v", err)
	}

	// Initialize the deleted-post archive
	archive, err := newArchive(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	if archive != nil {
		client.SetArchive(archive)
	}

	store := dashboard.NewStore(client)
	accessor := analysis.NewAccessor(client)

	// Initial load; failures stay visible in the dashboard state
	if err := store.FetchRecent(ctx); err != nil {
		logrus.Warnf("Initial post fetch failed: %v", err)
	}
	if err := accessor.Load(ctx); err != nil {
		logrus.Warnf("Initial analysis load failed: %v", err)
	}

	// Initialize digest delivery
	var digests *digest.Service
	if cfg.NotificationsEnabled() {
		digests = digest.NewService(accessor, archive, notifications.NewService(cfg))
	}

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, store, accessor, digests)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	apiOptions := api.Options{
		Store:          store,
		Analysis:       accessor,
		Database:       client,
		Archive:        archive,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if digests != nil {
		apiOptions.Digests = digests
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewServer(apiOptions).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CouchDBTimeout*2 + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// newArchive returns the configured archive, or nil when archiving is disabled
func newArchive(ctx context.Context, cfg *config.Config) (storage.StorageInterface, error) {
	switch {
	case cfg.StorageAccount != "":
		logrus.Infof("Archiving deleted posts to Azure container %s", cfg.StorageContainer)
		return storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	case cfg.ArchiveDir != "":
		logrus.Infof("Archiving deleted posts to %s", cfg.ArchiveDir)
		return storage.NewLocalStorage(cfg.ArchiveDir)
	default:
		logrus.Info("Deleted posts are not archived")
		return nil, nil
	}
}
