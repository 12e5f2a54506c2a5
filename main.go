package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trackr/api"
	"trackr/config"
	"trackr/handlers"
	"trackr/internal/events"
	"trackr/internal/treestore"
	"trackr/services/activity"
	"trackr/services/catalog"
	"trackr/services/completed"
	"trackr/services/metadata"
	"trackr/services/scheduler"
	"trackr/services/users"
	"trackr/services/watchstate"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🚀 trackr Backend Starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("TRACKR_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			// Redirect standard log to both console and file
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	// Apply port override if specified
	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if err := os.MkdirAll(settings.Storage.Directory, 0o755); err != nil {
		log.Fatalf("failed to create storage directory: %v", err)
	}

	// Open the tree store
	var store treestore.Store
	switch settings.Storage.Backend {
	case "file":
		store, err = treestore.NewFile(afero.NewOsFs(), filepath.Join(settings.Storage.Directory, "tree.json"))
	default:
		store, err = treestore.NewSQLite(filepath.Join(settings.Storage.Directory, "tree.db"))
	}
	if err != nil {
		log.Fatalf("failed to open tree store (%s): %v", settings.Storage.Backend, err)
	}
	fmt.Printf("✅ Tree store ready (%s backend)\n", settings.Storage.Backend)

	// Core services
	bus := events.NewBus()

	usersSvc, err := users.NewService(settings.Storage.Directory)
	if err != nil {
		log.Fatalf("failed to init users service: %v", err)
	}

	activityLogger := activity.NewLogger(settings.Activity.Endpoint, nil)
	if activityLogger.Enabled() {
		fmt.Println("✅ Activity tracking enabled")
	}

	metadataClient := metadata.NewClient(settings.Metadata.BaseURL, settings.Metadata.TMDBAPIKey, nil)
	if !metadataClient.IsConfigured() {
		fmt.Println("⚠️  No metadata API key configured; completion checks fall back to stored series status")
	}

	catalogSvc := catalog.NewService(store)
	watchSvc := watchstate.NewService(store, bus, activityLogger)
	detectorSvc := completed.NewService(store, metadataClient, bus)

	schedulerSvc := scheduler.NewService(cfgManager, usersSvc, catalogSvc, detectorSvc)
	if err := schedulerSvc.Start(context.Background()); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	// Log completion events as they happen
	completedCh, cancelCompleted := bus.SubscribeCompleted()
	go func() {
		for ev := range completedCh {
			log.Printf("[completed] user %s finished %q", ev.UserID, ev.Series.Title)
		}
	}()

	// Handlers and routes
	usersHandler := handlers.NewUsersHandler(usersSvc)
	seriesHandler := handlers.NewSeriesHandler(catalogSvc)
	watchStateHandler := handlers.NewWatchStateHandler(watchSvc)
	completedHandler := handlers.NewCompletedHandler(detectorSvc, catalogSvc)
	scheduledTasksHandler := handlers.NewScheduledTasksHandler(cfgManager, schedulerSvc)

	r := mux.NewRouter()
	api.Register(r, usersHandler, seriesHandler, watchStateHandler, completedHandler, scheduledTasksHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := schedulerSvc.Stop(shutdownCtx); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	cancelCompleted()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if err := store.Close(); err != nil {
		log.Printf("Tree store close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
