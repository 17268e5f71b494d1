package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codyseavey/graded-ledger/backend/internal/api"
	"github.com/codyseavey/graded-ledger/backend/internal/database"
	"github.com/codyseavey/graded-ledger/backend/internal/services"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

func main() {
	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./graded_ledger.db"
	}

	// Initialize database
	if err := database.Initialize(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	cardStore := store.New(database.GetDB())
	if count, err := cardStore.Count(); err == nil {
		log.Printf("Loaded collection with %d cards", count)
	}

	// Initialize dex data for species name decoration
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	dexService, err := services.NewDexService(dataDir)
	if err != nil {
		log.Fatalf("Failed to initialize dex service: %v", err)
	}

	// Initialize the two engines and the peripheral services
	equivalenceService := services.NewEquivalenceService(cardStore)
	valuationEngine := services.NewValuationEngine(cardStore)
	statsService := services.NewStatsService(cardStore)
	bundleService := services.NewBundleService(cardStore, database.GetDB())
	snapshotService := services.NewSnapshotService(cardStore, database.GetDB())

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start snapshot service in background
	go snapshotService.Start(ctx)

	// Setup router
	router := api.SetupRouter(cardStore, equivalenceService, valuationEngine, statsService, bundleService, snapshotService, dexService)

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the snapshot worker
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
