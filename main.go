// Package main our entry point.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/coordinator"
	"github.com/parleyhq/parley/internal/handler"
	"github.com/parleyhq/parley/internal/hub"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/ratelimit"
	"github.com/parleyhq/parley/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}

	if err := logger.Init(os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init server
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + port,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	// Init storage
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	db, err := store.Open(dataDir)
	if err != nil {
		logger.Log.Fatal("could not open store", zap.Error(err))
	}

	messages := store.NewMessageStore(db)
	blobs := store.NewBlobStore(db)

	// hub.Run is our central loop that delivers every broadcast to the
	// registered connections.
	h := hub.NewHub()
	go h.Run(ctx)

	coord := coordinator.New(h, messages)

	uploadLimiter := ratelimit.NewIPRateLimiter(30, time.Minute, ratelimit.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	})
	defer uploadLimiter.Cancel()

	r := chi.NewRouter()
	r.Get("/messages", handler.ListMessages(messages))
	r.Delete("/messages/{id}", handler.DeleteMessage(coord))
	r.Post("/upload", uploadLimiter.Middleware(handler.UploadFile(blobs)))
	r.Get("/files", handler.ListFiles(blobs))
	r.Get("/files/{filename}", handler.ServeFile(blobs))
	r.Delete("/files/{filename}", handler.DeleteFile(blobs))
	r.Get("/ws", handler.ServeWS(h, coord))
	r.Handle("/metrics", promhttp.Handler())
	// Everything unrouted gets the welcome string, wrong methods
	// included.
	r.NotFound(handler.ServeRoot())
	r.MethodNotAllowed(handler.ServeRoot())

	server.Handler = r

	go func() {
		logger.Log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("server shutdown", zap.Error(err))
	}

	if err := db.Close(); err != nil {
		logger.Log.Warn("store close", zap.Error(err))
	}

	logger.Log.Info("server stopped")
}
