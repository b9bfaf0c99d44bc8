/*
Package main is the entry point for the InboxChat server.

It loads the configuration, initializes the global logger, opens the database, starts the
notification hub and serves the HTTP API until SIGINT or SIGTERM, then shuts down gracefully:
the hub is closed first so open event streams end and the HTTP server can drain.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inboxchat/internal/app/db"
	"inboxchat/internal/app/dispatch"
	"inboxchat/internal/app/hub"
	"inboxchat/internal/app/storage"
	"inboxchat/internal/configs"
	"inboxchat/internal/handler"
	"inboxchat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("heartbeat_interval", cfg.HeartbeatInterval).
		Bool("storage_enabled", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to open database")
	}
	defer store.Close()

	h := hub.NewHub(cfg.HeartbeatInterval)

	deps := &handler.AppDeps{
		Config:     cfg,
		Hub:        h,
		Store:      store,
		Dispatcher: dispatch.NewDispatcher(store, h),
	}

	if cfg.StorageEnabled() {
		deps.StorageService, err = storage.NewStorageService(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize storage service")
		}
	} else {
		logx.Warn("S3 storage is not configured, attachments are disabled.")
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     handler.Router(ctx, deps),
		ReadTimeout: 5 * time.Second,
		// Event streams clear their own write deadline.
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Pending stream waits end with the hub, otherwise Shutdown would wait for them until its timeout.
	server.RegisterOnShutdown(h.Shutdown)

	go func() {
		logx.Info("InboxChat server starting", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// No-op if RegisterOnShutdown already ran it; also waits for the heartbeat loop.
	h.Shutdown()

	logx.Info("Server gracefully stopped.")
}
