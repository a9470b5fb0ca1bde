package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maneesh/buildmanager/internal/backend"
	"github.com/maneesh/buildmanager/internal/config"
	"github.com/maneesh/buildmanager/internal/handlers"
	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/payload"
	"github.com/maneesh/buildmanager/internal/storage"
	"github.com/maneesh/buildmanager/internal/tracing"
	"github.com/maneesh/buildmanager/internal/workspace"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.Sync()

	logging.Info("Starting project workspace gateway",
		zap.String("service", cfg.ServiceName),
		zap.String("port", cfg.ServicePort),
		zap.String("backend", cfg.BackendURL),
	)

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.Init(cfg.TracingEnabled, cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		logging.L().Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logging.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	// Project API client
	client, err := backend.New(cfg.BackendURL,
		backend.WithTimeout(cfg.GetBackendTimeout()),
		backend.WithSessionCookie(cfg.BackendSessionCookie),
	)
	if err != nil {
		logging.L().Fatal("Failed to initialize project API client", zap.Error(err))
	}

	opts := []workspace.Option{
		workspace.WithPayloadReader(payload.NewReader(cfg.GetChunkSizeBytes(), cfg.GetMaxUploadBytes())),
	}
	var cooldown workspace.Cooldown

	// Redis is optional: project cache and shared activity cooldown
	if cfg.RedisEnabled {
		logging.Info("Connecting to Redis...", zap.String("addr", cfg.GetRedisAddr()))
		redisClient, err := storage.NewRedisClient(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logging.L().Fatal("Failed to initialize Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		redisClient = redisClient.WithTTL(cfg.GetProjectCacheTTL())
		opts = append(opts, workspace.WithCache(redisClient))
		cooldown = redisClient
		logging.Info("Redis client initialized")
	}

	registry := workspace.NewRegistry(client, opts...)
	activity := workspace.NewActivitySync(client, cooldown, cfg.GetActivitySyncInterval())

	router := handlers.NewRouter(handlers.Deps{
		Registry:       registry,
		Projects:       client,
		Activity:       activity,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.GetBackendTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logging.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server forced to shutdown", zap.Error(err))
	}
	registry.CloseAll()

	logging.Info("Server exited")
}
