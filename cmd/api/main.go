package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/voxsplit/voxsplit/internal/api"
	"github.com/voxsplit/voxsplit/internal/config"
	"github.com/voxsplit/voxsplit/internal/describer"
	"github.com/voxsplit/voxsplit/internal/engine"
	"github.com/voxsplit/voxsplit/internal/ratelimit"
	"github.com/voxsplit/voxsplit/internal/separation"
	"github.com/voxsplit/voxsplit/internal/storage"
	"github.com/voxsplit/voxsplit/internal/store"
	"github.com/voxsplit/voxsplit/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "voxsplit-api",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	artifacts, err := buildArtifactStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("artifact storage: %v", err)
	}

	jobs, closeJobs, err := buildJobStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("job store: %v", err)
	}
	defer closeJobs()

	gemini, err := describer.NewGeminiClient(describer.Config{
		APIKey:  cfg.Describer.APIKey,
		Model:   cfg.Describer.Model,
		Timeout: cfg.Describer.Timeout,
	})
	if err != nil {
		logger.Fatalf("description provider: %v", err)
	}

	eng, err := engine.NewHTTPEngine(engine.Config{
		BaseURL: cfg.Engine.URL,
		Timeout: cfg.Engine.Timeout,
	})
	if err != nil {
		logger.Fatalf("separation engine: %v", err)
	}

	healthCtx, cancelHealth := context.WithTimeout(ctx, 10*time.Second)
	if err := eng.Health(healthCtx); err != nil {
		logger.Printf("separation engine not reachable yet: %v", err)
	}
	cancelHealth()

	processor, err := separation.NewProcessor(logger, artifacts, jobs, gemini, eng, cfg.Engine.MaxActiveSeparations)
	if err != nil {
		logger.Fatalf("separation processor: %v", err)
	}

	app := api.NewServer(logger, processor, artifacts, jobs, api.Options{
		PublicBaseURL: cfg.API.PublicBaseURL,
		RateLimiter:   buildRateLimiter(cfg.RateLimit, logger),
	})

	httpServer := &http.Server{
		Addr:    cfg.API.Addr,
		Handler: app.Handler(),
		// Separations block the response for minutes; only the header
		// read gets a short deadline.
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.Engine.Timeout + 2*time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s storage=%s max_active_separations=%d", cfg.API.Addr, cfg.Storage.Backend, cfg.Engine.MaxActiveSeparations)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func buildArtifactStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendObject:
		objectStore, err := storage.NewObjectStore(storage.ObjectStoreConfig{
			Endpoint: cfg.Endpoint,
			Access:   cfg.AccessKey,
			Secret:   cfg.SecretKey,
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			UseSSL:   cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return objectStore, nil
	default:
		return storage.NewFSStore(cfg.OutputDir)
	}
}

func buildJobStore(ctx context.Context, cfg config.DatabaseConfig) (store.JobStore, func(), error) {
	if cfg.DSN == "" {
		return store.NewMemoryJobStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pg, err := store.NewPostgresJobStore(connectCtx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}

func buildRateLimiter(cfg config.RateLimitConfig, logger *log.Logger) api.RateLimiter {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	limiter, err := ratelimit.NewRedisTokenBucket(client, cfg.Capacity, cfg.Window, "")
	if err != nil {
		logger.Printf("rate limiter disabled: %v", err)
		return nil
	}
	return limiter
}
