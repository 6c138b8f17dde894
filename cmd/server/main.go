package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/medch24/distribution-annuelle/internal/adapter/api/middleware"
	"github.com/medch24/distribution-annuelle/internal/adapter/converter"
	"github.com/medch24/distribution-annuelle/internal/adapter/metrics"
	mongorepo "github.com/medch24/distribution-annuelle/internal/adapter/repository/mongo"
	"github.com/medch24/distribution-annuelle/internal/adapter/repository/rediscache"
	"github.com/medch24/distribution-annuelle/internal/adapter/staging"
	"github.com/medch24/distribution-annuelle/internal/adapter/ws"
	"github.com/medch24/distribution-annuelle/internal/domain"
	"github.com/medch24/distribution-annuelle/internal/pkg/config"
	"github.com/medch24/distribution-annuelle/internal/pkg/logger"
	"github.com/medch24/distribution-annuelle/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewGatewayMetrics()

	// Fixed at process start; pushed to every connecting client so a stale
	// cached frontend can detect it must reload.
	appVersion := time.Now().UnixMilli()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Tenant Database Router ---
	// The router dials lazily; a missing MONGO_URL degrades per-request
	// instead of preventing startup.
	if cfg.MongoURL == "" {
		logger.Warn("MONGO_URL is not set, class data operations will fail until it is configured")
	}
	dbRouter := mongorepo.NewRouter(cfg.MongoURL, logger)
	defer dbRouter.Close(context.Background())

	// --- Optional Latest-Copy Cache ---
	var copyCache domain.CopyCache
	if cfg.RedisAddr != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("could not connect to redis, latest-copy reads will always hit mongo", "error", err)
		}
		copyCache = rediscache.NewCopyCache(redisClient, logger, cfg.CopyCacheTTL, m)
	}

	// --- Conversion Pipeline ---
	area, err := staging.NewArea(cfg.StagingDir, logger)
	if err != nil {
		logger.Error("failed to initialize staging area", "error", err)
		os.Exit(1)
	}
	if cfg.ConvertAPISecret == "" {
		logger.Warn("CONVERTAPI_SECRET is not set, pdf generation will be rejected by the conversion service")
	}
	convClient := converter.NewClient(cfg.ConvertAPIURL, cfg.ConvertAPISecret, &http.Client{Timeout: cfg.ConvertTimeout}, logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.ConvertRate), cfg.ConvertBurst)

	// --- Use Cases and Gateway ---
	gradebook := usecase.NewGradebookService(dbRouter, copyCache, logger)
	pdf := usecase.NewPDFService(area, convClient, limiter, logger)
	gateway := ws.NewGateway(gradebook, pdf, logger, m, appVersion, cfg.MaxMessageSize)

	// --- HTTP Router ---
	r := chi.NewRouter()
	r.Handle("/ws", gateway)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	// No write timeout: websocket sessions stay open for the life of
	// the client.
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           middleware.Logging(logger)(r),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
