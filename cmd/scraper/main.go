package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/api"
	"github.com/user/importcars-service/internal/browser"
	"github.com/user/importcars-service/internal/config"
	"github.com/user/importcars-service/internal/engine"
	"github.com/user/importcars-service/internal/monitoring"
	"github.com/user/importcars-service/internal/normalizer"
	"github.com/user/importcars-service/internal/orchestrator"
	"github.com/user/importcars-service/internal/profile"
	"github.com/user/importcars-service/internal/scraper"
	"github.com/user/importcars-service/internal/scraper/cochesnet"
	"github.com/user/importcars-service/internal/scraper/mobilede"
	"github.com/user/importcars-service/internal/transport"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// Initialize Monitoring
	metrics := monitoring.NewMetrics()

	// Initialize Access Profile Store. The redis cache is optional; without
	// it every restart pays a fresh bootstrap per source.
	var cache profile.Cache
	if cfg.RedisAddr != "" {
		cache = profile.NewRedisCache(cfg.RedisAddr)
	}
	bootstrapper := browser.NewBootstrapper(cfg.Headless, cfg.ProfileTTL(), logger)
	profiles := profile.NewStore(bootstrapper, cache, logger)

	// Initialize Retrying Transport
	executor := transport.NewRestyExecutor(cfg.RequestTimeoutDuration())
	tp := transport.New(executor, profiles, transport.Options{
		MaxAttempts:     cfg.MaxAttempts,
		BackoffBase:     cfg.BackoffBase(),
		BackoffMax:      cfg.BackoffMax(),
		JitterFactor:    0.2,
		ThrottleRPS:     cfg.ThrottleRPS,
		ThrottleBurst:   cfg.ThrottleBurst,
		CircuitFailures: cfg.CircuitFailures,
		CircuitCooldown: cfg.CircuitCooldownDuration(),
	}, metrics, logger)

	// Initialize Source Adapters and Orchestrator
	adapters := []scraper.Adapter{
		mobilede.NewAdapter(tp, profiles, cfg.MobileDeBaseURL, logger),
		cochesnet.NewAdapter(tp, profiles, cfg.CochesNetBaseURL, logger),
	}
	orch := orchestrator.New(adapters, cfg.SourceWorkers, metrics, logger)
	eng := engine.New(orch, normalizer.DefaultEURRates, metrics, logger)

	// Initialize API Server
	server := api.NewServer(cfg, eng, logger)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
