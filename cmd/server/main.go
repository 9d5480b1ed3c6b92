package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/vshop/insights/internal/api"
	"github.com/vshop/insights/internal/api/handlers"
	"github.com/vshop/insights/internal/config"
	"github.com/vshop/insights/internal/database"
	"github.com/vshop/insights/internal/health"
	"github.com/vshop/insights/internal/insights"
	"github.com/vshop/insights/internal/llm"
	"github.com/vshop/insights/internal/metrics"
	"github.com/vshop/insights/internal/models"
	"github.com/vshop/insights/internal/ratelimit"
	"github.com/vshop/insights/internal/repository"
	"github.com/vshop/insights/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.Server.LogLevel, os.Stdout)
	utils.Logger = logger

	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    cfg.Server.LogLevel,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Storage unavailable, continuing without it")
	}
	defer dbManager.Close()

	if err := dbManager.Migrate(); err != nil {
		logger.WithError(err).Error("Database migration failed, analytics disabled")
		dbManager.DB = nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client, err := newModelClient(ctx, cfg, logger, m)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create model client")
	}

	extractor := insights.NewExtractor(nil)
	if cfg.Insights.PatternsFile != "" {
		patterns, err := insights.LoadPatternsFile(cfg.Insights.PatternsFile)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load attribute patterns")
		}
		extractor = insights.NewExtractor(patterns)
		logger.WithField("patterns", len(patterns)).Info("Custom attribute patterns loaded")
	}

	service := insights.NewService(client, logger, insights.WithMetrics(m))

	var requests models.InsightRequestRepository
	if dbManager.HasDatabase() {
		requests = repository.NewRepositoryManager(dbManager.DB).InsightRequests
	}

	var stats ratelimit.Stats = ratelimit.NewMemoryStats()
	if dbManager.HasRedis() {
		stats = ratelimit.NewRedisStats(dbManager.Redis, "insights:ratelimit", 24*time.Hour)
	}

	limiter := ratelimit.New(cfg.RateLimitConfig(), ratelimit.WithLogger(logger))
	limiter.Start(ctx)
	defer limiter.Stop()

	router := api.NewRouter(api.RouterConfig{
		Insights: handlers.NewInsightsHandler(service, extractor, requests, logger),
		Health:   handlers.NewHealthHandler(health.NewChecker(dbManager, client, logger)),
		Stats:    handlers.NewStatsHandler(stats, requests, logger),
		Limiter:  limiter,
		Recorder: stats,
		Metrics:  m,
		Gatherer: reg,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":          cfg.Server.Port,
		"provider":      client.Name(),
		"ai_enabled":    client.IsEnabled(),
		"rate_limit":    cfg.RateLimit.MaxRequests,
		"window":        cfg.RateLimit.Window.String(),
		"analytics":     requests != nil,
		"redis_stats":   dbManager.HasRedis(),
		"model_timeout": cfg.LLM.Timeout.String(),
	}).Info("Insights server starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("Server error")
	}
	logger.Info("Insights server stopped")
}

func newModelClient(ctx context.Context, cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) (llm.Client, error) {
	opts := []llm.Option{llm.WithObserver(m)}

	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return llm.NewGeminiClient(ctx, cfg.ModelConfig(), logger, opts...)
	default:
		return llm.NewOpenAIClient(cfg.ModelConfig(), logger, opts...), nil
	}
}
