package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/vshop/insights/internal/api/handlers"
	"github.com/vshop/insights/internal/metrics"
	"github.com/vshop/insights/internal/middleware"
	"github.com/vshop/insights/internal/ratelimit"
)

type RouterConfig struct {
	Insights *handlers.InsightsHandler
	Health   *handlers.HealthHandler
	Stats    *handlers.StatsHandler
	Limiter  *ratelimit.Limiter
	Recorder ratelimit.Recorder
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *logrus.Logger
}

// NewRouter mounts the insights API. Only the insights routes are rate limited.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		middleware.Logger(cfg.Logger),
	)

	router.GET("/health", cfg.Health.HandleHealth)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	if cfg.Stats != nil {
		stats := router.Group("/api/v1/stats")
		{
			stats.GET("", cfg.Stats.HandleStats)
			stats.GET("/requests", cfg.Stats.HandleRecentRequests)
		}
	}

	products := router.Group("/api/v1/products")
	products.Use(middleware.RateLimit(cfg.Limiter, cfg.Recorder, cfg.Metrics, cfg.Logger))
	{
		products.POST("/insights", cfg.Insights.HandleGenerate)
		products.POST("/insights/prompt", cfg.Insights.HandlePrompt)
	}

	return router
}
