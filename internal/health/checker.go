package health

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vshop/insights/internal/llm"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// Dependencies is the storage side of the service. database.Manager satisfies it.
type Dependencies interface {
	HasDatabase() bool
	HasRedis() bool
	PingDatabase(ctx context.Context) error
	PingRedis(ctx context.Context) error
}

// Checker manages health checks for all services
type Checker struct {
	deps    Dependencies
	model   llm.Client
	logger  *logrus.Logger
	started time.Time
}

func NewChecker(deps Dependencies, model llm.Client, logger *logrus.Logger) *Checker {
	return &Checker{
		deps:    deps,
		model:   model,
		logger:  logger,
		started: time.Now(),
	}
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

func (h *Checker) CheckPostgreSQL(ctx context.Context) ServiceHealth {
	if h.deps == nil || !h.deps.HasDatabase() {
		return disabled("postgresql")
	}
	return h.probe(ctx, "postgresql", h.deps.PingDatabase)
}

func (h *Checker) CheckRedis(ctx context.Context) ServiceHealth {
	if h.deps == nil || !h.deps.HasRedis() {
		return disabled("redis")
	}
	return h.probe(ctx, "redis", h.deps.PingRedis)
}

// CheckModel does not call the provider. A disabled client only degrades the
// service since requests still succeed without insights.
func (h *Checker) CheckModel() ServiceHealth {
	name := "model"
	if h.model != nil {
		name = "model:" + h.model.Name()
	}

	status := StatusHealthy
	errorMsg := ""
	if h.model == nil || !h.model.IsEnabled() {
		status = StatusDegraded
		errorMsg = "AI disabled"
	}

	return ServiceHealth{
		Name:        name,
		Status:      status,
		Error:       errorMsg,
		LastChecked: time.Now().Format(time.RFC3339),
	}
}

// CheckAll performs health checks on all services
func (h *Checker) CheckAll(ctx context.Context) OverallHealth {
	services := []ServiceHealth{
		h.CheckPostgreSQL(ctx),
		h.CheckRedis(ctx),
		h.CheckModel(),
	}

	overallStatus := StatusHealthy
	for _, service := range services {
		if service.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			break
		}
		if service.Status == StatusDegraded {
			overallStatus = StatusDegraded
		}
	}

	return OverallHealth{
		Status:   overallStatus,
		Services: services,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
	}
}

func (h *Checker) probe(ctx context.Context, name string, ping func(context.Context) error) ServiceHealth {
	start := time.Now()
	err := ping(ctx)
	responseTime := int(time.Since(start).Milliseconds())

	status := StatusHealthy
	errorMsg := ""
	if err != nil {
		status = StatusUnhealthy
		errorMsg = err.Error()
		h.logger.WithError(err).WithField("service", name).Error("Health check failed")
	}

	return ServiceHealth{
		Name:         name,
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

func disabled(name string) ServiceHealth {
	return ServiceHealth{
		Name:        name,
		Status:      StatusDisabled,
		LastChecked: time.Now().Format(time.RFC3339),
	}
}
