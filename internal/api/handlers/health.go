package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vshop/insights/internal/health"
	"github.com/vshop/insights/internal/models"
	"github.com/vshop/insights/pkg/utils"
)

type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HandleHealth reports 503 only when a configured dependency is unhealthy.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	overall := h.checker.CheckAll(c.Request.Context())

	services := make(map[string]string, len(overall.Services))
	for _, s := range overall.Services {
		services[s.Name] = s.Status
	}

	resp := models.HealthResponse{
		Status:    overall.Status,
		Service:   "insights",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	if overall.Status == health.StatusUnhealthy {
		utils.FailureResponse(c, http.StatusServiceUnavailable, "Service unhealthy", resp)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Service healthy", resp)
}
