package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vshop/insights/internal/models"
	"github.com/vshop/insights/internal/ratelimit"
	"github.com/vshop/insights/pkg/utils"
)

const (
	outcomeWindow      = 24 * time.Hour
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// StatsHandler reads back what the rate limiter and the insights handler
// recorded.
type StatsHandler struct {
	admission ratelimit.StatsReader
	requests  models.InsightRequestRepository
	logger    *logrus.Logger
	now       func() time.Time
}

// NewStatsHandler wires the handler. Both sources are optional.
func NewStatsHandler(admission ratelimit.StatsReader, requests models.InsightRequestRepository, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		admission: admission,
		requests:  requests,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleStats returns admission totals and insight outcomes for the last 24h.
func (h *StatsHandler) HandleStats(c *gin.Context) {
	ctx := c.Request.Context()
	to := h.now().UTC()
	from := to.Add(-outcomeWindow)

	resp := models.StatsResponse{
		Outcomes: []models.OutcomeCount{},
		From:     from.Format(time.RFC3339),
		To:       to.Format(time.RFC3339),
	}

	if h.admission != nil {
		total, err := h.admission.Total(ctx)
		if err == nil {
			var routes map[string]ratelimit.Counters
			routes, err = h.admission.ByRoute(ctx)
			if err == nil {
				resp.Admission = admissionStats(total, routes)
			}
		}
		if err != nil {
			h.logger.WithError(err).Error("Failed to read admission stats")
			utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get statistics", err)
			return
		}
	}

	if h.requests != nil {
		counts, err := h.requests.CountByOutcome(from, to)
		if err != nil {
			h.logger.WithError(err).Error("Failed to count insight outcomes")
			utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get statistics", err)
			return
		}
		if counts != nil {
			resp.Outcomes = counts
		}
		resp.AnalyticsEnabled = true
	}

	utils.SuccessResponse(c, http.StatusOK, "Statistics retrieved", resp)
}

// HandleRecentRequests lists the latest logged insight requests.
func (h *StatsHandler) HandleRecentRequests(c *gin.Context) {
	if h.requests == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Analytics storage not configured", nil)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecentLimit)))
	if err != nil || limit <= 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query parameter 'limit' must be a positive integer", nil)
		return
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	requests, err := h.requests.GetRecent(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recent insight requests")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get recent requests", err)
		return
	}
	if requests == nil {
		requests = []models.InsightRequest{}
	}

	utils.SuccessResponse(c, http.StatusOK, "Recent requests retrieved", models.RecentRequestsResponse{
		Requests: requests,
		Count:    len(requests),
	})
}

func admissionStats(total ratelimit.Counters, routes map[string]ratelimit.Counters) *models.AdmissionStats {
	out := &models.AdmissionStats{
		AdmissionCounts: models.AdmissionCounts{Allowed: total.Allowed, Denied: total.Denied},
		Routes:          make(map[string]models.AdmissionCounts, len(routes)),
	}
	for route, c := range routes {
		out.Routes[route] = models.AdmissionCounts{Allowed: c.Allowed, Denied: c.Denied}
	}
	return out
}
