package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vshop/insights/internal/insights"
	"github.com/vshop/insights/internal/middleware"
	"github.com/vshop/insights/internal/models"
	"github.com/vshop/insights/pkg/utils"
)

const maxTitleLength = 500

type InsightsHandler struct {
	service   *insights.Service
	extractor *insights.Extractor
	requests  models.InsightRequestRepository
	logger    *logrus.Logger
}

// NewInsightsHandler wires the handler. requests may be nil when analytics
// storage is not configured.
func NewInsightsHandler(
	service *insights.Service,
	extractor *insights.Extractor,
	requests models.InsightRequestRepository,
	logger *logrus.Logger,
) *InsightsHandler {
	if extractor == nil {
		extractor = insights.NewExtractor(nil)
	}
	return &InsightsHandler{
		service:   service,
		extractor: extractor,
		requests:  requests,
		logger:    logger,
	}
}

// HandleGenerate returns insights for the posted product. Missing insights are
// reported as a null field, never as an error status.
func (h *InsightsHandler) HandleGenerate(c *gin.Context) {
	startTime := time.Now()

	product, ok := h.bindProduct(c)
	if !ok {
		return
	}

	input := h.extractor.NewInput(product)
	enabled := h.service.Enabled()

	var result *models.ProductInsights
	outcome := models.OutcomeDisabled

	switch {
	case !enabled:
	case !insights.HasSufficientAttributes(input.Attributes):
		outcome = models.OutcomeInsufficientAttributes
	default:
		if generated, ok := h.service.Generate(c.Request.Context(), input); ok {
			result = &generated
			outcome = models.OutcomeGenerated
		} else {
			outcome = models.OutcomeUnavailable
		}
	}

	responseTime := time.Since(startTime)

	h.logger.WithFields(logrus.Fields{
		"outcome":         outcome,
		"attribute_count": len(input.Attributes),
		"response_time":   responseTime.Milliseconds(),
		"request_id":      c.GetString(middleware.RequestIDKey),
	}).Info("Insights request completed")

	go h.trackInsightRequest(&models.InsightRequest{
		ClientHash:     utils.HashIdentifier(h.clientID(c)),
		ProductTitle:   input.Title,
		AttributeCount: len(input.Attributes),
		Outcome:        outcome,
		Provider:       h.service.Provider(),
		ResponseTimeMs: int(responseTime.Milliseconds()),
		UserAgent:      c.GetHeader("User-Agent"),
	})

	message := "Insights generated"
	if result == nil {
		message = "Insights unavailable"
	}
	utils.SuccessResponse(c, http.StatusOK, message, models.InsightsResponse{
		Insights:  result,
		AIEnabled: enabled,
	})
}

// HandlePrompt shows what would be sent to the model for the posted product.
func (h *InsightsHandler) HandlePrompt(c *gin.Context) {
	product, ok := h.bindProduct(c)
	if !ok {
		return
	}

	input := h.extractor.NewInput(product)

	attributes := make(map[string]string, len(input.Attributes))
	for k, v := range input.Attributes {
		attributes[string(k)] = v
	}

	utils.SuccessResponse(c, http.StatusOK, "Prompt built", models.PromptResponse{
		Prompt:     insights.BuildPrompt(input),
		Attributes: attributes,
		Sufficient: insights.HasSufficientAttributes(input.Attributes),
	})
}

func (h *InsightsHandler) bindProduct(c *gin.Context) (models.Product, bool) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		h.logger.WithError(err).Warn("Invalid insights request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return product, false
	}

	product.Title = strings.TrimSpace(product.Title)
	if product.Title == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Title cannot be empty", nil)
		return product, false
	}
	if len([]rune(product.Title)) > maxTitleLength {
		utils.ErrorResponse(c, http.StatusBadRequest, "Title too long (max 500 characters)", nil)
		return product, false
	}
	if product.Price < 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Price cannot be negative", nil)
		return product, false
	}
	return product, true
}

func (h *InsightsHandler) clientID(c *gin.Context) string {
	if id := c.GetString(middleware.ClientIDKey); id != "" {
		return id
	}
	return middleware.ClientIdentity(c.Request)
}

// trackInsightRequest stores the request outcome. Failures are only logged.
func (h *InsightsHandler) trackInsightRequest(record *models.InsightRequest) {
	if h.requests == nil {
		return
	}
	if err := h.requests.Create(record); err != nil {
		h.logger.WithError(err).Warn("Failed to track insight request")
	}
}
